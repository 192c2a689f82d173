package domain

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Resource — именованная единица контента.
//
// Реализации должны быть безопасны для конкурентного чтения.
type Resource interface {
	// Name возвращает имя ресурса (относительный путь внутри heap).
	Name() string

	// Type возвращает тип ресурса.
	Type() ResourceType

	// Version возвращает отпечаток содержимого.
	Version(ctx context.Context) (string, error)

	// Open открывает содержимое ресурса для чтения.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Loader загружает содержимое ресурса.
type Loader func(ctx context.Context) ([]byte, error)

// Nut — базовая реализация Resource.
//
// Содержимое либо передаётся сразу (NewNut), либо загружается при первом
// обращении (NewLazyNut) и кэшируется.
type Nut struct {
	name string
	typ  ResourceType
	load Loader

	once    sync.Once
	data    []byte
	err     error
	version string
}

// NewNut создаёт ресурс с уже известным содержимым.
func NewNut(name string, typ ResourceType, data []byte) *Nut {
	buf := make([]byte, len(data))
	copy(buf, data)
	n := &Nut{name: name, typ: typ, data: buf}
	n.once.Do(func() {})
	n.version = Fingerprint(buf)
	return n
}

// NewLazyNut создаёт ресурс, содержимое которого загружается через load.
func NewLazyNut(name string, typ ResourceType, load Loader) *Nut {
	return &Nut{name: name, typ: typ, load: load}
}

// Name возвращает имя ресурса.
func (n *Nut) Name() string { return n.name }

// Type возвращает тип ресурса.
func (n *Nut) Type() ResourceType { return n.typ }

// Bytes возвращает содержимое ресурса.
func (n *Nut) Bytes(ctx context.Context) ([]byte, error) {
	n.once.Do(func() {
		n.data, n.err = n.load(ctx)
		if n.err == nil {
			n.version = Fingerprint(n.data)
		}
	})
	return n.data, n.err
}

// Version возвращает отпечаток содержимого.
func (n *Nut) Version(ctx context.Context) (string, error) {
	if _, err := n.Bytes(ctx); err != nil {
		return "", err
	}
	return n.version, nil
}

// Open открывает содержимое ресурса.
func (n *Nut) Open(ctx context.Context) (io.ReadCloser, error) {
	data, err := n.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// String нужен для логов.
func (n *Nut) String() string {
	return n.name + " (" + string(n.typ) + ")"
}

// Fingerprint вычисляет отпечаток содержимого.
func Fingerprint(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// ReadAll читает всё содержимое ресурса.
func ReadAll(ctx context.Context, r Resource) ([]byte, error) {
	if n, ok := r.(*Nut); ok {
		return n.Bytes(ctx)
	}
	rc, err := r.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Names возвращает имена ресурсов в исходном порядке.
func Names(resources []Resource) []string {
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.Name()
	}
	return names
}
