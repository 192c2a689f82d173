package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/property"
)

// KindDisk — вид файлового хранилища.
const KindDisk = "disk"

// Disk — хранилище ресурсов в каталоге файловой системы.
//
// Имена ресурсов — пути относительно корня через "/".
// Содержимое читается лениво, при первом обращении.
type Disk struct {
	watchers

	root     string
	readOnly bool
	closed   atomic.Bool
}

// NewDisk создаёт хранилище с корнем root.
func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

// Root возвращает корневой каталог.
func (d *Disk) Root() string { return d.root }

// Fetch возвращает файлы, подходящие под path.
func (d *Disk) Fetch(ctx context.Context, path string) ([]domain.Resource, error) {
	names, err := d.list(path)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Resource, 0, len(names))
	for _, name := range names {
		typ, err := domain.TypeForPath(name)
		if err != nil {
			continue
		}
		file := d.file(name)
		out = append(out, domain.NewLazyNut(name, typ, func(context.Context) ([]byte, error) {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", file, err)
			}
			return data, nil
		}))
	}
	return out, nil
}

// list возвращает отсортированные имена файлов по шаблону.
func (d *Disk) list(path string) ([]string, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	clean, err := cleanName(path)
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(d.file(clean))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	}

	var names []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		rel, err := filepath.Rel(d.root, m)
		if err != nil {
			continue
		}
		names = append(names, filepath.ToSlash(rel))
	}
	sort.Strings(names)

	if len(names) == 0 && !isPattern(clean) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return names, nil
}

func (d *Disk) file(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

// SupportsSave — false только для хранилища, собранного с read_only.
func (d *Disk) SupportsSave() bool { return !d.readOnly }

// Save записывает ресурс в файл, создавая каталоги.
func (d *Disk) Save(ctx context.Context, r domain.Resource) error {
	if d.readOnly {
		return ErrSaveNotSupported
	}
	if d.closed.Load() {
		return ErrClosed
	}

	name, err := cleanName(r.Name())
	if err != nil {
		return err
	}
	data, err := domain.ReadAll(ctx, r)
	if err != nil {
		return fmt.Errorf("read %s: %w", r.Name(), err)
	}

	file := d.file(name)
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", name, err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Shutdown останавливает хранилище.
func (d *Disk) Shutdown() { d.closed.Store(true) }

// Checksum строится из имён, размеров и времени изменения файлов.
// Содержимое не читается.
func (d *Disk) Checksum(ctx context.Context, path string) (string, error) {
	names, err := d.list(path)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, name := range names {
		info, err := os.Stat(d.file(name))
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(info.Size(), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(info.ModTime().UnixNano(), 10))
		b.WriteByte('\n')
	}
	return domain.Fingerprint([]byte(b.String())), nil
}

// Poll проверяет наблюдаемые пути.
func (d *Disk) Poll(ctx context.Context) error {
	return d.poll(ctx, d.Checksum)
}

// DiskBuilder строит Disk.
//
// Свойства:
//   - root: string, корневой каталог (обязательно)
//   - read_only: bool
type DiskBuilder struct {
	root     string
	readOnly bool
}

// NewDiskBuilder создаёт builder.
func NewDiskBuilder() Builder {
	return &DiskBuilder{}
}

// Configure задаёт свойство.
func (b *DiskBuilder) Configure(key string, value any) error {
	var err error
	switch key {
	case "root":
		b.root, err = property.String(key, value)
	case "read_only":
		b.readOnly, err = property.Bool(key, value)
	default:
		err = property.Unsupported(key)
	}
	return err
}

// Build создаёт хранилище.
func (b *DiskBuilder) Build() (Store, error) {
	if b.root == "" {
		return nil, fmt.Errorf("%w: root is required", ErrInvalidConfig)
	}
	root, err := filepath.Abs(b.root)
	if err != nil {
		return nil, fmt.Errorf("%w: root: %v", ErrInvalidConfig, err)
	}
	d := NewDisk(root)
	d.readOnly = b.readOnly
	return d, nil
}
