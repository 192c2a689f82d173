package domain

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// Composite — ресурс, объединяющий несколько частей под одним именем.
//
// Содержимое — конкатенация частей; для текстовых типов части
// разделяются переводом строки.
type Composite struct {
	name  string
	typ   ResourceType
	parts []Resource
}

// NewComposite создаёт composite из частей.
// Тип берётся из первой части.
func NewComposite(name string, parts ...Resource) (*Composite, error) {
	if len(parts) == 0 {
		return nil, ErrEmptyComposite
	}
	flat := make([]Resource, 0, len(parts))
	for _, p := range parts {
		flat = appendParts(flat, p)
	}
	return &Composite{name: name, typ: flat[0].Type(), parts: flat}, nil
}

// appendParts добавляет часть (раскрывая вложенные composite) без дублей.
func appendParts(dst []Resource, r Resource) []Resource {
	if c, ok := r.(*Composite); ok {
		for _, p := range c.parts {
			dst = appendParts(dst, p)
		}
		return dst
	}
	for _, existing := range dst {
		if existing == r {
			return dst
		}
	}
	return append(dst, r)
}

// Name возвращает имя ресурса.
func (c *Composite) Name() string { return c.name }

// Type возвращает тип ресурса.
func (c *Composite) Type() ResourceType { return c.typ }

// Parts возвращает копию списка частей.
func (c *Composite) Parts() []Resource {
	out := make([]Resource, len(c.parts))
	copy(out, c.parts)
	return out
}

// Version вычисляется из версий частей.
func (c *Composite) Version(ctx context.Context) (string, error) {
	versions := make([]string, 0, len(c.parts))
	for _, p := range c.parts {
		v, err := p.Version(ctx)
		if err != nil {
			return "", err
		}
		versions = append(versions, v)
	}
	return Fingerprint([]byte(strings.Join(versions, "|"))), nil
}

// Open возвращает конкатенацию частей.
func (c *Composite) Open(ctx context.Context) (io.ReadCloser, error) {
	var buf bytes.Buffer
	for i, p := range c.parts {
		data, err := ReadAll(ctx, p)
		if err != nil {
			return nil, err
		}
		if i > 0 && c.typ.IsText() {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return io.NopCloser(&buf), nil
}

// MergeByName объединяет ресурсы с одинаковыми именами в Composite.
//
// Порядок результата — порядок первого появления имени. Ресурс, имя
// которого встречается один раз, возвращается как есть.
func MergeByName(resources []Resource) []Resource {
	order := make([]string, 0, len(resources))
	groups := make(map[string][]Resource, len(resources))

	for _, r := range resources {
		if _, seen := groups[r.Name()]; !seen {
			order = append(order, r.Name())
		}
		groups[r.Name()] = append(groups[r.Name()], r)
	}

	merged := make([]Resource, 0, len(order))
	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		// group не пустой, ошибка невозможна
		c, _ := NewComposite(name, group...)
		merged = append(merged, c)
	}
	return merged
}

// FindByName возвращает ресурс с указанным именем или nil.
func FindByName(resources []Resource, name string) Resource {
	for _, r := range resources {
		if r.Name() == name {
			return r
		}
	}
	return nil
}
