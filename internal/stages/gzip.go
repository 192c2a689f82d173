package stages

import (
	"bytes"
	"context"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/engine"
	"github.com/shaiso/wuic/internal/property"
)

// Compressed — ресурс со сжатым содержимым.
// HTTP слой отдаёт его с заголовком Content-Encoding.
type Compressed struct {
	*domain.Nut
	encoding string
}

// ContentEncoding возвращает кодировку содержимого.
func (c *Compressed) ContentEncoding() string { return c.encoding }

// Gzip сжимает текстовые ресурсы.
type Gzip struct {
	base
	level int
}

// NewGzip создаёт активный Gzip с уровнем по умолчанию.
func NewGzip() *Gzip {
	return &Gzip{base: base{active: true}, level: gzip.DefaultCompression}
}

// Types возвращает текстовые типы.
func (s *Gzip) Types() []domain.ResourceType {
	var out []domain.ResourceType
	for _, t := range domain.AllTypes() {
		if t.IsText() {
			out = append(out, t)
		}
	}
	return out
}

// Kind возвращает StageBinaryCompression.
func (s *Gzip) Kind() engine.StageType { return engine.StageBinaryCompression }

// Run сжимает каждый ресурс. Уже сжатые ресурсы не трогаются.
func (s *Gzip) Run(ctx context.Context, req *engine.Request) ([]domain.Resource, error) {
	resources := req.Resources()
	out := make([]domain.Resource, 0, len(resources))

	for _, r := range resources {
		if _, ok := r.(*Compressed); ok {
			out = append(out, r)
			continue
		}

		data, err := domain.ReadAll(ctx, r)
		if err != nil {
			return nil, err
		}
		compressed, err := s.compress(data)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", r.Name(), err)
		}
		out = append(out, &Compressed{
			Nut:      domain.NewNut(r.Name(), r.Type(), compressed),
			encoding: "gzip",
		})
	}

	return engine.Execute(ctx, s.Next(), req.With(out))
}

func (s *Gzip) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, s.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GzipBuilder строит Gzip.
//
// Свойства:
//   - active: bool
//   - level: int, от gzip.HuffmanOnly до gzip.BestCompression
type GzipBuilder struct {
	opts  options
	level int
}

// NewGzipBuilder создаёт builder Gzip.
func NewGzipBuilder() Builder {
	return &GzipBuilder{opts: defaultOptions(), level: gzip.DefaultCompression}
}

// Configure задаёт свойство.
func (b *GzipBuilder) Configure(key string, value any) error {
	handled, err := b.opts.configure(key, value)
	if handled {
		return err
	}
	if key != "level" {
		return property.Unsupported(key)
	}

	level, err := property.Int(key, value)
	if err != nil {
		return err
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return fmt.Errorf("%w: level=%d", property.ErrNotSupported, level)
	}
	b.level = level
	return nil
}

// Build создаёт стадию.
func (b *GzipBuilder) Build() (engine.Stage, error) {
	return &Gzip{base: base{active: b.opts.active}, level: b.level}, nil
}
