package stages

import (
	"context"
	"fmt"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/engine"
)

// aggregateName — имя результата агрегации без расширения.
const aggregateName = "aggregate"

// Aggregator объединяет все ресурсы запроса в один ресурс
// "aggregate" + расширение типа. Части разделяются переводом строки.
type Aggregator struct {
	base
}

// NewAggregator создаёт активный Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{base: base{active: true}}
}

// NewAggregatorBuilder создаёт builder Aggregator.
func NewAggregatorBuilder() Builder {
	return newFuncBuilder(func(opts options) engine.Stage {
		return &Aggregator{base: base{active: opts.active}}
	})
}

// Types возвращает JS и CSS.
func (s *Aggregator) Types() []domain.ResourceType {
	return []domain.ResourceType{domain.TypeJavaScript, domain.TypeCSS}
}

// Kind возвращает StageAggregator.
func (s *Aggregator) Kind() engine.StageType { return engine.StageAggregator }

// Run объединяет ресурсы и передаёт результат дальше.
func (s *Aggregator) Run(ctx context.Context, req *engine.Request) ([]domain.Resource, error) {
	resources := req.Resources()
	if len(resources) == 0 {
		return engine.Execute(ctx, s.Next(), req)
	}

	typ := resources[0].Type()
	exts := typ.Extensions()
	if len(exts) == 0 {
		return nil, fmt.Errorf("%w: no extension for %s", ErrInvalidConfig, typ)
	}

	aggregated, err := domain.NewComposite(aggregateName+exts[0], resources...)
	if err != nil {
		return nil, err
	}
	return engine.Execute(ctx, s.Next(), req.With([]domain.Resource{aggregated}))
}
