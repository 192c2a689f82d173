package stages

import (
	"github.com/shaiso/wuic/internal/engine"
	"github.com/shaiso/wuic/internal/property"
)

// Builder строит стадию из свойств.
type Builder interface {
	// Configure задаёт свойство. Неизвестный ключ или значение
	// неподходящего типа — property.ErrNotSupported.
	Configure(key string, value any) error

	// Build создаёт новый экземпляр стадии.
	Build() (engine.Stage, error)
}

// Factory создаёт новый Builder.
type Factory func() Builder

// base — общие поля стадий.
type base struct {
	engine.Link
	active bool
}

// Active возвращает false, если стадия выключена.
func (b *base) Active() bool { return b.active }

// options — общие свойства builder'ов.
type options struct {
	active bool
}

func defaultOptions() options {
	return options{active: true}
}

// configure разбирает общие свойства. Возвращает false, если ключ
// не общий и его должен разобрать конкретный builder.
func (o *options) configure(key string, value any) (bool, error) {
	switch key {
	case "active":
		v, err := property.Bool(key, value)
		if err != nil {
			return true, err
		}
		o.active = v
		return true, nil
	}
	return false, nil
}

// funcBuilder — builder стадий, у которых только общие свойства.
type funcBuilder struct {
	opts  options
	build func(opts options) engine.Stage
}

func newFuncBuilder(build func(opts options) engine.Stage) Builder {
	return &funcBuilder{opts: defaultOptions(), build: build}
}

// Configure задаёт свойство.
func (b *funcBuilder) Configure(key string, value any) error {
	handled, err := b.opts.configure(key, value)
	if err != nil {
		return err
	}
	if !handled {
		return property.Unsupported(key)
	}
	return nil
}

// Build создаёт стадию.
func (b *funcBuilder) Build() (engine.Stage, error) {
	return b.build(b.opts), nil
}
