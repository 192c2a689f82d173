package pipeline

import (
	"fmt"
	"sort"

	"github.com/shaiso/wuic/internal/domain"
	"github.com/shaiso/wuic/internal/engine"
	"github.com/shaiso/wuic/internal/heap"
	"github.com/shaiso/wuic/internal/stages"
	"github.com/shaiso/wuic/internal/store"
)

// Template — материализованный шаблон: head стадия, цепочки по типам
// ресурсов и выходные хранилища. Не зависит от heap.
type Template struct {
	ID     string
	Head   engine.HeadStage
	Chains map[domain.ResourceType]engine.Stage
	Stores []store.Store
}

// Workflow — шаблон, привязанный к heap и доступный по ID.
type Workflow struct {
	ID     string
	Head   engine.HeadStage
	Chains map[domain.ResourceType]engine.Stage
	Stores []store.Store
	Heap   *heap.Heap
}

func newWorkflow(id string, tpl *Template, h *heap.Heap) *Workflow {
	return &Workflow{
		ID:     id,
		Head:   tpl.Head,
		Chains: tpl.Chains,
		Stores: tpl.Stores,
		Heap:   h,
	}
}

// defaultTemplateID — ID шаблона для workflow, созданных по умолчанию.
const defaultTemplateID = "wuic.default.template"

// chainSet собирает стадии шаблона по типам ресурсов.
type chainSet struct {
	head   engine.HeadStage
	stages map[domain.ResourceType][]engine.Stage
}

// add строит стадии из builder'а. Head стадия (кэш) строится один раз
// и заменяет предыдущую head. Остальные стадии получают отдельный
// экземпляр на каждый тип ресурса: связи цепочки хранятся в стадии.
func (c *chainSet) add(id string, sb stages.Builder) error {
	first, err := sb.Build()
	if err != nil {
		return configError("stage", id, err, "build")
	}

	if h, ok := first.(engine.HeadStage); ok && first.Kind() == engine.StageCache {
		c.head = h
		return nil
	}

	for i, rt := range first.Types() {
		s := first
		if i > 0 {
			if s, err = sb.Build(); err != nil {
				return configError("stage", id, err, "build")
			}
		}
		c.stages[rt] = append(c.stages[rt], s)
	}
	return nil
}

func (c *chainSet) compose() (map[domain.ResourceType]engine.Stage, error) {
	chains := make(map[domain.ResourceType]engine.Stage, len(c.stages))
	for rt, list := range c.stages {
		chain, err := engine.Compose(list...)
		if err != nil {
			return nil, fmt.Errorf("compose %s chain: %w", rt, err)
		}
		chains[rt] = chain
	}
	return chains, nil
}

// excluded сообщает, исключён ли вид по умолчанию списком exclude.
func excluded(exclude []string, k stages.DefaultKind) bool {
	for _, e := range exclude {
		if e == stages.DefaultID(k) || e == k.String() {
			return true
		}
	}
	return false
}

// materialize создаёт экземпляр шаблона. Стадии по умолчанию идут
// первыми, чтобы явно указанная стадия того же типа их заменила.
func (b *Builder) materialize(id string, def TemplateDef) (*Template, error) {
	set := &chainSet{stages: make(map[domain.ResourceType][]engine.Stage)}

	if def.IncludeDefaults {
		for _, k := range stages.DefaultKinds() {
			if excluded(def.Exclude, k) {
				continue
			}
			sb, ok := b.lookupStage(stages.DefaultID(k))
			if !ok {
				continue
			}
			if err := set.add(stages.DefaultID(k), sb); err != nil {
				return nil, err
			}
		}
	}

	for _, sid := range def.Stages {
		sb, ok := b.lookupStage(sid)
		if !ok {
			return nil, configError("template", id, ErrStageNotFound, "stage %q", sid)
		}
		if err := set.add(sid, sb); err != nil {
			return nil, err
		}
	}

	chains, err := set.compose()
	if err != nil {
		return nil, configError("template", id, err, "chains")
	}

	var outputs []store.Store
	for _, sid := range def.Stores {
		s, ok := b.lookupStore(sid)
		if !ok {
			return nil, configError("template", id, ErrStoreNotFound, "store %q", sid)
		}
		if !s.SupportsSave() {
			return nil, configError("template", id, ErrSaveNotSupported, "store %q", sid)
		}
		outputs = append(outputs, s)
	}

	return &Template{ID: id, Head: set.head, Chains: chains, Stores: outputs}, nil
}

func (b *Builder) lookupStage(id string) (stages.Builder, bool) {
	for _, ts := range b.settings {
		if sb, ok := ts.setting.stages[id]; ok {
			return sb, true
		}
	}
	return nil, false
}

// Build собирает неизменяемый Context из текущей конфигурации всех тегов.
//
// Для каждого heap, не покрытого ни одним workflow (с учётом
// composition), создаётся workflow с ID heap и цепочками по умолчанию.
func (b *Builder) Build() (*Context, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	version := b.Version()

	if err := b.checkHeapStores(); err != nil {
		return nil, err
	}

	templates := make(map[string]*Template)
	var defs []workflowDef
	var interceptors []Interceptor

	for _, ts := range b.settings {
		for id, def := range ts.setting.templates {
			tpl, err := b.materialize(id, def)
			if err != nil {
				return nil, err
			}
			templates[id] = tpl
		}
		for _, def := range ts.setting.workflows {
			defs = append(defs, def)
		}
		interceptors = append(interceptors, ts.setting.interceptors...)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].prefix < defs[j].prefix })

	workflows := make(map[string]*Workflow)
	var covered []*heap.Heap

	for _, def := range defs {
		tpl, ok := templates[def.templateID]
		if !ok {
			return nil, configError("workflow", def.prefix, ErrTemplateNotFound, "template %q", def.templateID)
		}
		heaps := b.matchHeaps(def.pattern, "")
		if len(heaps) == 0 {
			return nil, configError("workflow", def.prefix, ErrHeapNotFound, "pattern %q matches no heap", def.source)
		}
		covered = append(covered, heaps...)

		if def.forEachHeap {
			for _, h := range heaps {
				id := def.prefix + h.ID()
				workflows[id] = newWorkflow(id, tpl, h)
			}
			continue
		}

		composite, err := heap.New(def.source, nil, nil, heap.WithComposition(heaps...), heap.Disposable())
		if err != nil {
			return nil, configError("workflow", def.prefix, err, "composite heap")
		}
		workflows[def.prefix] = newWorkflow(def.prefix, tpl, composite)
	}

	var defaultTpl *Template
	for _, id := range b.heapIDs() {
		h, _ := b.lookupHeap(id)
		if isCovered(covered, h) {
			continue
		}
		if _, ok := workflows[id]; ok {
			continue
		}
		if defaultTpl == nil {
			tpl, err := b.materialize(defaultTemplateID, TemplateDef{IncludeDefaults: true})
			if err != nil {
				return nil, err
			}
			defaultTpl = tpl
		}
		workflows[id] = newWorkflow(id, defaultTpl, h)
	}

	b.logger.Debug("context built",
		"version", version,
		"workflows", len(workflows),
		"interceptors", len(interceptors),
	)

	return &Context{
		workflows:    workflows,
		interceptors: interceptors,
		version:      version,
		live:         &b.version,
	}, nil
}

// checkHeapStores проверяет, что хранилище каждого heap всё ещё
// зарегистрировано: ClearTag другого тега мог его удалить.
func (b *Builder) checkHeapStores() error {
	for _, ts := range b.settings {
		for id, storeID := range ts.setting.heapStores {
			if _, ok := b.lookupStore(storeID); !ok {
				return configError("heap", id, ErrStoreNotFound, "store %q", storeID)
			}
		}
	}
	return nil
}

func isCovered(covered []*heap.Heap, h *heap.Heap) bool {
	for _, c := range covered {
		if c.Contains(h) {
			return true
		}
	}
	return false
}

func (b *Builder) lookupHeap(id string) (*heap.Heap, bool) {
	for _, ts := range b.settings {
		if h, ok := ts.setting.heaps[id]; ok {
			return h, true
		}
	}
	return nil, false
}

func (b *Builder) heapIDs() []string {
	var ids []string
	for _, ts := range b.settings {
		for id := range ts.setting.heaps {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
