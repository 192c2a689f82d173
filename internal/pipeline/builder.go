package pipeline

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync/atomic"

	"github.com/shaiso/wuic/internal/heap"
	"github.com/shaiso/wuic/internal/stages"
	"github.com/shaiso/wuic/internal/store"
	"github.com/shaiso/wuic/internal/telemetry"
)

// DefaultTag — тег, под которым ConfigureDefaults регистрирует стадии.
const DefaultTag = "wuic.default"

// numericID — ID, которые нельзя использовать для workflow и heap:
// они неотличимы от версий в URL.
var numericID = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Config — конфигурация Builder.
type Config struct {
	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger
}

// Builder — изменяемое хранилище конфигурации, разбитое по тегам.
//
// Протокол работы:
//
//	b.Tag("app")
//	b.RegisterStore("dao", store.NewMemoryBuilder(), nil)
//	b.RegisterHeap("heap", "dao", []string{"*.js"})
//	b.ReleaseTag()
//	ctx, err := b.Build()
//
// Tag захватывает блокировку для текущей горутины (повторно входимую),
// ReleaseTag отпускает её. Регистрации вызываются только между Tag и
// ReleaseTag той же горутиной, иначе panic с ErrTagRequired.
//
// Повторная регистрация ID удаляет запись с тем же ID во всех тегах:
// побеждает последняя регистрация независимо от тега. Заменённое
// хранилище не останавливается, пока на него ссылается хотя бы один
// heap; heap продолжает читать из того экземпляра, с которым создан.
//
// Любое изменение увеличивает версию; Context, собранный до изменения,
// перестаёт быть актуальным (IsUpToDate == false).
type Builder struct {
	lock       *reentrantMutex
	currentTag string
	settings   []taggedSetting

	// retired — заменённые хранилища, которые ещё могут читать heap.
	retired []store.Store

	version atomic.Uint64
	logger  *slog.Logger
}

// NewBuilder создаёт пустой Builder.
func NewBuilder(cfg Config) *Builder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		lock:   newReentrantMutex(),
		logger: logger,
	}
}

// Version возвращает текущую версию конфигурации.
func (b *Builder) Version() uint64 {
	return b.version.Load()
}

func (b *Builder) touch() {
	b.version.Add(1)
}

// Tag захватывает блокировку и делает tag текущим. Если уже активен
// другой тег, он сначала отпускается.
func (b *Builder) Tag(tag string) *Builder {
	if tag == "" {
		panic(fmt.Errorf("%w: empty tag", ErrInvalidID))
	}

	b.lock.Lock()
	if b.currentTag != "" {
		b.ReleaseTag()
	}

	b.currentTag = tag
	b.settingFor(tag)
	b.touch()
	return b
}

// ReleaseTag отпускает текущий тег и один уровень блокировки.
// Без активного тега — panic с ErrTagRequired.
func (b *Builder) ReleaseTag() *Builder {
	if !b.lock.HeldByCurrent() || b.currentTag == "" {
		panic(ErrTagRequired)
	}

	b.currentTag = ""
	b.touch()
	b.lock.Unlock()
	return b
}

// Session активирует тег и возвращает функцию, которая его отпускает:
//
//	defer b.Session("app")()
func (b *Builder) Session(tag string) func() {
	b.Tag(tag)
	return func() {
		b.ReleaseTag()
	}
}

// ClearTag удаляет всю конфигурацию тега: останавливает его хранилища,
// уведомляет подписчиков его heap и отписывает эти heap от хранилищ.
// Заменённые ранее хранилища, на которые больше не ссылается ни один
// heap, тоже останавливаются.
func (b *Builder) ClearTag(tag string) *Builder {
	b.lock.Lock()
	defer b.lock.Unlock()

	logger := telemetry.WithTag(b.logger, tag)

	for i, ts := range b.settings {
		if ts.tag != tag {
			continue
		}
		b.settings = append(b.settings[:i], b.settings[i+1:]...)

		for id, s := range ts.setting.stores {
			logger.Debug("shutting down store", "store_id", id)
			s.Shutdown()
		}
		for _, h := range ts.setting.heaps {
			h.Notify()
			h.Close()
		}
		logger.Info("tag cleared",
			"stores", len(ts.setting.stores),
			"heaps", len(ts.setting.heaps),
			"workflows", len(ts.setting.workflows),
		)
		break
	}

	b.sweepRetired()
	b.touch()
	return b
}

// Shutdown останавливает все хранилища, включая заменённые.
func (b *Builder) Shutdown() {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, ts := range b.settings {
		for id, s := range ts.setting.stores {
			s.Shutdown()
			b.logger.Debug("store shut down", "store_id", id)
		}
	}
	for _, s := range b.retired {
		s.Shutdown()
	}
	b.retired = nil
}

// sweepRetired останавливает заменённые хранилища без heap.
func (b *Builder) sweepRetired() {
	live := b.retired[:0]
	for _, s := range b.retired {
		if b.storeInUse(s) {
			live = append(live, s)
			continue
		}
		s.Shutdown()
	}
	clear(b.retired[len(live):])
	b.retired = live
}

// storeInUse сообщает, читает ли из s какой-либо зарегистрированный heap
// или зарегистрировано ли s под каким-либо ID.
func (b *Builder) storeInUse(s store.Store) bool {
	for _, ts := range b.settings {
		for _, st := range ts.setting.stores {
			if st == s {
				return true
			}
		}
		for _, h := range ts.setting.heaps {
			if h.Store() == s {
				return true
			}
		}
	}
	return false
}

// Tags возвращает теги в порядке создания.
func (b *Builder) Tags() []string {
	b.lock.Lock()
	defer b.lock.Unlock()

	tags := make([]string, 0, len(b.settings))
	for _, ts := range b.settings {
		tags = append(tags, ts.tag)
	}
	return tags
}

// ConfigureDefaults регистрирует под тегом DefaultTag builder для
// каждого вида стадий по умолчанию с ID stages.DefaultID(kind).
// Более поздняя регистрация того же ID заменяет стадию по умолчанию.
func (b *Builder) ConfigureDefaults() *Builder {
	defer b.Session(DefaultTag)()

	for _, k := range stages.DefaultKinds() {
		if err := b.RegisterStage(stages.DefaultID(k), stages.DefaultFactory(k)(), nil); err != nil {
			// Стадии по умолчанию без свойств не могут не собраться
			panic(err)
		}
	}
	return b
}

// requireTag возвращает настройки текущего тега. Вызов вне
// Tag/ReleaseTag — panic с ErrTagRequired.
func (b *Builder) requireTag() *setting {
	if !b.lock.HeldByCurrent() || b.currentTag == "" {
		panic(ErrTagRequired)
	}
	return b.settingFor(b.currentTag)
}

// settingFor возвращает настройки тега, создавая их при необходимости.
func (b *Builder) settingFor(tag string) *setting {
	for _, ts := range b.settings {
		if ts.tag == tag {
			return ts.setting
		}
	}
	s := newSetting()
	b.settings = append(b.settings, taggedSetting{tag: tag, setting: s})
	return s
}

// RegisterStore строит хранилище и регистрирует его под id.
// Заменённое хранилище с тем же id остаётся открытым для heap, которые
// из него читают, и останавливается при ClearTag, когда таких heap
// не остаётся.
func (b *Builder) RegisterStore(id string, builder store.Builder, props map[string]any) error {
	current := b.requireTag()
	if id == "" {
		return configError("store", id, ErrInvalidID, "empty id")
	}

	if err := applyProperties(builder, props); err != nil {
		return configError("store", id, err, "configure")
	}
	s, err := builder.Build()
	if err != nil {
		return configError("store", id, err, "build")
	}

	for _, ts := range b.settings {
		if old, ok := ts.setting.stores[id]; ok {
			b.retired = append(b.retired, old)
			delete(ts.setting.stores, id)
		}
	}
	current.stores[id] = s

	b.logger.Debug("store registered", "store_id", id, "tag", b.currentTag)
	b.touch()
	return nil
}

// RegisterStage регистрирует builder стадии под id. Builder сразу
// собирается один раз, чтобы ошибки конфигурации проявились здесь;
// экземпляры для цепочек создаются при Build.
func (b *Builder) RegisterStage(id string, builder stages.Builder, props map[string]any) error {
	current := b.requireTag()
	if id == "" {
		return configError("stage", id, ErrInvalidID, "empty id")
	}

	if err := applyProperties(builder, props); err != nil {
		return configError("stage", id, err, "configure")
	}
	if _, err := builder.Build(); err != nil {
		return configError("stage", id, err, "build")
	}

	for _, ts := range b.settings {
		delete(ts.setting.stages, id)
	}
	current.stages[id] = builder

	b.logger.Debug("stage registered", "stage_id", id, "tag", b.currentTag)
	b.touch()
	return nil
}

// heapOptions — параметры RegisterHeap.
type heapOptions struct {
	composition []string
	listeners   []heap.Listener
	disposable  bool
}

// HeapOption настраивает регистрацию heap.
type HeapOption func(*heapOptions)

// WithComposition включает в heap все heap, ID которых соответствует
// одному из шаблонов (регулярные выражения на весь ID).
func WithComposition(patterns ...string) HeapOption {
	return func(o *heapOptions) {
		o.composition = append(o.composition, patterns...)
	}
}

// WithHeapListener подписывает listener на изменения heap.
func WithHeapListener(l heap.Listener) HeapOption {
	return func(o *heapOptions) {
		o.listeners = append(o.listeners, l)
	}
}

// DisposableHeap регистрирует heap, не наблюдающий за хранилищем.
func DisposableHeap() HeapOption {
	return func(o *heapOptions) {
		o.disposable = true
	}
}

// RegisterHeap регистрирует heap над хранилищем storeID.
func (b *Builder) RegisterHeap(id, storeID string, paths []string, opts ...HeapOption) error {
	current := b.requireTag()
	if id == "" {
		return configError("heap", id, ErrInvalidID, "empty id")
	}
	if numericID.MatchString(id) {
		return configError("heap", id, ErrNumericID, "heap id")
	}

	var o heapOptions
	for _, opt := range opts {
		opt(&o)
	}

	var st store.Store
	if storeID != "" || len(paths) > 0 {
		var ok bool
		if st, ok = b.lookupStore(storeID); !ok {
			return configError("heap", id, ErrStoreNotFound, "store %q", storeID)
		}
	}

	var hopts []heap.Option
	for _, p := range o.composition {
		re, err := compilePattern(p)
		if err != nil {
			return configError("heap", id, err, "composition")
		}
		parts := b.matchHeaps(re, id)
		if len(parts) == 0 {
			return configError("heap", id, ErrHeapNotFound, "composition %q matches no heap", p)
		}
		hopts = append(hopts, heap.WithComposition(parts...))
	}
	for _, l := range o.listeners {
		hopts = append(hopts, heap.WithListener(l))
	}
	if o.disposable {
		hopts = append(hopts, heap.Disposable())
	}

	h, err := heap.New(id, st, paths, hopts...)
	if err != nil {
		return configError("heap", id, err, "create")
	}

	for _, ts := range b.settings {
		if old, ok := ts.setting.heaps[id]; ok {
			old.Close()
			delete(ts.setting.heaps, id)
			delete(ts.setting.heapStores, id)
		}
	}
	current.heaps[id] = h
	if st != nil {
		current.heapStores[id] = storeID
	}

	b.logger.Debug("heap registered", "heap_id", id, "tag", b.currentTag)
	b.touch()
	return nil
}

// RegisterTemplate проверяет ссылки шаблона и регистрирует его.
func (b *Builder) RegisterTemplate(id string, def TemplateDef) error {
	current := b.requireTag()
	if id == "" {
		return configError("template", id, ErrInvalidID, "empty id")
	}

	for _, sid := range def.Stages {
		if !b.hasStage(sid) {
			return configError("template", id, ErrStageNotFound, "stage %q", sid)
		}
	}
	for _, sid := range def.Stores {
		s, ok := b.lookupStore(sid)
		if !ok {
			return configError("template", id, ErrStoreNotFound, "store %q", sid)
		}
		if !s.SupportsSave() {
			return configError("template", id, ErrSaveNotSupported, "store %q", sid)
		}
	}
	if def.IncludeDefaults && !b.hasStage(stages.DefaultID(stages.DefaultCache)) {
		b.logger.Warn("template includes default stages but defaults are not configured", "template_id", id)
	}

	def = TemplateDef{
		Stages:          append([]string(nil), def.Stages...),
		Exclude:         append([]string(nil), def.Exclude...),
		IncludeDefaults: def.IncludeDefaults,
		Stores:          append([]string(nil), def.Stores...),
	}

	for _, ts := range b.settings {
		delete(ts.setting.templates, id)
	}
	current.templates[id] = def

	b.logger.Debug("template registered", "template_id", id, "tag", b.currentTag)
	b.touch()
	return nil
}

// RegisterWorkflow регистрирует workflow над heap, ID которых
// соответствует heapPattern.
//
// При forEachHeap создаётся по workflow на каждый heap с ID
// prefix + heapID. Иначе создаётся один workflow с ID prefix над
// составным heap из всех подходящих heap.
func (b *Builder) RegisterWorkflow(prefix string, forEachHeap bool, heapPattern, templateID string) error {
	current := b.requireTag()
	if !forEachHeap && prefix == "" {
		return configError("workflow", prefix, ErrInvalidID, "empty id")
	}
	if prefix != "" && numericID.MatchString(prefix) {
		return configError("workflow", prefix, ErrNumericID, "workflow id")
	}
	if !b.hasTemplate(templateID) {
		return configError("workflow", prefix, ErrTemplateNotFound, "template %q", templateID)
	}

	re, err := compilePattern(heapPattern)
	if err != nil {
		return configError("workflow", prefix, err, "heap pattern")
	}
	if len(b.matchHeaps(re, "")) == 0 {
		return configError("workflow", prefix, ErrHeapNotFound, "pattern %q matches no heap", heapPattern)
	}

	for _, ts := range b.settings {
		delete(ts.setting.workflows, prefix)
	}
	current.workflows[prefix] = workflowDef{
		prefix:      prefix,
		forEachHeap: forEachHeap,
		source:      heapPattern,
		pattern:     re,
		templateID:  templateID,
	}

	b.logger.Debug("workflow registered", "workflow_id", prefix, "pattern", heapPattern, "tag", b.currentTag)
	b.touch()
	return nil
}

// RegisterInterceptor добавляет interceptor в текущий тег.
func (b *Builder) RegisterInterceptor(i Interceptor) {
	current := b.requireTag()
	current.interceptors = append(current.interceptors, i)
	b.touch()
}

// Stores возвращает снимок зарегистрированных хранилищ.
func (b *Builder) Stores() map[string]store.Store {
	b.lock.Lock()
	defer b.lock.Unlock()

	out := make(map[string]store.Store)
	for _, ts := range b.settings {
		for id, s := range ts.setting.stores {
			out[id] = s
		}
	}
	return out
}

// Heap возвращает зарегистрированный heap.
func (b *Builder) Heap(id string) (*heap.Heap, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lookupHeap(id)
}

// HeapIDs возвращает ID зарегистрированных heap по алфавиту.
func (b *Builder) HeapIDs() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.heapIDs()
}

func (b *Builder) lookupStore(id string) (store.Store, bool) {
	for _, ts := range b.settings {
		if s, ok := ts.setting.stores[id]; ok {
			return s, true
		}
	}
	return nil, false
}

func (b *Builder) hasStage(id string) bool {
	for _, ts := range b.settings {
		if _, ok := ts.setting.stages[id]; ok {
			return true
		}
	}
	return false
}

func (b *Builder) hasTemplate(id string) bool {
	for _, ts := range b.settings {
		if _, ok := ts.setting.templates[id]; ok {
			return true
		}
	}
	return false
}

// matchHeaps возвращает heap с подходящими ID, отсортированные по ID.
// Heap с ID exclude пропускается.
func (b *Builder) matchHeaps(re *regexp.Regexp, exclude string) []*heap.Heap {
	var out []*heap.Heap
	for _, ts := range b.settings {
		for id, h := range ts.setting.heaps {
			if id != exclude && re.MatchString(id) {
				out = append(out, h)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// compilePattern компилирует шаблон ID, совпадающий со всем ID.
func compilePattern(p string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + p + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, p, err)
	}
	return re, nil
}

// configurable — общая часть store.Builder и stages.Builder.
type configurable interface {
	Configure(key string, value any) error
}

// applyProperties передаёт свойства builder'у в порядке ключей.
func applyProperties(b configurable, props map[string]any) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := b.Configure(k, props[k]); err != nil {
			return err
		}
	}
	return nil
}
