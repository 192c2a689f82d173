package pipeline

import (
	"regexp"

	"github.com/shaiso/wuic/internal/heap"
	"github.com/shaiso/wuic/internal/stages"
	"github.com/shaiso/wuic/internal/store"
)

// TemplateDef — описание шаблона: стадии, исключения стадий по
// умолчанию и выходные хранилища.
type TemplateDef struct {
	// Stages — ID зарегистрированных стадий.
	Stages []string

	// Exclude — стадии по умолчанию, которые не включаются в цепочки.
	// Допускается ID (stages.DefaultID) или имя вида ("gzip").
	Exclude []string

	// IncludeDefaults включает стадии по умолчанию.
	IncludeDefaults bool

	// Stores — ID хранилищ для сохранения результатов.
	// Каждое должно поддерживать Save.
	Stores []string
}

// workflowDef — зарегистрированное описание workflow.
type workflowDef struct {
	prefix      string
	forEachHeap bool
	source      string
	pattern     *regexp.Regexp
	templateID  string
}

// setting — конфигурация одного тега.
type setting struct {
	stores       map[string]store.Store
	stages       map[string]stages.Builder
	heaps        map[string]*heap.Heap
	heapStores   map[string]string
	templates    map[string]TemplateDef
	workflows    map[string]workflowDef
	interceptors []Interceptor
}

func newSetting() *setting {
	return &setting{
		stores:     make(map[string]store.Store),
		stages:     make(map[string]stages.Builder),
		heaps:      make(map[string]*heap.Heap),
		heapStores: make(map[string]string),
		templates:  make(map[string]TemplateDef),
		workflows:  make(map[string]workflowDef),
	}
}

// taggedSetting — элемент упорядоченного списка тегов.
type taggedSetting struct {
	tag     string
	setting *setting
}
