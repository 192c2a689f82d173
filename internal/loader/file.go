package loader

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// File — содержимое файла конфигурации.
type File struct {
	Stores    []StoreDef        `yaml:"stores"`
	Stages    []StageDef        `yaml:"stages"`
	Heaps     []HeapDef         `yaml:"heaps"`
	Templates []TemplateDef     `yaml:"templates"`
	Workflows []WorkflowDef     `yaml:"workflows"`
	Filters   []string          `yaml:"filters"`
	Aliases   map[string]string `yaml:"aliases"`
}

// StoreDef описывает хранилище.
type StoreDef struct {
	ID         string         `yaml:"id"`
	Kind       string         `yaml:"kind"`
	Properties map[string]any `yaml:"properties"`
}

// StageDef описывает стадию.
type StageDef struct {
	ID         string         `yaml:"id"`
	Kind       string         `yaml:"kind"`
	Properties map[string]any `yaml:"properties"`
}

// HeapDef описывает heap.
type HeapDef struct {
	ID          string   `yaml:"id"`
	Store       string   `yaml:"store"`
	Paths       []string `yaml:"paths"`
	Composition []string `yaml:"composition"`
	Disposable  bool     `yaml:"disposable"`
}

// TemplateDef описывает шаблон.
type TemplateDef struct {
	ID              string   `yaml:"id"`
	Stages          []string `yaml:"stages"`
	Exclude         []string `yaml:"exclude"`
	IncludeDefaults bool     `yaml:"include_defaults"`
	Stores          []string `yaml:"stores"`
}

// WorkflowDef описывает workflow.
type WorkflowDef struct {
	Prefix      string `yaml:"prefix"`
	ForEachHeap bool   `yaml:"for_each_heap"`
	HeapPattern string `yaml:"heap_pattern"`
	Template    string `yaml:"template"`
}

// Parse разбирает YAML (или JSON) и проверяет обязательные поля.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	for i, s := range f.Stores {
		if s.ID == "" || s.Kind == "" {
			return &FieldError{Section: "stores", Index: i, Message: "id and kind are required"}
		}
	}
	for i, s := range f.Stages {
		if s.ID == "" || s.Kind == "" {
			return &FieldError{Section: "stages", Index: i, Message: "id and kind are required"}
		}
	}
	for i, h := range f.Heaps {
		if h.ID == "" {
			return &FieldError{Section: "heaps", Index: i, Message: "id is required"}
		}
		if len(h.Paths) == 0 && len(h.Composition) == 0 {
			return &FieldError{Section: "heaps", Index: i, Message: "paths or composition is required"}
		}
	}
	for i, t := range f.Templates {
		if t.ID == "" {
			return &FieldError{Section: "templates", Index: i, Message: "id is required"}
		}
	}
	for i, w := range f.Workflows {
		if w.HeapPattern == "" || w.Template == "" {
			return &FieldError{Section: "workflows", Index: i, Message: "heap_pattern and template are required"}
		}
	}
	return nil
}
