package pipeline

import (
	"errors"
	"fmt"

	"github.com/shaiso/wuic/internal/property"
	"github.com/shaiso/wuic/internal/store"
)

// Ошибки протокола тегов (ошибки программиста, приводят к panic).
var (
	// ErrTagRequired — изменение конфигурации без активного тега.
	ErrTagRequired = errors.New("no tag is currently active")

	// ErrNotOwner — блокировку отпускает или использует не владелец.
	ErrNotOwner = errors.New("configuration lock is not held by the caller")
)

// Ошибки конфигурации.
var (
	// ErrStoreNotFound — ссылка на незарегистрированное хранилище.
	ErrStoreNotFound = errors.New("store not found")

	// ErrStageNotFound — ссылка на незарегистрированную стадию.
	ErrStageNotFound = errors.New("stage not found")

	// ErrHeapNotFound — шаблон heap ни с чем не совпал.
	ErrHeapNotFound = errors.New("heap not found")

	// ErrTemplateNotFound — ссылка на незарегистрированный шаблон.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrSaveNotSupported — выходное хранилище не умеет сохранять.
	ErrSaveNotSupported = store.ErrSaveNotSupported

	// ErrNumericID — ID workflow или heap не может быть числом.
	ErrNumericID = errors.New("id must not be numeric")

	// ErrPropertyNotSupported — builder отверг свойство.
	ErrPropertyNotSupported = property.ErrNotSupported

	// ErrInvalidPattern — шаблон ID не является регулярным выражением.
	ErrInvalidPattern = errors.New("invalid id pattern")

	// ErrInvalidID — пустой ID.
	ErrInvalidID = errors.New("invalid id")
)

// Ошибки обработки.
var (
	// ErrWorkflowNotFound — workflow с таким ID нет в контексте.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrResourceNotFound — в результате нет ресурса с запрошенным именем.
	ErrResourceNotFound = errors.New("resource not found")
)

// ConfigurationError — ошибка регистрации или сборки конфигурации.
type ConfigurationError struct {
	Kind    string // store, stage, heap, template, workflow
	ID      string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %q: %s: %v", e.Kind, e.ID, e.Message, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// configError создаёт ConfigurationError.
func configError(kind, id string, err error, format string, args ...any) error {
	return &ConfigurationError{
		Kind:    kind,
		ID:      id,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
