package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFile — файл не разбирается или не проходит проверку.
	ErrInvalidFile = errors.New("invalid configuration file")

	// ErrNoBuilder — Loader создан без pipeline.Builder.
	ErrNoBuilder = errors.New("loader builder is required")
)

// FieldError — ошибка в конкретном элементе файла.
type FieldError struct {
	Section string // stores, stages, heaps, templates, workflows
	Index   int
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s[%d]: %s", e.Section, e.Index, e.Message)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidFile
}
