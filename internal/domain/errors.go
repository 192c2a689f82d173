package domain

import "errors"

// Ошибки ресурсов.
var (
	// ErrUnknownResourceType — расширение файла не соответствует ни одному типу.
	ErrUnknownResourceType = errors.New("unknown resource type")

	// ErrEmptyComposite — composite без частей.
	ErrEmptyComposite = errors.New("composite resource has no parts")
)
