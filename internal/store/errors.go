package store

import "errors"

// Ошибки хранилищ.
var (
	// ErrSaveNotSupported — хранилище не умеет сохранять ресурсы.
	ErrSaveNotSupported = errors.New("store does not support save")

	// ErrNotFound — по точному пути ресурс не найден.
	ErrNotFound = errors.New("resource not found in store")

	// ErrClosed — хранилище уже остановлено.
	ErrClosed = errors.New("store is shut down")

	// ErrInvalidConfig — невалидная конфигурация хранилища.
	ErrInvalidConfig = errors.New("invalid store config")

	// ErrUnknownKind — вид хранилища не зарегистрирован.
	ErrUnknownKind = errors.New("unknown store kind")

	// ErrInvalidPath — путь выходит за пределы хранилища.
	ErrInvalidPath = errors.New("invalid resource path")
)
