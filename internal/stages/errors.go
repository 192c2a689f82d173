package stages

import "errors"

// Ошибки стадий.
var (
	// ErrUnknownKind — вид стадии не найден в реестре.
	ErrUnknownKind = errors.New("unknown stage kind")

	// ErrInvalidConfig — невалидная конфигурация стадии.
	ErrInvalidConfig = errors.New("invalid stage config")
)
