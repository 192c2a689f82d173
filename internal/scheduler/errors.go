package scheduler

import "errors"

var (
	// ErrInvalidSpec — некорректное cron-выражение.
	ErrInvalidSpec = errors.New("invalid cron spec")

	// ErrNoSource — Scheduler создан без источника хранилищ.
	ErrNoSource = errors.New("scheduler source is required")
)
