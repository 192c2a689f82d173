package worker

import "errors"

// Ошибки воркера.
var (
	// ErrNoOutputStore — у шаблона workflow нет выходных хранилищ.
	ErrNoOutputStore = errors.New("workflow has no output store")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
