package engine

import "errors"

// Ошибки сборки цепочек.
var (
	// ErrEmptyChain — цепочка собирается из пустого набора стадий.
	ErrEmptyChain = errors.New("chain must be built with a non-empty set of stages")
)

// Ошибки запросов.
var (
	// ErrUnnamedResource — ресурс не может сообщить стабильное имя.
	ErrUnnamedResource = errors.New("resource has no name")

	// ErrNoHeap — запрос построен без heap.
	ErrNoHeap = errors.New("request has no heap")

	// ErrUnknownStageType — неизвестное имя типа стадии.
	ErrUnknownStageType = errors.New("unknown stage type")
)
