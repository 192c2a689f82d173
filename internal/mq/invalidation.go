package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/wuic/internal/heap"
	"github.com/shaiso/wuic/internal/pipeline"
)

// ErrUnknownMessage — событие неизвестного типа.
var ErrUnknownMessage = errors.New("unknown message type")

// Target — конфигурация, к которой применяются события.
// Реализуется *pipeline.Builder.
type Target interface {
	Heap(id string) (*heap.Heap, bool)
	ClearTag(tag string) *pipeline.Builder
}

// Invalidator применяет события других узлов к локальной конфигурации.
type Invalidator struct {
	nodeID string
	target Target
	logger *slog.Logger
}

// NewInvalidator создаёт Invalidator. События с Origin == nodeID
// пропускаются.
func NewInvalidator(nodeID string, target Target, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{nodeID: nodeID, target: target, logger: logger}
}

// Handle реализует Handler.
func (i *Invalidator) Handle(ctx context.Context, msg *Message) error {
	if msg.Origin == i.nodeID {
		return nil
	}

	switch msg.Type {
	case MessageTypeHeapChanged:
		p, err := ParsePayload[HeapChangedPayload](msg)
		if err != nil {
			return err
		}
		h, ok := i.target.Heap(p.HeapID)
		if !ok {
			i.logger.Debug("heap changed event for unknown heap", "heap_id", p.HeapID)
			return nil
		}
		h.Notify()
		i.logger.Info("heap invalidated by remote node", "heap_id", p.HeapID, "origin", msg.Origin)

	case MessageTypeTagCleared:
		p, err := ParsePayload[TagClearedPayload](msg)
		if err != nil {
			return err
		}
		i.target.ClearTag(p.Tag)
		i.logger.Info("tag cleared by remote node", "tag", p.Tag, "origin", msg.Origin)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type)
	}
	return nil
}
