package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип события.
type MessageType string

// Типы событий.
const (
	MessageTypeHeapChanged MessageType = "heap.changed"
	MessageTypeTagCleared  MessageType = "tag.cleared"
)

// Message — событие инвалидации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type MessageType `json:"type"`

	// Origin — ID узла, опубликовавшего событие.
	Origin string `json:"origin"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// HeapChangedPayload — payload события heap.changed.
type HeapChangedPayload struct {
	HeapID string `json:"heap_id"`
}

// TagClearedPayload — payload события tag.cleared.
type TagClearedPayload struct {
	Tag string `json:"tag"`
}

// Publisher публикует события узла.
type Publisher struct {
	conn   *Connection
	nodeID string
	logger *slog.Logger
}

// NewPublisher создаёт Publisher. nodeID попадает в Origin сообщений.
func NewPublisher(conn *Connection, nodeID string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, nodeID: nodeID, logger: logger}
}

// NodeID возвращает ID узла.
func (p *Publisher) NodeID() string {
	return p.nodeID
}

// Publish публикует сообщение в exchange событий.
func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		if err := declareExchange(ch); err != nil {
			return err
		}
		err := ch.PublishWithContext(ctx,
			ExchangeEvents, // exchange
			"",             // routing key
			false,          // mandatory
			false,          // immediate
			amqp.Publishing{
				ContentType: "application/json",
				MessageId:   msg.ID,
				Timestamp:   msg.Timestamp,
				Body:        body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", msg.Type, err)
		}

		p.logger.Debug("published event",
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishHeapChanged сообщает узлам об изменении heap.
func (p *Publisher) PublishHeapChanged(ctx context.Context, heapID string) error {
	return p.Publish(ctx, p.newMessage(MessageTypeHeapChanged, HeapChangedPayload{HeapID: heapID}))
}

// PublishTagCleared сообщает узлам об удалении тега.
func (p *Publisher) PublishTagCleared(ctx context.Context, tag string) error {
	return p.Publish(ctx, p.newMessage(MessageTypeTagCleared, TagClearedPayload{Tag: tag}))
}

func (p *Publisher) newMessage(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      t,
		Origin:    p.nodeID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
