package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает событие. Ошибка приводит к nack без повторной
// доставки: события идемпотентны, и следующее изменение придёт новым
// сообщением.
type Handler func(ctx context.Context, msg *Message) error

// Consumer читает события из очереди узла.
type Consumer struct {
	conn    *Connection
	logger  *slog.Logger
	handler Handler
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Handler Handler
	Logger  *slog.Logger
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, cfg ConsumerConfig) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{conn: conn, logger: logger, handler: cfg.Handler}
}

// Run читает события до отмены ctx, переобъявляя очередь узла после
// каждого переподключения.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, queue, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe to events", "error", err)
		} else {
			c.logger.Info("consumer started", "queue", queue)
			err = c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("event stream interrupted", "queue", queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Reconnected():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, string, error) {
	var (
		deliveries <-chan amqp.Delivery
		queue      string
	)
	err := c.conn.WithChannel(func(ch *amqp.Channel) error {
		var err error
		if queue, err = declareNodeQueue(ch); err != nil {
			return err
		}
		deliveries, err = ch.Consume(
			queue, // queue
			"",    // consumer tag
			false, // auto-ack
			true,  // exclusive
			false, // no-local
			false, // no-wait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}
		return nil
	})
	return deliveries, queue, err
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, raw)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal event", "error", err, "body", string(raw.Body))
		raw.Nack(false, false)
		return
	}

	if err := c.handler(ctx, &msg); err != nil {
		c.logger.Error("event handler failed",
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		raw.Nack(false, false)
		return
	}
	raw.Ack(false)
}

// ParsePayload приводит payload сообщения к типу T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
