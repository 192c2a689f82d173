package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeEvents — fanout exchange событий инвалидации.
const ExchangeEvents = "wuic.events"

// declareExchange объявляет exchange событий.
func declareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		ExchangeEvents, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	return nil
}

// declareNodeQueue объявляет эксклюзивную очередь узла и привязывает
// её к exchange событий. Имя очереди выбирает брокер; после
// переподключения очередь объявляется заново.
func declareNodeQueue(ch *amqp.Channel) (string, error) {
	if err := declareExchange(ch); err != nil {
		return "", err
	}

	q, err := ch.QueueDeclare(
		"",    // name (server-generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare node queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", ExchangeEvents, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, ExchangeEvents, err)
	}
	return q.Name, nil
}
