package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Exchange — общий exchange для событий уведомлений.
const Exchange = "notifications"

// Очереди и ключи маршрутизации событий уведомлений.
const (
	QueuePayment      = "notifications.payment"
	QueueExpiry       = "notifications.expiry"
	RoutingKeyPayment = "payment"
	RoutingKeyExpiry  = "expiry"
)

// SetupChannel открывает канал, объявляет exchange и очереди уведомлений
// и привязывает их к ключам маршрутизации.
func SetupChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{QueuePayment, RoutingKeyPayment},
		{QueueExpiry, RoutingKeyExpiry},
	}
	for _, b := range bindings {
		_, err := ch.QueueDeclare(
			b.queue,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, b.queue, err)
		}

		err = ch.QueueBind(b.queue, b.routingKey, Exchange, false, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, b.queue, b.routingKey, err)
		}
	}

	return ch, nil
}
