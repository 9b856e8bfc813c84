package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// RabbitMQClient holds the connection and channel for RabbitMQ.
type RabbitMQClient struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	queueName string
}

// NewRabbitMQClient connects, retrying a few times, and declares a durable queue.
func NewRabbitMQClient(amqpURL, queueName string, logger *zap.Logger) (*RabbitMQClient, error) {
	conn, err := connectWithRetry(amqpURL, 3, 2*time.Second, logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &RabbitMQClient{
		Conn:      conn,
		Channel:   ch,
		queueName: queueName,
	}, nil
}

func connectWithRetry(url string, maxRetries int, delay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	var err error
	for i := 0; i < maxRetries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("rabbitmq connect failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)
}

// Publish sends body as a persistent JSON message.
func (c *RabbitMQClient) Publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return c.Channel.PublishWithContext(ctx,
		"",          // exchange
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
}

// Close closes the RabbitMQ channel and connection.
func (c *RabbitMQClient) Close() error {
	if c.Channel != nil {
		c.Channel.Close()
	}
	if c.Conn != nil {
		return c.Conn.Close()
	}
	return nil
}
