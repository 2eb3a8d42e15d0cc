package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPQueue is a RabbitMQ-backed Queue with durable queues, persistent
// messages and manual acks.
type AMQPQueue struct {
	conn     *amqp.Connection
	mu       sync.Mutex // guards pub; amqp channels are not safe for concurrent publish
	pub      *amqp.Channel
	declared map[string]bool
	prefetch int
	log      *zap.Logger
}

func DialAMQP(url string, prefetch int, log *zap.Logger) (*AMQPQueue, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if prefetch < 1 {
		prefetch = 1
	}
	return &AMQPQueue{
		conn:     conn,
		pub:      ch,
		declared: map[string]bool{},
		prefetch: prefetch,
		log:      log,
	}, nil
}

func declare(ch *amqp.Channel, topic string) error {
	_, err := ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	return nil
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, msg JobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.declared[topic] {
		if err := declare(q.pub, topic); err != nil {
			return err
		}
		q.declared[topic] = true
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.pub.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Subscribe consumes on its own channel until ctx is done or the broker
// closes the delivery stream.
func (q *AMQPQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	if err := declare(ch, topic); err != nil {
		return err
	}
	if err := ch.Qos(q.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	msgs, err := ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", topic)
			}
			q.handle(ctx, d, handler)
		}
	}
}

func (q *AMQPQueue) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	var msg JobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == 0 {
		q.log.Warn("invalid job message dropped", zap.ByteString("body", d.Body), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := handler(ctx, msg); err != nil {
		// redelivered once; a second failure is left to the stale-job sweep
		requeue := !d.Redelivered
		q.log.Warn("job handler failed",
			zap.Int64("job_id", msg.JobID), zap.Bool("requeue", requeue), zap.Error(err))
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.pub.Close(); err != nil {
		q.log.Warn("closing publish channel", zap.Error(err))
	}
	return q.conn.Close()
}

var _ Queue = (*AMQPQueue)(nil)
