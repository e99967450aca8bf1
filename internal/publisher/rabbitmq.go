package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"clickup_collector/internal/domain"
)

const (
	RoutingKeyTaskCreated      = "task.created"
	RoutingKeyTaskUpdated      = "task.updated"
	RoutingKeyAggregateUpdated = "aggregate.updated"
)

type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
	now      func() time.Time
}

type Config struct {
	URL        string
	Exchange   string
	QueueName  string
	BindingKey string
}

// NewRabbitMQ declares a durable topic exchange and binds the queue to it
// with BindingKey. An empty QueueName skips the queue declaration.
func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if cfg.QueueName != "" {
		q, err := ch.QueueDeclare(
			cfg.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue: %w", err)
		}

		bindingKey := cfg.BindingKey
		if bindingKey == "" {
			bindingKey = "#"
		}
		if err := ch.QueueBind(q.Name, bindingKey, cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("bind queue: %w", err)
		}
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"binding_key", cfg.BindingKey,
	)

	return &RabbitMQ{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger.With("component", "publisher"),
		now:      time.Now,
	}, nil
}

func (r *RabbitMQ) PublishTask(ctx context.Context, task *domain.Task, isNew bool) error {
	key := RoutingKeyTaskUpdated
	if isNew {
		key = RoutingKeyTaskCreated
	}

	if err := r.publish(ctx, key, NewTaskMessage(task, key, r.now())); err != nil {
		return err
	}

	r.logger.Debug("published task", "task_id", task.ID, "routing_key", key)
	return nil
}

func (r *RabbitMQ) PublishAggregate(ctx context.Context, aggregate *domain.Aggregate) error {
	msg := NewAggregateMessage(aggregate, r.now())
	if err := r.publish(ctx, RoutingKeyAggregateUpdated, msg); err != nil {
		return err
	}

	r.logger.Debug("published aggregate",
		"root_task_id", aggregate.RootTaskID,
		"user_id", aggregate.AssigneeUserID,
	)
	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    r.now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
