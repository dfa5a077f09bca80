package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/adjust/rmq/v3"
	"github.com/go-redis/redis/v7"
	"github.com/kcz17/dumpslow/logging"
)

const queueName = "dumpslow_alerts"
const consumerTag = "dumpslow-alert-consumer"

// publisher is the subset of rmq.Queue used to enqueue alerts.
type publisher interface {
	Publish(payload ...string) error
}

// delivery is the subset of rmq.Delivery needed to acknowledge an alert.
type delivery interface {
	Payload() string
	Ack() error
	Reject() error
}

// OpenQueue connects to the Redis-backed alert queue. Background connection
// errors are logged.
func OpenQueue(addr string, password string, db int) (rmq.Queue, error) {
	errChan := make(chan error, 10)
	go func() {
		for err := range errChan {
			log.Printf("rmq alert queue background error: %v\n", err)
		}
	}()

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	connection, err := rmq.OpenConnectionWithRedisClient(consumerTag, client, errChan)
	if err != nil {
		return nil, fmt.Errorf("expected rmq.OpenConnectionWithRedisClient() returns nil err; got err = %w", err)
	}

	queue, err := connection.OpenQueue(queueName)
	if err != nil {
		return nil, fmt.Errorf("expected connection.OpenQueue(%s) returns nil err; got err = %w", queueName, err)
	}
	return queue, nil
}

// queueSink enqueues alerts so delivery happens off the request path.
type queueSink struct {
	queue publisher
}

func NewQueueSink(queue publisher) *queueSink {
	return &queueSink{queue: queue}
}

func (s *queueSink) Send(_ context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("could not marshal alert: err = %w", err)
	}
	if err := s.queue.Publish(string(payload)); err != nil {
		return fmt.Errorf("expected queue.Publish() returns nil err; got err = %w", err)
	}
	return nil
}

// QueueConsumer forwards queued alerts to a downstream sink.
type QueueConsumer struct {
	downstream Sink
	logger     logging.Logger
	timeout    time.Duration
}

func NewQueueConsumer(downstream Sink, logger logging.Logger) *QueueConsumer {
	return &QueueConsumer{
		downstream: downstream,
		logger:     logger,
		timeout:    10 * time.Second,
	}
}

// Start begins consuming queue in the background.
func (c *QueueConsumer) Start(queue rmq.Queue) error {
	if err := queue.StartConsuming(10, time.Second); err != nil {
		return fmt.Errorf("expected queue.StartConsuming() returns nil err; got err = %w", err)
	}
	if _, err := queue.AddConsumerFunc(consumerTag, func(d rmq.Delivery) {
		c.consume(d)
	}); err != nil {
		return fmt.Errorf("expected queue.AddConsumerFunc() returns nil err; got err = %w", err)
	}
	return nil
}

func (c *QueueConsumer) consume(d delivery) {
	var alert Alert
	if err := json.Unmarshal([]byte(d.Payload()), &alert); err != nil {
		c.logger.LogRecorderError("alert decode", err)
		if err := d.Reject(); err != nil {
			c.logger.LogRecorderError("alert reject", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.downstream.Send(ctx, &alert); err != nil {
		c.logger.LogRecorderError("alert delivery", err)
		if err := d.Reject(); err != nil {
			c.logger.LogRecorderError("alert reject", err)
		}
		return
	}

	if err := d.Ack(); err != nil {
		c.logger.LogRecorderError("alert ack", err)
	}
}
