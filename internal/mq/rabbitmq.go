package mq

import (
	"DedupVault/config"
	"context"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Reclaim topology: tasks flow through the main queue; failed removes
// park on the retry queue, whose per-message TTL dead-letters them back
// to the main queue; exhausted tasks land on the DLQ.
const (
	ExchangeTasks = "reclaim.exchange"
	ExchangeRetry = "reclaim.retry.exchange"
	ExchangeDLQ   = "reclaim.dlq.exchange"

	QueueTasks = "reclaim.queue"
	QueueRetry = "reclaim.retry.queue"
	QueueDLQ   = "reclaim.dlq.queue"

	RoutingTask  = "reclaim"
	RoutingRetry = "reclaim.retry"
	RoutingDLQ   = "reclaim.dlq"
)

type Client struct {
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	publishMu sync.Mutex
}

var publisherMu sync.Mutex
var publisher *Client

// Dial opens a connection and channel to the broker.
func Dial() (*Client, error) {
	conn, err := amqp.Dial(config.AppConfig.RabbitMQURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{Conn: conn, Channel: ch}, nil
}

// GetPublisher returns the shared publishing client, redialing when the
// previous connection went away.
func GetPublisher() (*Client, error) {
	publisherMu.Lock()
	defer publisherMu.Unlock()
	if publisher != nil {
		if !publisher.Conn.IsClosed() && !publisher.Channel.IsClosed() {
			return publisher, nil
		}
		publisher.Close()
		publisher = nil
	}
	client, err := Dial()
	if err != nil {
		return nil, err
	}
	if err := client.DeclareTopology(); err != nil {
		client.Close()
		return nil, err
	}
	publisher = client
	return publisher, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.Channel != nil {
		_ = c.Channel.Close()
	}
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// DeclareTopology declares the reclaim exchanges, queues, and bindings.
// Declarations are idempotent, so every publisher and consumer runs it.
func (c *Client) DeclareTopology() error {
	bindings := []struct {
		exchange string
		queue    string
		key      string
		args     amqp.Table
	}{
		{ExchangeTasks, QueueTasks, RoutingTask, nil},
		{ExchangeRetry, QueueRetry, RoutingRetry, amqp.Table{
			"x-dead-letter-exchange":    ExchangeTasks,
			"x-dead-letter-routing-key": RoutingTask,
		}},
		{ExchangeDLQ, QueueDLQ, RoutingDLQ, nil},
	}
	for _, b := range bindings {
		if err := c.Channel.ExchangeDeclare(b.exchange, "direct", true, false, false, false, nil); err != nil {
			return err
		}
		if _, err := c.Channel.QueueDeclare(b.queue, true, false, false, false, b.args); err != nil {
			return err
		}
		if err := c.Channel.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}

// PublishTask publishes a reclaim task for immediate consumption.
func (c *Client) PublishTask(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeTasks, RoutingTask, body, "")
}

// PublishRetry parks a task on the retry queue; the delay becomes the
// message TTL, after which it dead-letters back to the task queue.
func (c *Client) PublishRetry(ctx context.Context, body []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return c.publish(ctx, ExchangeRetry, RoutingRetry, body, strconv.FormatInt(delay.Milliseconds(), 10))
}

// PublishDLQ parks an exhausted task on the dead-letter queue.
func (c *Client) PublishDLQ(ctx context.Context, body []byte) error {
	return c.publish(ctx, ExchangeDLQ, RoutingDLQ, body, "")
}

func (c *Client) publish(ctx context.Context, exchange, key string, body []byte, expiration string) error {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Expiration:   expiration,
	}
	return c.Channel.PublishWithContext(ctx, exchange, key, false, false, msg)
}
