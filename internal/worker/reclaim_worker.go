package worker

import (
	"DedupVault/config"
	"DedupVault/internal/mq"
	"DedupVault/internal/service"
	"DedupVault/internal/task"
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/time/rate"
)

type dlqMessage struct {
	Fingerprint string    `json:"fingerprint"`
	ObjectName  string    `json:"object_name"`
	Attempt     int       `json:"attempt"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

// RunReclaimWorker consumes reclaim tasks from RabbitMQ and removes the
// named objects from the content store.
func RunReclaimWorker(ctx context.Context) error {
	client, err := mq.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}

	prefetch := config.AppConfig.RabbitMQPrefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := client.Channel.Consume(
		mq.QueueTasks,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	concurrency := config.AppConfig.ReclaimWorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	burst := config.AppConfig.ReclaimBurst
	if burst <= 0 {
		burst = 1
	}
	rateLimit := config.AppConfig.ReclaimRate
	var limiter *rate.Limiter
	if rateLimit <= 0 {
		limiter = rate.NewLimiter(rate.Inf, burst)
	} else {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("reclaim worker: delivery channel closed")
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				handleReclaimMessage(ctx, client, limiter, d)
			}(delivery)
		}
	}
}

func handleReclaimMessage(ctx context.Context, client *mq.Client, limiter *rate.Limiter, delivery amqp.Delivery) {
	var msg task.ReclaimMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		log.Printf("reclaim worker: invalid message: %v", err)
		_ = delivery.Ack(false)
		return
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			_ = delivery.Nack(false, true)
			return
		}
	}

	if err := task.ProcessReclaimTask(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = delivery.Nack(false, true)
			return
		}
		if err := scheduleRetry(ctx, client, msg, err); err != nil {
			log.Printf("reclaim worker: retry schedule failed: %v", err)
			_ = delivery.Nack(false, true)
			return
		}
	}

	_ = delivery.Ack(false)
}

func scheduleRetry(ctx context.Context, client *mq.Client, msg task.ReclaimMessage, procErr error) error {
	maxRetry := config.AppConfig.ReclaimRetryMax
	if maxRetry < 0 {
		maxRetry = 0
	}
	nextAttempt := msg.Attempt + 1
	if maxRetry == 0 || nextAttempt > maxRetry {
		return markFailed(ctx, client, msg, procErr)
	}

	delay := pickRetryDelay(nextAttempt, config.AppConfig.ReclaimRetryDelays)
	log.Printf("reclaim worker: remove %s failed (attempt %d, retrying in %s): %v",
		msg.ObjectName, msg.Attempt, delay, procErr)

	msg.Attempt = nextAttempt
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.PublishRetry(ctx, body, delay)
}

// markFailed parks an exhausted task on the DLQ. The orphan sweep still
// covers the object, so nothing is lost when the DLQ is ignored.
func markFailed(ctx context.Context, client *mq.Client, msg task.ReclaimMessage, procErr error) error {
	dlq := dlqMessage{
		Fingerprint: msg.Fingerprint,
		ObjectName:  msg.ObjectName,
		Attempt:     msg.Attempt,
		Error:       procErr.Error(),
		FailedAt:    time.Now(),
	}
	body, err := json.Marshal(dlq)
	if err != nil {
		return err
	}
	if err := client.PublishDLQ(ctx, body); err != nil {
		log.Printf("reclaim worker: dlq publish failed: %v", err)
	}
	return nil
}

func pickRetryDelay(attempt int, delays []time.Duration) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	index := attempt - 1
	if index < 0 {
		index = 0
	}
	if index >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[index]
}

// RunSweepLoop runs the orphan sweep on a fixed interval.
func RunSweepLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := service.SweepOrphans(ctx)
			if err != nil {
				log.Printf("sweep failed: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("sweep purged %d orphans", purged)
			}
		}
	}
}
