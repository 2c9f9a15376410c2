package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	payloadField = "payload"

	readBatchSize  = 10
	readBlock      = 2 * time.Second
	backoffInitial = 100 * time.Millisecond
	backoffMax     = 5 * time.Second

	claimInterval = 30 * time.Second
	claimMinIdle  = time.Minute
)

// Outcome is a handler's verdict on one delivered message.
type Outcome int

const (
	// Ack acknowledges the message; it will not be redelivered. Used both for
	// success and for a poison "skip" decision.
	Ack Outcome = iota

	// Retry leaves the message pending so the reclaim loop redelivers it.
	Retry
)

// MessageHandler processes one raw message body from a named queue.
type MessageHandler interface {
	Handle(ctx context.Context, queue string, raw []byte) Outcome
}

// Consumer reads one Redis stream through a consumer group and feeds each
// message to a handler across a fixed-size worker pool. Messages the handler
// acks are removed from the pending list; retried messages stay pending and
// are picked up again by the reclaim loop once they have been idle long
// enough.
type Consumer struct {
	client   *redis.Client
	handler  MessageHandler
	logger   *zap.Logger
	stream   string
	group    string
	consumer string
	workers  int
}

// NewConsumer creates a consumer-group reader for one stream.
func NewConsumer(
	client *redis.Client,
	handler MessageHandler,
	logger *zap.Logger,
	stream string,
	group string,
	consumer string,
	workers int,
) *Consumer {
	if workers < 1 {
		workers = 1
	}

	return &Consumer{
		client:   client,
		handler:  handler,
		logger:   logger.With(zap.String("stream", stream), zap.String("group", group)),
		stream:   stream,
		group:    group,
		consumer: consumer,
		workers:  workers,
	}
}

// Start creates the consumer group if needed, then runs the worker pool and
// the reclaim loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			c.readLoop(ctx)
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()
		c.reclaimLoop(ctx)
	}()

	wg.Wait()

	return nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	return nil
}

func (c *Consumer) readLoop(ctx context.Context) {
	backoff := backoffInitial

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    readBatchSize,
			Block:    readBlock,
		}).Result()

		if errors.Is(err, redis.Nil) {
			backoff = backoffInitial

			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			c.logger.Warn("failed to read from stream", zap.Error(err))
			c.sleep(ctx, backoff)
			backoff = nextBackoff(backoff)

			continue
		}

		backoff = backoffInitial

		for _, stream := range streams {
			for _, message := range stream.Messages {
				c.dispatch(ctx, message)
			}
		}
	}
}

func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		start := "0-0"

		for {
			messages, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   c.stream,
				Group:    c.group,
				Consumer: c.consumer,
				MinIdle:  claimMinIdle,
				Start:    start,
				Count:    readBatchSize,
			}).Result()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("failed to reclaim pending messages", zap.Error(err))
				}

				break
			}

			for _, message := range messages {
				c.dispatch(ctx, message)
			}

			if next == "0-0" || len(messages) == 0 {
				break
			}

			start = next
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, message redis.XMessage) {
	raw := rawPayload(message)

	if c.handler.Handle(ctx, c.stream, raw) == Retry {
		return
	}

	if err := c.client.XAck(ctx, c.stream, c.group, message.ID).Err(); err != nil {
		c.logger.Warn("failed to ack message",
			zap.String("message_id", message.ID), zap.Error(err))
	}
}

func rawPayload(message redis.XMessage) []byte {
	value, ok := message.Values[payloadField]
	if !ok {
		return nil
	}

	body, ok := value.(string)
	if !ok {
		return nil
	}

	return []byte(body)
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > backoffMax {
		return backoffMax
	}

	return next
}
