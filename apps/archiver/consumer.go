package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/store"
)

// Consumer drains the committed-message stream and maintains the read-side
// projections: per-user unread counters and chat activity timestamps.
type Consumer struct {
	reader   *kafka.Reader
	counters *store.CounterStore
}

func NewConsumer(brokers []string, topic, groupID string, counters *store.CounterStore) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: r, counters: counters}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading message: %v. Retrying in 1s...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var ev model.MessageEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Printf("Failed to unmarshal message event: %v", err)
			continue
		}

		c.apply(ctx, &ev)
	}
}

func (c *Consumer) apply(ctx context.Context, ev *model.MessageEvent) {
	switch ev.Kind {
	case model.MessageCreated:
		for _, userID := range ev.Recipients {
			if userID == ev.ActorID {
				continue
			}
			if err := c.counters.Increment(ctx, userID, ev.ChatID); err != nil {
				log.Printf("Failed to increment unread count for %s: %v", userID, err)
			}
			if err := c.counters.TouchActivity(ctx, userID, ev.ChatID, ev.OccurredAt); err != nil {
				log.Printf("Failed to touch activity for %s: %v", userID, err)
			}
		}

	case model.MessagesRead:
		// The API resets the counter synchronously; the stream record is
		// kept for replayability.

	case model.MessageDeleted:
		// Deletions do not decrement counters: the unread marker is an
		// approximation and re-syncs on the next mark-read.

	default:
		log.Printf("Skipping unknown event kind: %s", ev.Kind)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
