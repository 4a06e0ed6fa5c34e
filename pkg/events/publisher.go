package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mahaj/baithak/pkg/model"
)

// Publisher emits committed message events onto the archival stream. The
// stream feeds unread counters and activity projections; it is not part of
// the live fan-out path and failures here never surface to API callers.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish writes the event, logging and swallowing any failure.
func (p *Publisher) Publish(ctx context.Context, ev *model.MessageEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	value, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal message event: %v", err)
		return
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ChatID),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		log.Printf("Failed to publish message event: %v", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
