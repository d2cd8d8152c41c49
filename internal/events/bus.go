package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/safarshop/fulfillment/internal/kafka"
)

// Bus wraps one async producer per outbound topic and stamps every payload
// into a versioned envelope.
type Bus struct {
	service   string
	producers map[string]*kafkax.Producer
}

func NewBus(brokers []string, service string, topics ...string) *Bus {
	b := &Bus{service: service, producers: make(map[string]*kafkax.Producer, len(topics))}
	for _, t := range topics {
		b.producers[t] = kafkax.NewProducer(brokers, t, 1024)
	}
	return b
}

func (b *Bus) Start(ctx context.Context) {
	for _, p := range b.producers {
		p.Start(ctx)
	}
}

func (b *Bus) Emit(topic, eventType, orderID string, payload any) {
	p, ok := b.producers[topic]
	if !ok {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      b.service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (b *Bus) Close() {
	for _, p := range b.producers {
		p.Close()
	}
}

func (b *Bus) WaitClosed() {
	for _, p := range b.producers {
		p.WaitClosed()
	}
}
