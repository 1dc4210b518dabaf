package editor

import (
	"context"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/kafka"
)

type ChangeKind string

const (
	ChangeUpdated ChangeKind = "update"
	ChangeDeleted ChangeKind = "delete"
)

// Change describes one editor mutation as seen by other editors.
type Change struct {
	Kind  ChangeKind      `json:"kind"`
	ID    int32           `json:"id"`
	Entry entry.PullEntry `json:"entry,omitempty"`
	At    time.Time       `json:"at"`
}

// Notifier fans a change out to interested parties.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Change) error { return nil }

type publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaFeed publishes changes keyed by entry id, so every change for one id
// lands on the same partition in order.
type KafkaFeed struct {
	producer publisher
}

func NewKafkaFeed(p *kafka.Producer) *KafkaFeed {
	return &KafkaFeed{producer: p}
}

func (f *KafkaFeed) Notify(ctx context.Context, c Change) error {
	return f.producer.Publish(ctx, kafka.Event{
		Key:     strconv.Itoa(int(c.ID)),
		Value:   c,
		Headers: map[string]string{"kind": string(c.Kind)},
	})
}
