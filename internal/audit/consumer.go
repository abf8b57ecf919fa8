package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/aiox-platform/companion/internal/nats"
)

// Inserter persists turn records.
type Inserter interface {
	Insert(ctx context.Context, rec *TurnRecord) error
}

// Consumer listens on the turn event subject and persists entries to the database.
type Consumer struct {
	repo        Inserter
	consumerMgr *inats.ConsumerManager
}

// NewConsumer creates a new turn event Consumer.
func NewConsumer(repo Inserter, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		repo:        repo,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, "turn-audit", inats.SubjectTurnEvent)
	if err != nil {
		return err
	}

	slog.Info("audit consumer started", "consumer", "turn-audit")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("audit consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// Acker is the subset of jetstream.Msg the consumer acknowledges with.
type Acker interface {
	Data() []byte
	Ack() error
	Nak() error
	Term() error
}

func (c *Consumer) handleEvent(ctx context.Context, msg Acker) {
	var event inats.TurnEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("audit consumer: unmarshaling event", "error", err)
		_ = msg.Term()
		return
	}

	rec := FromEvent(event)
	if err := c.repo.Insert(ctx, rec); err != nil {
		slog.Error("audit consumer: persisting turn event", "error", err, "thread_id", event.ThreadID)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()

	slog.Debug("audit consumer: persisted event",
		"thread_id", event.ThreadID,
		"message_id", event.MessageID,
		"status", event.Status,
	)
}
