package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/companion/internal/artifacts"
	"github.com/aiox-platform/companion/internal/errs"
	"github.com/aiox-platform/companion/internal/intake"
	inats "github.com/aiox-platform/companion/internal/nats"
	"github.com/aiox-platform/companion/internal/state"
	"github.com/aiox-platform/companion/internal/workflow"
)

// BusyRetryDelay is how long a message for a saturated thread waits before
// JetStream redelivers it.
const BusyRetryDelay = 5 * time.Second

// Engine runs one workflow turn.
type Engine interface {
	Run(ctx context.Context, threadID string, incoming state.Message, opts workflow.RunOptions) (*state.TurnState, error)
}

// Preparer converts an inbound message with media into a user message.
type Preparer interface {
	Prepare(ctx context.Context, in intake.Input) (state.Message, error)
}

// Publisher sends replies and turn events.
type Publisher interface {
	PublishOutboundMessage(ctx context.Context, msg inats.OutboundMessage) error
	PublishTurnEvent(ctx context.Context, event inats.TurnEvent) error
}

// ArtifactStore saves media produced by a turn and resolves its URL.
type ArtifactStore interface {
	Save(kind artifacts.Kind, ext string, data []byte) (string, error)
	URL(name string) string
}

// Outcome tells the consumer loop how to acknowledge a message.
type Outcome int

const (
	Ack Outcome = iota
	Nak
	Retry
	Term
)

// Orchestrator consumes inbound messages, runs them through intake and the
// workflow engine, and publishes replies and turn events.
type Orchestrator struct {
	publisher   Publisher
	consumerMgr *inats.ConsumerManager
	validator   *Validator
	intake      Preparer
	engine      Engine
	artifacts   ArtifactStore
	concurrency int
	now         func() time.Time
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	publisher Publisher,
	consumerMgr *inats.ConsumerManager,
	validator *Validator,
	preparer Preparer,
	engine Engine,
	store ArtifactStore,
	concurrency int,
) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		publisher:   publisher,
		consumerMgr: consumerMgr,
		validator:   validator,
		intake:      preparer,
		engine:      engine,
		artifacts:   store,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Start begins the orchestrator event loop. Each fetched batch is grouped
// by thread; threads run concurrently, messages within a thread in order.
func (o *Orchestrator) Start(ctx context.Context) error {
	consumer, err := o.consumerMgr.EnsureConsumer(ctx, inats.StreamMessages, "orchestrator", inats.SubjectInboundMessage)
	if err != nil {
		return err
	}

	slog.Info("orchestrator started", "consumer", "orchestrator", "concurrency", o.concurrency)

	for {
		msgs, err := consumer.Fetch(o.concurrency*2, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("fetching inbound messages", "error", err)
			continue
		}

		var batch []jetstream.Msg
		for msg := range msgs.Messages() {
			batch = append(batch, msg)
		}
		o.processBatch(ctx, batch)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (o *Orchestrator) processBatch(ctx context.Context, batch []jetstream.Msg) {
	type item struct {
		msg     jetstream.Msg
		inbound inats.InboundMessage
	}
	var (
		order   []string
		threads = make(map[string][]item)
	)
	for _, msg := range batch {
		var inbound inats.InboundMessage
		if err := json.Unmarshal(msg.Data(), &inbound); err != nil {
			slog.Error("unmarshaling inbound message", "error", err)
			_ = msg.Nak()
			continue
		}
		if _, ok := threads[inbound.ThreadID]; !ok {
			order = append(order, inbound.ThreadID)
		}
		threads[inbound.ThreadID] = append(threads[inbound.ThreadID], item{msg, inbound})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, threadID := range order {
		items := threads[threadID]
		g.Go(func() error {
			for _, it := range items {
				acknowledge(it.msg, o.Handle(gctx, it.inbound))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func acknowledge(msg jetstream.Msg, outcome Outcome) {
	var err error
	switch outcome {
	case Ack:
		err = msg.Ack()
	case Nak:
		err = msg.Nak()
	case Retry:
		err = msg.NakWithDelay(BusyRetryDelay)
	case Term:
		err = msg.Term()
	}
	if err != nil {
		slog.Warn("acknowledging inbound message", "error", err)
	}
}

// Handle processes one inbound message and reports how to acknowledge it.
func (o *Orchestrator) Handle(ctx context.Context, inbound inats.InboundMessage) Outcome {
	if err := o.validator.Validate(&inbound); err != nil {
		slog.Warn("rejecting inbound message", "error", err, "id", inbound.ID)
		return Term
	}

	slog.Debug("orchestrator processing message",
		"id", inbound.ID,
		"thread_id", inbound.ThreadID,
		"source", inbound.Source,
	)
	start := o.now()

	msg, err := o.intake.Prepare(ctx, intake.Input{
		MessageID: inbound.ID,
		Text:      inbound.Body,
		Image:     inbound.Image,
		Audio:     inbound.Audio,
	})
	if err != nil {
		slog.Warn("preparing inbound message", "error", err, "thread_id", inbound.ThreadID)
		o.fail(ctx, inbound, err, start)
		return Ack
	}

	st, err := o.engine.Run(ctx, inbound.ThreadID, msg, workflow.RunOptions{})
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrThreadBusy):
			slog.Warn("thread busy, retrying later", "thread_id", inbound.ThreadID, "id", inbound.ID)
			return Retry
		case ctx.Err() != nil:
			// Shutting down; the turn resumes from its checkpoint on redelivery.
			return Nak
		}
		o.fail(ctx, inbound, err, start)
		return Ack
	}

	if st.Replayed {
		slog.Info("inbound message already answered", "id", inbound.ID, "thread_id", inbound.ThreadID)
		return Ack
	}

	out := inats.OutboundMessage{
		ID:        uuid.New().String(),
		ThreadID:  inbound.ThreadID,
		Source:    inbound.Source,
		ToJID:     inbound.FromJID,
		FromJID:   inbound.ToJID,
		Workflow:  st.Workflow.String(),
		InReplyTo: inbound.ID,
	}
	if reply, ok := st.LastAssistant(); ok {
		out.Body = reply.Content
	}
	if st.ImageRef != "" {
		out.ImageURL = o.artifacts.URL(st.ImageRef)
	}
	if len(st.AudioBuffer) > 0 {
		name, err := o.artifacts.Save(artifacts.KindAudio, "mp3", st.AudioBuffer)
		if err != nil {
			slog.Error("storing audio reply", "error", err, "thread_id", inbound.ThreadID)
		} else {
			out.AudioURL = o.artifacts.URL(name)
		}
	}

	if err := o.publisher.PublishOutboundMessage(ctx, out); err != nil {
		slog.Error("publishing outbound message", "error", err)
	}
	o.publishTurn(ctx, inbound, st.Workflow.String(), nil, start)
	return Ack
}

func (o *Orchestrator) fail(ctx context.Context, inbound inats.InboundMessage, cause error, start time.Time) {
	out := inats.OutboundMessage{
		ID:        uuid.New().String(),
		ThreadID:  inbound.ThreadID,
		Source:    inbound.Source,
		ToJID:     inbound.FromJID,
		FromJID:   inbound.ToJID,
		Body:      Apology(cause),
		InReplyTo: inbound.ID,
		Failed:    true,
	}
	if err := o.publisher.PublishOutboundMessage(ctx, out); err != nil {
		slog.Error("publishing error response", "error", err)
	}
	o.publishTurn(ctx, inbound, "", cause, start)
}

func (o *Orchestrator) publishTurn(ctx context.Context, inbound inats.InboundMessage, workflowName string, cause error, start time.Time) {
	event := inats.TurnEvent{
		ThreadID:   inbound.ThreadID,
		MessageID:  inbound.ID,
		Workflow:   workflowName,
		Status:     "success",
		DurationMS: o.now().Sub(start).Milliseconds(),
		Source:     inbound.Source,
		Timestamp:  o.now().UTC(),
	}
	if cause != nil {
		event.Status = "error"
		event.Error = cause.Error()
	}
	if err := o.publisher.PublishTurnEvent(ctx, event); err != nil {
		slog.Error("publishing turn event", "error", err)
	}
}

// Apology is the user-facing reply for a failed turn.
func Apology(err error) string {
	var de *errs.Error
	if errors.As(err, &de) && de.Kind == errs.Validation {
		return "Sorry, I can't do that: " + de.Msg + "."
	}
	return "Sorry, something went wrong on my side. Please try again in a moment."
}
