package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inats "github.com/aiox-platform/companion/internal/nats"
)

type fakeInserter struct {
	records []*TurnRecord
	err     error
}

func (f *fakeInserter) Insert(_ context.Context, rec *TurnRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeMsg struct {
	data                []byte
	acked, naked, terms int
}

func (m *fakeMsg) Data() []byte { return m.data }
func (m *fakeMsg) Ack() error   { m.acked++; return nil }
func (m *fakeMsg) Nak() error   { m.naked++; return nil }
func (m *fakeMsg) Term() error  { m.terms++; return nil }

func eventMsg(t *testing.T, event inats.TurnEvent) *fakeMsg {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &fakeMsg{data: data}
}

func TestFromEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	rec := FromEvent(inats.TurnEvent{
		ThreadID:   "alice@example.com",
		MessageID:  "alice@example.com/abc",
		Workflow:   "image",
		Status:     "success",
		DurationMS: 1800,
		Source:     inats.SourceXMPP,
		Timestamp:  ts,
	})

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, "alice@example.com", rec.ThreadID)
	assert.Equal(t, "alice@example.com/abc", rec.MessageID)
	assert.Equal(t, "image", rec.Workflow)
	assert.Equal(t, "success", rec.Status)
	assert.Equal(t, int64(1800), rec.DurationMS)
	assert.Equal(t, "xmpp", rec.Source)
	assert.Equal(t, ts, rec.CreatedAt)
}

func TestFromEvent_FailedBeforeWorkflow(t *testing.T) {
	rec := FromEvent(inats.TurnEvent{ThreadID: "t1", MessageID: "m1", Status: "error", Error: "speech_to_text: transcription failed"})
	assert.Equal(t, "none", rec.Workflow)
	assert.Equal(t, "speech_to_text: transcription failed", rec.Error)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestConsumer_HandleEvent(t *testing.T) {
	t.Run("persists and acks", func(t *testing.T) {
		repo := &fakeInserter{}
		c := NewConsumer(repo, nil)
		msg := eventMsg(t, inats.TurnEvent{ThreadID: "t1", MessageID: "m1", Workflow: "conversation", Status: "success"})

		c.handleEvent(context.Background(), msg)

		require.Len(t, repo.records, 1)
		assert.Equal(t, "conversation", repo.records[0].Workflow)
		assert.Equal(t, 1, msg.acked)
	})

	t.Run("insert failure naks for redelivery", func(t *testing.T) {
		c := NewConsumer(&fakeInserter{err: errors.New("db down")}, nil)
		msg := eventMsg(t, inats.TurnEvent{ThreadID: "t1", MessageID: "m1", Status: "success"})

		c.handleEvent(context.Background(), msg)

		assert.Equal(t, 1, msg.naked)
		assert.Zero(t, msg.acked)
	})

	t.Run("malformed payload is terminated", func(t *testing.T) {
		repo := &fakeInserter{}
		c := NewConsumer(repo, nil)
		msg := &fakeMsg{data: []byte("{not json")}

		c.handleEvent(context.Background(), msg)

		assert.Equal(t, 1, msg.terms)
		assert.Empty(t, repo.records)
	})
}
