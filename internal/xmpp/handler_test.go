package xmpp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gosrc.io/xmpp/stanza"

	inats "github.com/aiox-platform/companion/internal/nats"
)

type fakePublisher struct {
	published []inats.InboundMessage
	err       error
}

func (p *fakePublisher) PublishInboundMessage(_ context.Context, msg inats.InboundMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func chat(from, id, body string) stanza.Message {
	return stanza.Message{
		Attrs: stanza.Attrs{From: from, To: "tela@companion.local", Type: stanza.MessageTypeChat, Id: id},
		Body:  body,
	}
}

func TestBareJID(t *testing.T) {
	tests := []struct {
		jid  string
		want string
	}{
		{"alice@example.com", "alice@example.com"},
		{"Alice@Example.com/phone", "alice@example.com"},
		{"alice@example.com/laptop/extra", "alice@example.com"},
		{"example.com", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.jid, func(t *testing.T) {
			assert.Equal(t, tt.want, BareJID(tt.jid))
		})
	}
}

func TestHandler_PublishesChatMessages(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandler(pub)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, h.publish(context.Background(), chat("alice@example.com/phone", "abc", "  hi Tela  ")))
	require.Len(t, pub.published, 1)

	in := pub.published[0]
	assert.Equal(t, "alice@example.com/abc", in.ID)
	assert.Equal(t, "alice@example.com", in.ThreadID)
	assert.Equal(t, inats.SourceXMPP, in.Source)
	assert.Equal(t, "alice@example.com/phone", in.FromJID)
	assert.Equal(t, "tela@companion.local", in.ToJID)
	assert.Equal(t, "hi Tela", in.Body)
	assert.Equal(t, h.now(), in.ReceivedAt)
}

func TestHandler_SameThreadAcrossResources(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandler(pub)

	require.NoError(t, h.publish(context.Background(), chat("alice@example.com/phone", "", "one")))
	require.NoError(t, h.publish(context.Background(), chat("alice@example.com/laptop", "", "two")))
	require.Len(t, pub.published, 2)
	assert.Equal(t, pub.published[0].ThreadID, pub.published[1].ThreadID)
	assert.NotEqual(t, pub.published[0].ID, pub.published[1].ID)
}

func TestHandler_SkipsEmptyAndErrorStanzas(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandler(pub)

	require.NoError(t, h.publish(context.Background(), chat("alice@example.com", "1", "   ")))
	errStanza := chat("alice@example.com", "2", "bounced")
	errStanza.Type = stanza.MessageTypeError
	require.NoError(t, h.publish(context.Background(), errStanza))
	assert.Empty(t, pub.published)
}

func TestHandler_PublishError(t *testing.T) {
	h := NewHandler(&fakePublisher{err: errors.New("nats down")})
	assert.Error(t, h.publish(context.Background(), chat("alice@example.com", "1", "hi")))
}

func TestSubscriptionReply(t *testing.T) {
	reply, ok := subscriptionReply(stanza.Presence{Attrs: stanza.Attrs{
		From: "alice@example.com", To: "tela@companion.local", Type: stanza.PresenceTypeSubscribe,
	}})
	require.True(t, ok)
	assert.Equal(t, "tela@companion.local", reply.From)
	assert.Equal(t, "alice@example.com", reply.To)
	assert.Equal(t, stanza.PresenceTypeSubscribed, reply.Type)

	_, ok = subscriptionReply(stanza.Presence{Attrs: stanza.Attrs{Type: stanza.PresenceTypeUnavailable}})
	assert.False(t, ok)
}

func TestFormatBody(t *testing.T) {
	tests := []struct {
		name string
		out  inats.OutboundMessage
		want string
	}{
		{"text", inats.OutboundMessage{Body: "hey"}, "hey"},
		{"image", inats.OutboundMessage{Body: "look", ImageURL: "https://x/a.png"}, "look\nImage: https://x/a.png"},
		{"audio", inats.OutboundMessage{Body: "listen", AudioURL: "https://x/a.mp3"}, "listen\nVoice note: https://x/a.mp3"},
		{"media only", inats.OutboundMessage{ImageURL: "https://x/a.png"}, "Image: https://x/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBody(tt.out))
		})
	}
}

func TestToStanza(t *testing.T) {
	msg := toStanza(inats.OutboundMessage{ID: "o1", FromJID: "tela@companion.local", ToJID: "alice@example.com/phone", Body: "hi"})
	assert.Equal(t, "o1", msg.Id)
	assert.Equal(t, "alice@example.com/phone", msg.To)
	assert.Equal(t, stanza.MessageTypeChat, msg.Type)
	assert.Equal(t, "hi", msg.Body)
}
