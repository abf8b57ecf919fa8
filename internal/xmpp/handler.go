package xmpp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	inats "github.com/aiox-platform/companion/internal/nats"
)

// InboundPublisher queues user messages for the orchestrator.
type InboundPublisher interface {
	PublishInboundMessage(ctx context.Context, msg inats.InboundMessage) error
}

// Handler processes incoming XMPP stanzas and bridges them to NATS.
type Handler struct {
	publisher InboundPublisher
	now       func() time.Time
}

// NewHandler creates a new XMPP stanza handler.
func NewHandler(publisher InboundPublisher) *Handler {
	return &Handler{publisher: publisher, now: time.Now}
}

// HandleMessage processes incoming <message> stanzas and publishes them to NATS.
func (h *Handler) HandleMessage(s xmpp.Sender, p stanza.Packet) {
	msg, ok := p.(stanza.Message)
	if !ok {
		return
	}

	slog.Debug("XMPP message received",
		"from", msg.From,
		"to", msg.To,
		"type", string(msg.Type),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.publish(ctx, msg); err != nil {
		slog.Error("publishing inbound message", "error", err, "from", msg.From)
		h.sendError(s, msg.From, msg.To, "Sorry, I couldn't take your message right now. Please try again.")
	}
}

func (h *Handler) publish(ctx context.Context, msg stanza.Message) error {
	inbound, ok := h.toInbound(msg)
	if !ok {
		return nil
	}
	return h.publisher.PublishInboundMessage(ctx, inbound)
}

// toInbound maps a chat stanza to an inbound message. The thread is the
// sender's bare JID so every resource of a user shares one conversation.
func (h *Handler) toInbound(msg stanza.Message) (inats.InboundMessage, bool) {
	body := strings.TrimSpace(msg.Body)
	if body == "" || msg.Type == stanza.MessageTypeError {
		return inats.InboundMessage{}, false
	}
	id := msg.Id
	if id == "" {
		id = uuid.New().String()
	} else {
		// Stanza ids are only unique per sender.
		id = BareJID(msg.From) + "/" + id
	}
	return inats.InboundMessage{
		ID:         id,
		ThreadID:   BareJID(msg.From),
		Source:     inats.SourceXMPP,
		FromJID:    msg.From,
		ToJID:      msg.To,
		Body:       body,
		ReceivedAt: h.now().UTC(),
	}, true
}

// HandlePresence processes incoming <presence> stanzas, auto-approving subscribe requests.
func (h *Handler) HandlePresence(s xmpp.Sender, p stanza.Packet) {
	pres, ok := p.(stanza.Presence)
	if !ok {
		return
	}

	slog.Debug("XMPP presence received",
		"from", pres.From,
		"to", pres.To,
		"type", string(pres.Type),
	)

	if reply, ok := subscriptionReply(pres); ok {
		if err := s.Send(reply); err != nil {
			slog.Error("sending presence subscribed reply", "error", err)
		}
	}
}

func subscriptionReply(pres stanza.Presence) (stanza.Presence, bool) {
	if pres.Type != stanza.PresenceTypeSubscribe {
		return stanza.Presence{}, false
	}
	return stanza.Presence{
		Attrs: stanza.Attrs{
			From: pres.To,
			To:   pres.From,
			Type: stanza.PresenceTypeSubscribed,
		},
	}, true
}

// HandleIQ processes incoming <iq> stanzas.
func (h *Handler) HandleIQ(_ xmpp.Sender, p stanza.Packet) {
	iq, ok := p.(*stanza.IQ)
	if !ok {
		return
	}
	slog.Debug("XMPP IQ received", "from", iq.From, "to", iq.To, "type", string(iq.Type))
}

// SendOutboundMessage sends a <message> stanza via XMPP.
func (h *Handler) SendOutboundMessage(s xmpp.Sender, outbound inats.OutboundMessage) error {
	return s.Send(toStanza(outbound))
}

func toStanza(outbound inats.OutboundMessage) stanza.Message {
	return stanza.Message{
		Attrs: stanza.Attrs{
			From: outbound.FromJID,
			To:   outbound.ToJID,
			Type: stanza.MessageTypeChat,
			Id:   outbound.ID,
		},
		Body: FormatBody(outbound),
	}
}

// FormatBody renders the reply text followed by one line per media link.
func FormatBody(outbound inats.OutboundMessage) string {
	lines := make([]string, 0, 3)
	if outbound.Body != "" {
		lines = append(lines, outbound.Body)
	}
	if outbound.ImageURL != "" {
		lines = append(lines, "Image: "+outbound.ImageURL)
	}
	if outbound.AudioURL != "" {
		lines = append(lines, "Voice note: "+outbound.AudioURL)
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) sendError(s xmpp.Sender, to, from, body string) {
	msg := stanza.Message{
		Attrs: stanza.Attrs{
			From: from,
			To:   to,
			Type: stanza.MessageTypeChat,
		},
		Body: body,
	}
	if err := s.Send(msg); err != nil {
		slog.Error("sending error message", "error", err)
	}
}

// BareJID strips the resource part from a JID and lowercases it.
func BareJID(jid string) string {
	bare := jid
	if idx := strings.Index(jid, "/"); idx >= 0 {
		bare = jid[:idx]
	}
	return strings.ToLower(bare)
}
