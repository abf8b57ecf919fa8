package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamMessages = "COMPANION_MESSAGES"
	StreamEvents   = "COMPANION_EVENTS"
)

// Subject constants.
const (
	SubjectInboundMessage  = "companion.messages.inbound"
	SubjectOutboundMessage = "companion.messages.outbound"
	SubjectTurnEvent       = "companion.events.turn"
)

// Source values identify the front-end a message came through.
const (
	SourceXMPP = "xmpp"
	SourceHTTP = "http"
	SourceCLI  = "cli"
)

// InboundMessage is a user message waiting for a turn. ID is stable across
// redeliveries and doubles as the workflow message id.
type InboundMessage struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	Source     string    `json:"source"`
	FromJID    string    `json:"from_jid,omitempty"`
	ToJID      string    `json:"to_jid,omitempty"`
	Body       string    `json:"body,omitempty"`
	Image      []byte    `json:"image,omitempty"`
	Audio      []byte    `json:"audio,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundMessage is the reply to an InboundMessage.
type OutboundMessage struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Source    string `json:"source"`
	ToJID     string `json:"to_jid,omitempty"`
	FromJID   string `json:"from_jid,omitempty"`
	Body      string `json:"body"`
	Workflow  string `json:"workflow,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	AudioURL  string `json:"audio_url,omitempty"`
	InReplyTo string `json:"in_reply_to,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
}

// TurnEvent records the outcome of one workflow turn.
type TurnEvent struct {
	ThreadID   string    `json:"thread_id"`
	MessageID  string    `json:"message_id"`
	Workflow   string    `json:"workflow"`
	Status     string    `json:"status"` // success, error
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}
