package state

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation message.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Workflow is the response mode chosen for a turn.
type Workflow uint8

const (
	Conversation Workflow = iota
	Image
	Audio
)

var workflowNames = [...]string{
	Conversation: "conversation",
	Image:        "image",
	Audio:        "audio",
}

func (w Workflow) String() string {
	if int(w) < len(workflowNames) {
		return workflowNames[w]
	}
	return fmt.Sprintf("workflow(%d)", w)
}

// Valid reports whether w is one of the three defined modes.
func (w Workflow) Valid() bool {
	return int(w) < len(workflowNames)
}

// ParseWorkflow converts a label into a Workflow. Unknown labels fail.
func ParseWorkflow(s string) (Workflow, error) {
	for i, name := range workflowNames {
		if name == s {
			return Workflow(i), nil
		}
	}
	return Conversation, fmt.Errorf("unknown workflow %q", s)
}

// Labels returns the text form of every workflow, in declaration order.
func Labels() []string {
	out := make([]string, len(workflowNames))
	copy(out, workflowNames[:])
	return out
}

func (w Workflow) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("invalid workflow %d", w)
	}
	return []byte(workflowNames[w]), nil
}

func (w *Workflow) UnmarshalText(b []byte) error {
	parsed, err := ParseWorkflow(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// TurnState is the per-thread state carried between workflow stages and
// persisted between turns.
type TurnState struct {
	ThreadID        string    `json:"thread_id"`
	Messages        []Message `json:"messages"`
	Summary         string    `json:"summary,omitempty"`
	Workflow        Workflow  `json:"workflow"`
	AudioBuffer     []byte    `json:"audio_buffer,omitempty"`
	ImageRef        string    `json:"image_ref,omitempty"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	ApplyActivity   bool      `json:"apply_activity"`
	MemoryContext   string    `json:"memory_context,omitempty"`

	// Replayed marks a state returned for a message that was already
	// processed. It is never persisted.
	Replayed bool `json:"-"`
}

// New returns an empty state for the thread.
func New(threadID string) *TurnState {
	return &TurnState{ThreadID: threadID}
}

// Append adds a message to the history.
func (s *TurnState) Append(m Message) {
	s.Messages = append(s.Messages, m)
}

// LastUser returns the most recent user message.
func (s *TurnState) LastUser() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastAssistant returns the most recent assistant message.
func (s *TurnState) LastAssistant() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// HasMessage reports whether the history holds a message with the id.
func (s *TurnState) HasMessage(id string) bool {
	for _, m := range s.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// ReplyTo returns the first assistant message after the user message with
// the id.
func (s *TurnState) ReplyTo(id string) (Message, bool) {
	for i, m := range s.Messages {
		if m.ID != id || m.Role != RoleUser {
			continue
		}
		for _, next := range s.Messages[i+1:] {
			if next.Role == RoleUser {
				return Message{}, false
			}
			if next.Role == RoleAssistant {
				return next, true
			}
		}
		return Message{}, false
	}
	return Message{}, false
}

// Tail returns up to n of the most recent messages.
func (s *TurnState) Tail(n int) []Message {
	if n <= 0 || n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// ResetTransient clears the per-turn fields before a new turn starts.
func (s *TurnState) ResetTransient() {
	s.Workflow = Conversation
	s.AudioBuffer = nil
	s.ImageRef = ""
	s.CurrentActivity = ""
	s.ApplyActivity = false
	s.MemoryContext = ""
}

// Clone returns a deep copy.
func (s *TurnState) Clone() *TurnState {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	if s.AudioBuffer != nil {
		c.AudioBuffer = append([]byte(nil), s.AudioBuffer...)
	}
	return &c
}
