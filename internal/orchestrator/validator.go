package orchestrator

import (
	"fmt"
	"strings"

	inats "github.com/aiox-platform/companion/internal/nats"
)

// Media size limits for inbound messages.
const (
	MaxImageBytes = 10 << 20
	MaxAudioBytes = 25 << 20
)

// Validator checks that an inbound message can be turned into a workflow turn.
type Validator struct {
	allowedDomains []string
}

// NewValidator creates a new Validator. An empty domain list allows every
// sender.
func NewValidator(allowedDomains []string) *Validator {
	return &Validator{allowedDomains: allowedDomains}
}

// Validate reports why msg cannot be processed.
func (v *Validator) Validate(msg *inats.InboundMessage) error {
	if msg.ID == "" {
		return fmt.Errorf("message has no id")
	}
	if strings.TrimSpace(msg.ThreadID) == "" {
		return fmt.Errorf("message %s has no thread id", msg.ID)
	}
	if strings.TrimSpace(msg.Body) == "" && len(msg.Image) == 0 && len(msg.Audio) == 0 {
		return fmt.Errorf("message %s has no content", msg.ID)
	}
	if len(msg.Image) > MaxImageBytes {
		return fmt.Errorf("image of %d bytes exceeds %d", len(msg.Image), MaxImageBytes)
	}
	if len(msg.Audio) > MaxAudioBytes {
		return fmt.Errorf("audio of %d bytes exceeds %d", len(msg.Audio), MaxAudioBytes)
	}
	if msg.FromJID != "" && len(v.allowedDomains) > 0 {
		domain := extractDomain(msg.FromJID)
		if !domainAllowed(domain, v.allowedDomains) {
			return fmt.Errorf("sender domain %q not in allowed domains", domain)
		}
	}
	return nil
}

func extractDomain(jid string) string {
	// Strip resource
	bare := jid
	if idx := strings.Index(jid, "/"); idx >= 0 {
		bare = jid[:idx]
	}
	// Get domain after @
	if idx := strings.Index(bare, "@"); idx >= 0 {
		return bare[idx+1:]
	}
	return bare
}

func domainAllowed(domain string, allowed []string) bool {
	for _, d := range allowed {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}
