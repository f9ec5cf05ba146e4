package platform

import (
	"context"
	"errors"

	"github.com/ifuryst/outreach/internal/models"
)

var (
	// ErrDisabled is returned by every operation of a Disabled adapter.
	ErrDisabled = errors.New("platform adapter is disabled")
	// ErrUnsupportedPlatform means no adapter is registered for the platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrProfileNotFound means the candidate has no reachable profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrMessageRejected means the platform refused the message, e.g. the
	// recipient does not accept direct messages.
	ErrMessageRejected = errors.New("message rejected by platform")
)

// Candidate is a user surfaced by a search, not yet contacted.
type Candidate struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Source      string            `json:"source"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Profile holds what personalization and ledger metadata need about a candidate.
type Profile struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Title      string            `json:"title"`
	Company    string            `json:"company"`
	Bio        string            `json:"bio"`
	URL        string            `json:"url"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Message is the outbound direct message.
type Message struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Adapter is the capability set the execution cycle needs from a platform.
type Adapter interface {
	Platform() models.Platform
	// Enabled is false for the Disabled variant.
	Enabled() bool
	// AccountID is the automation account's own identifier on the platform.
	AccountID() string
	// MaxMessageLength is the platform's limit in characters, 0 for none.
	MaxMessageLength() int

	// NormalizeCriteria fills platform defaults into criteria once, at job
	// creation, so cycles never reinterpret it.
	NormalizeCriteria(criteria models.SearchCriteria) (models.SearchCriteria, error)

	// Search returns an empty slice, not an error, when nothing matched.
	Search(ctx context.Context, criteria models.SearchCriteria, limit int) ([]Candidate, error)
	GetProfile(ctx context.Context, candidateID string) (*Profile, error)
	SendMessage(ctx context.Context, candidateID string, msg Message) error
}

// UniqueCandidates drops duplicates, blanks, deleted accounts and the
// automation account itself while keeping discovery order.
func UniqueCandidates(candidates []Candidate, self string) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == "" || c.ID == "[deleted]" || (self != "" && c.ID == self) {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
