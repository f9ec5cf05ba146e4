package platform

import (
	"context"
	"fmt"

	"github.com/ifuryst/outreach/internal/models"
)

// Disabled stands in for a platform whose credentials are not configured.
// It is selected at construction time so callers can check Enabled instead
// of probing for nil clients.
type Disabled struct {
	platform models.Platform
	reason   string
}

func NewDisabled(p models.Platform, reason string) *Disabled {
	return &Disabled{platform: p, reason: reason}
}

func (d *Disabled) Platform() models.Platform { return d.platform }
func (d *Disabled) Enabled() bool             { return false }
func (d *Disabled) AccountID() string         { return "" }
func (d *Disabled) MaxMessageLength() int     { return 0 }
func (d *Disabled) Reason() string            { return d.reason }

func (d *Disabled) NormalizeCriteria(criteria models.SearchCriteria) (models.SearchCriteria, error) {
	return criteria, nil
}

func (d *Disabled) Search(context.Context, models.SearchCriteria, int) ([]Candidate, error) {
	return nil, d.err()
}

func (d *Disabled) GetProfile(context.Context, string) (*Profile, error) {
	return nil, d.err()
}

func (d *Disabled) SendMessage(context.Context, string, Message) error {
	return d.err()
}

func (d *Disabled) err() error {
	return fmt.Errorf("%s: %w (%s)", d.platform, ErrDisabled, d.reason)
}
