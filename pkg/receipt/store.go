// Package receipt persists the outcome of dispatched missives so
// delivery webhooks and status polls can be correlated with the
// original send. Two stores are provided: an in-process one for tests
// and single-node deployments, and a Redis one for shared state.
package receipt

import (
	"context"
	"time"

	"github.com/kart-io/missivehub/pkg/missive"
)

// Receipt is the persisted trace of one dispatched missive.
type Receipt struct {
	MissiveID   string              `json:"missive_id"`
	ChannelType missive.ChannelType `json:"channel_type"`
	Provider    string              `json:"provider,omitempty"`
	Status      missive.Status      `json:"status"`
	ExternalID  string              `json:"external_id,omitempty"`
	Error       string              `json:"error,omitempty"`
	Attempts    int                 `json:"attempts"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// FromMissive builds a receipt snapshot of a missive after dispatch.
func FromMissive(m *missive.Missive, attempts int) *Receipt {
	now := time.Now()
	return &Receipt{
		MissiveID:   m.ID,
		ChannelType: m.ChannelType,
		Provider:    m.Provider,
		Status:      m.Status,
		ExternalID:  m.ExternalID,
		Error:       m.ErrorMessage,
		Attempts:    attempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Store persists receipts keyed by missive ID. Save overwrites.
type Store interface {
	Save(ctx context.Context, r *Receipt) error
	Get(ctx context.Context, missiveID string) (*Receipt, error)
	List(ctx context.Context, limit int) ([]*Receipt, error)
	Delete(ctx context.Context, missiveID string) error
	Close() error
}

// ErrNotFound is returned by Get for unknown missive IDs.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "receipt not found" }
