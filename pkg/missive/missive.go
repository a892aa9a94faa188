// Package missive defines the outbound message model shared by every
// provider: the Missive itself, its channel types, its lifecycle status
// and the structured result of a dispatch attempt.
package missive

import (
	"time"

	"github.com/google/uuid"
)

// Missive is an outbound message bound to one channel type and one
// recipient. Provider-specific knobs travel in ProviderOptions.
type Missive struct {
	ID          string      `json:"id"`
	ChannelType ChannelType `json:"channel_type"`
	Subject     string      `json:"subject,omitempty"`
	Body        string      `json:"body,omitempty"`
	HTMLBody    string      `json:"html_body,omitempty"`

	// Recipient fields; which ones matter depends on the channel.
	RecipientEmail   string            `json:"recipient_email,omitempty"`
	RecipientPhone   string            `json:"recipient_phone,omitempty"`
	RecipientToken   string            `json:"recipient_token,omitempty"`
	RecipientAddress map[string]string `json:"recipient_address,omitempty"`
	RecipientMeta    map[string]string `json:"recipient_meta,omitempty"`

	// Provider selection. When set, the sender skips provider resolution
	// by channel and uses this identifier directly.
	Provider string `json:"provider,omitempty"`

	ProviderOptions map[string]string `json:"provider_options,omitempty"`

	Status       Status     `json:"status"`
	ExternalID   string     `json:"external_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
}

// New creates a pending missive for the given channel.
func New(channel ChannelType) *Missive {
	return &Missive{
		ID:          uuid.NewString(),
		ChannelType: channel,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
}

// CanSend reports whether the missive is in a state that permits dispatch.
func (m *Missive) CanSend() bool {
	if m == nil || !m.ChannelType.Valid() {
		return false
	}
	return m.Status == StatusPending || m.Status == StatusFailed
}

// Option returns a provider option by key, with presence.
func (m *Missive) Option(key string) (string, bool) {
	if m.ProviderOptions == nil {
		return "", false
	}
	v, ok := m.ProviderOptions[key]
	return v, ok
}

// SetOption sets a provider option, allocating the map on first use.
func (m *Missive) SetOption(key, value string) {
	if m.ProviderOptions == nil {
		m.ProviderOptions = make(map[string]string)
	}
	m.ProviderOptions[key] = value
}

// Destination describes where a missive is headed geographically. Both
// fields are optional; empty values mean "unknown".
type Destination struct {
	Country   string
	Continent string
}

// DestinationOf extracts the destination from provider options first,
// then from recipient metadata.
func DestinationOf(m *Missive) Destination {
	var d Destination
	if m == nil {
		return d
	}
	for _, key := range []string{"country", "country_code", "destination_country"} {
		if v, ok := m.Option(key); ok && v != "" {
			d.Country = v
			break
		}
	}
	for _, key := range []string{"continent", "destination_continent"} {
		if v, ok := m.Option(key); ok && v != "" {
			d.Continent = v
			break
		}
	}
	if d.Country == "" && m.RecipientMeta != nil {
		if v := m.RecipientMeta["country_code"]; v != "" {
			d.Country = v
		} else if v := m.RecipientMeta["country"]; v != "" {
			d.Country = v
		}
	}
	if d.Continent == "" && m.RecipientMeta != nil {
		if v := m.RecipientMeta["continent"]; v != "" {
			d.Continent = v
		} else if v := m.RecipientMeta["region"]; v != "" {
			d.Continent = v
		}
	}
	return d
}
