// Package provider defines the contract every delivery provider
// implements: static capability descriptors, instance validation, and
// the per-channel operations discovered through interface assertions.
package provider

import (
	"context"

	"github.com/kart-io/missivehub/pkg/missive"
)

// Config is the options mapping a provider instance is bound to.
// Instances copy it at construction, so later mutation of the source has
// no effect on them.
type Config map[string]string

// Clone returns an independent copy of the config.
func (c Config) Clone() Config {
	clone := make(Config, len(c))
	for k, v := range c {
		clone[k] = v
	}
	return clone
}

// Provider is the minimal surface every constructed instance exposes.
// Channel operations are not part of this interface: callers discover
// them per channel with the assertion helpers below, and absence of an
// operation means it is unsupported, not an error.
type Provider interface {
	// Descriptor returns the static capability metadata of the
	// implementation type. Read-only, shared across instances.
	Descriptor() *Descriptor

	// CheckRequiredPackages reports availability for each declared
	// package prerequisite. Empty when none are declared.
	CheckRequiredPackages() map[string]bool

	// CheckConfigKeys reports presence (with a non-empty value) of each
	// declared config key in the given config. A nil config checks the
	// instance's own bound config.
	CheckConfigKeys(config Config) map[string]bool

	// Validate returns overall validity and a human-readable reason when
	// invalid. It agrees with the two check methods: valid only if both
	// report all-true, though implementations may add their own checks.
	Validate() (bool, string)

	// Supports reports whether the provider dispatches the channel.
	Supports(channel missive.ChannelType) bool

	// ServiceStatus is a cheap, non-network introspection call. Live
	// availability and credit lookups belong to the per-channel
	// ServiceInfo operations instead.
	ServiceStatus() *ServiceStatus
}

// Factory constructs a provider instance bound to a config. Construction
// never performs network I/O; it fails only on a malformed config shape.
type Factory func(config Config) (Provider, error)

// Send operations, one interface per channel. A provider implements the
// interfaces for the channels it actually dispatches.

type EmailSender interface {
	SendEmail(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

type PostalSender interface {
	SendPostal(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

type LRESender interface {
	SendLRE(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

type RCSSender interface {
	SendRCS(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

type VoiceCallSender interface {
	SendVoiceCall(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

type NotificationSender interface {
	SendNotification(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

type PushNotificationSender interface {
	SendPushNotification(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

type BrandedSender interface {
	SendBranded(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)
}

// Cancel operations.

type EmailCanceler interface {
	CancelEmail(ctx context.Context, externalID string) (*missive.DispatchResult, error)
}

type SMSCanceler interface {
	CancelSMS(ctx context.Context, externalID string) (*missive.DispatchResult, error)
}

type PostalCanceler interface {
	CancelPostal(ctx context.Context, externalID string) (*missive.DispatchResult, error)
}

// Delivery-status operations.

type EmailDeliveryChecker interface {
	CheckEmailDeliveryStatus(ctx context.Context, externalID string) (*missive.DeliveryStatus, error)
}

type SMSDeliveryChecker interface {
	CheckSMSDeliveryStatus(ctx context.Context, externalID string) (*missive.DeliveryStatus, error)
}

// Delivery-risk operations.

type EmailRiskCalculator interface {
	CalculateEmailDeliveryRisk(m *missive.Missive) *missive.DeliveryRisk
}

type SMSRiskCalculator interface {
	CalculateSMSDeliveryRisk(m *missive.Missive) *missive.DeliveryRisk
}

// Live service-info operations. Unlike ServiceStatus these may perform
// network I/O, so they take a context and may block or fail.

type EmailServiceInspector interface {
	EmailServiceInfo(ctx context.Context) (*ServiceInfo, error)
}

type SMSServiceInspector interface {
	SMSServiceInfo(ctx context.Context) (*ServiceInfo, error)
}

// SendOp is a bound send operation for one channel.
type SendOp func(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error)

// SenderFor returns the send operation the provider exposes for the
// channel. The second return is false when the operation does not exist,
// which signals the channel is unsupported on this implementation.
func SenderFor(p Provider, channel missive.ChannelType) (SendOp, bool) {
	switch channel {
	case missive.ChannelEmail:
		if s, ok := p.(EmailSender); ok {
			return s.SendEmail, true
		}
	case missive.ChannelSMS:
		if s, ok := p.(SMSSender); ok {
			return s.SendSMS, true
		}
	case missive.ChannelPostal:
		if s, ok := p.(PostalSender); ok {
			return s.SendPostal, true
		}
	case missive.ChannelLRE:
		if s, ok := p.(LRESender); ok {
			return s.SendLRE, true
		}
	case missive.ChannelRCS:
		if s, ok := p.(RCSSender); ok {
			return s.SendRCS, true
		}
	case missive.ChannelVoiceCall:
		if s, ok := p.(VoiceCallSender); ok {
			return s.SendVoiceCall, true
		}
	case missive.ChannelNotification:
		if s, ok := p.(NotificationSender); ok {
			return s.SendNotification, true
		}
	case missive.ChannelPushNotification:
		if s, ok := p.(PushNotificationSender); ok {
			return s.SendPushNotification, true
		}
	case missive.ChannelBranded:
		if s, ok := p.(BrandedSender); ok {
			return s.SendBranded, true
		}
	}
	return nil, false
}
