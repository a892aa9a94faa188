// Package sender dispatches missives through the configured providers
// with automatic fallback: providers are tried in declared order, and a
// failure with one moves on to the next instead of aborting the send.
package sender

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/missivehub/pkg/config"
	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/missive"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/registry"
	"github.com/kart-io/missivehub/pkg/utils/logger"
)

// AttemptStatus classifies the outcome of one provider attempt.
type AttemptStatus string

const (
	// AttemptSuccess means the provider accepted the missive.
	AttemptSuccess AttemptStatus = "success"
	// AttemptFailed means the provider refused the missive.
	AttemptFailed AttemptStatus = "failed"
	// AttemptSkippedGeo means the destination is outside the provider's
	// geographic coverage for the channel; the attempt never reached it.
	AttemptSkippedGeo AttemptStatus = "skipped_geo"
	// AttemptUnresolved means the identifier did not resolve to a
	// registered implementation.
	AttemptUnresolved AttemptStatus = "import_error"
	// AttemptException means construction or the send call itself
	// errored.
	AttemptException AttemptStatus = "exception"
)

// Attempt records one step of the fallback walk.
type Attempt struct {
	Provider     string        `json:"provider"`
	ProviderName string        `json:"provider_name"`
	Status       AttemptStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
	Attempt      int           `json:"attempt"`
}

// Outcome is the full record of a dispatch: the winning provider (when
// any) and every attempt made along the way, in order.
type Outcome struct {
	Sent     bool                    `json:"sent"`
	Provider string                  `json:"provider,omitempty"`
	Result   *missive.DispatchResult `json:"result,omitempty"`
	Attempts []Attempt               `json:"attempts"`
}

// MissiveSender sends missives with automatic provider fallback.
type MissiveSender struct {
	declarations config.Providers
	defaults     provider.Config
	sandbox      bool
	fallback     bool
	registry     *registry.Registry
	logger       logger.Interface
}

// Option customizes a MissiveSender.
type Option func(*MissiveSender)

// WithDefaults sets default options merged under each provider's own.
func WithDefaults(defaults provider.Config) Option {
	return func(s *MissiveSender) { s.defaults = defaults }
}

// WithSandbox forces sandbox mode on every dispatched missive unless
// the missive disables it explicitly.
func WithSandbox(sandbox bool) Option {
	return func(s *MissiveSender) { s.sandbox = sandbox }
}

// WithoutFallback stops the walk on the first failing provider and
// reports it as the send error.
func WithoutFallback() Option {
	return func(s *MissiveSender) { s.fallback = false }
}

// WithRegistry resolves identifiers against a registry other than the
// process default.
func WithRegistry(r *registry.Registry) Option {
	return func(s *MissiveSender) { s.registry = r }
}

// WithLogger sets the dispatch logger.
func WithLogger(l logger.Interface) Option {
	return func(s *MissiveSender) { s.logger = l }
}

// NewSender creates a sender over the declared providers. Declaration
// order is the fallback priority.
func NewSender(declarations config.Providers, opts ...Option) *MissiveSender {
	s := &MissiveSender{
		declarations: declarations,
		defaults:     provider.Config{},
		fallback:     true,
		registry:     registry.Default,
		logger:       logger.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProviderPathsFor returns the ordered identifiers to try for a missive.
// An explicit missive.Provider bypasses channel-based resolution.
func (s *MissiveSender) ProviderPathsFor(m *missive.Missive) ([]string, error) {
	if m.Provider != "" {
		return []string{m.Provider}, nil
	}
	if len(s.declarations) == 0 {
		return nil, errors.New(errors.CodeNoProvider, errors.CategoryConfig,
			fmt.Sprintf("no providers configured and no explicit provider set for %s", m.ChannelType))
	}

	grouped := s.registry.GroupIdentifiersByChannel(s.declarations.Identifiers(), nil)
	paths := grouped[m.ChannelType]
	if len(paths) == 0 {
		available := make([]string, 0, len(grouped))
		for channel := range grouped {
			available = append(available, channel.String())
		}
		return nil, errors.New(errors.CodeNoProvider, errors.CategoryConfig,
			fmt.Sprintf("no provider configured for %s, available types: %s",
				m.ChannelType, strings.Join(available, ", ")))
	}
	return paths, nil
}

// providerConfig merges the sender defaults under a provider's declared
// options; the provider's own values win.
func (s *MissiveSender) providerConfig(identifier string) provider.Config {
	merged := s.defaults.Clone()
	for k, v := range s.declarations.Options(identifier) {
		merged[k] = v
	}
	return merged
}

// Send dispatches the missive, trying each candidate provider in order.
// It mutates the missive: status, winning provider, external ID and the
// error message on total failure.
func (s *MissiveSender) Send(ctx context.Context, m *missive.Missive) (*Outcome, error) {
	if s.sandbox {
		if _, ok := m.Option("sandbox"); !ok {
			m.SetOption("sandbox", "true")
		}
	}
	if !m.CanSend() {
		s.logger.Warn(ctx, "missive %s cannot be sent in status %q", m.ID, m.Status)
		return &Outcome{}, errors.New(errors.CodeInvalidConfig, errors.CategoryValidation,
			fmt.Sprintf("missive %s cannot be sent in status %q", m.ID, m.Status))
	}

	paths, err := s.ProviderPathsFor(m)
	if err != nil {
		return &Outcome{}, err
	}

	outcome := &Outcome{}
	destination := missive.DestinationOf(m)
	begin := time.Now()
	var lastError string

	defer func() {
		s.logger.Trace(ctx, begin, func() (string, int64) {
			return fmt.Sprintf("send %s missive %s", m.ChannelType, m.ID), int64(len(outcome.Attempts))
		}, err)
	}()

	for index, identifier := range paths {
		attempt, result := s.attempt(ctx, identifier, m, destination)
		attempt.Attempt = index + 1
		outcome.Attempts = append(outcome.Attempts, attempt)

		switch attempt.Status {
		case AttemptSkippedGeo:
			s.logger.Info(ctx, "skipping %s: destination %s/%s outside geographic coverage (attempt %d/%d)",
				attempt.ProviderName, destination.Country, destination.Continent, index+1, len(paths))
			continue
		case AttemptUnresolved:
			lastError = fmt.Sprintf("provider %q not found: %s", identifier, attempt.Error)
			s.logger.Error(ctx, "%s", lastError)
			if !s.fallback {
				err = errors.New(errors.CodeUnknownIdentifier, errors.CategoryResolution, lastError)
				return outcome, err
			}
			continue
		case AttemptException:
			lastError = fmt.Sprintf("error sending with %s: %s", identifier, attempt.Error)
			s.logger.Error(ctx, "%s", lastError)
			if !s.fallback {
				err = errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
					"send failed", attempt.ProviderName, fmt.Errorf("%s", attempt.Error))
				return outcome, err
			}
			continue
		case AttemptFailed:
			lastError = fmt.Sprintf("send failed with %s: %s", attempt.ProviderName, attempt.Error)
			s.logger.Warn(ctx, "%s", lastError)
			if !s.fallback {
				err = errors.NewWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
					lastError, attempt.ProviderName)
				return outcome, err
			}
			continue
		case AttemptSuccess:
			s.logger.Info(ctx, "missive %s sent via %s (attempt %d/%d)",
				m.ID, attempt.ProviderName, index+1, len(paths))
			outcome.Sent = true
			outcome.Provider = identifier
			outcome.Result = result
			m.Provider = identifier
			m.Status = missive.StatusSent
			now := time.Now()
			m.SentAt = &now
			return outcome, nil
		}
	}

	summary := fmt.Sprintf("all %d providers failed for missive %s", len(paths), m.ID)
	if lastError != "" {
		summary += ": " + lastError
	}
	m.Status = missive.StatusFailed
	m.ErrorMessage = summary
	err = errors.New(errors.CodeAllProvidersDown, errors.CategoryDispatch, summary)
	return outcome, err
}

// attempt runs the full pipeline for one candidate: resolve, geo check,
// construct, locate the channel operation, call it.
func (s *MissiveSender) attempt(ctx context.Context, identifier string, m *missive.Missive, destination missive.Destination) (Attempt, *missive.DispatchResult) {
	attempt := Attempt{
		Provider:     identifier,
		ProviderName: registry.NameFromIdentifier(identifier),
	}

	reg, err := s.registry.Resolve(identifier)
	if err != nil {
		attempt.Status = AttemptUnresolved
		attempt.Error = err.Error()
		return attempt, nil
	}

	// An undocumented geo restriction means unrestricted here: absence
	// of coverage data must not block dispatch.
	if geo, documented := reg.Descriptor.Geo(m.ChannelType); documented && !geo.Allows(destination) {
		attempt.Status = AttemptSkippedGeo
		return attempt, nil
	}

	instance, err := reg.Factory(s.providerConfig(identifier))
	if err != nil {
		attempt.Status = AttemptException
		attempt.Error = fmt.Sprintf("construction failed: %v", err)
		return attempt, nil
	}

	send, ok := provider.SenderFor(instance, m.ChannelType)
	if !ok {
		attempt.Status = AttemptException
		attempt.Error = fmt.Sprintf("%s does not dispatch %s", attempt.ProviderName, m.ChannelType)
		return attempt, nil
	}

	result, err := send(ctx, m)
	if err != nil {
		attempt.Status = AttemptException
		attempt.Error = err.Error()
		return attempt, nil
	}
	if result == nil || !result.Success {
		attempt.Status = AttemptFailed
		if result != nil {
			attempt.Error = result.Error
		}
		return attempt, result
	}

	attempt.Status = AttemptSuccess
	m.ExternalID = result.ExternalID
	return attempt, result
}
