package sender

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/missivehub/pkg/config"
	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/missive"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/registry"
	"github.com/kart-io/missivehub/pkg/utils/logger"
)

// fakeProvider dispatches SMS with a scripted outcome and records what
// it was called with.
type fakeProvider struct {
	*provider.Base
	result *missive.DispatchResult
	err    error
	calls  *int
	lastM  **missive.Missive
}

func (f *fakeProvider) SendSMS(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error) {
	if f.calls != nil {
		*f.calls++
	}
	if f.lastM != nil {
		*f.lastM = m
	}
	return f.result, f.err
}

var _ provider.SMSSender = (*fakeProvider)(nil)

// noSMSProvider declares SMS support but exposes no SMS operation.
type noSMSProvider struct {
	*provider.Base
}

type fakeSpec struct {
	name   string
	geo    provider.GeoRestriction
	hasGeo bool
	result *missive.DispatchResult
	err    error
	calls  *int
	lastM  **missive.Missive
	noOp   bool
}

func registerFakes(t *testing.T, specs ...fakeSpec) (*registry.Registry, config.Providers) {
	t.Helper()
	r := registry.NewRegistry()
	identifiers := make([]string, 0, len(specs))
	for _, spec := range specs {
		spec := spec
		identifier := fmt.Sprintf("fake.providers.%s.Provider", spec.name)
		descriptor := provider.NewDescriptor(spec.name).WithSupportedTypes(missive.ChannelSMS)
		if spec.hasGeo {
			descriptor.WithGeo(missive.ChannelSMS, spec.geo)
		}
		require.NoError(t, r.Register(&registry.Registration{
			Identifier: identifier,
			Kind:       registry.KindProvider,
			Descriptor: descriptor,
			Factory: func(cfg provider.Config) (provider.Provider, error) {
				base := provider.NewBase(descriptor, cfg)
				if spec.noOp {
					return &noSMSProvider{Base: base}, nil
				}
				return &fakeProvider{Base: base, result: spec.result, err: spec.err, calls: spec.calls, lastM: spec.lastM}, nil
			},
		}))
		identifiers = append(identifiers, identifier)
	}
	return r, config.FromIdentifiers(identifiers...)
}

func smsMissive() *missive.Missive {
	m := missive.New(missive.ChannelSMS)
	m.RecipientPhone = "+33612345678"
	m.Body = "hello"
	return m
}

func TestSendFirstProviderWins(t *testing.T) {
	firstCalls, secondCalls := 0, 0
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Succeeded("ext-1"), calls: &firstCalls},
		fakeSpec{name: "beta", result: missive.Succeeded("ext-2"), calls: &secondCalls},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	m := smsMissive()
	outcome, err := s.Send(context.Background(), m)
	require.NoError(t, err)

	assert.True(t, outcome.Sent)
	assert.Equal(t, "fake.providers.alpha.Provider", outcome.Provider)
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, AttemptSuccess, outcome.Attempts[0].Status)
	assert.Equal(t, 1, outcome.Attempts[0].Attempt)

	assert.Equal(t, missive.StatusSent, m.Status)
	assert.Equal(t, "ext-1", m.ExternalID)
	assert.Equal(t, "fake.providers.alpha.Provider", m.Provider)
	require.NotNil(t, m.SentAt)

	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 0, secondCalls, "fallback never reaches the second provider")
}

func TestSendFallsBackOnFailure(t *testing.T) {
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Failed("quota exhausted")},
		fakeSpec{name: "beta", result: missive.Succeeded("ext-2")},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	m := smsMissive()
	outcome, err := s.Send(context.Background(), m)
	require.NoError(t, err)

	assert.True(t, outcome.Sent)
	assert.Equal(t, "fake.providers.beta.Provider", outcome.Provider)
	require.Len(t, outcome.Attempts, 2)
	assert.Equal(t, AttemptFailed, outcome.Attempts[0].Status)
	assert.Equal(t, "quota exhausted", outcome.Attempts[0].Error)
	assert.Equal(t, AttemptSuccess, outcome.Attempts[1].Status)
	assert.Equal(t, 2, outcome.Attempts[1].Attempt)
}

func TestSendFallsBackOnError(t *testing.T) {
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", err: fmt.Errorf("connection refused")},
		fakeSpec{name: "beta", result: missive.Succeeded("ext-2")},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	outcome, err := s.Send(context.Background(), smsMissive())
	require.NoError(t, err)
	assert.True(t, outcome.Sent)
	assert.Equal(t, AttemptException, outcome.Attempts[0].Status)
}

func TestSendWithoutFallbackStopsOnFirstFailure(t *testing.T) {
	secondCalls := 0
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Failed("rejected")},
		fakeSpec{name: "beta", result: missive.Succeeded("ext-2"), calls: &secondCalls},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard), WithoutFallback())

	outcome, err := s.Send(context.Background(), smsMissive())
	require.Error(t, err)
	assert.Equal(t, errors.CodeDispatchFailed, errors.CodeOf(err))
	assert.False(t, outcome.Sent)
	assert.Equal(t, 0, secondCalls)
}

func TestSendAllProvidersFail(t *testing.T) {
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Failed("down")},
		fakeSpec{name: "beta", err: fmt.Errorf("timeout")},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	m := smsMissive()
	outcome, err := s.Send(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, errors.CodeAllProvidersDown, errors.CodeOf(err))
	assert.False(t, outcome.Sent)
	assert.Len(t, outcome.Attempts, 2)

	assert.Equal(t, missive.StatusFailed, m.Status)
	assert.Contains(t, m.ErrorMessage, "all 2 providers failed")
}

func TestSendSkipsOutOfCoverageProvider(t *testing.T) {
	restrictedCalls := 0
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", hasGeo: true, geo: provider.GeoRestriction{"FR"}, result: missive.Succeeded("ext-1"), calls: &restrictedCalls},
		fakeSpec{name: "beta", result: missive.Succeeded("ext-2")},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	m := smsMissive()
	m.SetOption("country", "US")
	outcome, err := s.Send(context.Background(), m)
	require.NoError(t, err)

	assert.True(t, outcome.Sent)
	assert.Equal(t, "fake.providers.beta.Provider", outcome.Provider)
	assert.Equal(t, AttemptSkippedGeo, outcome.Attempts[0].Status)
	assert.Equal(t, 0, restrictedCalls, "geo-skipped providers are never constructed or called")
}

func TestSendUndocumentedGeoDoesNotBlock(t *testing.T) {
	// alpha declares no restriction at all for SMS; absence of coverage
	// data must not block dispatch.
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Succeeded("ext-1")},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	m := smsMissive()
	m.SetOption("country", "AQ")
	outcome, err := s.Send(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, outcome.Sent)
}

func TestSendExplicitProviderBypassesResolution(t *testing.T) {
	r, _ := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Succeeded("ext-1")},
	)
	// No declarations at all: the explicit identifier is the only path.
	s := NewSender(nil, WithRegistry(r), WithLogger(logger.Discard))

	m := smsMissive()
	m.Provider = "fake.providers.alpha.Provider"
	outcome, err := s.Send(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, outcome.Sent)
	assert.Equal(t, "fake.providers.alpha.Provider", outcome.Provider)
}

func TestSendUnresolvedIdentifier(t *testing.T) {
	r, _ := registerFakes(t)
	s := NewSender(nil, WithRegistry(r), WithLogger(logger.Discard))

	m := smsMissive()
	m.Provider = "fake.providers.ghost.Provider"
	outcome, err := s.Send(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, errors.CodeAllProvidersDown, errors.CodeOf(err))
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, AttemptUnresolved, outcome.Attempts[0].Status)
}

func TestSendUnresolvedWithoutFallback(t *testing.T) {
	r, _ := registerFakes(t)
	s := NewSender(nil, WithRegistry(r), WithLogger(logger.Discard), WithoutFallback())

	m := smsMissive()
	m.Provider = "fake.providers.ghost.Provider"
	_, err := s.Send(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownIdentifier, errors.CodeOf(err))
}

func TestSendMissingChannelOperation(t *testing.T) {
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", noOp: true},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	outcome, err := s.Send(context.Background(), smsMissive())
	require.Error(t, err)
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, AttemptException, outcome.Attempts[0].Status)
	assert.Contains(t, outcome.Attempts[0].Error, "does not dispatch SMS")
}

func TestSendNoProviderForChannel(t *testing.T) {
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Succeeded("ext-1")},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	m := missive.New(missive.ChannelPostal)
	_, err := s.Send(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNoProvider, errors.CodeOf(err))
}

func TestSendNoProvidersConfigured(t *testing.T) {
	s := NewSender(nil, WithRegistry(registry.NewRegistry()), WithLogger(logger.Discard))

	_, err := s.Send(context.Background(), smsMissive())
	require.Error(t, err)
	assert.Equal(t, errors.CodeNoProvider, errors.CodeOf(err))
}

func TestSendRejectsUnsendableMissive(t *testing.T) {
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Succeeded("ext-1")},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard))

	m := smsMissive()
	m.Status = missive.StatusSent
	_, err := s.Send(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
}

func TestSendSandboxForcesOption(t *testing.T) {
	var seen *missive.Missive
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Succeeded("ext-1"), lastM: &seen},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard), WithSandbox(true))

	m := smsMissive()
	_, err := s.Send(context.Background(), m)
	require.NoError(t, err)
	require.NotNil(t, seen)
	v, ok := seen.Option("sandbox")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestSendSandboxRespectsExplicitOption(t *testing.T) {
	var seen *missive.Missive
	r, declarations := registerFakes(t,
		fakeSpec{name: "alpha", result: missive.Succeeded("ext-1"), lastM: &seen},
	)
	s := NewSender(declarations, WithRegistry(r), WithLogger(logger.Discard), WithSandbox(true))

	m := smsMissive()
	m.SetOption("sandbox", "false")
	_, err := s.Send(context.Background(), m)
	require.NoError(t, err)
	v, _ := seen.Option("sandbox")
	assert.Equal(t, "false", v)
}

func TestProviderConfigMergesDefaults(t *testing.T) {
	declarations := config.Providers{
		{Identifier: "fake.providers.alpha.Provider", Options: provider.Config{"K": "own"}},
	}
	s := NewSender(declarations, WithDefaults(provider.Config{"K": "default", "EXTRA": "x"}))

	merged := s.providerConfig("fake.providers.alpha.Provider")
	assert.Equal(t, "own", merged["K"])
	assert.Equal(t, "x", merged["EXTRA"])
}
