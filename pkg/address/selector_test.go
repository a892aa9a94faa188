package address

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/missivehub/pkg/config"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/pkgcheck"
	"github.com/kart-io/missivehub/pkg/provider/registry"
	"github.com/kart-io/missivehub/pkg/utils/logger"
)

// fakeBackend verifies addresses with a scripted outcome and counts its
// verification calls.
type fakeBackend struct {
	*provider.Base
	result *VerificationResult
	err    error
	calls  *int
}

func (f *fakeBackend) VerifyAddress(ctx context.Context, q Query) (*VerificationResult, error) {
	if f.calls != nil {
		*f.calls++
	}
	return f.result, f.err
}

var _ Verifier = (*fakeBackend)(nil)

// nonVerifier registers fine but exposes no verification operation.
type nonVerifier struct {
	*provider.Base
}

type backendSpec struct {
	name        string
	configKeys  []string
	options     provider.Config
	result      *VerificationResult
	err         error
	calls       *int
	notABackend bool
	factoryErr  error
}

func registerBackends(t *testing.T, specs ...backendSpec) (*registry.Registry, config.Providers) {
	t.Helper()
	r := registry.NewRegistry()
	declarations := make(config.Providers, 0, len(specs))
	available := pkgcheck.NewSet()
	available.Register("fakegeo")
	for _, spec := range specs {
		spec := spec
		identifier := fmt.Sprintf("fake.backends.%s.%sBackend", spec.name, spec.name)
		descriptor := provider.NewDescriptor(spec.name).WithConfigKeys(spec.configKeys...)
		require.NoError(t, r.Register(&registry.Registration{
			Identifier: identifier,
			Kind:       registry.KindBackend,
			Descriptor: descriptor,
			Factory: func(cfg provider.Config) (provider.Provider, error) {
				if spec.factoryErr != nil {
					return nil, spec.factoryErr
				}
				base := provider.NewBase(descriptor, cfg, provider.WithPackageSet(available))
				if spec.notABackend {
					return &nonVerifier{Base: base}, nil
				}
				return &fakeBackend{Base: base, result: spec.result, err: spec.err, calls: spec.calls}, nil
			},
		}))
		declarations = append(declarations, config.Entry{Identifier: identifier, Options: spec.options})
	}
	return r, declarations
}

func validResult() *VerificationResult {
	return &VerificationResult{IsValid: true, Confidence: 0.9}
}

func TestDescribeSelectsFirstWorkingBackend(t *testing.T) {
	firstCalls, secondCalls, thirdCalls := 0, 0, 0
	r, declarations := registerBackends(t,
		backendSpec{name: "alpha", configKeys: []string{"ALPHA_KEY"}, calls: &firstCalls},
		backendSpec{name: "beta", result: validResult(), calls: &secondCalls},
		backendSpec{name: "gamma", result: validResult(), calls: &thirdCalls},
	)
	s := NewSelector(WithRegistry(r), WithLogger(logger.Discard))

	report := s.Describe(context.Background(), declarations)

	assert.Equal(t, 3, report.Configured)
	assert.Equal(t, 2, report.Working)
	assert.Equal(t, "fake.backends.beta.betaBackend", report.SelectedBackend)
	require.NotNil(t, report.SampleResult)
	assert.True(t, report.SampleResult.IsValid)

	// The fleet is fully probed, but exactly one sample call is made.
	require.Len(t, report.Items, 3)
	assert.Equal(t, StateUnconfigured, report.Items[0].Status)
	assert.Equal(t, StateWorking, report.Items[1].Status)
	assert.Equal(t, StateWorking, report.Items[2].Status)
	assert.Equal(t, 0, firstCalls)
	assert.Equal(t, 1, secondCalls)
	assert.Equal(t, 0, thirdCalls)
}

func TestDescribeSampleFailureBreaksBackend(t *testing.T) {
	alphaCalls, betaCalls := 0, 0
	r, declarations := registerBackends(t,
		backendSpec{name: "alpha", err: fmt.Errorf("upstream 500"), calls: &alphaCalls},
		backendSpec{name: "beta", result: validResult(), calls: &betaCalls},
	)
	s := NewSelector(WithRegistry(r), WithLogger(logger.Discard))

	report := s.Describe(context.Background(), declarations)

	// The failed sample reclassifies alpha and no second sample is made,
	// so selection stays empty even though beta checks out.
	assert.Equal(t, StateBroken, report.Items[0].Status)
	assert.Contains(t, report.Items[0].Error, "sample verification failed")
	assert.Equal(t, StateWorking, report.Items[1].Status)
	assert.Empty(t, report.SelectedBackend)
	assert.Nil(t, report.SampleResult)
	assert.Equal(t, 1, report.Working)
	assert.Equal(t, 1, alphaCalls)
	assert.Equal(t, 0, betaCalls)
}

func TestDescribeWithoutSample(t *testing.T) {
	calls := 0
	r, declarations := registerBackends(t,
		backendSpec{name: "alpha", result: validResult(), calls: &calls},
	)
	s := NewSelector(WithRegistry(r), WithLogger(logger.Discard), WithoutSample())

	report := s.Describe(context.Background(), declarations)
	assert.Equal(t, "fake.backends.alpha.alphaBackend", report.SelectedBackend)
	assert.Nil(t, report.SampleResult)
	assert.Equal(t, 0, calls)
}

func TestDescribeClassifiesFailures(t *testing.T) {
	r, declarations := registerBackends(t,
		backendSpec{name: "broken", factoryErr: fmt.Errorf("bad shape")},
		backendSpec{name: "plain", notABackend: true},
	)
	declarations = append(config.Providers{
		{Identifier: "fake.backends.ghost.ghostBackend", Options: provider.Config{}},
	}, declarations...)
	s := NewSelector(WithRegistry(r), WithLogger(logger.Discard))

	report := s.Describe(context.Background(), declarations)
	require.Len(t, report.Items, 3)

	assert.Equal(t, StateBroken, report.Items[0].Status, "unresolvable identifier")
	assert.Equal(t, StateBroken, report.Items[1].Status)
	assert.Contains(t, report.Items[1].Error, "construction failed")
	assert.Equal(t, StateBroken, report.Items[2].Status)
	assert.Contains(t, report.Items[2].Error, "does not implement address verification")
	assert.Equal(t, 0, report.Working)
	assert.Empty(t, report.SelectedBackend)
}

func TestDescribeMasksConfigValues(t *testing.T) {
	r, declarations := registerBackends(t,
		backendSpec{
			name:       "alpha",
			configKeys: []string{"ALPHA_KEY", "ALPHA_PIN", "ALPHA_EMPTY"},
			options:    provider.Config{"ALPHA_KEY": "secret-value", "ALPHA_PIN": "1234"},
			result:     validResult(),
		},
	)
	s := NewSelector(WithRegistry(r), WithLogger(logger.Discard), WithoutSample())

	report := s.Describe(context.Background(), declarations)
	entry := report.Items[0]
	assert.Equal(t, StateUnconfigured, entry.Status, "ALPHA_EMPTY is missing")

	assert.True(t, entry.Config["ALPHA_KEY"].Present)
	assert.Equal(t, "secr****", entry.Config["ALPHA_KEY"].ValuePreview)
	assert.Equal(t, "****", entry.Config["ALPHA_PIN"].ValuePreview)
	assert.False(t, entry.Config["ALPHA_EMPTY"].Present)
	assert.Empty(t, entry.Config["ALPHA_EMPTY"].ValuePreview)
}

func TestSelectReturnsFirstWorking(t *testing.T) {
	r, declarations := registerBackends(t,
		backendSpec{name: "alpha", configKeys: []string{"ALPHA_KEY"}},
		backendSpec{name: "beta", result: validResult()},
	)
	s := NewSelector(WithRegistry(r), WithLogger(logger.Discard))

	verifier, identifier, err := s.Select(context.Background(), declarations)
	require.NoError(t, err)
	assert.Equal(t, "fake.backends.beta.betaBackend", identifier)

	result, err := verifier.VerifyAddress(context.Background(), Query{City: "Paris"})
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestSelectNoneWorking(t *testing.T) {
	r, declarations := registerBackends(t,
		backendSpec{name: "alpha", configKeys: []string{"ALPHA_KEY"}},
	)
	s := NewSelector(WithRegistry(r), WithLogger(logger.Discard))

	_, _, err := s.Select(context.Background(), declarations)
	assert.Error(t, err)
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "", maskValue(""))
	assert.Equal(t, "*", maskValue("x"))
	assert.Equal(t, "****", maskValue("abcd"))
	assert.Equal(t, "abcd****", maskValue("abcdefghij"))
}

func TestClassNameOf(t *testing.T) {
	assert.Equal(t, "NominatimBackend", classNameOf("missivehub.backends.nominatim.NominatimBackend"))
	assert.Equal(t, "bare", classNameOf("bare"))
}

func TestQueryText(t *testing.T) {
	q := Query{Line1: "10 Downing St", PostalCode: "SW1A", City: "London", Country: "GB"}
	text := q.Text()
	assert.Contains(t, text, "10 Downing St")
	assert.Contains(t, text, "SW1A London")
	assert.NotContains(t, text, "GB", "country travels as a separate filter")
}

func TestAddressFormatAndMerge(t *testing.T) {
	a := Address{Line1: "1 Main St", PostalCode: "75001", City: "Paris", Country: "FR"}
	assert.Equal(t, "1 Main St, 75001 Paris, FR", a.Format())

	enriched := a.Merge(Address{City: "PARIS", Latitude: 48.85, Longitude: 2.35, Confidence: 0.8})
	assert.Equal(t, "PARIS", enriched.City)
	assert.Equal(t, "1 Main St", enriched.Line1)
	assert.Equal(t, 48.85, enriched.Latitude)
	assert.Equal(t, 0.8, enriched.Confidence)

	assert.True(t, Address{}.IsEmpty())
	assert.False(t, a.IsEmpty())
}
