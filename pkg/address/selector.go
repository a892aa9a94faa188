package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/kart-io/missivehub/pkg/config"
	"github.com/kart-io/missivehub/pkg/provider/registry"
	"github.com/kart-io/missivehub/pkg/utils/logger"
)

// BackendState classifies a probed backend.
type BackendState string

const (
	// StateWorking means the backend resolved, constructed and passed
	// every package and config check.
	StateWorking BackendState = "working"
	// StateUnconfigured means the backend is usable in principle but at
	// least one package or config prerequisite is missing.
	StateUnconfigured BackendState = "unconfigured"
	// StateBroken means resolution, construction or the sample
	// verification failed outright.
	StateBroken BackendState = "broken"
)

// ConfigKeyStatus reports one declared config key of a backend. The
// preview is masked so status output can be shown without leaking
// secrets.
type ConfigKeyStatus struct {
	Present      bool   `json:"present"`
	ValuePreview string `json:"value_preview,omitempty"`
}

// BackendStatusEntry is the probe outcome for one declared backend.
type BackendStatusEntry struct {
	Identifier string                     `json:"identifier"`
	ClassName  string                     `json:"class_name"`
	Status     BackendState               `json:"status"`
	Error      string                     `json:"error,omitempty"`
	Packages   map[string]bool            `json:"packages,omitempty"`
	Config     map[string]ConfigKeyStatus `json:"config,omitempty"`
}

// Report aggregates the probe of every declared backend. Items keeps
// declaration order; the selected backend is the first working one.
type Report struct {
	Configured      int                  `json:"configured"`
	Working         int                  `json:"working"`
	SelectedBackend string               `json:"selected_backend,omitempty"`
	SampleResult    *VerificationResult  `json:"sample_result,omitempty"`
	Items           []BackendStatusEntry `json:"items"`
}

// Selector probes the declared address backends and designates the one
// dispatch should use.
type Selector struct {
	registry *registry.Registry
	logger   logger.Interface
	sample   Query
	doSample bool
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithRegistry resolves identifiers against a registry other than the
// process default.
func WithRegistry(r *registry.Registry) SelectorOption {
	return func(s *Selector) { s.registry = r }
}

// WithLogger sets the probe logger.
func WithLogger(l logger.Interface) SelectorOption {
	return func(s *Selector) { s.logger = l }
}

// WithSampleQuery overrides the address used for the single sample
// verification call.
func WithSampleQuery(q Query) SelectorOption {
	return func(s *Selector) { s.sample = q }
}

// WithoutSample disables the sample verification call, leaving selection
// purely check-based. Useful for offline status displays.
func WithoutSample() SelectorOption {
	return func(s *Selector) { s.doSample = false }
}

// NewSelector creates a selector with the default registry, logger and
// sample address.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		registry: registry.Default,
		logger:   logger.Default,
		sample: Query{
			Line1:      "55 Rue du Faubourg Saint-Honoré",
			PostalCode: "75008",
			City:       "Paris",
			Country:    "FR",
		},
		doSample: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Describe probes every declared backend in order and builds the full
// status report. Every backend is probed even after a working one is
// found, so the report reflects the whole fleet, but at most one sample
// verification call is made, through the first working backend.
func (s *Selector) Describe(ctx context.Context, declarations config.Providers) *Report {
	report := &Report{
		Configured: len(declarations),
		Items:      make([]BackendStatusEntry, 0, len(declarations)),
	}

	begin := time.Now()
	sampled := false
	for _, decl := range declarations {
		entry := s.probe(decl)

		// At most one sample call per Describe. A failed sample consumes
		// the budget: later working backends are reported but not tried.
		if entry.Status == StateWorking && report.SelectedBackend == "" && s.doSample && !sampled {
			sampled = true
			result, err := s.sampleCall(ctx, decl)
			if err != nil {
				entry.Status = StateBroken
				entry.Error = fmt.Sprintf("sample verification failed: %v", err)
				s.logger.Warn(ctx, "backend %s failed sample verification: %v", decl.Identifier, err)
			} else {
				report.SelectedBackend = decl.Identifier
				report.SampleResult = result
			}
		} else if entry.Status == StateWorking && report.SelectedBackend == "" && !s.doSample {
			report.SelectedBackend = decl.Identifier
		}

		report.Items = append(report.Items, entry)
	}

	report.Working = lo.CountBy(report.Items, func(e BackendStatusEntry) bool {
		return e.Status == StateWorking
	})

	s.logger.Trace(ctx, begin, func() (string, int64) {
		return fmt.Sprintf("describe address backends (working=%d/%d, selected=%s)",
			report.Working, report.Configured, report.SelectedBackend), int64(report.Configured)
	}, nil)
	return report
}

// Select resolves, constructs and returns the first working backend
// without building a report. It performs no sample call.
func (s *Selector) Select(ctx context.Context, declarations config.Providers) (Verifier, string, error) {
	for _, decl := range declarations {
		verifier, entry := s.construct(decl)
		if verifier == nil || entry.Status != StateWorking {
			s.logger.Debug(ctx, "skipping backend %s: %s %s", decl.Identifier, entry.Status, entry.Error)
			continue
		}
		return verifier, decl.Identifier, nil
	}
	return nil, "", fmt.Errorf("no working address backend among %d declared", len(declarations))
}

// probe builds the status entry for one declaration.
func (s *Selector) probe(decl config.Entry) BackendStatusEntry {
	_, entry := s.construct(decl)
	return entry
}

// construct resolves and instantiates one declaration and classifies the
// outcome. The verifier is non-nil only when construction succeeded,
// regardless of the prerequisite checks.
func (s *Selector) construct(decl config.Entry) (Verifier, BackendStatusEntry) {
	entry := BackendStatusEntry{
		Identifier: decl.Identifier,
		ClassName:  classNameOf(decl.Identifier),
	}

	reg, err := s.registry.Resolve(decl.Identifier)
	if err != nil {
		entry.Status = StateBroken
		entry.Error = err.Error()
		return nil, entry
	}

	instance, err := reg.Factory(decl.Options)
	if err != nil {
		entry.Status = StateBroken
		entry.Error = fmt.Sprintf("construction failed: %v", err)
		return nil, entry
	}
	verifier, ok := instance.(Verifier)
	if !ok {
		entry.Status = StateBroken
		entry.Error = fmt.Sprintf("%s does not implement address verification", entry.ClassName)
		return nil, entry
	}

	entry.Packages = verifier.CheckRequiredPackages()
	configChecks := verifier.CheckConfigKeys(nil)
	entry.Config = make(map[string]ConfigKeyStatus, len(configChecks))
	for key, present := range configChecks {
		status := ConfigKeyStatus{Present: present}
		if present {
			status.ValuePreview = maskValue(decl.Options[key])
		}
		entry.Config[key] = status
	}

	if valid, reason := verifier.Validate(); !valid {
		entry.Status = StateUnconfigured
		entry.Error = reason
		return verifier, entry
	}
	entry.Status = StateWorking
	return verifier, entry
}

// sampleCall performs the one verification call made per Describe.
func (s *Selector) sampleCall(ctx context.Context, decl config.Entry) (*VerificationResult, error) {
	verifier, entry := s.construct(decl)
	if verifier == nil {
		return nil, fmt.Errorf("%s", entry.Error)
	}
	return verifier.VerifyAddress(ctx, s.sample)
}

// classNameOf extracts the implementation name, the segment after the
// last dot.
func classNameOf(identifier string) string {
	if idx := strings.LastIndex(identifier, "."); idx >= 0 {
		return identifier[idx+1:]
	}
	return identifier
}

// maskValue keeps a short recognizable prefix of a config value and
// hides the rest.
func maskValue(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", 4)
}
