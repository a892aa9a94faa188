package provider

import "time"

// ValidationReport pairs the two prerequisite checks of an instance,
// plus the descriptor's documented geo coverage for report output.
// Deficiencies are plain false entries, never errors; callers decide
// whether a deficiency is fatal for their use case.
type ValidationReport struct {
	Packages map[string]bool   `json:"packages"`
	Config   map[string]bool   `json:"config"`
	Geo      map[string]string `json:"geo,omitempty"`
}

// AllSatisfied reports whether every package and config entry is true.
func (r ValidationReport) AllSatisfied() bool {
	for _, ok := range r.Packages {
		if !ok {
			return false
		}
	}
	for _, ok := range r.Config {
		if !ok {
			return false
		}
	}
	return true
}

// Credits describes a provider account balance.
type Credits struct {
	Remaining float64 `json:"remaining"`
	Unit      string  `json:"unit,omitempty"`
}

// ServiceStatus is the cheap, locally computable status of a provider.
// Optional concepts are explicit pointer fields, so consumers branch on
// presence instead of probing a loose map.
type ServiceStatus struct {
	Status      string            `json:"status"`
	IsAvailable *bool             `json:"is_available,omitempty"`
	Services    []string          `json:"services,omitempty"`
	Credits     *Credits          `json:"credits,omitempty"`
	LastCheck   time.Time         `json:"last_check"`
	Warnings    []string          `json:"warnings,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// ServiceInfo is the live counterpart of ServiceStatus, produced by the
// per-channel ServiceInfo operations which may hit the provider's API.
type ServiceInfo struct {
	IsAvailable *bool             `json:"is_available,omitempty"`
	Credits     *Credits          `json:"credits,omitempty"`
	Limits      map[string]int64  `json:"limits,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// Bool is a convenience for the optional availability fields.
func Bool(v bool) *bool { return &v }
