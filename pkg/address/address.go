// Package address defines the structured postal address model, the
// verification backend contract, and the selector that probes
// configured backends and designates the first working one.
package address

import "strings"

// Address is a lightweight container for structured postal addresses,
// optionally enriched by a verification backend.
type Address struct {
	Line1      string  `json:"line1,omitempty"`
	Line2      string  `json:"line2,omitempty"`
	Line3      string  `json:"line3,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	Country    string  `json:"country,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	Formatted  string  `json:"formatted,omitempty"`

	BackendUsed      string  `json:"backend_used,omitempty"`
	BackendReference string  `json:"backend_reference,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

// IsEmpty reports whether no user-level field is populated.
func (a Address) IsEmpty() bool {
	return a.Line1 == "" && a.Line2 == "" && a.Line3 == "" &&
		a.PostalCode == "" && a.City == "" && a.State == "" && a.Country == ""
}

// Format renders the address as a single line in postal order.
func (a Address) Format() string {
	var parts []string
	if a.Line1 != "" {
		parts = append(parts, a.Line1)
	}
	if a.Line2 != "" {
		parts = append(parts, a.Line2)
	}
	cityLine := strings.TrimSpace(a.PostalCode + " " + a.City)
	if cityLine != "" {
		parts = append(parts, cityLine)
	}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	if a.Country != "" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}

// Merge overlays other onto a, preferring other's non-empty values.
func (a Address) Merge(other Address) Address {
	pick := func(current, replacement string) string {
		if replacement != "" {
			return replacement
		}
		return current
	}
	merged := Address{
		Line1:      pick(a.Line1, other.Line1),
		Line2:      pick(a.Line2, other.Line2),
		Line3:      pick(a.Line3, other.Line3),
		PostalCode: pick(a.PostalCode, other.PostalCode),
		City:       pick(a.City, other.City),
		State:      pick(a.State, other.State),
		Country:    pick(a.Country, other.Country),
		Formatted:  pick(a.Formatted, other.Formatted),

		BackendUsed:      pick(a.BackendUsed, other.BackendUsed),
		BackendReference: pick(a.BackendReference, other.BackendReference),
	}
	merged.Latitude, merged.Longitude = a.Latitude, a.Longitude
	if other.Latitude != 0 || other.Longitude != 0 {
		merged.Latitude, merged.Longitude = other.Latitude, other.Longitude
	}
	merged.Confidence = a.Confidence
	if other.Confidence != 0 {
		merged.Confidence = other.Confidence
	}
	return merged
}
