package address

import (
	"context"

	"github.com/kart-io/missivehub/pkg/provider"
)

// Query carries the address components submitted to a backend.
type Query struct {
	Line1      string
	Line2      string
	Line3      string
	City       string
	PostalCode string
	State      string
	Country    string
}

// Address converts the query into the model type.
func (q Query) Address() Address {
	return Address{
		Line1:      q.Line1,
		Line2:      q.Line2,
		Line3:      q.Line3,
		City:       q.City,
		PostalCode: q.PostalCode,
		State:      q.State,
		Country:    q.Country,
	}
}

// Text renders the query as a free-text search string, country excluded
// since backends take it as a separate filter.
func (q Query) Text() string {
	addr := q.Address()
	addr.Country = ""
	return addr.Format()
}

// VerificationResult is the structured outcome of the single
// verification operation a backend exposes.
type VerificationResult struct {
	IsValid          bool      `json:"is_valid"`
	Normalized       Address   `json:"normalized_address"`
	Confidence       float64   `json:"confidence"`
	Suggestions      []Address `json:"suggestions,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
	Errors           []string  `json:"errors,omitempty"`
	BackendUsed      string    `json:"backend_used,omitempty"`
	BackendReference string    `json:"backend_reference,omitempty"`
}

// Verifier is the one operation every address backend exposes. Backends
// are providers in the registry sense (descriptor, config and package
// checks) but perform verification instead of channel dispatch.
type Verifier interface {
	provider.Provider
	VerifyAddress(ctx context.Context, q Query) (*VerificationResult, error)
}

// Geocoder is the optional forward-geocoding operation.
type Geocoder interface {
	Geocode(ctx context.Context, q Query) (*GeocodeResult, error)
}

// ReverseGeocoder is the optional reverse-geocoding operation.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, latitude, longitude float64) (*Address, error)
}

// GeocodeResult carries coordinates for a geocoded address.
type GeocodeResult struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Accuracy   string  `json:"accuracy,omitempty"`
	Confidence float64 `json:"confidence"`
	Formatted  string  `json:"formatted_address,omitempty"`
}
