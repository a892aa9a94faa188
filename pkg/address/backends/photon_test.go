package backends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/missivehub/pkg/address"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/registry"
)

func newPhoton(t *testing.T, baseURL string) *PhotonBackend {
	t.Helper()
	b, err := NewPhotonBackend(provider.Config{"PHOTON_BASE_URL": baseURL})
	require.NoError(t, err)
	return b.(*PhotonBackend)
}

func photonSearchResponse() map[string]any {
	feature := func(osmID int64, houseNumber, street, postcode, city string) map[string]any {
		return map[string]any{
			"geometry": map[string]any{"coordinates": []float64{2.3165, 48.8704}},
			"properties": map[string]any{
				"osm_id":      osmID,
				"housenumber": houseNumber,
				"street":      street,
				"postcode":    postcode,
				"city":        city,
				"countrycode": "fr",
			},
		}
	}
	return map[string]any{
		"features": []map[string]any{
			feature(7001, "55", "Rue du Faubourg Saint-Honoré", "75008", "Paris"),
			feature(7002, "", "Rue du Faubourg Saint-Honoré", "75008", "Paris"),
		},
	}
}

func TestPhotonRegistration(t *testing.T) {
	reg, err := registry.Resolve(PhotonIdentifier)
	require.NoError(t, err)
	assert.Equal(t, "photon", reg.Name())
	assert.Empty(t, reg.Descriptor.ConfigKeys(), "photon works without credentials")
}

func TestPhotonVerifyAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "Faubourg")
		_ = json.NewEncoder(w).Encode(photonSearchResponse())
	}))
	defer server.Close()

	b := newPhoton(t, server.URL)
	result, err := b.VerifyAddress(context.Background(), address.Query{
		Line1:      "55 Rue du Faubourg Saint-Honoré",
		PostalCode: "75008",
		City:       "Paris",
		Country:    "FR",
	})
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Equal(t, "photon", result.BackendUsed)
	assert.Equal(t, "7001", result.BackendReference)
	assert.InDelta(t, 0.9, result.Confidence, 0.001, "matching postal code raises confidence")
	assert.InDelta(t, 48.8704, result.Normalized.Latitude, 0.0001)
	assert.Len(t, result.Suggestions, 1)
}

func TestPhotonConfidenceWithoutPostcodeMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(photonSearchResponse())
	}))
	defer server.Close()

	b := newPhoton(t, server.URL)
	result, err := b.VerifyAddress(context.Background(), address.Query{City: "Paris", PostalCode: "75020"})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, result.Confidence, 0.001)
}

func TestPhotonNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer server.Close()

	b := newPhoton(t, server.URL)
	result, err := b.VerifyAddress(context.Background(), address.Query{City: "Nowhere"})
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "no match found")

	_, err = b.Geocode(context.Background(), address.Query{City: "Nowhere"})
	assert.Error(t, err, "geocoding needs a match")
}

func TestPhotonValidateWithoutConfig(t *testing.T) {
	b, err := NewPhotonBackend(provider.Config{})
	require.NoError(t, err)
	valid, reason := b.Validate()
	assert.True(t, valid, reason)
}
