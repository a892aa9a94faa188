// Package backends hosts the bundled address-verification backends.
// Each backend registers itself at init time, so importing the package
// is enough to make its identifiers resolvable.
package backends

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/missivehub/pkg/address"
	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/pkgcheck"
	"github.com/kart-io/missivehub/pkg/provider/registry"
)

// NominatimIdentifier is the registry identifier of the Nominatim
// backend.
const NominatimIdentifier = "missivehub.backends.nominatim.NominatimBackend"

const nominatimDefaultBaseURL = "https://nominatim.openstreetmap.org"

// Nominatim's usage policy caps anonymous clients at one request per
// second.
const nominatimMinInterval = time.Second

var nominatimDescriptor = provider.NewDescriptor("nominatim").
	WithDisplayName("OpenStreetMap Nominatim").
	WithRequiredPackages("nominatim").
	WithConfigKeys("NOMINATIM_USER_AGENT").
	WithDocumentationURL("https://nominatim.org/release-docs/latest/api/Search/").
	WithSiteURL("https://nominatim.openstreetmap.org")

func init() {
	pkgcheck.Register("nominatim")
	registry.MustRegister(&registry.Registration{
		Identifier: NominatimIdentifier,
		Kind:       registry.KindBackend,
		Descriptor: nominatimDescriptor,
		Factory:    NewNominatimBackend,
	})
}

// NominatimBackend verifies and geocodes addresses against the public
// OpenStreetMap Nominatim API, or a self-hosted instance when
// NOMINATIM_BASE_URL is set.
type NominatimBackend struct {
	*provider.Base
	httpClient *http.Client
	baseURL    string
	userAgent  string

	mu       sync.Mutex
	lastCall time.Time
}

// NewNominatimBackend constructs the backend. It never performs network
// I/O; a missing user agent surfaces through Validate, not here.
func NewNominatimBackend(config provider.Config) (provider.Provider, error) {
	base := provider.NewBase(nominatimDescriptor, config)
	baseURL := strings.TrimRight(base.RawValue("NOMINATIM_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = nominatimDefaultBaseURL
	}
	return &NominatimBackend{
		Base:       base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		userAgent:  base.ConfigValue("NOMINATIM_USER_AGENT"),
	}, nil
}

// throttle spaces requests out to respect the public API usage policy.
func (b *NominatimBackend) throttle(ctx context.Context) error {
	b.mu.Lock()
	now := time.Now()
	next := b.lastCall.Add(nominatimMinInterval)
	if next.Before(now) {
		next = now
	}
	wait := next.Sub(now)
	b.lastCall = next
	b.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nominatimPlace struct {
	PlaceID    int64   `json:"place_id"`
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	Importance float64 `json:"importance"`
	Display    string  `json:"display_name"`
	Address    struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

func (p nominatimPlace) toAddress() address.Address {
	city := p.Address.City
	if city == "" {
		city = p.Address.Town
	}
	if city == "" {
		city = p.Address.Village
	}
	addr := address.Address{
		Line1:            strings.TrimSpace(p.Address.HouseNumber + " " + p.Address.Road),
		City:             city,
		State:            p.Address.State,
		PostalCode:       p.Address.Postcode,
		Country:          strings.ToUpper(p.Address.CountryCode),
		Formatted:        p.Display,
		BackendUsed:      "nominatim",
		BackendReference: strconv.FormatInt(p.PlaceID, 10),
		Confidence:       clampConfidence(p.Importance),
	}
	addr.Latitude, _ = strconv.ParseFloat(p.Lat, 64)
	addr.Longitude, _ = strconv.ParseFloat(p.Lon, 64)
	return addr
}

// VerifyAddress searches Nominatim for the query and maps the best match
// to a normalized address, with the remaining matches as suggestions.
func (b *NominatimBackend) VerifyAddress(ctx context.Context, q address.Query) (*address.VerificationResult, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "5")
	params.Set("q", q.Text())
	if q.Country != "" {
		params.Set("countrycodes", strings.ToLower(q.Country))
	}

	var places []nominatimPlace
	if err := b.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}

	result := &address.VerificationResult{BackendUsed: "nominatim"}
	if len(places) == 0 {
		result.Errors = append(result.Errors, "no match found")
		return result, nil
	}

	best := places[0]
	result.IsValid = true
	result.Normalized = q.Address().Merge(best.toAddress())
	result.Confidence = clampConfidence(best.Importance)
	result.BackendReference = strconv.FormatInt(best.PlaceID, 10)
	for _, place := range places[1:] {
		result.Suggestions = append(result.Suggestions, place.toAddress())
	}
	if result.Confidence < 0.5 {
		result.Warnings = append(result.Warnings, "low-confidence match, verify manually")
	}
	return result, nil
}

// Geocode returns coordinates for the query.
func (b *NominatimBackend) Geocode(ctx context.Context, q address.Query) (*address.GeocodeResult, error) {
	result, err := b.VerifyAddress(ctx, q)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return nil, errors.NewWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"no geocoding match for address", "nominatim")
	}
	return &address.GeocodeResult{
		Latitude:   result.Normalized.Latitude,
		Longitude:  result.Normalized.Longitude,
		Confidence: result.Confidence,
		Formatted:  result.Normalized.Formatted,
	}, nil
}

// ReverseGeocode maps coordinates back to a structured address.
func (b *NominatimBackend) ReverseGeocode(ctx context.Context, latitude, longitude float64) (*address.Address, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))

	var place nominatimPlace
	if err := b.get(ctx, "/reverse", params, &place); err != nil {
		return nil, err
	}
	addr := place.toAddress()
	return &addr, nil
}

func (b *NominatimBackend) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := b.throttle(ctx); err != nil {
		return errors.WrapWithProvider(errors.CodeNetworkError, errors.CategoryNetwork,
			"request canceled while rate limited", "nominatim", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build nominatim request", "nominatim", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return errors.MapNetworkError(err, "nominatim")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.MapHTTPError(resp.StatusCode, string(body), "nominatim")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"decode nominatim response", "nominatim", err)
	}
	return nil
}

// ServiceStatus reports the endpoint in use without touching it.
func (b *NominatimBackend) ServiceStatus() *provider.ServiceStatus {
	status := &provider.ServiceStatus{
		Status:    "configured",
		Services:  []string{"address_verification", "geocoding", "reverse_geocoding"},
		LastCheck: b.Now(),
		Details:   map[string]string{"base_url": b.baseURL},
	}
	if valid, reason := b.Validate(); !valid {
		status.Status = "unconfigured"
		status.Warnings = append(status.Warnings, reason)
	}
	return status
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

var _ address.Verifier = (*NominatimBackend)(nil)
var _ address.Geocoder = (*NominatimBackend)(nil)
var _ address.ReverseGeocoder = (*NominatimBackend)(nil)
