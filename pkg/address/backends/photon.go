package backends

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kart-io/missivehub/pkg/address"
	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/pkgcheck"
	"github.com/kart-io/missivehub/pkg/provider/registry"
)

// PhotonIdentifier is the registry identifier of the Photon backend.
const PhotonIdentifier = "missivehub.backends.photon.PhotonBackend"

const photonDefaultBaseURL = "https://photon.komoot.io"

var photonDescriptor = provider.NewDescriptor("photon").
	WithDisplayName("Komoot Photon").
	WithRequiredPackages("photon").
	WithDocumentationURL("https://github.com/komoot/photon").
	WithSiteURL("https://photon.komoot.io")

func init() {
	pkgcheck.Register("photon")
	registry.MustRegister(&registry.Registration{
		Identifier: PhotonIdentifier,
		Kind:       registry.KindBackend,
		Descriptor: photonDescriptor,
		Factory:    NewPhotonBackend,
	})
}

// PhotonBackend verifies addresses against the Komoot Photon geocoder.
// It needs no credentials, which makes it the default fallback backend.
// PHOTON_BASE_URL points it at a self-hosted instance.
type PhotonBackend struct {
	*provider.Base
	httpClient *http.Client
	baseURL    string
}

// NewPhotonBackend constructs the backend without network I/O.
func NewPhotonBackend(config provider.Config) (provider.Provider, error) {
	base := provider.NewBase(photonDescriptor, config)
	baseURL := strings.TrimRight(base.ConfigValue("PHOTON_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = photonDefaultBaseURL
	}
	return &PhotonBackend{
		Base:       base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
	}, nil
}

// Photon answers GeoJSON: a FeatureCollection whose feature properties
// carry the address components.
type photonResponse struct {
	Features []photonFeature `json:"features"`
}

type photonFeature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		OSMID       int64  `json:"osm_id"`
		Name        string `json:"name"`
		HouseNumber string `json:"housenumber"`
		Street      string `json:"street"`
		Postcode    string `json:"postcode"`
		City        string `json:"city"`
		State       string `json:"state"`
		Country     string `json:"country"`
		CountryCode string `json:"countrycode"`
	} `json:"properties"`
}

func photonAddress(f photonFeature) address.Address {
	line1 := strings.TrimSpace(f.Properties.HouseNumber + " " + f.Properties.Street)
	if line1 == "" {
		line1 = f.Properties.Name
	}
	addr := address.Address{
		Line1:            line1,
		PostalCode:       f.Properties.Postcode,
		City:             f.Properties.City,
		State:            f.Properties.State,
		Country:          strings.ToUpper(f.Properties.CountryCode),
		BackendUsed:      "photon",
		BackendReference: strconv.FormatInt(f.Properties.OSMID, 10),
	}
	if len(f.Geometry.Coordinates) == 2 {
		addr.Longitude, addr.Latitude = f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
	}
	addr.Formatted = addr.Format()
	return addr
}

// VerifyAddress searches Photon and maps the best feature to a
// normalized address. Photon exposes no match score, so confidence is a
// flat heuristic: higher when the postal code agrees with the query.
func (b *PhotonBackend) VerifyAddress(ctx context.Context, q address.Query) (*address.VerificationResult, error) {
	params := url.Values{}
	params.Set("q", q.Text())
	params.Set("limit", "5")

	var payload photonResponse
	if err := b.get(ctx, "/api", params, &payload); err != nil {
		return nil, err
	}

	result := &address.VerificationResult{BackendUsed: "photon"}
	if len(payload.Features) == 0 {
		result.Errors = append(result.Errors, "no match found")
		return result, nil
	}

	best := photonAddress(payload.Features[0])
	result.IsValid = true
	result.Normalized = q.Address().Merge(best)
	result.BackendReference = best.BackendReference
	result.Confidence = 0.6
	if q.PostalCode != "" && q.PostalCode == best.PostalCode {
		result.Confidence = 0.9
	}
	for _, feature := range payload.Features[1:] {
		result.Suggestions = append(result.Suggestions, photonAddress(feature))
	}
	return result, nil
}

// Geocode returns coordinates for the query.
func (b *PhotonBackend) Geocode(ctx context.Context, q address.Query) (*address.GeocodeResult, error) {
	result, err := b.VerifyAddress(ctx, q)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return nil, errors.NewWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"no geocoding match for address", "photon")
	}
	return &address.GeocodeResult{
		Latitude:   result.Normalized.Latitude,
		Longitude:  result.Normalized.Longitude,
		Confidence: result.Confidence,
		Formatted:  result.Normalized.Formatted,
	}, nil
}

func (b *PhotonBackend) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build photon request", "photon", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return errors.MapNetworkError(err, "photon")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.MapHTTPError(resp.StatusCode, string(body), "photon")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"decode photon response", "photon", err)
	}
	return nil
}

// ServiceStatus reports the endpoint in use without touching it.
func (b *PhotonBackend) ServiceStatus() *provider.ServiceStatus {
	return &provider.ServiceStatus{
		Status:      "configured",
		IsAvailable: provider.Bool(true),
		Services:    []string{"address_verification", "geocoding"},
		LastCheck:   b.Now(),
		Details:     map[string]string{"base_url": b.baseURL},
	}
}

var _ address.Verifier = (*PhotonBackend)(nil)
var _ address.Geocoder = (*PhotonBackend)(nil)
