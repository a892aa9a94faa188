// Package smspartner implements dispatch through the SMS Partner
// family of French APIs: SMS Partner for SMS, Voice Partner for voice
// messages and Mail Partner for email.
package smspartner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/missive"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/pkgcheck"
	"github.com/kart-io/missivehub/pkg/provider/registry"
)

// Identifier is the registry identifier of the SMS Partner provider.
const Identifier = "missivehub.providers.smspartner.SMSPartnerProvider"

const (
	apiBaseSMS   = "https://api.smspartner.fr/v1"
	apiBaseVoice = "https://api.voicepartner.fr/v1"
	apiBaseEmail = "https://api.mailpartner.fr/v1"
)

// Credit thresholds below which the service info carries a warning.
const (
	warningThresholdSMS  = 500
	criticalThresholdSMS = 100
)

// errorMessages maps the documented SMS Partner API error codes.
var errorMessages = map[int]string{
	1:  "API key required",
	2:  "Phone number required",
	3:  "Message ID required",
	4:  "Message not found",
	5:  "Sending already cancelled",
	6:  "Cannot cancel less than 5 minutes before sending",
	7:  "Cannot cancel already sent message",
	9:  "Constraints not met",
	10: "Incorrect API key",
	11: "Low credits",
}

var descriptor = provider.NewDescriptor("smspartner").
	WithDisplayName("SMS Partner (SMS/Email/Voice)").
	WithSupportedTypes(missive.ChannelSMS, missive.ChannelEmail, missive.ChannelVoiceCall).
	WithRequiredPackages("smspartner").
	WithConfigKeys("SMSPARTNER_API_KEY", "SMSPARTNER_SENDER").
	WithGeo(missive.ChannelSMS, provider.Unrestricted).
	WithGeo(missive.ChannelEmail, provider.Unrestricted).
	WithGeo(missive.ChannelVoiceCall, provider.Unrestricted).
	WithDocumentationURL("https://www.docpartner.dev/").
	WithSiteURL("https://www.smspartner.fr/")

func init() {
	pkgcheck.Register("smspartner")
	registry.MustRegister(&registry.Registration{
		Identifier: Identifier,
		Kind:       registry.KindProvider,
		Descriptor: descriptor,
		Factory:    New,
	})
}

// Provider dispatches SMS, email and voice messages through the SMS
// Partner APIs. Optional config keys beyond the declared set:
// SMSPARTNER_WEBHOOK_URL for delivery reports, DEFAULT_FROM_EMAIL and
// DEFAULT_FROM_NAME for the email sender identity.
type Provider struct {
	*provider.Base
	httpClient *http.Client
}

// New constructs an SMS Partner provider bound to the given config.
func New(config provider.Config) (provider.Provider, error) {
	return &Provider{
		Base:       provider.NewBase(descriptor, config),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (p *Provider) apiKey() string {
	return p.ConfigValue("SMSPARTNER_API_KEY")
}

// apiResponse is the envelope every SMS Partner endpoint answers with.
type apiResponse struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Raw     json.RawMessage `json:"-"`
}

func errorMessageFor(code int, fallback string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	if fallback != "" {
		return fallback
	}
	return fmt.Sprintf("SMS Partner error code %d", code)
}

func (p *Provider) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"encode smspartner payload", "smspartner", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build smspartner request", "smspartner", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	return p.do(req, out)
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params != nil {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build smspartner request", "smspartner", err)
	}
	return p.do(req, out)
}

func (p *Provider) deleteJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params != nil {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build smspartner request", "smspartner", err)
	}
	return p.do(req, out)
}

func (p *Provider) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.MapNetworkError(err, "smspartner")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.MapHTTPError(resp.StatusCode, string(body), "smspartner")
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"decode smspartner response", "smspartner", err)
	}
	return nil
}

// ServiceStatus is local only; the live /me lookups are exposed by the
// per-channel ServiceInfo operations.
func (p *Provider) ServiceStatus() *provider.ServiceStatus {
	status := &provider.ServiceStatus{
		Status:    "configured",
		Services:  []string{"sms", "sms_low_cost", "sms_premium", "voice_message", "voice_call", "email"},
		LastCheck: p.Now(),
		Details: map[string]string{
			"status_page": "https://status.smspartner.fr/status/nda-media",
			"api_docs":    "https://www.docpartner.dev/",
		},
	}
	if valid, reason := p.Validate(); !valid {
		status.Status = "unconfigured"
		status.Warnings = append(status.Warnings, reason)
	}
	return status
}

var (
	_ provider.SMSSender             = (*Provider)(nil)
	_ provider.EmailSender           = (*Provider)(nil)
	_ provider.VoiceCallSender       = (*Provider)(nil)
	_ provider.SMSCanceler           = (*Provider)(nil)
	_ provider.EmailCanceler         = (*Provider)(nil)
	_ provider.SMSDeliveryChecker    = (*Provider)(nil)
	_ provider.SMSRiskCalculator     = (*Provider)(nil)
	_ provider.SMSServiceInspector   = (*Provider)(nil)
	_ provider.EmailServiceInspector = (*Provider)(nil)
)
