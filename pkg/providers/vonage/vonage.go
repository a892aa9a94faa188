// Package vonage implements dispatch through the Vonage (ex Nexmo) SMS
// and Voice APIs.
package vonage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/missive"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/pkgcheck"
	"github.com/kart-io/missivehub/pkg/provider/registry"
)

// Identifier is the registry identifier of the Vonage provider.
const Identifier = "missivehub.providers.vonage.VonageProvider"

const (
	restBaseURL = "https://rest.nexmo.com"
)

var descriptor = provider.NewDescriptor("vonage").
	WithDisplayName("Vonage").
	WithSupportedTypes(missive.ChannelSMS, missive.ChannelVoiceCall).
	WithRequiredPackages("vonage").
	WithConfigKeys("VONAGE_API_KEY", "VONAGE_API_SECRET", "VONAGE_FROM_NUMBER").
	WithDocumentationURL("https://developer.vonage.com/").
	WithSiteURL("https://www.vonage.com/")

func init() {
	pkgcheck.Register("vonage")
	registry.MustRegister(&registry.Registration{
		Identifier: Identifier,
		Kind:       registry.KindProvider,
		Descriptor: descriptor,
		Factory:    New,
	})
}

// Provider dispatches SMS and voice calls through Vonage.
type Provider struct {
	*provider.Base
	httpClient *http.Client
	baseURL    string
}

// New constructs a Vonage provider bound to the given config.
func New(config provider.Config) (provider.Provider, error) {
	base := provider.NewBase(descriptor, config)
	baseURL := strings.TrimRight(base.RawValue("VONAGE_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = restBaseURL
	}
	return &Provider{
		Base:       base,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
	}, nil
}

type smsResponse struct {
	Messages []struct {
		Status    string `json:"status"`
		MessageID string `json:"message-id"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

// SendSMS dispatches an SMS through the legacy SMS API. A status other
// than "0" in the response is a provider-side rejection, reported as a
// failed result rather than an error.
func (p *Provider) SendSMS(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error) {
	if valid, reason := p.Validate(); !valid {
		return missive.Failed(reason), nil
	}
	if m.RecipientPhone == "" {
		return missive.Failed("recipient phone missing"), nil
	}

	from := p.ConfigValue("VONAGE_FROM_NUMBER")
	if v, ok := m.Option("sender"); ok && v != "" {
		from = v
	}
	form := url.Values{
		"api_key":    {p.ConfigValue("VONAGE_API_KEY")},
		"api_secret": {p.ConfigValue("VONAGE_API_SECRET")},
		"from":       {from},
		"to":         {strings.TrimPrefix(m.RecipientPhone, "+")},
		"text":       {m.Body},
		"client-ref": {"missive_" + m.ID},
	}

	var response smsResponse
	if err := p.postForm(ctx, "/sms/json", form, &response); err != nil {
		return nil, err
	}
	if len(response.Messages) == 0 {
		return missive.Failed("empty response from Vonage"), nil
	}
	first := response.Messages[0]
	if first.Status != "0" {
		return missive.Failed("Vonage error " + first.Status + ": " + first.ErrorText), nil
	}
	return missive.Succeeded(first.MessageID), nil
}

// SendVoiceCall reads the missive body to the recipient via
// text-to-speech. The legacy TTS endpoint keeps the integration on one
// API credential pair.
func (p *Provider) SendVoiceCall(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error) {
	if valid, reason := p.Validate(); !valid {
		return missive.Failed(reason), nil
	}
	if m.RecipientPhone == "" {
		return missive.Failed("recipient phone missing"), nil
	}

	form := url.Values{
		"api_key":    {p.ConfigValue("VONAGE_API_KEY")},
		"api_secret": {p.ConfigValue("VONAGE_API_SECRET")},
		"from":       {p.ConfigValue("VONAGE_FROM_NUMBER")},
		"to":         {strings.TrimPrefix(m.RecipientPhone, "+")},
		"text":       {m.Body},
	}
	if lang, ok := m.Option("lang"); ok && lang != "" {
		form.Set("lg", lang)
	}

	var response struct {
		CallID    string `json:"call_id"`
		Status    string `json:"status"`
		ErrorText string `json:"error_text"`
	}
	if err := p.postForm(ctx, "/tts/json", form, &response); err != nil {
		return nil, err
	}
	if response.Status != "0" && response.Status != "" {
		return missive.Failed("Vonage error " + response.Status + ": " + response.ErrorText), nil
	}
	return missive.Succeeded(response.CallID), nil
}

// CalculateSMSDeliveryRisk scores an SMS send without network I/O.
func (p *Provider) CalculateSMSDeliveryRisk(m *missive.Missive) *missive.DeliveryRisk {
	if m == nil {
		return missive.NewDeliveryRisk(100, nil, "no missive to analyze")
	}

	score := 0
	factors := map[string]string{}
	var recommendations []string

	if valid, reason := p.Validate(); !valid {
		return missive.NewDeliveryRisk(100, factors, reason)
	}
	if m.RecipientPhone == "" {
		score = 100
		recommendations = append(recommendations, "recipient phone missing")
	} else if !strings.HasPrefix(m.RecipientPhone, "+") {
		score += 30
		factors["phone_format"] = "not E.164"
		recommendations = append(recommendations, "recipient phone should be in E.164 format")
	}

	return missive.NewDeliveryRisk(score, factors, recommendations...)
}

// SMSServiceInfo reads the account balance.
func (p *Provider) SMSServiceInfo(ctx context.Context) (*provider.ServiceInfo, error) {
	apiKey := p.ConfigValue("VONAGE_API_KEY")
	apiSecret := p.ConfigValue("VONAGE_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		return &provider.ServiceInfo{
			IsAvailable: provider.Bool(false),
			Warnings:    []string{"incomplete Vonage configuration"},
		}, nil
	}

	params := url.Values{
		"api_key":    {apiKey},
		"api_secret": {apiSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/account/get-balance?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build vonage request", "vonage", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.MapNetworkError(err, "vonage")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.MapHTTPError(resp.StatusCode, string(body), "vonage")
	}

	var balance struct {
		Value      float64 `json:"value"`
		AutoReload bool    `json:"autoReload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		return nil, errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"decode vonage response", "vonage", err)
	}

	info := &provider.ServiceInfo{
		IsAvailable: provider.Bool(balance.Value > 0),
		Credits:     &provider.Credits{Remaining: balance.Value, Unit: "EUR"},
	}
	if balance.Value <= 0 && !balance.AutoReload {
		info.Warnings = append(info.Warnings, "account balance exhausted and auto-reload disabled")
	}
	return info, nil
}

// ServiceStatus is local only.
func (p *Provider) ServiceStatus() *provider.ServiceStatus {
	status := &provider.ServiceStatus{
		Status:    "configured",
		Services:  []string{"sms", "voice", "verify", "number_insight"},
		LastCheck: p.Now(),
		Details: map[string]string{
			"status_page": "https://vonage.statuspage.io/",
			"api_docs":    "https://developer.vonage.com/",
		},
	}
	if valid, reason := p.Validate(); !valid {
		status.Status = "unconfigured"
		status.Warnings = append(status.Warnings, reason)
	}
	return status
}

func (p *Provider) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build vonage request", "vonage", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.MapNetworkError(err, "vonage")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.MapHTTPError(resp.StatusCode, string(body), "vonage")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"decode vonage response", "vonage", err)
	}
	return nil
}

var (
	_ provider.SMSSender           = (*Provider)(nil)
	_ provider.VoiceCallSender     = (*Provider)(nil)
	_ provider.SMSRiskCalculator   = (*Provider)(nil)
	_ provider.SMSServiceInspector = (*Provider)(nil)
)
