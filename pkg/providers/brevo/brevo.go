// Package brevo implements dispatch through the Brevo (ex Sendinblue)
// transactional API for the email and SMS channels.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/missive"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/pkgcheck"
	"github.com/kart-io/missivehub/pkg/provider/registry"
)

// Identifier is the registry identifier of the Brevo provider.
const Identifier = "missivehub.providers.brevo.BrevoProvider"

const defaultBaseURL = "https://api.brevo.com/v3"

var descriptor = provider.NewDescriptor("brevo").
	WithDisplayName("Brevo").
	WithSupportedTypes(missive.ChannelEmail, missive.ChannelSMS).
	WithRequiredPackages("brevo").
	WithConfigKeys("BREVO_API_KEY", "BREVO_SMS_SENDER", "BREVO_DEFAULT_FROM_EMAIL").
	WithDocumentationURL("https://developers.brevo.com/").
	WithSiteURL("https://www.brevo.com/")

func init() {
	pkgcheck.Register("brevo")
	registry.MustRegister(&registry.Registration{
		Identifier: Identifier,
		Kind:       registry.KindProvider,
		Descriptor: descriptor,
		Factory:    New,
	})
}

// Provider dispatches email and SMS through Brevo.
type Provider struct {
	*provider.Base
	httpClient *http.Client
	baseURL    string
}

// New constructs a Brevo provider bound to the given config.
func New(config provider.Config) (provider.Provider, error) {
	base := provider.NewBase(descriptor, config)
	baseURL := strings.TrimRight(base.RawValue("BREVO_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		Base:       base,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
	}, nil
}

type emailPayload struct {
	Sender      emailParty   `json:"sender"`
	To          []emailParty `json:"to"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent,omitempty"`
	TextContent string       `json:"textContent,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
}

type emailParty struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SendEmail dispatches a transactional email. It refuses to call the API
// when the risk assessment says the send would fail.
func (p *Provider) SendEmail(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error) {
	if risk := p.CalculateEmailDeliveryRisk(m); !risk.ShouldSend {
		return missive.Failed(firstRecommendation(risk, "email delivery blocked by risk assessment")), nil
	}

	payload := emailPayload{
		Sender:      emailParty{Email: p.ConfigValue("BREVO_DEFAULT_FROM_EMAIL")},
		To:          []emailParty{{Email: m.RecipientEmail}},
		Subject:     m.Subject,
		HTMLContent: m.HTMLBody,
		TextContent: m.Body,
		Tags:        []string{"missive_" + m.ID},
	}
	if from, ok := m.Option("from_email"); ok && from != "" {
		payload.Sender.Email = from
	}

	var response struct {
		MessageID string `json:"messageId"`
	}
	if err := p.post(ctx, "/smtp/email", payload, &response); err != nil {
		return nil, err
	}
	return missive.Succeeded(response.MessageID), nil
}

type smsPayload struct {
	Sender  string `json:"sender"`
	To      string `json:"recipient"`
	Content string `json:"content"`
	Tag     string `json:"tag,omitempty"`
	Type    string `json:"type,omitempty"`
}

// SendSMS dispatches a transactional SMS.
func (p *Provider) SendSMS(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error) {
	if risk := p.CalculateSMSDeliveryRisk(m); !risk.ShouldSend {
		return missive.Failed(firstRecommendation(risk, "sms delivery blocked by risk assessment")), nil
	}

	payload := smsPayload{
		Sender:  p.ConfigValue("BREVO_SMS_SENDER"),
		To:      m.RecipientPhone,
		Content: m.Body,
		Tag:     "missive_" + m.ID,
		Type:    "transactional",
	}
	if sender, ok := m.Option("sender"); ok && sender != "" {
		payload.Sender = sender
	}

	var response struct {
		Reference string `json:"reference"`
	}
	if err := p.post(ctx, "/transactionalSMS/sms", payload, &response); err != nil {
		return nil, err
	}
	return missive.Succeeded(response.Reference), nil
}

// CalculateEmailDeliveryRisk scores an email send without network I/O.
func (p *Provider) CalculateEmailDeliveryRisk(m *missive.Missive) *missive.DeliveryRisk {
	if m == nil {
		return missive.NewDeliveryRisk(100, nil, "no missive to analyze")
	}

	score := 0
	factors := map[string]string{}
	var recommendations []string

	if p.ConfigValue("BREVO_API_KEY") == "" {
		score = 100
		recommendations = append(recommendations, "missing BREVO_API_KEY in configuration")
	}
	if m.RecipientEmail == "" {
		score = 100
		recommendations = append(recommendations, "recipient email missing")
	} else if _, err := mail.ParseAddress(m.RecipientEmail); err != nil {
		score += 50
		factors["email_validation"] = "invalid"
		recommendations = append(recommendations, fmt.Sprintf("recipient email looks invalid: %v", err))
	} else {
		factors["email_validation"] = "ok"
	}
	if p.ConfigValue("BREVO_DEFAULT_FROM_EMAIL") == "" {
		if score < 80 {
			score = 80
		}
		recommendations = append(recommendations, "BREVO_DEFAULT_FROM_EMAIL missing")
	}

	return missive.NewDeliveryRisk(score, factors, recommendations...)
}

// CalculateSMSDeliveryRisk scores an SMS send without network I/O.
func (p *Provider) CalculateSMSDeliveryRisk(m *missive.Missive) *missive.DeliveryRisk {
	if m == nil {
		return missive.NewDeliveryRisk(100, nil, "no missive to analyze")
	}

	score := 0
	factors := map[string]string{}
	var recommendations []string

	if p.ConfigValue("BREVO_API_KEY") == "" {
		return missive.NewDeliveryRisk(100, factors, "missing BREVO_API_KEY in configuration")
	}
	if m.RecipientPhone == "" {
		score = 100
		recommendations = append(recommendations, "recipient phone missing")
	} else if !strings.HasPrefix(m.RecipientPhone, "+") {
		score += 30
		factors["phone_format"] = "not E.164"
		recommendations = append(recommendations, "recipient phone should be in E.164 format")
	}
	if p.ConfigValue("BREVO_SMS_SENDER") == "" {
		if score < 60 {
			score = 60
		}
		recommendations = append(recommendations, "BREVO_SMS_SENDER missing (highly recommended)")
	}

	return missive.NewDeliveryRisk(score, factors, recommendations...)
}

// EmailServiceInfo queries the account endpoint for email credit data.
func (p *Provider) EmailServiceInfo(ctx context.Context) (*provider.ServiceInfo, error) {
	return p.accountInfo(ctx, "emailCredits")
}

// SMSServiceInfo queries the account endpoint for SMS credit data.
func (p *Provider) SMSServiceInfo(ctx context.Context) (*provider.ServiceInfo, error) {
	return p.accountInfo(ctx, "smsCredits")
}

func (p *Provider) accountInfo(ctx context.Context, creditType string) (*provider.ServiceInfo, error) {
	if p.ConfigValue("BREVO_API_KEY") == "" {
		return &provider.ServiceInfo{
			IsAvailable: provider.Bool(false),
			Warnings:    []string{"BREVO_API_KEY missing"},
		}, nil
	}

	var account struct {
		Plan []struct {
			Type    string  `json:"type"`
			Credits float64 `json:"credits"`
		} `json:"plan"`
	}
	if err := p.get(ctx, "/account", &account); err != nil {
		return nil, err
	}

	info := &provider.ServiceInfo{IsAvailable: provider.Bool(true)}
	for _, plan := range account.Plan {
		if plan.Type == creditType || creditType == "" {
			info.Credits = &provider.Credits{Remaining: plan.Credits, Unit: plan.Type}
			break
		}
	}
	return info, nil
}

// ServiceStatus is local only; credit lookups go through the
// ServiceInfo operations.
func (p *Provider) ServiceStatus() *provider.ServiceStatus {
	status := &provider.ServiceStatus{
		Status:    "configured",
		Services:  []string{"email", "email_transactional", "email_marketing", "sms"},
		LastCheck: p.Now(),
		Details: map[string]string{
			"status_page": "https://status.brevo.com/",
			"api_docs":    "https://developers.brevo.com/",
		},
	}
	if valid, reason := p.Validate(); !valid {
		status.Status = "unconfigured"
		status.Warnings = append(status.Warnings, reason)
	}
	return status
}

func (p *Provider) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"encode brevo payload", "brevo", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build brevo request", "brevo", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *Provider) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"build brevo request", "brevo", err)
	}
	return p.do(req, out)
}

func (p *Provider) do(req *http.Request, out any) error {
	req.Header.Set("api-key", p.ConfigValue("BREVO_API_KEY"))
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.MapNetworkError(err, "brevo")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.MapHTTPError(resp.StatusCode, string(body), "brevo")
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapWithProvider(errors.CodeDispatchFailed, errors.CategoryDispatch,
			"decode brevo response", "brevo", err)
	}
	return nil
}

func firstRecommendation(risk *missive.DeliveryRisk, fallback string) string {
	for _, rec := range risk.Recommendations {
		if rec != "" {
			return rec
		}
	}
	return fallback
}

var (
	_ provider.EmailSender           = (*Provider)(nil)
	_ provider.SMSSender             = (*Provider)(nil)
	_ provider.EmailRiskCalculator   = (*Provider)(nil)
	_ provider.SMSRiskCalculator     = (*Provider)(nil)
	_ provider.EmailServiceInspector = (*Provider)(nil)
	_ provider.SMSServiceInspector   = (*Provider)(nil)
)
