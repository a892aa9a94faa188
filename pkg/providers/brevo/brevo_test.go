package brevo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/missive"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/registry"
)

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New(provider.Config{
		"BREVO_API_KEY":            "test-key",
		"BREVO_SMS_SENDER":         "Acme",
		"BREVO_DEFAULT_FROM_EMAIL": "noreply@acme.example",
		"BREVO_BASE_URL":           baseURL,
	})
	require.NoError(t, err)
	return p.(*Provider)
}

func emailMissive() *missive.Missive {
	m := missive.New(missive.ChannelEmail)
	m.RecipientEmail = "jo@example.com"
	m.Subject = "Hello"
	m.Body = "plain body"
	m.HTMLBody = "<p>html body</p>"
	return m
}

func TestRegistration(t *testing.T) {
	reg, err := registry.Resolve(Identifier)
	require.NoError(t, err)
	assert.Equal(t, "brevo", reg.Name())
	assert.True(t, reg.Descriptor.Supports(missive.ChannelEmail))
	assert.True(t, reg.Descriptor.Supports(missive.ChannelSMS))
}

func TestSendEmail(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/smtp/email", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]string{"messageId": "msg-42"})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	m := emailMissive()
	result, err := p.SendEmail(context.Background(), m)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "msg-42", result.ExternalID)

	sender := captured["sender"].(map[string]any)
	assert.Equal(t, "noreply@acme.example", sender["email"])
	assert.Equal(t, "Hello", captured["subject"])
	assert.Equal(t, []any{"missive_" + m.ID}, captured["tags"])
}

func TestSendEmailFromOption(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]string{"messageId": "msg-1"})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	m := emailMissive()
	m.SetOption("from_email", "billing@acme.example")
	_, err := p.SendEmail(context.Background(), m)
	require.NoError(t, err)

	sender := captured["sender"].(map[string]any)
	assert.Equal(t, "billing@acme.example", sender["email"])
}

func TestSendEmailBlockedByRisk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("a risk-blocked send must not reach the API")
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	m := emailMissive()
	m.RecipientEmail = ""

	result, err := p.SendEmail(context.Background(), m)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "recipient email missing")
}

func TestSendEmailHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	_, err := p.SendEmail(context.Background(), emailMissive())
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnauthorized, errors.CodeOf(err))
}

func TestSendSMS(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactionalSMS/sms", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]string{"reference": "sms-7"})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	m := missive.New(missive.ChannelSMS)
	m.RecipientPhone = "+33612345678"
	m.Body = "short message"

	result, err := p.SendSMS(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "sms-7", result.ExternalID)
	assert.Equal(t, "Acme", captured["sender"])
	assert.Equal(t, "transactional", captured["type"])
}

func TestCalculateEmailDeliveryRisk(t *testing.T) {
	p := newTestProvider(t, "")

	m := emailMissive()
	risk := p.CalculateEmailDeliveryRisk(m)
	assert.True(t, risk.ShouldSend)
	assert.Equal(t, missive.RiskLow, risk.Level)

	m.RecipientEmail = "not-an-address"
	risk = p.CalculateEmailDeliveryRisk(m)
	assert.Equal(t, 50, risk.Score)
	assert.Equal(t, "invalid", risk.Factors["email_validation"])

	m.RecipientEmail = ""
	risk = p.CalculateEmailDeliveryRisk(m)
	assert.Equal(t, 100, risk.Score)
	assert.False(t, risk.ShouldSend)

	assert.Equal(t, 100, p.CalculateEmailDeliveryRisk(nil).Score)
}

func TestCalculateEmailDeliveryRiskMissingConfig(t *testing.T) {
	p, err := New(provider.Config{"BREVO_API_KEY": "k"})
	require.NoError(t, err)
	risk := p.(*Provider).CalculateEmailDeliveryRisk(emailMissive())
	assert.Equal(t, 80, risk.Score)
	assert.False(t, risk.ShouldSend)
}

func TestCalculateSMSDeliveryRisk(t *testing.T) {
	p := newTestProvider(t, "")

	m := missive.New(missive.ChannelSMS)
	m.RecipientPhone = "+33612345678"
	assert.True(t, p.CalculateSMSDeliveryRisk(m).ShouldSend)

	m.RecipientPhone = "0612345678"
	risk := p.CalculateSMSDeliveryRisk(m)
	assert.Equal(t, 30, risk.Score)
	assert.Equal(t, "not E.164", risk.Factors["phone_format"])

	noKey, err := New(provider.Config{})
	require.NoError(t, err)
	assert.Equal(t, 100, noKey.(*Provider).CalculateSMSDeliveryRisk(m).Score)
}

func TestEmailServiceInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"plan": []map[string]any{
				{"type": "smsCredits", "credits": 12.0},
				{"type": "emailCredits", "credits": 900.0},
			},
		})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)
	info, err := p.EmailServiceInfo(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info.Credits)
	assert.Equal(t, 900.0, info.Credits.Remaining)
	assert.Equal(t, "emailCredits", info.Credits.Unit)

	smsInfo, err := p.SMSServiceInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.0, smsInfo.Credits.Remaining)
}

func TestServiceInfoWithoutKey(t *testing.T) {
	p, err := New(provider.Config{})
	require.NoError(t, err)
	info, err := p.(*Provider).EmailServiceInfo(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info.IsAvailable)
	assert.False(t, *info.IsAvailable)
}

func TestServiceStatus(t *testing.T) {
	p := newTestProvider(t, "")
	status := p.ServiceStatus()
	assert.Equal(t, "configured", status.Status)
	assert.Contains(t, status.Services, "sms")
	assert.NotEmpty(t, status.Details["api_docs"])
	assert.False(t, status.LastCheck.IsZero())
}
