package smspartner

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kart-io/missivehub/pkg/missive"
)

// smsStatusMapping translates SMS Partner status labels to missive
// events.
var smsStatusMapping = map[string]string{
	"Delivered":     "delivered",
	"Not delivered": "failed",
	"Waiting":       "pending",
	"Sent":          "sent",
}

type smsSendPayload struct {
	APIKey       string `json:"apiKey"`
	PhoneNumbers string `json:"phoneNumbers"`
	Message      string `json:"message"`
	Sender       string `json:"sender"`
	Gamme        int    `json:"gamme"`
	Tag          string `json:"tag,omitempty"`
	WebhookURL   string `json:"webhookUrl,omitempty"`
	URLDLR       string `json:"urlDlr,omitempty"`
	IsStopSMS    *int   `json:"isStopSms,omitempty"`
	IsUnicode    *int   `json:"isUnicode,omitempty"`
	Sandbox      *int   `json:"sandbox,omitempty"`
}

type smsSendResponse struct {
	apiResponse
	MessageID any     `json:"message_id"`
	Cost      float64 `json:"cost"`
	Currency  string  `json:"currency"`
	Segments  int     `json:"nb_sms"`
}

// SendSMS dispatches an SMS. Per-missive provider options understood:
// sender, tag, webhook_url, priority (low/normal/high), is_commercial,
// is_unicode, sandbox.
func (p *Provider) SendSMS(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error) {
	if risk := p.CalculateSMSDeliveryRisk(m); !risk.ShouldSend {
		return missive.Failed(riskReason(risk, "SMS risk assessment failed")), nil
	}
	if m.RecipientPhone == "" {
		return missive.Failed("recipient phone missing"), nil
	}

	sender := p.ConfigValue("SMSPARTNER_SENDER")
	if sender == "" {
		sender = "Missive"
	}
	if v, ok := m.Option("sender"); ok && v != "" {
		sender = v
	}

	payload := smsSendPayload{
		APIKey:       p.apiKey(),
		PhoneNumbers: m.RecipientPhone,
		Message:      m.Body,
		Sender:       sender,
		Gamme:        1,
		Tag:          "missive_" + m.ID,
	}
	if tag, ok := m.Option("tag"); ok && tag != "" {
		payload.Tag = tag
	}
	if webhook := p.webhookURL(m); webhook != "" {
		payload.WebhookURL = webhook
		payload.URLDLR = webhook
	}
	if priority, ok := m.Option("priority"); ok {
		payload.Gamme = map[string]int{"low": 2, "normal": 1, "high": 3}[priority]
		if payload.Gamme == 0 {
			payload.Gamme = 1
		}
	}
	payload.IsStopSMS = optionFlag(m, "is_commercial")
	payload.IsUnicode = optionFlag(m, "is_unicode")
	payload.Sandbox = optionFlag(m, "sandbox")

	var response smsSendResponse
	if err := p.postJSON(ctx, apiBaseSMS+"/send", payload, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return missive.Failed(errorMessageFor(response.Code, response.Message)), nil
	}

	result := missive.Succeeded(fmt.Sprint(response.MessageID))
	result.Raw = map[string]any{
		"cost":     response.Cost,
		"currency": response.Currency,
		"segments": response.Segments,
	}
	return result, nil
}

// CancelSMS cancels a scheduled SMS by its external ID.
func (p *Provider) CancelSMS(ctx context.Context, externalID string) (*missive.DispatchResult, error) {
	if externalID == "" {
		return missive.Failed("missing external_id"), nil
	}
	if p.apiKey() == "" {
		return missive.Failed("SMSPARTNER_API_KEY missing"), nil
	}

	params := url.Values{"apiKey": {p.apiKey()}}
	var response apiResponse
	if err := p.deleteJSON(ctx, apiBaseSMS+"/message-cancel/"+url.PathEscape(externalID), params, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return missive.Failed(errorMessageFor(response.Code, response.Message)), nil
	}
	return missive.Succeeded(externalID), nil
}

type smsStatusResponse struct {
	apiResponse
	Statut      string  `json:"statut"`
	Date        string  `json:"date"`
	Cost        float64 `json:"cost"`
	Currency    string  `json:"currency"`
	CountryCode string  `json:"countryCode"`
	StopSMS     bool    `json:"stopSms"`
	Number      string  `json:"number"`
}

// CheckSMSDeliveryStatus queries the message-status endpoint. The phone
// number is required by the API, so callers pass "externalID:phone" or
// just the external ID when the number is unknown.
func (p *Provider) CheckSMSDeliveryStatus(ctx context.Context, externalID string) (*missive.DeliveryStatus, error) {
	id, phone := externalID, ""
	if idx := strings.IndexByte(externalID, ':'); idx >= 0 {
		id, phone = externalID[:idx], externalID[idx+1:]
	}
	if id == "" {
		return &missive.DeliveryStatus{Detail: "missing external_id"}, nil
	}
	if p.apiKey() == "" {
		return &missive.DeliveryStatus{Detail: "SMSPARTNER_API_KEY missing"}, nil
	}

	params := url.Values{
		"apiKey":    {p.apiKey()},
		"messageId": {id},
	}
	if phone != "" {
		params.Set("phoneNumber", phone)
	}

	var response smsStatusResponse
	if err := p.getJSON(ctx, apiBaseSMS+"/message-status", params, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return &missive.DeliveryStatus{
			ExternalID: id,
			Detail:     errorMessageFor(response.Code, response.Message),
		}, nil
	}

	event := smsStatusMapping[response.Statut]
	return &missive.DeliveryStatus{
		Status:     missive.StatusFromEvent(event),
		ExternalID: id,
		Detail:     response.Statut,
		Raw: map[string]any{
			"date":         response.Date,
			"cost":         response.Cost,
			"currency":     response.Currency,
			"country_code": response.CountryCode,
			"stop_sms":     response.StopSMS,
			"number":       response.Number,
		},
	}, nil
}

// CalculateSMSDeliveryRisk scores an SMS send without network I/O.
func (p *Provider) CalculateSMSDeliveryRisk(m *missive.Missive) *missive.DeliveryRisk {
	if m == nil {
		return missive.NewDeliveryRisk(100, nil, "no missive to analyze")
	}

	score := 0
	factors := map[string]string{}
	var recommendations []string

	if p.apiKey() == "" {
		return missive.NewDeliveryRisk(100, factors, "missing SMSPARTNER_API_KEY in configuration")
	}
	if m.RecipientPhone == "" {
		score = 100
		recommendations = append(recommendations, "recipient phone missing")
	} else if !strings.HasPrefix(m.RecipientPhone, "+") {
		score += 30
		factors["phone_format"] = "not E.164"
		recommendations = append(recommendations, "recipient phone should be in E.164 format")
	}
	if len(m.Body) > 1600 {
		score += 20
		factors["length"] = "over 10 segments"
		recommendations = append(recommendations, "message exceeds 10 SMS segments")
	}

	return missive.NewDeliveryRisk(score, factors, recommendations...)
}

// webhookURL resolves the delivery-report URL: per-missive option first,
// then the raw configuration.
func (p *Provider) webhookURL(m *missive.Missive) string {
	if v, ok := m.Option("webhook_url"); ok && v != "" {
		return v
	}
	return p.RawValue("SMSPARTNER_WEBHOOK_URL")
}

func riskReason(risk *missive.DeliveryRisk, fallback string) string {
	for _, rec := range risk.Recommendations {
		if rec != "" {
			return rec
		}
	}
	return fallback
}

// optionFlag maps a boolean-ish provider option to the API's 0/1 flags,
// nil when the option is absent.
func optionFlag(m *missive.Missive, key string) *int {
	v, ok := m.Option(key)
	if !ok {
		return nil
	}
	flag := 0
	if v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") {
		flag = 1
	}
	return &flag
}
