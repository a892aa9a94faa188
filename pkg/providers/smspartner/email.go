package smspartner

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kart-io/missivehub/pkg/missive"
)

type emailParty struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type emailSendPayload struct {
	APIKey      string       `json:"apiKey"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
	From        emailParty   `json:"from"`
	To          []emailParty `json:"to"`
	ReplyTo     *emailParty  `json:"replyTo,omitempty"`
	Tag         string       `json:"tag,omitempty"`
}

type emailSendResponse struct {
	apiResponse
	MessageID any     `json:"messageId"`
	NbMail    int     `json:"nbMail"`
	Cost      float64 `json:"cost"`
	Currency  string  `json:"currency"`
}

// SendEmail dispatches an email through Mail Partner. The sender
// identity comes from the optional DEFAULT_FROM_EMAIL and
// DEFAULT_FROM_NAME config keys.
func (p *Provider) SendEmail(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error) {
	if m.RecipientEmail == "" {
		return missive.Failed("recipient email missing"), nil
	}
	if p.apiKey() == "" {
		return missive.Failed("SMSPARTNER_API_KEY missing"), nil
	}

	fromEmail := p.RawValue("DEFAULT_FROM_EMAIL")
	if fromEmail == "" {
		fromEmail = "noreply@example.com"
	}
	content := m.HTMLBody
	if content == "" {
		content = m.Body
	}

	payload := emailSendPayload{
		APIKey:      p.apiKey(),
		Subject:     m.Subject,
		HTMLContent: content,
		From:        emailParty{Email: fromEmail, Name: p.RawValue("DEFAULT_FROM_NAME")},
		To:          []emailParty{{Email: m.RecipientEmail}},
	}
	if replyTo, ok := m.Option("reply_to"); ok && replyTo != "" {
		payload.ReplyTo = &emailParty{Email: replyTo}
	}
	if tag, ok := m.Option("tag"); ok && tag != "" {
		// The API caps tags at 20 lowercase characters without spaces.
		tag = strings.ReplaceAll(strings.ToLower(tag), " ", "")
		if len(tag) > 20 {
			tag = tag[:20]
		}
		payload.Tag = tag
	}

	var response emailSendResponse
	if err := p.postJSON(ctx, apiBaseEmail+"/send", payload, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return missive.Failed(errorMessageFor(response.Code, response.Message)), nil
	}

	result := missive.Succeeded(fmt.Sprint(response.MessageID))
	result.Raw = map[string]any{
		"nb_mail":  response.NbMail,
		"cost":     response.Cost,
		"currency": response.Currency,
	}
	return result, nil
}

// CancelEmail cancels a scheduled email by its external ID.
func (p *Provider) CancelEmail(ctx context.Context, externalID string) (*missive.DispatchResult, error) {
	if externalID == "" {
		return missive.Failed("missing external_id"), nil
	}
	if p.apiKey() == "" {
		return missive.Failed("SMSPARTNER_API_KEY missing"), nil
	}

	params := url.Values{
		"apiKey":    {p.apiKey()},
		"messageId": {externalID},
	}
	var response apiResponse
	if err := p.getJSON(ctx, apiBaseEmail+"/message-cancel", params, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return missive.Failed(errorMessageFor(response.Code, response.Message)), nil
	}
	return missive.Succeeded(externalID), nil
}
