package smspartner

import (
	"context"
	"fmt"

	"github.com/kart-io/missivehub/pkg/missive"
)

type voiceSendPayload struct {
	APIKey       string `json:"apiKey"`
	PhoneNumbers string `json:"phoneNumbers"`
	Lang         string `json:"lang"`
	Text         string `json:"text,omitempty"`
	TokenAudio   string `json:"tokenAudio,omitempty"`
	NotifyURL    string `json:"notifyUrl,omitempty"`
}

type voiceSendResponse struct {
	apiResponse
	CampaignID any     `json:"campaignId"`
	Duration   int     `json:"duration"`
	Cost       float64 `json:"cost"`
	Currency   string  `json:"currency"`
}

// SendVoiceCall reads the missive body as text-to-speech through Voice
// Partner. Provider options understood: lang (default fr), token_audio
// for a pre-uploaded recording, webhook_url.
func (p *Provider) SendVoiceCall(ctx context.Context, m *missive.Missive) (*missive.DispatchResult, error) {
	if m.RecipientPhone == "" {
		return missive.Failed("recipient phone missing"), nil
	}
	if p.apiKey() == "" {
		return missive.Failed("SMSPARTNER_API_KEY missing"), nil
	}

	payload := voiceSendPayload{
		APIKey:       p.apiKey(),
		PhoneNumbers: m.RecipientPhone,
		Lang:         "fr",
	}
	if lang, ok := m.Option("lang"); ok && lang != "" {
		payload.Lang = lang
	}
	if token, ok := m.Option("token_audio"); ok && token != "" {
		payload.TokenAudio = token
	} else {
		payload.Text = m.Body
	}
	payload.NotifyURL = p.webhookURL(m)

	var response voiceSendResponse
	if err := p.postJSON(ctx, apiBaseVoice+"/tts/send", payload, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return missive.Failed(errorMessageFor(response.Code, response.Message)), nil
	}

	result := missive.Succeeded(fmt.Sprint(response.CampaignID))
	result.Raw = map[string]any{
		"duration": response.Duration,
		"cost":     response.Cost,
		"currency": response.Currency,
	}
	return result, nil
}
