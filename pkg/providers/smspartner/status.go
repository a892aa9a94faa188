package smspartner

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kart-io/missivehub/pkg/provider"
)

type smsAccountResponse struct {
	apiResponse
	Credits struct {
		CreditSMS    float64 `json:"creditSms"`
		CreditSMSECO float64 `json:"creditSmsECO"`
		CreditHLR    float64 `json:"creditHlr"`
		Solde        float64 `json:"solde"`
		Currency     string  `json:"currency"`
		ToSend       int64   `json:"toSend"`
	} `json:"credits"`
}

// SMSServiceInfo queries the SMS Partner account endpoint for remaining
// credits, with warnings below the documented comfort thresholds.
func (p *Provider) SMSServiceInfo(ctx context.Context) (*provider.ServiceInfo, error) {
	if p.apiKey() == "" {
		return &provider.ServiceInfo{
			IsAvailable: provider.Bool(false),
			Warnings:    []string{"SMSPARTNER_API_KEY missing"},
		}, nil
	}

	params := url.Values{"apiKey": {p.apiKey()}}
	var response smsAccountResponse
	if err := p.getJSON(ctx, apiBaseSMS+"/me", params, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return &provider.ServiceInfo{
			IsAvailable: provider.Bool(false),
			Warnings:    []string{errorMessageFor(response.Code, response.Message)},
		}, nil
	}

	total := response.Credits.CreditSMS + response.Credits.CreditSMSECO
	info := &provider.ServiceInfo{
		IsAvailable: provider.Bool(total > 0),
		Credits:     &provider.Credits{Remaining: total, Unit: "sms"},
		Limits: map[string]int64{
			"to_send": response.Credits.ToSend,
		},
		Details: map[string]string{
			"credit_classic": fmt.Sprint(response.Credits.CreditSMS),
			"credit_eco":     fmt.Sprint(response.Credits.CreditSMSECO),
			"credit_hlr":     fmt.Sprint(response.Credits.CreditHLR),
			"balance":        fmt.Sprintf("%.2f %s", response.Credits.Solde, response.Credits.Currency),
		},
	}
	switch {
	case total <= criticalThresholdSMS:
		info.Warnings = append(info.Warnings, fmt.Sprintf("critical SMS credits: %.0f messages remaining", total))
	case total <= warningThresholdSMS:
		info.Warnings = append(info.Warnings, fmt.Sprintf("low SMS credits: %.0f messages remaining", total))
	}
	return info, nil
}

type emailAccountResponse struct {
	apiResponse
	Account struct {
		EmailCredits *float64 `json:"emailCredits"`
	} `json:"account"`
	Credits struct {
		CreditMail *float64 `json:"creditMail"`
	} `json:"credits"`
}

// EmailServiceInfo queries the Mail Partner account endpoint. The API
// has answered with two shapes over time, so both are accepted.
func (p *Provider) EmailServiceInfo(ctx context.Context) (*provider.ServiceInfo, error) {
	if p.apiKey() == "" {
		return &provider.ServiceInfo{
			IsAvailable: provider.Bool(false),
			Warnings:    []string{"SMSPARTNER_API_KEY missing"},
		}, nil
	}

	params := url.Values{"apiKey": {p.apiKey()}}
	var response emailAccountResponse
	if err := p.getJSON(ctx, apiBaseEmail+"/me", params, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return &provider.ServiceInfo{
			IsAvailable: provider.Bool(false),
			Warnings:    []string{errorMessageFor(response.Code, response.Message)},
		}, nil
	}

	credits := response.Account.EmailCredits
	if credits == nil {
		credits = response.Credits.CreditMail
	}
	info := &provider.ServiceInfo{IsAvailable: provider.Bool(false)}
	if credits != nil {
		info.Credits = &provider.Credits{Remaining: *credits, Unit: "emails"}
		info.IsAvailable = provider.Bool(*credits > 0)
	}
	return info, nil
}
