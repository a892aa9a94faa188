package missive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New(ChannelEmail)
	require.NotNil(t, m)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, ChannelEmail, m.ChannelType)
	assert.Equal(t, StatusPending, m.Status)
	assert.False(t, m.CreatedAt.IsZero())

	assert.NotEqual(t, m.ID, New(ChannelEmail).ID)
}

func TestCanSend(t *testing.T) {
	m := New(ChannelSMS)
	assert.True(t, m.CanSend())

	m.Status = StatusFailed
	assert.True(t, m.CanSend(), "failed missives may be retried")

	m.Status = StatusSent
	assert.False(t, m.CanSend())

	m.Status = StatusPending
	m.ChannelType = ChannelType("CARRIER_PIGEON")
	assert.False(t, m.CanSend())

	var nilMissive *Missive
	assert.False(t, nilMissive.CanSend())
}

func TestOptions(t *testing.T) {
	m := New(ChannelEmail)

	_, ok := m.Option("sandbox")
	assert.False(t, ok)

	m.SetOption("sandbox", "true")
	v, ok := m.Option("sandbox")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestDestinationOf(t *testing.T) {
	m := New(ChannelSMS)
	m.RecipientMeta = map[string]string{"country_code": "BE", "region": "Europe"}
	m.SetOption("country", "FR")

	// Provider options win over recipient metadata.
	d := DestinationOf(m)
	assert.Equal(t, "FR", d.Country)
	assert.Equal(t, "Europe", d.Continent)

	m.ProviderOptions = nil
	d = DestinationOf(m)
	assert.Equal(t, "BE", d.Country)

	assert.Equal(t, Destination{}, DestinationOf(nil))
}

func TestStatusFromEvent(t *testing.T) {
	cases := map[string]Status{
		"delivered": StatusDelivered,
		"opened":    StatusRead,
		"clicked":   StatusRead,
		"read":      StatusRead,
		"bounced":   StatusFailed,
		"failed":    StatusFailed,
		"rejected":  StatusFailed,
		"dropped":   StatusFailed,
		"queued":    "",
	}
	for event, want := range cases {
		assert.Equal(t, want, StatusFromEvent(event), event)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusRead.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusSent.Terminal())
	assert.False(t, StatusDelivered.Terminal())
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevelFor(0))
	assert.Equal(t, RiskLow, RiskLevelFor(24))
	assert.Equal(t, RiskMedium, RiskLevelFor(25))
	assert.Equal(t, RiskMedium, RiskLevelFor(49))
	assert.Equal(t, RiskHigh, RiskLevelFor(50))
	assert.Equal(t, RiskHigh, RiskLevelFor(74))
	assert.Equal(t, RiskCritical, RiskLevelFor(75))
	assert.Equal(t, RiskCritical, RiskLevelFor(100))
}

func TestNewDeliveryRisk(t *testing.T) {
	risk := NewDeliveryRisk(130, map[string]string{"recipient": "missing"}, "add a recipient")
	assert.Equal(t, 100, risk.Score)
	assert.Equal(t, RiskCritical, risk.Level)
	assert.False(t, risk.ShouldSend)
	assert.Equal(t, []string{"add a recipient"}, risk.Recommendations)

	assert.Equal(t, 0, NewDeliveryRisk(-5, nil).Score)

	assert.True(t, NewDeliveryRisk(69, nil).ShouldSend)
	assert.False(t, NewDeliveryRisk(70, nil).ShouldSend)
}

func TestDispatchResultConstructors(t *testing.T) {
	ok := Succeeded("ext-1")
	assert.True(t, ok.Success)
	assert.Equal(t, "ext-1", ok.ExternalID)

	bad := Failed("boom")
	assert.False(t, bad.Success)
	assert.Equal(t, "boom", bad.Error)
}

func TestChannelValid(t *testing.T) {
	for _, c := range Channels {
		assert.True(t, c.Valid(), c.String())
	}
	assert.False(t, ChannelType("FAX").Valid())
}
