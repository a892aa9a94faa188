package missive

// DispatchResult is the structured outcome of a single channel operation.
type DispatchResult struct {
	Success    bool           `json:"success"`
	ExternalID string         `json:"external_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// Succeeded creates a successful result carrying the provider's external ID.
func Succeeded(externalID string) *DispatchResult {
	return &DispatchResult{Success: true, ExternalID: externalID}
}

// Failed creates a failed result with a human-readable reason.
func Failed(reason string) *DispatchResult {
	return &DispatchResult{Success: false, Error: reason}
}

// DeliveryStatus is the answer to a delivery-status lookup for a
// previously dispatched missive.
type DeliveryStatus struct {
	Status     Status         `json:"status"`
	ExternalID string         `json:"external_id,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// RiskLevel buckets a delivery risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelFor applies the standard score thresholds.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskMedium
	case score < 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// DeliveryRisk is a provider-computed estimate of the likelihood a
// dispatched missive will fail or be rejected.
type DeliveryRisk struct {
	Score           int               `json:"risk_score"`
	Level           RiskLevel         `json:"risk_level"`
	Factors         map[string]string `json:"factors,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	ShouldSend      bool              `json:"should_send"`
}

// NewDeliveryRisk builds a risk assessment from a raw score, clamping it
// to [0,100] and applying the should-send cutoff.
func NewDeliveryRisk(score int, factors map[string]string, recommendations ...string) *DeliveryRisk {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return &DeliveryRisk{
		Score:           score,
		Level:           RiskLevelFor(score),
		Factors:         factors,
		Recommendations: recommendations,
		ShouldSend:      score < 70,
	}
}
