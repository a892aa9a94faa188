package missive

// Status represents the lifecycle state of a missive.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// StatusFromEvent maps a raw provider event name to a Status. Unknown
// events map to the empty status.
func StatusFromEvent(event string) Status {
	switch event {
	case "delivered":
		return StatusDelivered
	case "opened", "clicked", "read":
		return StatusRead
	case "bounced", "failed", "rejected", "dropped":
		return StatusFailed
	default:
		return ""
	}
}

// Terminal reports whether the status cannot change anymore.
func (s Status) Terminal() bool {
	return s == StatusRead || s == StatusFailed || s == StatusCanceled
}
