package subscription

// Status mirrors the subscription status reported by Stripe.
type Status string

const (
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusPaused            Status = "paused"
)

var liveStatuses = map[Status]bool{
	StatusIncomplete: true,
	StatusActive:     true,
	StatusTrialing:   true,
	StatusPastDue:    true,
}

// LiveStatuses lists the statuses that still occupy the account's single subscription slot.
func LiveStatuses() []Status {
	return []Status{StatusIncomplete, StatusActive, StatusTrialing, StatusPastDue}
}

// IsLive reports whether a subscription in this status has not been finalized as failed or canceled.
func (s Status) IsLive() bool {
	return liveStatuses[s]
}

// AwaitsPayment reports whether the first invoice is still waiting for the customer to pay.
func (s Status) AwaitsPayment() bool {
	return s == StatusIncomplete
}

// Expired is set by Stripe when the first invoice was not paid within 23 hours.
func (s Status) Expired() bool {
	return s == StatusIncompleteExpired
}
