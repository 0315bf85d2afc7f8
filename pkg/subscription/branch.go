package subscription

// Branch is the checkout path the account is allowed to take.
type Branch string

const (
	// BranchCompletePayment: a live subscription is stuck in incomplete and its
	// pending payment must be finished with the stored client secret.
	BranchCompletePayment Branch = "complete_payment"
	// BranchAlreadySubscribed: a live subscription exists, new checkout is rejected.
	BranchAlreadySubscribed Branch = "already_subscribed"
	// BranchFreeTrial: the account never trialed. Nothing is created until the
	// customer confirms with a payment method.
	BranchFreeTrial Branch = "free_trial"
	// BranchCharge: a new subscription is created and its first invoice charged.
	BranchCharge Branch = "charge"
)

// Live is the part of a live subscription the resolver looks at.
type Live struct {
	Status       Status
	ClientSecret string
}

// Decision is the resolved branch plus the secret to reuse, if any.
type Decision struct {
	Branch       Branch
	ClientSecret string
}

// Resolve picks the checkout branch for an account. live is nil when the
// account holds no live subscription. A non-live status passed in is treated
// as absent.
func Resolve(trialed bool, live *Live) Decision {
	if live != nil && live.Status.IsLive() {
		if live.Status.AwaitsPayment() {
			return Decision{Branch: BranchCompletePayment, ClientSecret: live.ClientSecret}
		}
		return Decision{Branch: BranchAlreadySubscribed}
	}
	if !trialed {
		return Decision{Branch: BranchFreeTrial}
	}
	return Decision{Branch: BranchCharge}
}

// CreatesSubscription reports whether confirming this branch creates a new
// subscription at the payment processor.
func (b Branch) CreatesSubscription() bool {
	return b == BranchFreeTrial || b == BranchCharge
}
