package model

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Password{},
		&PaymentMethod{},
		&Plan{},
		&Product{},
		&Subscription{},
		&Invoice{},
		&WebhookEvent{},
		&LoginHistory{},
	}
}
