package email

import (
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	mailTrialStarted          = "trial_started.html"
	mailPaymentActionRequired = "payment_action_required.html"
	mailTrialEnding           = "trial_ending.html"
)

var subjects = map[string]string{
	mailTrialStarted:          "Your Deluxe free trial has started",
	mailPaymentActionRequired: "Action needed to complete your Deluxe payment",
	mailTrialEnding:           "Your Deluxe free trial ends soon",
}

var templateFuncs = template.FuncMap{
	// dates are shown in UTC, the zone Stripe bills in
	"date": func(t time.Time) string { return t.UTC().Format("02 Jan 2006") },
}

// parseTemplates fails when a mail kind has no template, so a renamed file
// is caught at startup rather than on the first send.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("mail").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	for name := range subjects {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("missing email template %s", name)
		}
	}
	return tmpl, nil
}
