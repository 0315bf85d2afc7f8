package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const resendEndpoint = "https://api.resend.com/emails"

// EmailService sends transactional email through the Resend HTTP API.
type EmailService struct {
	apiKey    string
	from      string
	endpoint  string
	client    *http.Client
	templates *template.Template
	logger    *zap.Logger
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

type TrialStartedData struct {
	Username string
	PlanName string
	TrialEnd time.Time
}

type PaymentActionRequiredData struct {
	Username   string
	PlanName   string
	InvoiceURL string
}

type TrialEndingData struct {
	Username string
	PlanName string
	TrialEnd time.Time
}

type Option func(*EmailService)

// WithEndpoint overrides the Resend API URL.
func WithEndpoint(url string) Option {
	return func(s *EmailService) { s.endpoint = url }
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *EmailService) { s.client = client }
}

func NewEmailService(apiKey, from string, logger *zap.Logger, opts ...Option) (*EmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %w", err)
	}

	s := &EmailService{
		apiKey:    apiKey,
		from:      from,
		endpoint:  resendEndpoint,
		client:    &http.Client{Timeout: 10 * time.Second},
		templates: templates,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *EmailService) sendTemplateEmail(ctx context.Context, to, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	jsonData, err := json.Marshal(EmailData{
		From:    s.from,
		To:      to,
		Subject: subjects[templateName],
		Html:    body.String(),
	})
	if err != nil {
		return fmt.Errorf("error marshaling email data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("resend API error: status %d: %s", resp.StatusCode, string(respBody))
	}

	s.logger.Info("email sent",
		zap.String("template", templateName),
		zap.String("to", to),
	)
	return nil
}

func (s *EmailService) TrialStarted(ctx context.Context, to, username, planName string, trialEnd time.Time) error {
	data := TrialStartedData{
		Username: username,
		PlanName: planName,
		TrialEnd: trialEnd,
	}
	return s.sendTemplateEmail(ctx, to, mailTrialStarted, data)
}

func (s *EmailService) PaymentActionRequired(ctx context.Context, to, username, planName, invoiceURL string) error {
	data := PaymentActionRequiredData{
		Username:   username,
		PlanName:   planName,
		InvoiceURL: invoiceURL,
	}
	return s.sendTemplateEmail(ctx, to, mailPaymentActionRequired, data)
}

func (s *EmailService) TrialEnding(ctx context.Context, to, username, planName string, trialEnd time.Time) error {
	data := TrialEndingData{
		Username: username,
		PlanName: planName,
		TrialEnd: trialEnd,
	}
	return s.sendTemplateEmail(ctx, to, mailTrialEnding, data)
}
