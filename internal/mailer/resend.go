// Package mailer delivers transactional email through the Resend API.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ErrMissingConfig is matched by every *ConfigError.
var ErrMissingConfig = errors.New("email delivery not configured")

// ConfigError lists the settings that are absent.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("email delivery not configured: missing %s", strings.Join(e.Missing, ", "))
}

// Is reports ErrMissingConfig equivalence.
func (e *ConfigError) Is(target error) bool { return target == ErrMissingConfig }

// DeliveryError wraps a provider failure. Its text is for logs only.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("email delivery failed: %v", e.Err) }

func (e *DeliveryError) Unwrap() error { return e.Err }

// Message is a plain-text notification.
type Message struct {
	Subject string
	Text    string
	ReplyTo string
}

// Result reports a delivery accepted by the provider.
type Result struct {
	Delivered bool
	MessageID string
}

// Config carries provider credentials and addresses.
type Config struct {
	APIKey     string
	From       string
	To         string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Pacer, when set, is waited on before each provider call.
	Pacer Pacer
}

// Pacer blocks until a call for key may proceed.
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

const pacerKey = "resend"

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Dispatcher sends one email per call; it never retries.
type Dispatcher struct {
	emails emailSender
	pacer  Pacer
	apiKey string
	from   string
	to     string
	logger *zap.Logger
}

// New builds a Dispatcher. Missing credentials are reported by CheckConfig and Send.
func New(cfg Config, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	client := resend.NewCustomClient(httpClient, strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &Dispatcher{
		emails: client.Emails,
		pacer:  cfg.Pacer,
		apiKey: strings.TrimSpace(cfg.APIKey),
		from:   strings.TrimSpace(cfg.From),
		to:     strings.TrimSpace(cfg.To),
		logger: logger,
	}, nil
}

// CheckConfig returns a *ConfigError when the API key or an address is absent.
func (d *Dispatcher) CheckConfig() error {
	var missing []string
	if d.apiKey == "" {
		missing = append(missing, "api key")
	}
	if d.to == "" {
		missing = append(missing, "recipient address")
	}
	if d.from == "" {
		missing = append(missing, "sender address")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Send delivers msg to the configured recipient.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (Result, error) {
	if err := d.CheckConfig(); err != nil {
		return Result{}, err
	}

	req := &resend.SendEmailRequest{
		From:    d.from,
		To:      []string{d.to},
		Subject: msg.Subject,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}
	if d.pacer != nil {
		if err := d.pacer.Wait(ctx, pacerKey); err != nil {
			return Result{}, &DeliveryError{Err: err}
		}
	}
	sent, err := d.emails.SendWithContext(ctx, req)
	if err != nil {
		return Result{}, &DeliveryError{Err: err}
	}

	res := Result{Delivered: true}
	if sent != nil {
		res.MessageID = sent.Id
	}
	d.logger.Debug("email accepted by provider", zap.String("message_id", res.MessageID))
	return res, nil
}
