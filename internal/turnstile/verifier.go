// Package turnstile verifies Cloudflare Turnstile tokens server-side.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultVerifyURL is the public siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// UnknownReason is reported when the provider gives no usable error codes.
const UnknownReason = "unknown"

const maxResponseBytes = 64 << 10

// ErrMissingSecret is returned before any network call when no secret is configured.
var ErrMissingSecret = errors.New("turnstile secret not configured")

// TransportError covers failed calls and non-2xx answers from the verify endpoint.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("turnstile verify transport: %v", e.Err)
	}
	return fmt.Sprintf("turnstile verify transport: status=%d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError means the provider answered but did not accept the token.
type RejectedError struct {
	Codes []string
}

func (e *RejectedError) Error() string {
	return "turnstile rejected token: " + e.Reason()
}

// Reason joins the provider error codes for logs and client error codes.
func (e *RejectedError) Reason() string {
	if len(e.Codes) == 0 {
		return UnknownReason
	}
	return strings.Join(e.Codes, ",")
}

// Outcome is the accepted verification. It is only returned with a nil error.
type Outcome struct {
	Accepted    bool
	Hostname    string
	Action      string
	ChallengeTS string
	Raw         json.RawMessage
}

// Config wires the verifier to its secret and endpoint.
type Config struct {
	Secret     string
	VerifyURL  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Verifier performs single-attempt siteverify calls.
type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	logger    *zap.Logger
}

// New builds a Verifier. An empty VerifyURL uses DefaultVerifyURL.
func New(cfg Config, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	verifyURL := strings.TrimSpace(cfg.VerifyURL)
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	return &Verifier{
		secret:    strings.TrimSpace(cfg.Secret),
		verifyURL: verifyURL,
		client:    client,
		logger:    logger,
	}
}

type siteverifyResponse struct {
	Success     bool            `json:"success"`
	ErrorCodes  json.RawMessage `json:"error-codes"`
	ChallengeTS string          `json:"challenge_ts"`
	Hostname    string          `json:"hostname"`
	Action      string          `json:"action"`
}

// Verify posts token (and remoteIP when known) to the verify endpoint.
// Errors are ErrMissingSecret, *TransportError or *RejectedError.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (Outcome, error) {
	if v.secret == "" {
		return Outcome{}, ErrMissingSecret
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if ip := strings.TrimSpace(remoteIP); ip != "" && ip != "unknown" {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Outcome{}, &TransportError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := v.client.Do(req)
	if err != nil {
		return Outcome{}, &TransportError{Err: err}
	}
	defer func() {
		if cerr := res.Body.Close(); cerr != nil {
			v.logger.Debug("close siteverify body", zap.Error(cerr))
		}
	}()

	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Outcome{}, &TransportError{StatusCode: res.StatusCode}
	}
	if readErr != nil {
		return Outcome{}, &TransportError{StatusCode: res.StatusCode, Err: fmt.Errorf("read body: %w", readErr)}
	}

	var parsed siteverifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		v.logger.Warn("siteverify returned malformed JSON", zap.Error(err))
		return Outcome{}, &RejectedError{}
	}
	if !parsed.Success {
		return Outcome{}, &RejectedError{Codes: parseCodes(parsed.ErrorCodes)}
	}
	return Outcome{
		Accepted:    true,
		Hostname:    parsed.Hostname,
		Action:      parsed.Action,
		ChallengeTS: parsed.ChallengeTS,
		Raw:         json.RawMessage(body),
	}, nil
}

func parseCodes(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil
	}
	out := codes[:0]
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
