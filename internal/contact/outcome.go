package contact

import "net/http"

// State is the terminal state a submission ended in.
type State string

// Terminal states, in pipeline order.
const (
	StateRateLimited        State = "rate_limited"
	StateInvalidPayload     State = "invalid_payload"
	StateDropped            State = "dropped"
	StateMissingToken       State = "missing_token"
	StateVerificationFailed State = "verification_failed"
	StateMisconfigured      State = "misconfigured"
	StateDeliveryFailed     State = "delivery_failed"
	StateDelivered          State = "delivered"
	StateUnexpectedError    State = "unexpected_error"
)

// Class groups failures by who has to act on them.
type Class string

// Failure classes. ClassNone marks the success-shaped outcomes.
const (
	ClassNone          Class = "none"
	ClientError        Class = "client_error"
	ConfigurationError Class = "configuration_error"
	UpstreamError      Class = "upstream_error"
	UnexpectedError    Class = "unexpected_error"
)

// Error codes returned to the browser.
const (
	CodeRateLimited       = "rate_limited"
	CodeInvalidJSON       = "invalid_json"
	CodeMissingFields     = "missing_fields"
	CodeMissingToken      = "missing_turnstile_token"
	CodeTurnstileFailed   = "turnstile_failed"
	CodeMissingSecret     = "missing_turnstile_secret"
	CodeTurnstileHTTP     = "turnstile_verify_http_error"
	CodeMissingEmailEnv   = "missing_email_env"
	CodeResendError       = "resend_error"
	CodeServerErrorPrefix = "server_error"
)

// Response is the JSON body written for every outcome.
type Response struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Dropped  bool   `json:"dropped,omitempty"`
	ResendID string `json:"resendId,omitempty"`
}

// Outcome is the result of one Submit call. Err holds the internal cause and
// must only be logged.
type Outcome struct {
	ID       string
	State    State
	Class    Class
	Status   int
	Body     Response
	Err      error
	Detail   string
	Provider string
}

func failure(state State, class Class, status int, code string, err error) Outcome {
	return Outcome{
		State:  state,
		Class:  class,
		Status: status,
		Body:   Response{OK: false, Error: code},
		Err:    err,
	}
}

func dropped() Outcome {
	return Outcome{
		State:  StateDropped,
		Class:  ClassNone,
		Status: http.StatusOK,
		Body:   Response{OK: true, Dropped: true},
	}
}

func delivered(messageID string) Outcome {
	return Outcome{
		State:    StateDelivered,
		Class:    ClassNone,
		Status:   http.StatusOK,
		Body:     Response{OK: true, ResendID: messageID},
		Provider: messageID,
	}
}
