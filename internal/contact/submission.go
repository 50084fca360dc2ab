package contact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrInvalidJSON reports a body that is not a JSON object.
var ErrInvalidJSON = errors.New("contact payload is not a JSON object")

// ValidationError lists required fields that were empty after trimming.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Submission is the normalized form payload. It is never persisted.
type Submission struct {
	Name           string
	Email          string
	Message        string
	Subject        string
	Company        string // honeypot
	TurnstileToken string
}

// Decode reads a JSON object and coerces each known field to a trimmed string.
// Absent and null fields become empty strings.
func Decode(r io.Reader) (Submission, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: read body: %w", ErrInvalidJSON, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Submission{}, ErrInvalidJSON
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Submission{}, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return Submission{
		Name:           field(fields, "name"),
		Email:          field(fields, "email"),
		Message:        field(fields, "message"),
		Subject:        field(fields, "subject"),
		Company:        field(fields, "company"),
		TurnstileToken: field(fields, "turnstileToken"),
	}, nil
}

// Validate requires name, email and message. The address format is not checked.
func (s Submission) Validate() error {
	var missing []string
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if s.Email == "" {
		missing = append(missing, "email")
	}
	if s.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// IsSpam reports whether the honeypot field was filled in.
func (s Submission) IsSpam() bool {
	return s.Company != ""
}

func field(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(coerce(raw))
}

// coerce renders any JSON value the way a loosely typed form handler would
// stringify it: numbers and booleans verbatim, arrays comma-joined, objects as
// a fixed placeholder.
func coerce(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case 'n':
		return ""
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{':
		return "[object Object]"
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return ""
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = coerce(item)
		}
		return strings.Join(parts, ",")
	case 't', 'f':
		return string(raw)
	default:
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return string(raw)
	}
}
