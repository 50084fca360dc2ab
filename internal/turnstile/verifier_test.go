package turnstile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSiteverify(t *testing.T, status int, body string, check func(*http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestVerify_AcceptsToken(t *testing.T) {
	t.Parallel()

	formCh := make(chan map[string]string, 1)
	srv, _ := newSiteverify(t, http.StatusOK,
		`{"success":true,"hostname":"example.com","action":"contact","challenge_ts":"2026-01-26T12:00:00Z"}`,
		func(r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.NoError(t, r.ParseForm())
			formCh <- map[string]string{
				"secret":   r.PostForm.Get("secret"),
				"response": r.PostForm.Get("response"),
				"remoteip": r.PostForm.Get("remoteip"),
			}
		})

	v := New(Config{Secret: "s3cret", VerifyURL: srv.URL}, nil)
	out, err := v.Verify(context.Background(), "tok-1", "198.51.100.4")
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.Equal(t, "example.com", out.Hostname)
	require.Equal(t, "contact", out.Action)
	require.Equal(t, map[string]string{
		"secret":   "s3cret",
		"response": "tok-1",
		"remoteip": "198.51.100.4",
	}, <-formCh)
}

func TestVerify_OmitsUnknownRemoteIP(t *testing.T) {
	t.Parallel()

	srv, _ := newSiteverify(t, http.StatusOK, `{"success":true}`, func(r *http.Request) {
		assert.NoError(t, r.ParseForm())
		_, present := r.PostForm["remoteip"]
		assert.False(t, present)
	})

	v := New(Config{Secret: "s", VerifyURL: srv.URL}, nil)
	_, err := v.Verify(context.Background(), "tok", "unknown")
	require.NoError(t, err)
}

func TestVerify_MissingSecretSkipsNetwork(t *testing.T) {
	t.Parallel()

	srv, calls := newSiteverify(t, http.StatusOK, `{"success":true}`, nil)
	v := New(Config{Secret: "  ", VerifyURL: srv.URL}, nil)

	_, err := v.Verify(context.Background(), "tok", "1.2.3.4")
	require.ErrorIs(t, err, ErrMissingSecret)
	require.Zero(t, calls.Load())
}

func TestVerify_RejectedWithCodes(t *testing.T) {
	t.Parallel()

	srv, _ := newSiteverify(t, http.StatusOK,
		`{"success":false,"error-codes":["timeout-or-duplicate","invalid-input-response"]}`, nil)
	v := New(Config{Secret: "s", VerifyURL: srv.URL}, nil)

	_, err := v.Verify(context.Background(), "tok", "")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, "timeout-or-duplicate,invalid-input-response", rejected.Reason())
}

func TestVerify_RejectedReasonUnknown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "no codes", body: `{"success":false}`},
		{name: "empty codes", body: `{"success":false,"error-codes":[]}`},
		{name: "codes not a list", body: `{"success":false,"error-codes":"bad"}`},
		{name: "malformed json", body: `{"success":`},
		{name: "success not boolean", body: `{"success":"yes"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := newSiteverify(t, http.StatusOK, tt.body, nil)
			v := New(Config{Secret: "s", VerifyURL: srv.URL}, nil)

			_, err := v.Verify(context.Background(), "tok", "")
			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
			require.Equal(t, UnknownReason, rejected.Reason())
		})
	}
}

func TestVerify_Non2xxIsTransportError(t *testing.T) {
	t.Parallel()

	srv, _ := newSiteverify(t, http.StatusServiceUnavailable, `oops`, nil)
	v := New(Config{Secret: "s", VerifyURL: srv.URL}, nil)

	_, err := v.Verify(context.Background(), "tok", "")
	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	require.Equal(t, http.StatusServiceUnavailable, transport.StatusCode)
}

func TestVerify_ConnectionFailureIsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	v := New(Config{Secret: "s", VerifyURL: url, Timeout: time.Second}, nil)
	_, err := v.Verify(context.Background(), "tok", "")
	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	require.Zero(t, transport.StatusCode)
	require.NotNil(t, errors.Unwrap(err))
}

func TestNew_DefaultsVerifyURL(t *testing.T) {
	t.Parallel()

	v := New(Config{Secret: "s"}, nil)
	require.Equal(t, DefaultVerifyURL, v.verifyURL)
}
