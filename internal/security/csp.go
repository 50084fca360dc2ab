// Package security sets the Content-Security-Policy for page responses.
package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// NonceHeader carries the per-request nonce to downstream handlers.
const NonceHeader = "X-Nonce"

const nonceBytes = 16

var scriptHosts = []string{
	"https://challenges.cloudflare.com",
	"https://consent.cookiebot.com",
	"https://consentcdn.cookiebot.com",
	"https://cdn.cookiebot.com",
	"https://*.usercentrics.eu",
	"https://app.usercentrics.eu",
	"https://www.googletagmanager.com",
	"https://www.google-analytics.com",
}

var connectHosts = []string{
	"https://www.googletagmanager.com",
	"https://www.google-analytics.com",
	"https://region1.google-analytics.com",
	"https://stats.g.doubleclick.net",
	"https://consent.cookiebot.com",
	"https://consentcdn.cookiebot.com",
	"https://*.cookiebot.com",
	"https://*.usercentrics.eu",
	"https://data.lfellinger.com",
	"https://tagassistant.google.com",
	"https://*.google.com",
	"https://*.googleusercontent.com",
}

var frameHosts = []string{
	"https://challenges.cloudflare.com",
	"https://consentcdn.cookiebot.com",
	"https://www.googletagmanager.com",
	"https://tagassistant.google.com",
	"https://*.google.com",
	"https://*.googleusercontent.com",
	"https://data.lfellinger.com",
}

var previewParams = []string{"gtm_debug", "gtm_preview", "gtm_auth"}

// Config tunes the policy.
//   - NonProdHosts: "staging." matches as a prefix, ".vercel.app" as a suffix,
//     anything else as a substring of the Host header.
//   - ConnectSrc / FrameSrc: appended to the built-in allow-lists.
type Config struct {
	NonProdHosts []string
	ConnectSrc   []string
	FrameSrc     []string
	Rand         io.Reader
	Logger       *zap.Logger
}

// CSP issues a nonce and policy per request.
type CSP struct {
	nonProd []string
	connect []string
	frame   []string
	rand    io.Reader
	logger  *zap.Logger
}

// New builds a CSP from cfg.
func New(cfg Config) *CSP {
	r := cfg.Rand
	if r == nil {
		r = rand.Reader
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSP{
		nonProd: append([]string(nil), cfg.NonProdHosts...),
		connect: append(append([]string(nil), connectHosts...), cfg.ConnectSrc...),
		frame:   append(append([]string(nil), frameHosts...), cfg.FrameSrc...),
		rand:    r,
		logger:  logger,
	}
}

type nonceKey struct{}

// Nonce returns the nonce stored by the middleware, or "".
func Nonce(ctx context.Context) string {
	n, _ := ctx.Value(nonceKey{}).(string)
	return n
}

// Applies reports whether path gets a policy. API routes, framework assets
// and anything that looks like a file are skipped.
func Applies(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	if strings.HasPrefix(trimmed, "_next/") || strings.HasPrefix(trimmed, "api/") {
		return false
	}
	return !strings.Contains(trimmed, ".")
}

// Middleware sets Content-Security-Policy and exposes the nonce through the
// request context and the X-Nonce request header.
func (c *CSP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Applies(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		nonce, err := c.newNonce()
		if err != nil {
			c.logger.Error("csp nonce generation failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		r = r.Clone(context.WithValue(r.Context(), nonceKey{}, nonce))
		r.Header.Set(NonceHeader, nonce)
		w.Header().Set("Content-Security-Policy", c.Policy(nonce, c.allowEval(r)))
		next.ServeHTTP(w, r)
	})
}

func (c *CSP) newNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// allowEval is true on preview hosts and during tag-manager preview sessions.
func (c *CSP) allowEval(r *http.Request) bool {
	q := r.URL.Query()
	for _, p := range previewParams {
		if q.Has(p) {
			return true
		}
	}
	return c.isNonProdHost(r.Host)
}

func (c *CSP) isNonProdHost(host string) bool {
	for _, pattern := range c.nonProd {
		switch {
		case pattern == "":
			continue
		case strings.HasSuffix(pattern, "."):
			if strings.HasPrefix(host, pattern) {
				return true
			}
		case strings.HasPrefix(pattern, "."):
			if strings.HasSuffix(host, pattern) {
				return true
			}
		default:
			if strings.Contains(host, pattern) {
				return true
			}
		}
	}
	return false
}

// Policy renders the header value for nonce.
func (c *CSP) Policy(nonce string, unsafeEval bool) string {
	script := []string{"'self'", "'nonce-" + nonce + "'"}
	if unsafeEval {
		script = append(script, "'unsafe-eval'")
	}
	script = append(script, scriptHosts...)

	directives := [][]string{
		{"default-src", "'self'"},
		{"base-uri", "'self'"},
		{"object-src", "'none'"},
		append([]string{"script-src"}, script...),
		append([]string{"script-src-elem"}, script...),
		{"style-src", "'self'", "'unsafe-inline'", "https://fonts.googleapis.com"},
		{"style-src-elem", "'self'", "'unsafe-inline'", "https://www.googletagmanager.com", "https://fonts.googleapis.com"},
		{"img-src", "'self'", "data:", "blob:", "https:"},
		{"font-src", "'self'", "data:", "https://fonts.gstatic.com"},
		append([]string{"connect-src", "'self'"}, c.connect...),
		append([]string{"frame-src", "'self'"}, c.frame...),
	}
	parts := make([]string, len(directives))
	for i, d := range directives {
		parts[i] = strings.Join(d, " ") + ";"
	}
	return strings.Join(parts, " ")
}
