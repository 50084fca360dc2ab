package contact

import (
	"net/http"
	"strings"
)

// UnknownIP stands in when no forwarded-for header is present.
const UnknownIP = "unknown"

// ClientIP returns the first X-Forwarded-For entry. The header is client
// controlled, so the value is only good enough for throttling.
func ClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return UnknownIP
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}
