package parse

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// RedirectTarget returns raw when it is a path on this site, fallback otherwise.
// Absolute URLs, scheme-relative "//host" forms and backslash tricks are refused.
func RedirectTarget(raw, fallback string) string {
	s := strings.TrimSpace(raw)
	if s == "" || !strings.HasPrefix(s, "/") {
		return fallback
	}
	if strings.HasPrefix(s, "//") || strings.ContainsAny(s, "\\\r\n\t") {
		return fallback
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return s
}

// EventID parses a route parameter as a positive event id.
func EventID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid event id %q: %w", raw, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid event id %q: must be positive", raw)
	}
	return id, nil
}
