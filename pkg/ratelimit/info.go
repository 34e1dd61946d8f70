// Package ratelimit turns provider HTTP responses into scheduler signals.
// It parses Retry-After and remaining-count headers and classifies responses
// as success, rejection or transport failure.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names used by the supported providers.
const (
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitReset     = "X-RateLimit-Reset"

	// HeaderTraktRateLimit carries Trakt's JSON rate limit document.
	HeaderTraktRateLimit = "X-Ratelimit"
)

// Info is the rate limit state a provider reported on one response.
type Info struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// Limit is the window size, 0 if unknown.
	Limit int `json:"limit"`

	// ResetAt is when the window resets, zero if unknown.
	ResetAt time.Time `json:"reset_at"`
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time is unknown or already passed.
func (i Info) TimeUntilReset() time.Duration {
	if i.ResetAt.IsZero() {
		return 0
	}
	d := time.Until(i.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// RemainingParser extracts rate limit info from response headers.
// The bool is false when the headers carry no usable remaining count.
type RemainingParser func(h http.Header) (Info, bool)

// HeaderRemaining parses a plain integer remaining-count header. Companion
// X-RateLimit-Limit and X-RateLimit-Reset (epoch seconds) headers are used
// when present.
func HeaderRemaining(name string) RemainingParser {
	return func(h http.Header) (Info, bool) {
		remaining, ok := intHeader(h, name)
		if !ok {
			return Info{}, false
		}
		info := Info{Remaining: remaining}
		if limit, ok := intHeader(h, HeaderRateLimitLimit); ok {
			info.Limit = limit
		}
		if reset, ok := intHeader(h, HeaderRateLimitReset); ok && reset > 0 {
			info.ResetAt = time.Unix(int64(reset), 0)
		}
		return info, true
	}
}

type traktRateLimit struct {
	Name      string `json:"name"`
	Period    int    `json:"period"`
	Limit     int    `json:"limit"`
	Remaining *int   `json:"remaining"`
	Until     string `json:"until"`
}

// TraktRemaining parses Trakt's X-Ratelimit header, a JSON document such as
// {"name":"UNAUTHED_API_GET_LIMIT","period":300,"limit":1000,"remaining":999,"until":"..."}.
func TraktRemaining(h http.Header) (Info, bool) {
	raw := h.Get(HeaderTraktRateLimit)
	if raw == "" {
		return Info{}, false
	}
	var doc traktRateLimit
	if err := json.Unmarshal([]byte(raw), &doc); err != nil || doc.Remaining == nil {
		return Info{}, false
	}
	info := Info{Remaining: *doc.Remaining, Limit: doc.Limit}
	if doc.Until != "" {
		if until, err := time.Parse(time.RFC3339, doc.Until); err == nil {
			info.ResetAt = until
		}
	}
	return info, true
}

// ParseRetryAfter reads the Retry-After header as delta-seconds or an
// HTTP-date relative to now.
func ParseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	raw := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(raw); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func intHeader(h http.Header, name string) (int, bool) {
	raw := strings.TrimSpace(h.Get(name))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
