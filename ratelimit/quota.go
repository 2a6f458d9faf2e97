package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ResponseMeta is the part of a provider response the policy learns from.
type ResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	// RetryAfter, when set, wins over the Retry-After header.
	RetryAfter *time.Duration
	Metadata   map[string]any
}

// quota is the provider's view of a bucket as advertised in one response.
type quota struct {
	limit, remaining       int
	resetAt                time.Time
	retryAfter             time.Duration
	hasLimit, hasRemaining bool
	hasReset, hasRetry     bool
}

func readQuota(res ResponseMeta, now time.Time) quota {
	var q quota
	for name, value := range res.Headers {
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "x-ratelimit-limit":
			q.limit, q.hasLimit = atoi(value)
		case "x-ratelimit-remaining":
			q.remaining, q.hasRemaining = atoi(value)
		case "x-ratelimit-reset":
			if unix, err := strconv.ParseInt(value, 10, 64); err == nil && unix > 0 {
				q.resetAt, q.hasReset = time.Unix(unix, 0).UTC(), true
			}
		case "retry-after":
			q.retryAfter, q.hasRetry = retryAfter(value, now)
		}
	}
	if res.RetryAfter != nil && *res.RetryAfter > 0 {
		q.retryAfter, q.hasRetry = *res.RetryAfter, true
	}
	return q
}

// exhausted reports whether the response closes the bucket. A 5xx never
// does; a 2xx or 4xx does when the provider advertises zero remaining.
func (q quota) exhausted(status int, remaining int) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status >= http.StatusInternalServerError:
		return false
	}
	return remaining == 0 && (q.hasRemaining || q.hasReset || q.hasLimit || q.hasRetry)
}

// retryAfter accepts delta seconds or an HTTP date.
func retryAfter(value string, now time.Time) (time.Duration, bool) {
	if seconds, ok := atoi(value); ok {
		return time.Duration(seconds) * time.Second, seconds > 0
	}
	at, err := http.ParseTime(value)
	if err != nil || !at.After(now) {
		return 0, false
	}
	return at.Sub(now), true
}

func atoi(value string) (int, bool) {
	parsed, err := strconv.Atoi(value)
	return parsed, err == nil
}
