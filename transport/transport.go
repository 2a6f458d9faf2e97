// Package transport executes the outbound calls made to the mail provider.
// Failures come back as go-errors envelopes; HTTP error statuses do not.
package transport

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type Request struct {
	Method string
	URL    string
	// BearerToken is sent as the Authorization header when set.
	BearerToken string
	Headers     map[string]string
	Query       map[string]string
	// JSON is encoded as the body when Body is empty.
	JSON    any
	Body    []byte
	Timeout time.Duration
	// MaxBodyBytes overrides the adapter's response size limit.
	MaxBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

// Header looks a response header up case insensitively.
func (r Response) Header(name string) string {
	name = strings.TrimSpace(name)
	if value, ok := r.Headers[http.CanonicalHeaderKey(name)]; ok {
		return value
	}
	for key, value := range r.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func (r Response) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Adapter interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
