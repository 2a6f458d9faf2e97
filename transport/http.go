package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultClientTimeout = 30 * time.Second
	defaultMaxBodyBytes  = int64(4 << 20)
)

type HTTPAdapter struct {
	client       Doer
	headers      http.Header
	maxBodyBytes int64
	now          func() time.Time
}

type HTTPOption func(*HTTPAdapter)

// WithDefaultHeader adds a header to every request unless the request sets it.
func WithDefaultHeader(name, value string) HTTPOption {
	return func(a *HTTPAdapter) {
		if name = strings.TrimSpace(name); name != "" {
			a.headers.Set(name, strings.TrimSpace(value))
		}
	}
}

func WithMaxBodyBytes(limit int64) HTTPOption {
	return func(a *HTTPAdapter) {
		if limit > 0 {
			a.maxBodyBytes = limit
		}
	}
}

func NewHTTPAdapter(client Doer, opts ...HTTPOption) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	adapter := &HTTPAdapter{
		client:       client,
		headers:      http.Header{},
		maxBodyBytes: defaultMaxBodyBytes,
		now:          time.Now,
	}
	adapter.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func (a *HTTPAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.client == nil {
		return Response{}, failure(failNoClient, nil, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := a.build(ctx, req)
	if err != nil {
		return Response{}, err
	}
	target := map[string]any{"method": httpReq.Method, "host": httpReq.URL.Host, "path": httpReq.URL.Path}

	started := a.now()
	httpRes, err := a.client.Do(httpReq)
	if err != nil {
		return Response{}, failure(failExecute, err, target)
	}
	defer httpRes.Body.Close()

	limit := a.maxBodyBytes
	if req.MaxBodyBytes > 0 {
		limit = req.MaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return Response{}, failure(failReadBody, err, target)
	}
	if int64(len(body)) > limit {
		target["status_code"] = httpRes.StatusCode
		target["limit_bytes"] = limit
		return Response{}, failure(failBodyTooLarge, fmt.Errorf("response exceeds %d bytes", limit), target)
	}

	headers := make(map[string]string, len(httpRes.Header))
	for key, values := range httpRes.Header {
		headers[key] = strings.Join(values, ",")
	}
	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    headers,
		Body:       body,
		Duration:   a.now().Sub(started),
	}, nil
}

func (a *HTTPAdapter) build(ctx context.Context, req Request) (*http.Request, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, failure(failNoURL, nil, nil)
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, failure(failBadURL, err, map[string]any{"url": rawURL})
	}
	if len(req.Query) > 0 {
		query := target.Query()
		for key, value := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				query.Set(key, strings.TrimSpace(value))
			}
		}
		target.RawQuery = query.Encode()
	}

	body := req.Body
	if len(body) == 0 && req.JSON != nil {
		if body, err = json.Marshal(req.JSON); err != nil {
			return nil, failure(failEncode, err, nil)
		}
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, failure(failBadURL, err, map[string]any{"method": method})
	}

	for key, values := range a.headers {
		httpReq.Header[key] = append([]string(nil), values...)
	}
	if len(body) > 0 && req.JSON != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := strings.TrimSpace(req.BearerToken); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range req.Headers {
		if key = strings.TrimSpace(key); key != "" {
			httpReq.Header.Set(key, strings.TrimSpace(value))
		}
	}
	return httpReq, nil
}

var _ Adapter = (*HTTPAdapter)(nil)
