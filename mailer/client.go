// Package mailer is the delivery provider adapter: batch transactional sends
// and the newsletter subscriber directory, spoken over the provider's JSON
// API.
//
// A client without an API key or base URL is valid. Every call then returns
// core.ErrProviderNotConfigured so callers can skip the feature.
package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/ratelimit"
	"github.com/goliatone/go-initiatives/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	ProviderName = "mailer"

	BucketBatchSend   = "batch_send"
	BucketSubscribers = "subscribers"

	batchSendPath   = "/api/emails/batch"
	subscribersPath = "/api/subscribers"
)

type Client struct {
	config    core.ProviderConfig
	provider  string
	transport transport.Adapter
	policy    *ratelimit.AdaptivePolicy
	logger    core.Logger
}

type Option func(*Client)

func WithTransport(adapter transport.Adapter) Option {
	return func(c *Client) {
		if adapter != nil {
			c.transport = adapter
		}
	}
}

func WithHTTPClient(client transport.Doer) Option {
	return func(c *Client) {
		if client != nil {
			c.transport = transport.NewHTTPAdapter(client)
		}
	}
}

// WithPolicy records every provider response in the adaptive throttle state
// shared with the worker's send limiter.
func WithPolicy(policy *ratelimit.AdaptivePolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithProviderName(name string) Option {
	return func(c *Client) {
		if name = strings.TrimSpace(name); name != "" {
			c.provider = name
		}
	}
}

func NewClient(config core.ProviderConfig, opts ...Option) *Client {
	config.BaseURL = strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	config.APIKey = strings.TrimSpace(config.APIKey)
	client := &Client{
		config:   config,
		provider: ProviderName,
		logger:   glog.Ensure(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.transport == nil {
		client.transport = transport.NewHTTPAdapter(nil)
	}
	return client
}

func (c *Client) Configured() bool {
	return c != nil && c.config.APIKey != "" && c.config.BaseURL != ""
}

// RateLimitKey is the throttle key for a bucket of this provider.
func (c *Client) RateLimitKey(bucket string) ratelimit.Key {
	provider := ProviderName
	if c != nil && c.provider != "" {
		provider = c.provider
	}
	return ratelimit.NormalizeKey(ratelimit.Key{Provider: provider, Bucket: bucket})
}

type wireAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type wireMessage struct {
	From     wireAddress       `json:"from"`
	To       []wireAddress     `json:"to"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text,omitempty"`
	HTML     string            `json:"html,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	CustomID string            `json:"custom_id,omitempty"`
}

type batchSendResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// SendBatch submits messages in one provider call. The batch is accepted or
// rejected as a whole.
func (c *Client) SendBatch(ctx context.Context, messages []core.OutboundEmail) (core.BatchReceipt, error) {
	if !c.Configured() {
		return core.BatchReceipt{}, core.ErrProviderNotConfigured
	}
	if len(messages) == 0 {
		return core.BatchReceipt{}, nil
	}

	from := wireAddress{Email: c.config.FromAddress, Name: c.config.FromName}
	payload := struct {
		Messages []wireMessage `json:"messages"`
	}{Messages: make([]wireMessage, 0, len(messages))}
	for _, message := range messages {
		to := strings.TrimSpace(message.To)
		if to == "" {
			return core.BatchReceipt{}, errInvalidMessage(message.TaskID, "recipient is required")
		}
		payload.Messages = append(payload.Messages, wireMessage{
			From:     from,
			To:       []wireAddress{{Email: to, Name: strings.TrimSpace(message.Name)}},
			Subject:  message.Subject,
			Text:     message.Text,
			HTML:     message.HTML,
			Tags:     message.Tags,
			CustomID: message.TaskID,
		})
	}

	var decoded batchSendResponse
	if err := c.call(ctx, BucketBatchSend, http.MethodPost, batchSendPath, payload, &decoded); err != nil {
		return core.BatchReceipt{}, err
	}
	receipt := core.BatchReceipt{MessageIDs: make([]string, 0, len(decoded.Data))}
	for _, item := range decoded.Data {
		receipt.MessageIDs = append(receipt.MessageIDs, item.ID)
	}
	return receipt, nil
}

type wireSubscriber struct {
	ID        string         `json:"id,omitempty"`
	Email     string         `json:"email"`
	Name      string         `json:"name,omitempty"`
	Status    string         `json:"status,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

type subscriberResponse struct {
	Data wireSubscriber `json:"data"`
}

// FindSubscriber looks the subscriber up by provider id or by email. Emails
// are normalized, ids are sent as given.
func (c *Client) FindSubscriber(ctx context.Context, idOrEmail string) (core.Subscriber, error) {
	if !c.Configured() {
		return core.Subscriber{}, core.ErrProviderNotConfigured
	}
	ref := strings.TrimSpace(idOrEmail)
	if strings.Contains(ref, "@") {
		ref = strings.ToLower(ref)
	}
	if ref == "" {
		return core.Subscriber{}, errInvalidMessage("", "subscriber id or email is required")
	}
	var decoded subscriberResponse
	path := subscribersPath + "/" + url.PathEscape(ref)
	if err := c.call(ctx, BucketSubscribers, http.MethodGet, path, nil, &decoded); err != nil {
		return core.Subscriber{}, err
	}
	return decoded.Data.toDomain(), nil
}

// UpsertSubscriber creates the subscriber or updates the one with the same
// email.
func (c *Client) UpsertSubscriber(ctx context.Context, in core.UpsertSubscriberInput) (core.Subscriber, error) {
	if !c.Configured() {
		return core.Subscriber{}, core.ErrProviderNotConfigured
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return core.Subscriber{}, errInvalidMessage("", "subscriber email is required")
	}
	body := wireSubscriber{
		Email:  email,
		Name:   strings.TrimSpace(in.Name),
		Status: string(in.Status),
		Fields: in.Fields,
	}
	var decoded subscriberResponse
	if err := c.call(ctx, BucketSubscribers, http.MethodPost, subscribersPath, body, &decoded); err != nil {
		return core.Subscriber{}, err
	}
	return decoded.Data.toDomain(), nil
}

func (c *Client) Unsubscribe(ctx context.Context, email string) error {
	_, err := c.UpsertSubscriber(ctx, core.UpsertSubscriberInput{
		Email:  email,
		Status: core.SubscriberStatusUnsubscribed,
	})
	return err
}

func (c *Client) call(ctx context.Context, bucket string, method string, path string, body any, out any) error {
	res, err := c.transport.Do(ctx, transport.Request{
		Method:      method,
		URL:         c.config.BaseURL + path,
		BearerToken: c.config.APIKey,
		JSON:        body,
		Timeout:     c.config.Timeout,
	})
	if err != nil {
		c.logger.WithContext(ctx).Warn("mailer: provider request failed",
			"bucket", bucket,
			"method", method,
			"error", err,
		)
		return err
	}
	c.observe(ctx, bucket, res)
	if err := classifyResponse(c.provider, bucket, res); err != nil {
		c.logger.WithContext(ctx).Warn("mailer: provider rejected request",
			"bucket", bucket,
			"method", method,
			"status", res.StatusCode,
			"duration_ms", res.Duration.Milliseconds(),
		)
		return err
	}
	if out == nil || len(res.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return errUnexpectedBody(c.provider, bucket, err)
	}
	return nil
}

func (c *Client) observe(ctx context.Context, bucket string, res transport.Response) {
	if c.policy == nil {
		return
	}
	meta := ratelimit.ResponseMeta{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Metadata:   map[string]any{"bucket": bucket},
	}
	if err := c.policy.AfterCall(ctx, c.RateLimitKey(bucket), meta); err != nil {
		c.logger.WithContext(ctx).Warn("mailer: rate limit state not recorded", "bucket", bucket, "error", err)
	}
}

func (s wireSubscriber) toDomain() core.Subscriber {
	subscriber := core.Subscriber{
		Email:      strings.ToLower(strings.TrimSpace(s.Email)),
		ProviderID: strings.TrimSpace(s.ID),
		Name:       strings.TrimSpace(s.Name),
		Status:     subscriberStatus(s.Status),
		Fields:     s.Fields,
	}
	if subscriber.Fields == nil {
		subscriber.Fields = map[string]any{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, strings.TrimSpace(s.UpdatedAt)); err == nil {
			subscriber.UpdatedAt = parsed.UTC()
			break
		}
	}
	return subscriber
}

func subscriberStatus(value string) core.SubscriberStatus {
	switch core.SubscriberStatus(strings.ToLower(strings.TrimSpace(value))) {
	case core.SubscriberStatusUnsubscribed:
		return core.SubscriberStatusUnsubscribed
	case core.SubscriberStatusBounced:
		return core.SubscriberStatusBounced
	case core.SubscriberStatusJunk:
		return core.SubscriberStatusJunk
	default:
		return core.SubscriberStatusActive
	}
}

var (
	_ core.DeliveryProvider    = (*Client)(nil)
	_ core.SubscriberDirectory = (*Client)(nil)
)
