package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/ratelimit"
)

type providerCall struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newProviderServer(t *testing.T, handler func(w http.ResponseWriter, call providerCall)) (*httptest.Server, *[]providerCall) {
	t.Helper()
	calls := []providerCall{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := providerCall{method: r.Method, path: r.URL.EscapedPath(), auth: r.Header.Get("Authorization")}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &call.body); err != nil {
				t.Errorf("decode request body: %v", err)
			}
		}
		calls = append(calls, call)
		handler(w, call)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func testProviderConfig(baseURL string) core.ProviderConfig {
	return core.ProviderConfig{
		BaseURL:     baseURL + "/",
		APIKey:      "key_123",
		FromAddress: "noreply@example.org",
		FromName:    "Initiatives",
		Timeout:     time.Second,
	}
}

func TestClient_NotConfiguredWithoutAPIKey(t *testing.T) {
	client := NewClient(core.ProviderConfig{BaseURL: "http://provider.invalid"})
	if client.Configured() {
		t.Fatalf("expected client without api key to be unconfigured")
	}
	ctx := context.Background()
	if _, err := client.SendBatch(ctx, []core.OutboundEmail{{To: "a@example.com"}}); !core.IsNotConfigured(err) {
		t.Fatalf("expected not configured from SendBatch, got %v", err)
	}
	if _, err := client.FindSubscriber(ctx, "a@example.com"); !core.IsNotConfigured(err) {
		t.Fatalf("expected not configured from FindSubscriber, got %v", err)
	}
	if err := client.Unsubscribe(ctx, "a@example.com"); !core.IsNotConfigured(err) {
		t.Fatalf("expected not configured from Unsubscribe, got %v", err)
	}
}

func TestClient_SendBatchPostsAllMessagesInOneCall(t *testing.T) {
	server, calls := newProviderServer(t, func(w http.ResponseWriter, _ providerCall) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"data":[{"id":"msg_1"},{"id":"msg_2"}]}`))
	})
	client := NewClient(testProviderConfig(server.URL), WithHTTPClient(server.Client()))

	receipt, err := client.SendBatch(context.Background(), []core.OutboundEmail{
		{TaskID: "pnq_1", To: "a@example.com", Name: "Ana", Subject: "Hi", Text: "Body"},
		{TaskID: "pnq_2", To: "b@example.com", Subject: "Hi", HTML: "<p>Body</p>"},
	})
	if err != nil {
		t.Fatalf("send batch: %v", err)
	}
	if len(receipt.MessageIDs) != 2 || receipt.MessageIDs[1] != "msg_2" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one provider call, got %d", len(*calls))
	}
	call := (*calls)[0]
	if call.method != http.MethodPost || call.path != batchSendPath {
		t.Fatalf("unexpected call %s %s", call.method, call.path)
	}
	if call.auth != "Bearer key_123" {
		t.Fatalf("expected bearer api key, got %q", call.auth)
	}
	messages, _ := call.body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected two messages in payload, got %#v", call.body)
	}
	first := messages[0].(map[string]any)
	if first["custom_id"] != "pnq_1" || first["from"].(map[string]any)["email"] != "noreply@example.org" {
		t.Fatalf("unexpected first message %#v", first)
	}
}

func TestClient_SendBatchErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		textCode string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, textCode: core.ErrorProviderRateLimited},
		{name: "server error", status: http.StatusServiceUnavailable, textCode: core.ErrorProviderTransient},
		{name: "bad key", status: http.StatusUnauthorized, textCode: core.ErrorConfigMissing},
		{name: "rejected", status: http.StatusUnprocessableEntity, textCode: core.ErrorBadInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server, _ := newProviderServer(t, func(w http.ResponseWriter, _ providerCall) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			client := NewClient(testProviderConfig(server.URL), WithHTTPClient(server.Client()))
			_, err := client.SendBatch(context.Background(), []core.OutboundEmail{{To: "a@example.com"}})
			if core.TextCode(err) != tc.textCode {
				t.Fatalf("expected %s, got %v", tc.textCode, err)
			}
			if core.IsNotConfigured(err) {
				t.Fatalf("provider failures must not read as not configured")
			}
		})
	}
}

func TestClient_RateLimitFeedsAdaptivePolicy(t *testing.T) {
	server, _ := newProviderServer(t, func(w http.ResponseWriter, _ providerCall) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	policy.Now = func() time.Time { return now }
	client := NewClient(testProviderConfig(server.URL), WithHTTPClient(server.Client()), WithPolicy(policy))

	_, err := client.SendBatch(context.Background(), []core.OutboundEmail{{To: "a@example.com"}})
	if core.TextCode(err) != core.ErrorProviderRateLimited {
		t.Fatalf("expected rate limited, got %v", err)
	}
	err = policy.BeforeCall(context.Background(), client.RateLimitKey(BucketBatchSend))
	var throttled ratelimit.ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttle to be recorded, got %v", err)
	}
	if throttled.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s retry after, got %v", throttled.RetryAfter)
	}
}

func TestClient_SubscriberDirectory(t *testing.T) {
	server, calls := newProviderServer(t, func(w http.ResponseWriter, call providerCall) {
		switch {
		case call.method == http.MethodGet && call.path == subscribersPath+"/31897397363737859":
			_, _ = w.Write([]byte(`{"data":{"id":"31897397363737859","email":"cy@example.com","status":"active"}}`))
		case call.method == http.MethodGet && call.path == subscribersPath+"/ana@example.com":
			_, _ = w.Write([]byte(`{"data":{"id":"sub_1","email":"Ana@Example.com","name":"Ana","status":"active","updated_at":"2026-03-14T09:00:00Z"}}`))
		case call.method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case call.method == http.MethodPost:
			status, _ := call.body["status"].(string)
			_, _ = w.Write([]byte(`{"data":{"id":"sub_2","email":"` + call.body["email"].(string) + `","status":"` + status + `"}}`))
		}
	})
	client := NewClient(testProviderConfig(server.URL), WithHTTPClient(server.Client()))
	ctx := context.Background()

	found, err := client.FindSubscriber(ctx, " Ana@Example.com ")
	if err != nil {
		t.Fatalf("find subscriber: %v", err)
	}
	if found.ProviderID != "sub_1" || found.Email != "ana@example.com" || found.UpdatedAt.IsZero() {
		t.Fatalf("unexpected subscriber %+v", found)
	}

	byID, err := client.FindSubscriber(ctx, " 31897397363737859 ")
	if err != nil {
		t.Fatalf("find subscriber by id: %v", err)
	}
	if byID.Email != "cy@example.com" {
		t.Fatalf("unexpected subscriber %+v", byID)
	}

	_, err = client.FindSubscriber(ctx, "missing@example.com")
	if !errors.Is(err, core.ErrRecordNotFound) || core.TextCode(err) != core.ErrorSubscriberNotFound {
		t.Fatalf("expected subscriber not found, got %v", err)
	}

	created, err := client.UpsertSubscriber(ctx, core.UpsertSubscriberInput{Email: "bo@example.com", Name: "Bo"})
	if err != nil {
		t.Fatalf("upsert subscriber: %v", err)
	}
	if created.Status != core.SubscriberStatusActive {
		t.Fatalf("expected active subscriber, got %q", created.Status)
	}

	if err := client.Unsubscribe(ctx, "bo@example.com"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	last := (*calls)[len(*calls)-1]
	if last.body["status"] != string(core.SubscriberStatusUnsubscribed) {
		t.Fatalf("expected unsubscribe to send status, got %#v", last.body)
	}
}
