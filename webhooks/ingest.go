package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-initiatives/core"
)

const defaultMaxBodyBytes = 1 << 20

// EventEnqueuer persists one raw envelope. core.Service satisfies it.
type EventEnqueuer interface {
	EnqueueWebhookEvent(ctx context.Context, envelope core.WebhookEnvelope) (core.WebhookEvent, error)
}

type IngestResult struct {
	Enqueued int
	EventIDs []string
}

// Ingestor is the synchronous half of webhook handling: verify, split the
// payload into envelopes and enqueue them. Nothing is interpreted here.
type Ingestor struct {
	Verifier     Verifier
	Queue        EventEnqueuer
	Provider     string
	MaxBodyBytes int
}

func NewIngestor(verifier Verifier, queue EventEnqueuer) *Ingestor {
	return &Ingestor{
		Verifier:     verifier,
		Queue:        queue,
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

// BodyLimit is the largest payload Ingest accepts. Transports should stop
// reading the request past this size.
func (i *Ingestor) BodyLimit() int {
	if i == nil || i.MaxBodyBytes <= 0 {
		return defaultMaxBodyBytes
	}
	return i.MaxBodyBytes
}

func (i *Ingestor) Ingest(ctx context.Context, req InboundRequest) (IngestResult, error) {
	if i == nil || i.Queue == nil {
		return IngestResult{}, fmt.Errorf("webhooks: ingestor requires an event queue")
	}
	if i.Verifier == nil {
		return IngestResult{}, errSecretMissing()
	}
	if limit := i.BodyLimit(); len(req.Body) > limit {
		return IngestResult{}, ErrPayloadTooLarge(limit)
	}
	if err := i.Verifier.Verify(ctx, req); err != nil {
		return IngestResult{}, err
	}

	envelopes, err := ParseEnvelopes(req.Body)
	if err != nil {
		return IngestResult{}, err
	}

	result := IngestResult{EventIDs: make([]string, 0, len(envelopes))}
	for _, envelope := range envelopes {
		if envelope.Provider == "" {
			envelope.Provider = strings.TrimSpace(i.Provider)
		}
		event, err := i.Queue.EnqueueWebhookEvent(ctx, envelope)
		if err != nil {
			return result, err
		}
		result.Enqueued++
		result.EventIDs = append(result.EventIDs, event.ID)
	}
	return result, nil
}

type wireEnvelope struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
	Data      map[string]any  `json:"data"`
}

// ParseEnvelopes accepts {"events":[...]}, a bare array of events or a
// single event object. Every event needs a type.
func ParseEnvelopes(body []byte) ([]core.WebhookEnvelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errMalformedPayload("payload is empty")
	}

	var wire []wireEnvelope
	switch trimmed[0] {
	case '[':
		if err := decodeJSON(trimmed, &wire); err != nil {
			return nil, errMalformedPayload("payload is not valid json")
		}
	case '{':
		var batch struct {
			Events *[]wireEnvelope `json:"events"`
		}
		if err := decodeJSON(trimmed, &batch); err != nil {
			return nil, errMalformedPayload("payload is not valid json")
		}
		if batch.Events != nil {
			wire = *batch.Events
			break
		}
		var single wireEnvelope
		if err := decodeJSON(trimmed, &single); err != nil {
			return nil, errMalformedPayload("payload is not valid json")
		}
		wire = []wireEnvelope{single}
	default:
		return nil, errMalformedPayload("payload must be a json object or array")
	}
	if len(wire) == 0 {
		return nil, errMalformedPayload("payload has no events")
	}

	envelopes := make([]core.WebhookEnvelope, 0, len(wire))
	for idx, item := range wire {
		eventType := strings.TrimSpace(item.Type)
		if eventType == "" {
			return nil, errMalformedPayload(fmt.Sprintf("event %d has no type", idx))
		}
		data := item.Data
		if data == nil {
			data = map[string]any{}
		}
		envelopes = append(envelopes, core.WebhookEnvelope{
			Type:      eventType,
			Timestamp: rawTimestamp(item.Timestamp),
			Data:      data,
		})
	}
	return envelopes, nil
}

// decodeJSON keeps numbers as json.Number so provider ids survive the round
// trip to the queue unchanged.
func decodeJSON(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(out)
}

// rawTimestamp keeps the provider's value as text, quoted or numeric.
func rawTimestamp(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return string(raw)
}
