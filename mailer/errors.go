package mailer

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/transport"
)

const maxErrorBodyBytes = 512

// classifyResponse maps a non 2xx provider response onto the error taxonomy.
// 429 is rate limited, 5xx is transient, 404 is a missing record and other
// 4xx mean the provider refused the request as sent.
func classifyResponse(provider string, bucket string, res transport.Response) error {
	if res.Successful() {
		return nil
	}
	metadata := map[string]any{
		"provider":    provider,
		"bucket":      bucket,
		"status_code": res.StatusCode,
	}
	if snippet := bodySnippet(res.Body); snippet != "" {
		metadata["response"] = snippet
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		if retryAfter := strings.TrimSpace(res.Header("Retry-After")); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				metadata["retry_after_ms"] = int64(seconds) * 1000
			}
		}
		return core.NewError("mailer: provider rate limit reached", goerrors.CategoryRateLimit, core.ErrorProviderRateLimited).
			WithMetadata(metadata)
	case res.StatusCode >= http.StatusInternalServerError:
		return core.NewError(
			fmt.Sprintf("mailer: provider unavailable (status %d)", res.StatusCode),
			goerrors.CategoryExternal,
			core.ErrorProviderTransient,
		).WithMetadata(metadata)
	case res.StatusCode == http.StatusNotFound:
		return goerrors.Wrap(core.ErrRecordNotFound, goerrors.CategoryNotFound, "mailer: subscriber not found").
			WithCode(http.StatusNotFound).
			WithTextCode(core.ErrorSubscriberNotFound).
			WithMetadata(metadata)
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return core.NewError("mailer: provider rejected the api key", goerrors.CategoryOperation, core.ErrorConfigMissing).
			WithMetadata(metadata)
	default:
		return core.NewError(
			fmt.Sprintf("mailer: provider rejected request (status %d)", res.StatusCode),
			goerrors.CategoryBadInput,
			core.ErrorBadInput,
		).WithMetadata(metadata)
	}
}

func errInvalidMessage(taskID string, message string) error {
	err := core.NewError("mailer: "+message, goerrors.CategoryBadInput, core.ErrorBadInput)
	if taskID != "" {
		err.WithMetadata(map[string]any{"task_id": taskID})
	}
	return err
}

func errUnexpectedBody(provider string, bucket string, source error) error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, "mailer: decode provider response").
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorProviderTransient).
		WithMetadata(map[string]any{"provider": provider, "bucket": bucket})
}

func bodySnippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyBytes {
		text = text[:maxErrorBodyBytes]
	}
	return text
}
