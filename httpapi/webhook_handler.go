package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/webhooks"
)

const defaultWebhookBodyBytes = 1 << 20

type bodyLimiter interface {
	BodyLimit() int
}

func (h *handler) webhookBodyLimit() int {
	if limiter, ok := h.deps.Ingestor.(bodyLimiter); ok {
		if limit := limiter.BodyLimit(); limit > 0 {
			return limit
		}
	}
	return defaultWebhookBodyBytes
}

func (h *handler) receiveWebhook(c *gin.Context) {
	limit := h.webhookBodyLimit()
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, int64(limit)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, webhooks.ErrPayloadTooLarge(limit))
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Success: false,
			Error:   "could not read request body",
			Code:    core.ErrorMalformedPayload,
		})
		return
	}
	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.Request.Header.Get(name)
	}

	result, err := h.deps.Ingestor.Ingest(c.Request.Context(), webhooks.InboundRequest{
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"enqueued": result.Enqueued,
	})
}
