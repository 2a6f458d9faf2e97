// Package httpapi serves the webhook ingestion endpoint, the cron triggers
// of the delivery worker and the participation actions over gin.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-initiatives/actions"
	"github.com/goliatone/go-initiatives/command"
	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/query"
	"github.com/goliatone/go-initiatives/webhooks"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	PathWebhook                 = "/webhooks/provider"
	PathCronProcessQueue        = "/cron/process-queue"
	PathCronProcessWebhooks     = "/cron/process-webhooks"
	PathCronProcessNotification = "/cron/process-notifications"
	PathCronQueueStats          = "/cron/queue-stats"
	PathHealth                  = "/healthz"
)

type WebhookIngestor interface {
	Ingest(ctx context.Context, req webhooks.InboundRequest) (webhooks.IngestResult, error)
}

// ActorResolver returns the authenticated caller. An empty actor is treated
// as anonymous.
type ActorResolver func(c *gin.Context) core.Actor

// LocaleMatcher picks the supported locale for Accept-Language preferences.
type LocaleMatcher interface {
	Match(preferences ...string) string
}

type Deps struct {
	Ingestor   WebhookIngestor
	Delivery   gocmd.Commander[command.RunDeliveryMessage]
	QueueStats gocmd.Querier[query.QueueStatsMessage, core.QueueStats]
	Actions    *actions.Actions
	Actors     ActorResolver
	Locales    LocaleMatcher
	CronSecret string
}

type Option func(*routerConfig)

type routerConfig struct {
	logger core.Logger
	mode   string
}

func WithLogger(logger core.Logger) Option {
	return func(cfg *routerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMode sets the gin mode, one of gin.DebugMode, gin.ReleaseMode or
// gin.TestMode.
func WithMode(mode string) Option {
	return func(cfg *routerConfig) {
		cfg.mode = mode
	}
}

type handler struct {
	deps   Deps
	logger core.Logger
}

// NewRouter builds the engine. Participation routes are mounted only when
// both Actions and Actors are set.
func NewRouter(deps Deps, opts ...Option) (*gin.Engine, error) {
	if deps.Ingestor == nil {
		return nil, fmt.Errorf("httpapi: webhook ingestor is required")
	}
	if deps.Delivery == nil {
		return nil, fmt.Errorf("httpapi: delivery command is required")
	}
	cfg := routerConfig{logger: glog.Ensure(nil)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.mode != "" {
		gin.SetMode(cfg.mode)
	}

	h := &handler{deps: deps, logger: cfg.logger}
	engine := gin.New()
	engine.Use(RequestID(), Recovery(cfg.logger), Logging(cfg.logger))

	engine.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.POST(PathWebhook, h.receiveWebhook)

	cronAuth := CronAuth(deps.CronSecret)
	engine.GET(PathCronProcessQueue, cronAuth, h.runDelivery(core.RunPhaseAll))
	engine.GET(PathCronProcessWebhooks, cronAuth, h.runDelivery(core.RunPhaseWebhookEvents))
	engine.GET(PathCronProcessNotification, cronAuth, h.runDelivery(core.RunPhasePostNotifications))
	if deps.QueueStats != nil {
		engine.GET(PathCronQueueStats, cronAuth, h.queueStats)
	}

	if deps.Actions != nil && deps.Actors != nil {
		h.mountParticipation(engine)
	}
	return engine, nil
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// writeError maps err onto the envelope. Internal failures do not leak the
// underlying message.
func (h *handler) writeError(c *gin.Context, err error) {
	mapped := core.MapError(err)
	status := mapped.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	message := mapped.Message
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Error("request failed",
			"path", c.FullPath(),
			"code", mapped.TextCode,
			"error", err,
		)
		if mapped.TextCode == core.ErrorInternal {
			message = "internal error"
		}
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Success: false,
		Error:   message,
		Code:    mapped.TextCode,
	})
}
