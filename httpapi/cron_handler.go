package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-initiatives/command"
	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/query"
)

type runResponse struct {
	Success   bool  `json:"success"`
	Processed int   `json:"processed"`
	Failed    int   `json:"failed"`
	Skipped   int   `json:"skipped"`
	Duration  int64 `json:"duration"`
}

// runDelivery triggers one worker run for phase. Duration is reported in
// milliseconds.
func (h *handler) runDelivery(phase string) gin.HandlerFunc {
	return func(c *gin.Context) {
		collector := gocmd.NewResult[core.RunStats]()
		ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
		err := h.deps.Delivery.Execute(ctx, command.RunDeliveryMessage{
			Phase:   phase,
			Trigger: core.RunTriggerCron,
		})
		if err != nil {
			h.writeError(c, err)
			return
		}
		stats, _ := collector.Load()
		c.JSON(http.StatusOK, runResponse{
			Success:   true,
			Processed: stats.Processed,
			Failed:    stats.Failed,
			Skipped:   stats.Skipped,
			Duration:  stats.Duration.Milliseconds(),
		})
	}
}

func (h *handler) queueStats(c *gin.Context) {
	stats, err := h.deps.QueueStats.Query(c.Request.Context(), query.QueueStatsMessage{})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"webhook_events":     stats.WebhookEvents,
		"post_notifications": stats.PostNotifications,
	})
}
