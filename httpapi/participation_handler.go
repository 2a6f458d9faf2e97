package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-initiatives/actions"
	"github.com/goliatone/go-initiatives/core"
)

type joinBody struct {
	Role          core.ParticipantRole `json:"role"`
	FormResponses map[string]any       `json:"form_responses"`
}

type manageAction func(ctx context.Context, req actions.Request, participationID string) actions.Result[actions.ParticipationData]

func (h *handler) mountParticipation(engine *gin.Engine) {
	engine.POST("/initiatives/:initiative_id/participations", h.join)
	engine.GET("/initiatives/:initiative_id/participants", h.listParticipants)
	engine.POST("/participations/:participation_id/approve", h.manage(h.deps.Actions.Approve))
	engine.POST("/participations/:participation_id/reject", h.manage(h.deps.Actions.Reject))
	engine.POST("/participations/:participation_id/kick", h.manage(h.deps.Actions.Kick))
}

func (h *handler) actionRequest(c *gin.Context) actions.Request {
	req := actions.Request{Actor: h.deps.Actors(c)}
	if accept := c.GetHeader("Accept-Language"); accept != "" && h.deps.Locales != nil {
		req.Locale = h.deps.Locales.Match(accept)
	}
	return req
}

func (h *handler) join(c *gin.Context) {
	var body joinBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Success: false,
			Error:   "request body must be a JSON object",
			Code:    core.ErrorBadInput,
		})
		return
	}
	result := h.deps.Actions.Join(c.Request.Context(), h.actionRequest(c), actions.JoinInput{
		InitiativeID:  c.Param("initiative_id"),
		Role:          body.Role,
		FormResponses: body.FormResponses,
	})
	writeResult(c, result, http.StatusCreated)
}

func (h *handler) manage(action manageAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := action(c.Request.Context(), h.actionRequest(c), c.Param("participation_id"))
		writeResult(c, result, http.StatusOK)
	}
}

// listParticipants serves ?status=pending, any other value lists the
// approved participants.
func (h *handler) listParticipants(c *gin.Context) {
	ctx := c.Request.Context()
	req := h.actionRequest(c)
	initiativeID := c.Param("initiative_id")
	if c.Query("status") == string(core.ParticipationStatusRegistered) || c.Query("status") == "pending" {
		writeResult(c, h.deps.Actions.ListPending(ctx, req, initiativeID), http.StatusOK)
		return
	}
	writeResult(c, h.deps.Actions.ListApproved(ctx, req, initiativeID), http.StatusOK)
}

func writeResult[T any](c *gin.Context, result actions.Result[T], okStatus int) {
	if result.Success {
		c.JSON(okStatus, result)
		return
	}
	status := result.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}
