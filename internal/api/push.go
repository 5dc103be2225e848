package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"beacon/internal/constants"
	"beacon/pkg/errors"
	"beacon/pkg/models"
)

// Push godoc
// @Summary      Submit a push payload
// @Description  Runs the payload through the enrichment pipeline and returns the delivered notification. The body is either an InboundPush wrapper or a bare payload object.
// @Tags         push
// @Accept       json
// @Produce      json
// @Param        push  body      models.InboundPush  true  "Push payload"
// @Success      200   {object}  models.Notification
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /push [post]
func (h *Handler) Push(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, constants.MaxPushBytes+1))
	if err != nil {
		h.BadRequest(c, err)
		return
	}
	if len(body) > constants.MaxPushBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errors.ToErrorResponse(errors.ErrValidation.WithMessage("push too large")))
		return
	}

	push, err := models.DecodePush(body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if push.ReceivedAt.IsZero() {
		push.ReceivedAt = time.Now().UTC()
	}
	if push.Metadata.Source == "" {
		push.Metadata.Source = "http"
	}
	if id, ok := c.Get("request_id"); ok && push.Metadata.TraceID == "" {
		push.Metadata.TraceID, _ = id.(string)
	}

	var deliver func(models.Notification)
	if h.deps.Publish != nil {
		ctx := c.Request.Context()
		deliver = func(n models.Notification) { h.deps.Publish(ctx, n) }
	}

	n, err := h.deps.Notifier.Handle(c.Request.Context(), push, deliver)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}
