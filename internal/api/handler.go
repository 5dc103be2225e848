// Package api exposes push intake and the message archive over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"beacon/internal/cloud"
	"beacon/internal/logger"
	"beacon/internal/messages"
	"beacon/internal/notifier"
	"beacon/internal/preferences"
	"beacon/pkg/errors"
	"beacon/pkg/models"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *BaseHandler) BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
}

// Deps are the collaborators behind the routes. Icons may be nil, in which
// case the icon routes answer 503.
type Deps struct {
	Notifier    notifier.Service
	Messages    messages.Store
	Preferences preferences.Store
	Icons       cloud.IconStore
	// Publish, when set, receives every notification delivered over HTTP so
	// it also reaches the output topic.
	Publish func(ctx context.Context, n models.Notification)
	Now     func() time.Time
}

type Handler struct {
	BaseHandler
	deps Deps
}

func NewHandler(deps Deps, log logger.Logger) *Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		deps:        deps,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/push", h.Push)

		msgs := v1.Group("/messages")
		{
			msgs.GET("", h.ListMessages)
			msgs.GET("/:id", h.GetMessage)
			msgs.PUT("/:id/read", h.MarkRead)
			msgs.DELETE("/:id", h.DeleteMessage)
		}

		inbox := v1.Group("/inbox")
		{
			inbox.GET("/unread-count", h.UnreadCount)
			inbox.POST("/read-all", h.MarkAllRead)
			inbox.POST("/sweep", h.Sweep)
		}

		mutes := v1.Group("/mutes")
		{
			mutes.GET("", h.ListMutes)
			mutes.PUT("/:group", h.SetMute)
			mutes.DELETE("/:group", h.ClearMute)
		}

		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings", h.UpdateSettings)

		v1.PUT("/icons/:name", h.PutIcon)
	}
}
