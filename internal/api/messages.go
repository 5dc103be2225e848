package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"beacon/internal/constants"
	"beacon/internal/messages"
	"beacon/pkg/errors"
	"beacon/pkg/models"
)

// ListMessages godoc
// @Summary      List archived messages
// @Description  Newest first. Filters combine with AND.
// @Tags         messages
// @Produce      json
// @Param        group   query     string  false  "Group name"
// @Param        unread  query     bool    false  "Only unread messages"
// @Param        q       query     string  false  "Search title, subtitle and body"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Page offset"
// @Success      200     {object}  MessageList
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	f := messages.Filter{
		Group:  c.Query("group"),
		Search: c.Query("q"),
	}

	var err error
	if v := c.Query("unread"); v != "" {
		if f.UnreadOnly, err = strconv.ParseBool(v); err != nil {
			h.BadRequest(c, err)
			return
		}
	}
	if f.Limit, err = intQuery(c, "limit", constants.DefaultLimit); err != nil {
		h.HandleError(c, err)
		return
	}
	if f.Offset, err = intQuery(c, "offset", 0); err != nil {
		h.HandleError(c, err)
		return
	}

	list, err := h.deps.Messages.List(c.Request.Context(), f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if list == nil {
		list = []models.PersistedMessage{}
	}
	c.JSON(http.StatusOK, MessageList{Messages: list, Limit: f.Limit, Offset: f.Offset})
}

// GetMessage godoc
// @Summary      Get an archived message
// @Tags         messages
// @Produce      json
// @Param        id   path      string  true  "Message ID"
// @Success      200  {object}  models.PersistedMessage
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /messages/{id} [get]
func (h *Handler) GetMessage(c *gin.Context) {
	m, err := h.deps.Messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// MarkRead godoc
// @Summary      Mark a message read
// @Tags         messages
// @Param        id   path  string  true  "Message ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /messages/{id}/read [put]
func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.deps.Messages.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessage godoc
// @Summary      Delete a message
// @Tags         messages
// @Param        id   path  string  true  "Message ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /messages/{id} [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.deps.Messages.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnreadCount godoc
// @Summary      Count unread messages
// @Tags         inbox
// @Produce      json
// @Success      200  {object}  CountResponse
// @Router       /inbox/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.deps.Messages.UnreadCount(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: int64(n)})
}

// MarkAllRead godoc
// @Summary      Mark every message read
// @Tags         inbox
// @Produce      json
// @Success      200  {object}  CountResponse
// @Router       /inbox/read-all [post]
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.deps.Messages.MarkAllRead(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: n})
}

// Sweep godoc
// @Summary      Delete expired messages
// @Description  Removes every message whose retention has ended.
// @Tags         inbox
// @Produce      json
// @Success      200  {object}  CountResponse
// @Router       /inbox/sweep [post]
func (h *Handler) Sweep(c *gin.Context) {
	n, err := h.deps.Messages.DeleteExpired(c.Request.Context(), h.deps.Now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Logger.InfowCtx(c.Request.Context(), "Expired messages swept", "count", n)
	c.JSON(http.StatusOK, CountResponse{Count: n})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.ErrValidation.WithMessage(key + " must be a non-negative integer")
	}
	return n, nil
}
