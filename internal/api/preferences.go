package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"beacon/internal/cloud"
	"beacon/pkg/errors"
)

// ListMutes godoc
// @Summary      List muted groups
// @Tags         mutes
// @Produce      json
// @Success      200  {array}  MuteResponse
// @Router       /mutes [get]
func (h *Handler) ListMutes(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.deps.Preferences.PurgeExpiredMutes(ctx, h.deps.Now()); err != nil {
		h.HandleError(c, err)
		return
	}
	mutes, err := h.deps.Preferences.Mutes(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]MuteResponse, 0, len(mutes))
	for group, until := range mutes {
		out = append(out, MuteResponse{Group: group, Until: until})
	}
	c.JSON(http.StatusOK, out)
}

// SetMute godoc
// @Summary      Mute a group
// @Description  Notifications in the group are delivered passive and silent until the mute ends.
// @Tags         mutes
// @Accept       json
// @Produce      json
// @Param        group  path      string       true  "Group"
// @Param        mute   body      MuteRequest  true  "Duration or end time"
// @Success      200    {object}  MuteResponse
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /mutes/{group} [put]
func (h *Handler) SetMute(c *gin.Context) {
	var req MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}

	now := h.deps.Now()
	var until time.Time
	switch {
	case req.Until != nil:
		until = *req.Until
	case req.Duration != "":
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			h.BadRequest(c, err)
			return
		}
		until = now.Add(d)
	default:
		h.HandleError(c, errors.ErrValidation.WithMessage("duration or until is required"))
		return
	}
	if !until.After(now) {
		h.HandleError(c, errors.ErrValidation.WithMessage("mute must end in the future"))
		return
	}

	group := c.Param("group")
	if err := h.deps.Preferences.SetMute(c.Request.Context(), group, until); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, MuteResponse{Group: group, Until: until})
}

// ClearMute godoc
// @Summary      Unmute a group
// @Tags         mutes
// @Param        group  path  string  true  "Group"
// @Success      204    "No Content"
// @Router       /mutes/{group} [delete]
func (h *Handler) ClearMute(c *gin.Context) {
	if err := h.deps.Preferences.ClearMute(c.Request.Context(), c.Param("group")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSettings godoc
// @Summary      Get preferences
// @Tags         settings
// @Produce      json
// @Success      200  {object}  preferences.Settings
// @Router       /settings [get]
func (h *Handler) GetSettings(c *gin.Context) {
	s, err := h.deps.Preferences.Settings(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// UpdateSettings godoc
// @Summary      Update preferences
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        settings  body      UpdateSettingsRequest  true  "Fields to change"
// @Success      200       {object}  preferences.Settings
// @Failure      400       {object}  errors.ErrorResponse
// @Router       /settings [put]
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	s, err := h.deps.Preferences.Settings(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if req.RetentionDays != nil {
		s.RetentionDays = *req.RetentionDays
	}
	if req.DefaultSound != nil {
		s.DefaultSound = strings.TrimSpace(*req.DefaultSound)
	}
	if req.ImageCacheDays != nil {
		if *req.ImageCacheDays < 0 {
			h.HandleError(c, errors.ErrValidation.WithMessage("image_cache_days must not be negative"))
			return
		}
		s.ImageCacheDays = *req.ImageCacheDays
	}
	if req.AutoSaveImages != nil {
		s.AutoSaveImages = *req.AutoSaveImages
	}

	if err := h.deps.Preferences.SaveSettings(ctx, s); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// PutIcon godoc
// @Summary      Store a named icon
// @Description  Pushes can then reference the icon by name. Accepts JSON with base64 data or a url, or a raw image body.
// @Tags         icons
// @Accept       json
// @Accept       image/png
// @Produce      json
// @Param        name  path      string          true  "Icon name"
// @Param        icon  body      PutIconRequest  true  "Icon"
// @Success      200   {object}  cloud.Icon
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      503   {object}  errors.ErrorResponse
// @Router       /icons/{name} [put]
func (h *Handler) PutIcon(c *gin.Context) {
	if h.deps.Icons == nil {
		h.HandleError(c, errors.ErrServiceUnavailable.WithMessage("icon store is not configured"))
		return
	}

	var req PutIconRequest
	if strings.HasPrefix(c.ContentType(), "image/") {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIconBytes+1))
		if err != nil {
			h.BadRequest(c, err)
			return
		}
		if len(data) > maxIconBytes {
			h.HandleError(c, errors.ErrValidation.WithMessage("icon too large"))
			return
		}
		req = PutIconRequest{Data: data, ContentType: c.ContentType()}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err)
		return
	}

	icon := cloud.Icon{
		Name:        c.Param("name"),
		Data:        req.Data,
		URL:         req.URL,
		ContentType: req.ContentType,
		UpdatedAt:   h.deps.Now().UTC(),
	}
	if err := h.deps.Icons.UpsertIcon(c.Request.Context(), icon); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, icon)
}

const maxIconBytes = 1 << 20
