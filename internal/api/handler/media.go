package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/logger"
	"github.com/timmy/picgallery/internal/pager"
	"github.com/timmy/picgallery/internal/service"
)

// MediaHandler handles save, share and the saved image list.
type MediaHandler struct {
	sessions *service.SessionManager
	media    *service.MediaService
}

// NewMediaHandler creates a new media handler.
// Parameters:
//   - sessions: session manager used to resolve images.
//   - media: media service performing save and share.
// Returns:
//   - *MediaHandler: initialized handler.
func NewMediaHandler(sessions *service.SessionManager, media *service.MediaService) *MediaHandler {
	return &MediaHandler{sessions: sessions, media: media}
}

// SavedListResponse is the body of GET /api/v1/saved.
type SavedListResponse struct {
	Items  []domain.SavedImage `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// Save handles POST /api/v1/sessions/:id/images/:imageId/save.
func (h *MediaHandler) Save(c *gin.Context) {
	img, ok := h.resolve(c)
	if !ok {
		return
	}

	saved, err := h.media.Save(c.Request.Context(), img)
	if err != nil {
		h.mediaError(c, "save", err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// Share handles POST /api/v1/sessions/:id/images/:imageId/share.
func (h *MediaHandler) Share(c *gin.Context) {
	img, ok := h.resolve(c)
	if !ok {
		return
	}

	link, err := h.media.Share(c.Request.Context(), img)
	if err != nil {
		h.mediaError(c, "share", err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// ListSaved handles GET /api/v1/saved.
func (h *MediaHandler) ListSaved(c *gin.Context) {
	kind := domain.SavedKind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be save or share"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	images, total, err := h.media.ListSaved(c.Request.Context(), kind, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list saved images: " + err.Error()})
		return
	}
	if images == nil {
		images = []domain.SavedImage{}
	}

	c.JSON(http.StatusOK, SavedListResponse{Items: images, Total: total, Limit: limit, Offset: offset})
}

func (h *MediaHandler) resolve(c *gin.Context) (domain.ImageRecord, bool) {
	ctx := logger.WithFields(c.Request.Context(), logger.Fields{
		logger.FieldSessionID: c.Param("id"),
		logger.FieldImageID:   c.Param("imageId"),
	})
	c.Request = c.Request.WithContext(ctx)

	img, err := h.sessions.FindImage(ctx, c.Param("id"), c.Param("imageId"))
	switch {
	case err == nil:
		return img, true
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrImageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.mediaError(c, "resolve", pager.Classify(err))
	}
	return domain.ImageRecord{}, false
}

func (h *MediaHandler) mediaError(c *gin.Context, action string, err error) {
	var fe *pager.FetchError
	switch {
	case errors.As(err, &fe):
		logger.CtxWarn(c.Request.Context(), "Image %s failed upstream: %v", action, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": fe.Message, "error_kind": fe.Kind})
	case errors.Is(err, service.ErrNotAnImage), errors.Is(err, service.ErrNoDownloadURL):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logger.CtxError(c.Request.Context(), "Image %s failed: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action + " image: " + err.Error()})
	}
}
