package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/picgallery/internal/logger"
	"github.com/timmy/picgallery/internal/pager"
	"github.com/timmy/picgallery/internal/service"
)

// SessionHandler exposes browsing sessions and their cursors.
type SessionHandler struct {
	sessions    *service.SessionManager
	maxPageSize int
}

// NewSessionHandler creates a new session handler.
// Parameters:
//   - sessions: session manager owning the cursors.
//   - maxPageSize: upper bound for requested page sizes; 0 disables the check.
// Returns:
//   - *SessionHandler: initialized handler.
func NewSessionHandler(sessions *service.SessionManager, maxPageSize int) *SessionHandler {
	return &SessionHandler{sessions: sessions, maxPageSize: maxPageSize}
}

// CreateSessionRequest is the optional body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	PageSize int `json:"page_size"`
}

// PageSizeRequest is the body of PUT /api/v1/sessions/:id/page-size.
type PageSizeRequest struct {
	PageSize *int `json:"page_size" binding:"required"`
}

// SessionResponse is a session snapshot. Fetch failures are reported in
// State and Error rather than as HTTP errors.
type SessionResponse struct {
	ID      string `json:"id"`
	Fetched bool   `json:"fetched"`
	pager.Snapshot
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}
	if !h.validPageSize(c, req.PageSize) {
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), req.PageSize)
	if err != nil {
		if errors.Is(err, service.ErrTooManySessions) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, SessionResponse{ID: sess.ID, Fetched: true, Snapshot: sess.Cursor.Snapshot()})
}

// Get handles GET /api/v1/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SessionResponse{ID: sess.ID, Snapshot: sess.Cursor.Snapshot()})
}

// Next handles POST /api/v1/sessions/:id/next (the list was scrolled to its end).
func (h *SessionHandler) Next(c *gin.Context) {
	h.drive(c, "next", func(ctx context.Context, cur *pager.Cursor) (bool, error) {
		return cur.RequestNext(ctx)
	})
}

// Retry handles POST /api/v1/sessions/:id/retry.
func (h *SessionHandler) Retry(c *gin.Context) {
	h.drive(c, "retry", func(ctx context.Context, cur *pager.Cursor) (bool, error) {
		return cur.Retry(ctx)
	})
}

// Refresh handles POST /api/v1/sessions/:id/refresh (pull-to-refresh).
func (h *SessionHandler) Refresh(c *gin.Context) {
	h.drive(c, "refresh", func(ctx context.Context, cur *pager.Cursor) (bool, error) {
		return cur.Reset(ctx)
	})
}

// SetPageSize handles PUT /api/v1/sessions/:id/page-size.
func (h *SessionHandler) SetPageSize(c *gin.Context) {
	var req PageSizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if !h.validPageSize(c, *req.PageSize) {
		return
	}

	h.drive(c, "page_size", func(ctx context.Context, cur *pager.Cursor) (bool, error) {
		return cur.SetPageSize(ctx, *req.PageSize)
	})
}

// Close handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) lookup(c *gin.Context) (*service.Session, bool) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.SetSessionID(c.Request.Context(), sess.ID))
	return sess, true
}

// drive runs one cursor operation and answers with the resulting snapshot.
func (h *SessionHandler) drive(c *gin.Context, action string, op func(context.Context, *pager.Cursor) (bool, error)) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	fetched, err := op(c.Request.Context(), sess.Cursor)
	if errors.Is(err, pager.ErrClosed) {
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrSessionNotFound.Error()})
		return
	}
	if err != nil {
		var fe *pager.FetchError
		if !errors.As(err, &fe) {
			logger.CtxDebug(c.Request.Context(), "Cursor %s interrupted: %v", action, err)
		}
	}

	c.JSON(http.StatusOK, SessionResponse{ID: sess.ID, Fetched: fetched, Snapshot: sess.Cursor.Snapshot()})
}

func (h *SessionHandler) validPageSize(c *gin.Context, n int) bool {
	if h.maxPageSize > 0 && n > h.maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("page_size must not exceed %d", h.maxPageSize)})
		return false
	}
	return true
}
