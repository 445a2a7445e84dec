package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/logger"
	"github.com/timmy/picgallery/internal/pager"
	"github.com/timmy/picgallery/internal/source"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrImageNotFound   = errors.New("image not found")
)

// ImageResolver looks up a single image by ID outside of any session.
type ImageResolver interface {
	Get(ctx context.Context, id string) (*domain.ImageRecord, error)
}

// SessionGauge receives the number of open sessions after every change.
type SessionGauge interface {
	SetActiveSessions(n int)
}

// Session is one browsing context. It owns exactly one cursor.
type Session struct {
	ID        string
	Cursor    *pager.Cursor
	CreatedAt time.Time

	lastSeen atomic.Int64 // unix nanos
}

// LastSeen returns the time of the last access.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// SessionOptions configures a SessionManager.
type SessionOptions struct {
	PageSize    int
	MaxItems    int
	Dedupe      bool
	TTL         time.Duration // idle time after which Sweep closes a session
	MaxSessions int           // 0 means unlimited

	Resolver ImageResolver // optional fallback for FindImage
	Observer pager.Observer
	Gauge    SessionGauge
}

// SessionManager owns the cursors of all open sessions.
type SessionManager struct {
	src  source.PageSource
	opts SessionOptions
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager whose sessions page over src.
// Parameters:
//   - src: page source shared by all sessions.
//   - opts: cursor defaults, limits and optional collaborators.
// Returns:
//   - *SessionManager: empty manager.
func NewSessionManager(src source.PageSource, opts SessionOptions) *SessionManager {
	return &SessionManager{
		src:      src,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session and loads its first page.
// A failed first fetch does not fail creation; it is reported in the cursor snapshot.
// Parameters:
//   - ctx: context for the first fetch.
//   - pageSize: page size for this session; <= 0 uses the configured default.
// Returns:
//   - *Session: the new session.
//   - error: ErrTooManySessions when the limit is reached.
func (m *SessionManager) Create(ctx context.Context, pageSize int) (*Session, error) {
	if pageSize <= 0 {
		pageSize = m.opts.PageSize
	}

	now := m.now()
	sess := &Session{
		ID: uuid.New().String(),
		Cursor: pager.New(m.src, pager.Options{
			PageSize: pageSize,
			MaxItems: m.opts.MaxItems,
			Dedupe:   m.opts.Dedupe,
			Observer: m.opts.Observer,
		}),
		CreatedAt: now,
	}
	sess.touch(now)

	m.mu.Lock()
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.sessions[sess.ID] = sess
	n := len(m.sessions)
	m.mu.Unlock()
	m.report(n)

	ctx = logger.SetSessionID(ctx, sess.ID)
	logger.CtxInfo(ctx, "Session created (source=%s, page_size=%d)", m.src.GetSourceID(), sess.Cursor.Snapshot().PageSize)

	_, _ = sess.Cursor.RequestNext(ctx)
	return sess, nil
}

// Get returns an open session and marks it as used.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(m.now())
	return sess, nil
}

// Close discards a session and its cursor.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	sess.Cursor.Close()
	m.report(n)
	return nil
}

// CloseAll discards every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Cursor.Close()
	}
	m.report(0)
}

// Sweep closes sessions idle for longer than the configured TTL.
// Parameters:
//   - now: reference time.
// Returns:
//   - int: number of sessions closed.
func (m *SessionManager) Sweep(now time.Time) int {
	if m.opts.TTL <= 0 {
		return 0
	}

	var expired []*Session
	m.mu.Lock()
	for id, sess := range m.sessions {
		if now.Sub(sess.LastSeen()) > m.opts.TTL {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Cursor.Close()
	}
	if len(expired) > 0 {
		m.report(n)
	}
	return len(expired)
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx = logger.SetComponent(ctx, "session_janitor")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				logger.FromContext(ctx).WithField(logger.FieldCount, n).Info("Expired sessions closed")
			}
		}
	}
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// FindImage returns an image from the session's accumulated list, falling back to the resolver.
// Parameters:
//   - ctx: context for the resolver lookup.
//   - sessionID: open session.
//   - imageID: image to find.
// Returns:
//   - domain.ImageRecord: the image.
//   - error: ErrSessionNotFound, ErrImageNotFound, or a resolver failure.
func (m *SessionManager) FindImage(ctx context.Context, sessionID, imageID string) (domain.ImageRecord, error) {
	sess, err := m.Get(sessionID)
	if err != nil {
		return domain.ImageRecord{}, err
	}
	if img, ok := sess.Cursor.Find(imageID); ok {
		return img, nil
	}
	if m.opts.Resolver == nil {
		return domain.ImageRecord{}, ErrImageNotFound
	}

	img, err := m.opts.Resolver.Get(ctx, imageID)
	if err != nil {
		var se *source.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return domain.ImageRecord{}, ErrImageNotFound
		}
		return domain.ImageRecord{}, fmt.Errorf("failed to resolve image %s: %w", imageID, err)
	}
	return *img, nil
}

func (m *SessionManager) report(n int) {
	if m.opts.Gauge != nil {
		m.opts.Gauge.SetActiveSessions(n)
	}
}
