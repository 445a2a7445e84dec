package pager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/logger"
	"github.com/timmy/picgallery/internal/source"
)

// DefaultPageSize is used whenever a non-positive page size is requested.
const DefaultPageSize = 20

// ErrClosed is returned by every operation on a closed cursor.
var ErrClosed = errors.New("cursor closed")

// State is the externally visible paging state.
// Values include StateIdle, StateLoading, StateExhausted, and StateError.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateExhausted State = "exhausted"
	StateError     State = "error"
)

// Fetch outcomes reported to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeDropped = "dropped"
)

// Observer receives one call per completed fetch.
type Observer interface {
	FetchObserved(sourceID, outcome string, elapsed time.Duration)
}

// Options configures a Cursor.
type Options struct {
	PageSize int  // records requested per fetch; <= 0 means DefaultPageSize
	MaxItems int  // ceiling on accumulated records; 0 means unbounded
	Dedupe   bool // drop records whose ID is already accumulated
	Observer Observer
}

// Snapshot is a point-in-time copy of a cursor for rendering.
type Snapshot struct {
	Page      int                  `json:"page"`
	PageSize  int                  `json:"page_size"`
	MaxItems  int                  `json:"max_items,omitempty"`
	HasMore   bool                 `json:"has_more"`
	Loading   bool                 `json:"loading"`
	State     State                `json:"state"`
	Error     string               `json:"error,omitempty"`
	ErrorKind ErrorKind            `json:"error_kind,omitempty"`
	Items     []domain.ImageRecord `json:"items"`
}

// Cursor tracks paging progress over a PageSource and owns the accumulated record list.
//
// At most one fetch per generation is in flight: the loading flag guards re-entry and
// the generation counter discards results that complete after Reset, SetPageSize or Close.
// The mutex is never held while fetching.
type Cursor struct {
	src      source.PageSource
	observer Observer

	mu       sync.Mutex
	page     int
	pageSize int
	maxItems int
	dedupe   bool
	hasMore  bool
	loading  bool
	closed   bool
	gen      uint64
	items    []domain.ImageRecord
	seen     map[string]struct{}
	err      *FetchError
}

// New creates a cursor positioned at page 1. No fetch is issued until RequestNext.
// Parameters:
//   - src: page source to read from.
//   - opts: cursor options.
// Returns:
//   - *Cursor: idle cursor.
func New(src source.PageSource, opts Options) *Cursor {
	maxItems := opts.MaxItems
	if maxItems < 0 {
		maxItems = 0
	}
	return &Cursor{
		src:      src,
		observer: opts.Observer,
		page:     1,
		pageSize: normalizePageSize(opts.PageSize),
		maxItems: maxItems,
		dedupe:   opts.Dedupe,
		hasMore:  true,
		items:    []domain.ImageRecord{},
		seen:     make(map[string]struct{}),
	}
}

// RequestNext fetches the next page unless the cursor is exhausted or already loading.
// Parameters:
//   - ctx: context for the fetch; cancelling it drops the result.
// Returns:
//   - bool: true if a fetch was issued.
//   - error: ErrClosed, the context error, or a *FetchError for a failed fetch.
func (c *Cursor) RequestNext(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if !c.hasMore || c.loading {
		c.mu.Unlock()
		return false, nil
	}
	c.loading = true
	gen := c.gen
	page := c.page
	limit := c.pageSize
	c.mu.Unlock()

	start := time.Now()
	records, err := c.src.FetchPage(ctx, page, limit)
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.closed {
		c.observe(OutcomeDropped, elapsed)
		if c.closed {
			return true, ErrClosed
		}
		return true, nil
	}
	c.loading = false

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.observe(OutcomeDropped, elapsed)
			return true, ctxErr
		}
		c.err = Classify(err)
		c.observe(OutcomeError, elapsed)
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldSource: c.src.GetSourceID(),
			logger.FieldPage:   page,
			"error_kind":       c.err.Kind,
		}).WithError(err).Warn("Page fetch failed")
		return true, c.err
	}

	c.appendLocked(records)
	c.page++
	c.hasMore = len(records) > 0
	c.err = nil
	if c.hasMore {
		c.observe(OutcomeSuccess, elapsed)
	} else {
		c.observe(OutcomeEmpty, elapsed)
	}
	return true, nil
}

// Retry re-attempts the page that last failed. It is RequestNext under another name,
// kept separate so callers can express the user action.
func (c *Cursor) Retry(ctx context.Context) (bool, error) {
	return c.RequestNext(ctx)
}

// SetPageSize changes the page size, restarts paging from page 1 and fetches.
// Parameters:
//   - ctx: context for the triggered fetch.
//   - n: new page size; n <= 0 falls back to DefaultPageSize.
// Returns:
//   - bool: true if a fetch was issued.
//   - error: as for RequestNext.
func (c *Cursor) SetPageSize(ctx context.Context, n int) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	c.pageSize = normalizePageSize(n)
	c.restartLocked()
	if len(c.items) > c.pageSize {
		c.items = c.items[:c.pageSize:c.pageSize]
	}
	c.reindexLocked()
	c.mu.Unlock()

	return c.RequestNext(ctx)
}

// Reset clears the accumulated list, restarts paging from page 1 and fetches.
// Used for pull-to-refresh.
func (c *Cursor) Reset(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	c.restartLocked()
	c.items = []domain.ImageRecord{}
	c.seen = make(map[string]struct{})
	c.mu.Unlock()

	return c.RequestNext(ctx)
}

// Close discards the cursor. An in-flight fetch is dropped when it completes.
func (c *Cursor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.loading = false
	c.gen++
}

// Snapshot returns a copy of the current state.
func (c *Cursor) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]domain.ImageRecord, len(c.items))
	copy(items, c.items)

	snap := Snapshot{
		Page:     c.page,
		PageSize: c.pageSize,
		MaxItems: c.maxItems,
		HasMore:  c.hasMore,
		Loading:  c.loading,
		State:    c.stateLocked(),
		Items:    items,
	}
	if c.err != nil {
		snap.Error = c.err.Message
		snap.ErrorKind = c.err.Kind
	}
	return snap
}

// State returns the current paging state.
func (c *Cursor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Find returns the accumulated record with the given ID.
func (c *Cursor) Find(id string) (domain.ImageRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.ImageRecord{}, false
}

// Len returns the number of accumulated records.
func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// SourceID returns the identifier of the underlying page source.
func (c *Cursor) SourceID() string {
	return c.src.GetSourceID()
}

func (c *Cursor) stateLocked() State {
	switch {
	case c.loading:
		return StateLoading
	case c.err != nil:
		return StateError
	case !c.hasMore:
		return StateExhausted
	default:
		return StateIdle
	}
}

// restartLocked rewinds paging and supersedes any in-flight fetch.
func (c *Cursor) restartLocked() {
	c.gen++
	c.loading = false
	c.page = 1
	c.hasMore = true
	c.err = nil
}

func (c *Cursor) appendLocked(records []domain.ImageRecord) {
	for _, r := range records {
		if c.maxItems > 0 && len(c.items) >= c.maxItems {
			return
		}
		if c.dedupe {
			if _, dup := c.seen[r.ID]; dup {
				continue
			}
		}
		c.items = append(c.items, r)
		c.seen[r.ID] = struct{}{}
	}
}

func (c *Cursor) reindexLocked() {
	c.seen = make(map[string]struct{}, len(c.items))
	for _, item := range c.items {
		c.seen[item.ID] = struct{}{}
	}
}

func (c *Cursor) observe(outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.FetchObserved(c.src.GetSourceID(), outcome, elapsed)
	}
}

func normalizePageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return n
}
