package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/timmy/picgallery/internal/domain"
)

// PageSource defines the interface for paged image listings.
type PageSource interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// FetchPage fetches one page of image records.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - page: 1-based page number.
	//   - limit: maximum number of records on the page.
	// Returns:
	//   - records: the page, shorter than limit (possibly empty) only on the final page.
	//   - err: transport failure or *StatusError.
	FetchPage(ctx context.Context, page, limit int) (records []domain.ImageRecord, err error)
}

// StatusError is returned when the remote side answers with a non-success status.
type StatusError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected status: %s", e.Status)
	}
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Bounds returns the [start, end) indexes of a page within a list of n items.
// Pages are 1-based; a page past the end yields an empty range.
func Bounds(page, limit, n int) (int, int) {
	if page < 1 || limit < 1 {
		return 0, 0
	}
	start := (page - 1) * limit
	if start >= n {
		return n, n
	}
	end := start + limit
	if end > n {
		end = n
	}
	return start, end
}
