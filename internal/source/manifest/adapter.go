package manifest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/source"
)

// Adapter implements source.PageSource over a JSON Lines file of image records.
// It serves the same page/limit contract as the remote listing and is used for offline browsing.
type Adapter struct {
	path     string
	sourceID string

	mu     sync.Mutex
	items  []domain.ImageRecord
	loaded bool
}

// NewAdapter creates a new manifest adapter.
// Parameters:
//   - path: path to the manifest file.
//   - sourceID: identifier for this source.
// Returns:
//   - *Adapter: adapter that lazily loads the manifest on first fetch.
func NewAdapter(path, sourceID string) *Adapter {
	return &Adapter{
		path:     path,
		sourceID: sourceID,
	}
}

// NewFromRecords creates an adapter over records already in memory.
func NewFromRecords(sourceID string, records []domain.ImageRecord) *Adapter {
	items := make([]domain.ImageRecord, len(records))
	copy(items, records)
	return &Adapter{
		sourceID: sourceID,
		items:    items,
		loaded:   true,
	}
}

// GetSourceID returns the unique identifier for this source.
// Parameters: none.
// Returns:
//   - string: source identifier with "manifest:" prefix.
func (a *Adapter) GetSourceID() string {
	return "manifest:" + a.sourceID
}

// FetchPage returns one page of the manifest.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - page: 1-based page number.
//   - limit: maximum number of records.
// Returns:
//   - []domain.ImageRecord: page contents, empty past the end.
//   - error: non-nil if the manifest cannot be loaded.
func (a *Adapter) FetchPage(ctx context.Context, page, limit int) ([]domain.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		a.loaded = true
	}

	start, end := source.Bounds(page, limit, len(a.items))
	batch := make([]domain.ImageRecord, end-start)
	copy(batch, a.items[start:end])
	return batch, nil
}

// Len returns the number of records in the manifest.
func (a *Adapter) Len() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return 0, err
		}
		a.loaded = true
	}
	return len(a.items), nil
}

// loadItems reads the manifest line by line (JSON Lines format)
func (a *Adapter) loadItems() error {
	file, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	a.items = []domain.ImageRecord{}

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record domain.ImageRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if record.ID == "" {
			continue
		}
		a.items = append(a.items, record)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}
	return nil
}
