package picsum

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apibillme/cache"
	"github.com/go-resty/resty/v2"
	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/source"
)

const (
	SourceID   = "picsum"
	SourceName = "Lorem Picsum"

	// DefaultBaseURL is the public listing API host.
	DefaultBaseURL = "https://picsum.photos"

	listPath = "/v2/list"
	infoPath = "/id/{id}/info"
)

// Config holds configuration for the picsum adapter.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// Adapter implements source.PageSource for the picsum listing API.
type Adapter struct {
	client *resty.Client
	pages  cache.Cache
}

// NewAdapter creates a new picsum adapter.
// Parameters:
//   - cfg: adapter configuration; zero values fall back to defaults.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(cfg *Config) *Adapter {
	if cfg == nil {
		cfg = &Config{}
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	a := &Adapter{client: client}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		a.pages = cache.New(cfg.CacheSize, cache.WithTTL(cfg.CacheTTL))
	}
	return a
}

// GetSourceID returns the unique identifier for this source
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// GetDisplayName returns a human-readable name for this source
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

// FetchPage fetches one page of the listing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - page: 1-based page number.
//   - limit: page size.
// Returns:
//   - []domain.ImageRecord: records on the page.
//   - error: *source.StatusError for non-2xx answers, wrapped transport error otherwise.
func (a *Adapter) FetchPage(ctx context.Context, page, limit int) ([]domain.ImageRecord, error) {
	key := cacheKey(page, limit)
	if a.pages != nil {
		if cached, ok := a.pages.Get(key); ok {
			if records, ok := cached.([]domain.ImageRecord); ok {
				return copyRecords(records), nil
			}
		}
	}

	var records []domain.ImageRecord
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		}).
		ForceContentType("application/json").
		SetResult(&records).
		Get(listPath)
	if err != nil {
		return nil, fmt.Errorf("failed to call listing API: %w", err)
	}
	if resp.IsError() {
		return nil, &source.StatusError{StatusCode: resp.StatusCode(), Status: resp.Status()}
	}
	if records == nil {
		records = []domain.ImageRecord{}
	}

	// Empty pages are not cached so a later refresh can see new data.
	if a.pages != nil && len(records) > 0 {
		a.pages.Set(key, copyRecords(records))
	}
	return records, nil
}

// Get fetches the metadata of a single image.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: image ID.
// Returns:
//   - *domain.ImageRecord: the record.
//   - error: *source.StatusError (404 for unknown IDs) or wrapped transport error.
func (a *Adapter) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	var record domain.ImageRecord
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		ForceContentType("application/json").
		SetResult(&record).
		Get(infoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to call info API: %w", err)
	}
	if resp.IsError() {
		return nil, &source.StatusError{StatusCode: resp.StatusCode(), Status: resp.Status()}
	}
	return &record, nil
}

func cacheKey(page, limit int) string {
	return strconv.Itoa(page) + ":" + strconv.Itoa(limit)
}

func copyRecords(records []domain.ImageRecord) []domain.ImageRecord {
	out := make([]domain.ImageRecord, len(records))
	copy(out, records)
	return out
}
