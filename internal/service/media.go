package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/logger"
	"github.com/timmy/picgallery/internal/pager"
	"github.com/timmy/picgallery/internal/repository"
	"github.com/timmy/picgallery/internal/source"
	"github.com/timmy/picgallery/internal/storage"
	_ "golang.org/x/image/webp"
)

var (
	ErrNoDownloadURL = errors.New("image has no download URL")
	ErrNotAnImage    = errors.New("downloaded content is not a supported image")
)

// MediaObserver receives one call per save or share attempt.
type MediaObserver interface {
	MediaObserved(kind string, err error)
}

// MediaConfig holds configuration for the media service
type MediaConfig struct {
	DownloadTimeout time.Duration
	MaxBytes        int64
	ShareTTL        time.Duration
}

// ShareLink is a hand-off URL for a shared image.
type ShareLink struct {
	URL       string             `json:"url"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
	Image     *domain.SavedImage `json:"image"`
}

// MediaService saves and shares individual images.
type MediaService struct {
	client   *resty.Client
	storage  storage.ObjectStorage
	repo     *repository.SavedImageRepository
	observer MediaObserver
	logger   *logger.Logger
	shareTTL time.Duration
	now      func() time.Time
}

// NewMediaService creates a new media service
func NewMediaService(
	objectStorage storage.ObjectStorage,
	repo *repository.SavedImageRepository,
	observer MediaObserver,
	log *logger.Logger,
	cfg *MediaConfig,
) *MediaService {
	client := resty.New()
	if cfg.DownloadTimeout > 0 {
		client.SetTimeout(cfg.DownloadTimeout)
	}
	if cfg.MaxBytes > 0 {
		client.SetResponseBodyLimit(int(cfg.MaxBytes))
	}

	shareTTL := cfg.ShareTTL
	if shareTTL <= 0 {
		shareTTL = 24 * time.Hour
	}

	if log == nil {
		log = logger.GetDefault()
	}

	return &MediaService{
		client:   client,
		storage:  objectStorage,
		repo:     repo,
		observer: observer,
		logger:   log,
		shareTTL: shareTTL,
		now:      time.Now,
	}
}

// log returns a logger from context if available, otherwise returns the service logger
func (s *MediaService) log(ctx context.Context) *logger.Logger {
	if l, ok := logger.Lookup(ctx); ok {
		return l
	}
	return s.logger
}

// download holds the fetched bytes and what was read from the image header.
type download struct {
	data   []byte
	md5    string
	format string
	width  int
	height int
}

// Save stores a copy of the image under a content-addressed key and records it.
// Parameters:
//   - ctx: context for download, upload and database calls.
//   - img: image to save.
// Returns:
//   - *domain.SavedImage: stored row.
//   - error: *pager.FetchError for download failures, otherwise a wrapped storage or database error.
func (s *MediaService) Save(ctx context.Context, img domain.ImageRecord) (saved *domain.SavedImage, err error) {
	entry := s.log(ctx).Start("save").With(logger.Fields{logger.FieldImageID: img.ID})
	defer func() {
		s.observe(domain.SavedKindSave, err)
		entry.Done(err)
	}()

	dl, err := s.fetch(ctx, img)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("saved/%s/%s.%s", dl.md5[:2], dl.md5, extension(dl.format))
	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check storage existence: %w", err)
	}
	if !exists {
		if err := s.storage.Upload(ctx, key, bytes.NewReader(dl.data), int64(len(dl.data)), contentType(dl.format)); err != nil {
			return nil, fmt.Errorf("failed to upload to storage: %w", err)
		}
	} else {
		s.log(ctx).WithField("storage_key", key).Debug("File already exists in storage, skipping upload")
	}

	saved = s.record(img, domain.SavedKindSave, key, s.storage.GetURL(key), dl)
	if err := s.repo.Upsert(ctx, saved); err != nil {
		return nil, fmt.Errorf("failed to save to database: %w", err)
	}

	entry.WithSize(len(dl.data)).With(logger.Fields{"storage_key": key})
	return saved, nil
}

// Share stores the image under a per-image key and returns a link to it.
// Storage backends that can presign produce a link that expires after the share TTL.
// Parameters:
//   - ctx: context for download, upload and database calls.
//   - img: image to share.
// Returns:
//   - *ShareLink: link and stored row.
//   - error: *pager.FetchError for download failures, otherwise a wrapped storage or database error.
func (s *MediaService) Share(ctx context.Context, img domain.ImageRecord) (link *ShareLink, err error) {
	entry := s.log(ctx).Start("share").With(logger.Fields{logger.FieldImageID: img.ID})
	defer func() {
		s.observe(domain.SavedKindShare, err)
		entry.Done(err)
	}()

	dl, err := s.fetch(ctx, img)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("shared/%s.%s", safeKeyPart(img.ID), extension(dl.format))
	if err := s.storage.Upload(ctx, key, bytes.NewReader(dl.data), int64(len(dl.data)), contentType(dl.format)); err != nil {
		return nil, fmt.Errorf("failed to upload to storage: %w", err)
	}

	link = &ShareLink{URL: s.storage.GetURL(key)}
	if p, ok := s.storage.(storage.Presigner); ok {
		url, err := p.PresignGet(ctx, key, s.shareTTL)
		if err != nil {
			return nil, err
		}
		expires := s.now().Add(s.shareTTL)
		link.URL = url
		link.ExpiresAt = &expires
	}

	shared := s.record(img, domain.SavedKindShare, key, link.URL, dl)
	if err := s.repo.Upsert(ctx, shared); err != nil {
		return nil, fmt.Errorf("failed to save to database: %w", err)
	}
	link.Image = shared

	entry.WithSize(len(dl.data)).With(logger.Fields{"storage_key": key})
	return link, nil
}

// ListSaved returns saved or shared rows newest first, with the total count.
// Parameters:
//   - ctx: context for database calls.
//   - kind: filter; empty lists both kinds.
//   - limit: page size, clamped to [1, 100] with 20 as default.
//   - offset: rows to skip.
// Returns:
//   - []domain.SavedImage: rows.
//   - int64: total rows for the filter.
//   - error: non-nil if the query fails.
func (s *MediaService) ListSaved(ctx context.Context, kind domain.SavedKind, limit, offset int) ([]domain.SavedImage, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	images, err := s.repo.List(ctx, kind, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list saved images: %w", err)
	}
	total, err := s.repo.Count(ctx, kind)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count saved images: %w", err)
	}
	return images, total, nil
}

// fetch downloads the image bytes and reads the header.
func (s *MediaService) fetch(ctx context.Context, img domain.ImageRecord) (*download, error) {
	if img.DownloadURL == "" {
		return nil, ErrNoDownloadURL
	}

	resp, err := s.client.R().SetContext(ctx).Get(img.DownloadURL)
	if err != nil {
		return nil, pager.Classify(fmt.Errorf("failed to download image: %w", err))
	}
	if resp.IsError() {
		return nil, pager.Classify(&source.StatusError{StatusCode: resp.StatusCode(), Status: resp.Status()})
	}

	data := resp.Body()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	return &download{
		data:   data,
		md5:    calculateMD5(data),
		format: format,
		width:  cfg.Width,
		height: cfg.Height,
	}, nil
}

func (s *MediaService) record(img domain.ImageRecord, kind domain.SavedKind, key, url string, dl *download) *domain.SavedImage {
	return &domain.SavedImage{
		ImageID:    img.ID,
		Kind:       kind,
		Author:     img.Author,
		SourceURL:  img.DownloadURL,
		StorageKey: key,
		URL:        url,
		Width:      dl.width,
		Height:     dl.height,
		Format:     dl.format,
		FileSize:   int64(len(dl.data)),
		MD5Hash:    dl.md5,
	}
}

func (s *MediaService) observe(kind domain.SavedKind, err error) {
	if s.observer != nil {
		s.observer.MediaObserved(string(kind), err)
	}
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// safeKeyPart keeps an image ID usable as a single storage key segment.
func safeKeyPart(id string) string {
	return unsafeKeyChars.ReplaceAllString(id, "_")
}

func extension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

func contentType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
