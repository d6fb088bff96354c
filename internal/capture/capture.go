// Package capture downloads Wayback captures and persists them as snapshots.
package capture

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/thesavant42/omnidash/internal/api"
	"github.com/thesavant42/omnidash/internal/models"
)

// SnapshotStore persists downloaded snapshots
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s models.SavedSnapshot) error
}

// Options tune the download pipeline
type Options struct {
	ReplayBase  string
	Concurrency int     // parallel downloads, minimum 1
	RateLimit   float64 // downloads started per second, 0 means unlimited
}

// Service downloads captures and stores them
type Service struct {
	source      api.WaybackSource
	store       SnapshotStore
	replayBase  string
	concurrency int
	limiter     *rate.Limiter
	logger      *log.Logger
	now         func() time.Time
}

// NewService creates a capture service
func NewService(source api.WaybackSource, store SnapshotStore, opts Options, logger *log.Logger) *Service {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Service{
		source:      source,
		store:       store,
		replayBase:  opts.ReplayBase,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
		now:         time.Now,
	}
}

// Capture downloads one CDX record and stores it.
// Nothing is stored when the download fails.
func (s *Service) Capture(ctx context.Context, rec models.CDXRecord) (*models.SavedSnapshot, error) {
	waybackURL := api.ReplayURL(s.replayBase, rec.Timestamp, rec.Original)

	content, err := s.source.DownloadSnapshotContent(ctx, waybackURL)
	if err != nil {
		return nil, err
	}

	snap := models.SavedSnapshot{
		ID:          models.SnapshotID(rec.Timestamp, rec.Original),
		URL:         waybackURL,
		OriginalURL: rec.Original,
		Timestamp:   rec.Timestamp,
		SavedAt:     s.now().UnixMilli(),
		Content:     content,
		MimeType:    rec.MimeType,
	}
	if snap.MimeType == "" {
		snap.MimeType = "text/html"
	}

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("Snapshot saved", "id", snap.ID, "bytes", len(content))
	}
	return &snap, nil
}

// replayPath captures the timestamp and original URL of a replay URL
var replayPath = regexp.MustCompile(`/web/(\d{1,14})(?:[a-z]{2}_)?/(.+)$`)

// ParseReplayURL splits a Wayback replay URL into its capture timestamp and original URL
func ParseReplayURL(waybackURL string) (models.CDXRecord, error) {
	m := replayPath.FindStringSubmatch(waybackURL)
	if m == nil {
		return models.CDXRecord{}, fmt.Errorf("not a Wayback replay URL: %s", waybackURL)
	}
	return models.CDXRecord{Timestamp: m[1], Original: m[2]}, nil
}

// Progress reports one finished job of CaptureAll
type Progress struct {
	Done  int
	Total int
	ID    string
	Err   error
}

// Result summarizes a CaptureAll run
type Result struct {
	Saved      []models.SavedSnapshot
	Failed     map[string]error
	Duplicates int // records skipped because an earlier record had the same id
}

// CaptureAll downloads every record with bounded concurrency.
// Records sharing a snapshot id are downloaded once, so no id is ever written concurrently.
// Individual failures land in Result.Failed; cancelling ctx stops new downloads and is returned.
func (s *Service) CaptureAll(ctx context.Context, records []models.CDXRecord, progress func(Progress)) (*Result, error) {
	unique := make([]models.CDXRecord, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		id := models.SnapshotID(rec.Timestamp, rec.Original)
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, rec)
	}

	result := &Result{
		Saved:      make([]models.SavedSnapshot, 0, len(unique)),
		Failed:     make(map[string]error),
		Duplicates: len(records) - len(unique),
	}

	var mu sync.Mutex
	done := 0
	finish := func(id string, snap *models.SavedSnapshot, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			result.Failed[id] = err
		} else {
			result.Saved = append(result.Saved, *snap)
		}
		if progress != nil {
			progress(Progress{Done: done, Total: len(unique), ID: id, Err: err})
		}
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, rec := range unique {
		if ctx.Err() != nil {
			break
		}
		rec := rec
		g.Go(func() error {
			id := models.SnapshotID(rec.Timestamp, rec.Original)
			if err := s.limiter.Wait(ctx); err != nil {
				finish(id, nil, err)
				return nil
			}
			snap, err := s.Capture(ctx, rec)
			if err != nil && s.logger != nil {
				s.logger.Warn("Snapshot download failed", "id", id, "err", err)
			}
			finish(id, snap, err)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
