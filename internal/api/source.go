package api

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/omnidash/internal/config"
	"github.com/thesavant42/omnidash/internal/models"
)

// WaybackSource is every Wayback operation the application needs.
// The live client and the demo source both satisfy it; the choice is made once at startup.
type WaybackSource interface {
	CheckAvailability(ctx context.Context, targetURL string) (*models.WaybackAvailability, error)
	FetchCDX(ctx context.Context, targetURL string, limit int) ([]models.CDXRecord, error)
	SavePageNow(ctx context.Context, targetURL, accessKey, secretKey string) (*models.SaveResult, error)
	DownloadSnapshotContent(ctx context.Context, waybackURL string) (string, error)
}

// ItemSource covers archive.org item lookups
type ItemSource interface {
	FetchMetadata(ctx context.Context, identifier string) (*models.ItemMetadata, error)
	FetchViews(ctx context.Context, identifier string) (*models.ItemViews, error)
}

var (
	_ WaybackSource = (*WaybackClient)(nil)
	_ WaybackSource = (*MockSource)(nil)
	_ ItemSource    = (*ItemClient)(nil)
	_ ItemSource    = (*MockSource)(nil)
)

// NewFetcherFromConfig builds the proxy-aware fetcher described by cfg
func NewFetcherFromConfig(cfg *config.Config, logger *log.Logger) *Fetcher {
	return NewFetcher(
		&http.Client{Timeout: cfg.HTTPTimeout},
		cfg.CORSProxy,
		FallbackStrategies(cfg.FallbackProxies, cfg.FallbackTimeout),
		logger,
	)
}

// NewSources selects live or demo implementations according to cfg.DemoMode
func NewSources(cfg *config.Config, logger *log.Logger) (WaybackSource, ItemSource) {
	if cfg.DemoMode {
		if logger != nil {
			logger.Info("Demo mode enabled, serving canned data")
		}
		mock := NewMockSource(cfg.DemoLatency, cfg.ReplayBase)
		return mock, mock
	}

	fetcher := NewFetcherFromConfig(cfg, logger)
	wayback := NewWaybackClient(fetcher, WaybackEndpoints{
		Availability: cfg.AvailabilityEndpoint,
		CDX:          cfg.CDXEndpoint,
		Save:         cfg.SaveEndpoint,
		Replay:       cfg.ReplayBase,
	}, logger)
	items := NewItemClient(fetcher, cfg.MetadataEndpoint, cfg.ViewsEndpoint, logger)
	return wayback, items
}
