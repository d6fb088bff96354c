package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/thesavant42/omnidash/internal/capture"
	"github.com/thesavant42/omnidash/internal/db"
	"github.com/thesavant42/omnidash/internal/models"
	"github.com/thesavant42/omnidash/internal/timeline"
	"github.com/thesavant42/omnidash/internal/ui"
)

func cmdAvailable(ctx context.Context, a *app, args []string) error {
	target, err := targetArg(args, "available <url>")
	if err != nil {
		return err
	}

	var avail *models.WaybackAvailability
	err = spin(ctx, "Checking availability...", func(ctx context.Context) (err error) {
		avail, err = a.wayback.CheckAvailability(ctx, target)
		return err
	})
	if err != nil {
		return fmt.Errorf("availability check failed: %w", err)
	}
	a.printf("%s", ui.RenderAvailability(avail))
	return nil
}

// loadCDX fetches the capture list and refreshes the local cache,
// or reads the cache alone when cached is set
func (a *app) loadCDX(ctx context.Context, target string, limit int, cached bool) ([]models.CDXRecord, error) {
	if cached {
		records, fetchedAt, err := a.store.GetCachedCDX(ctx, target)
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("no cached captures for %s; run without --cached first", target)
		}
		if err != nil {
			return nil, err
		}
		ui.PrintInfo(fmt.Sprintf("Using cached captures from %s", fetchedAt.Local().Format("2006-01-02 15:04")))
		return records, nil
	}

	var records []models.CDXRecord
	err := spin(ctx, "Fetching captures for "+target+"...", func(ctx context.Context) (err error) {
		records, err = a.wayback.FetchCDX(ctx, target, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("CDX query failed: %w", err)
	}

	if err := a.store.CacheCDXRecords(ctx, target, records); err != nil {
		a.logger.Warn("Failed to cache CDX records", "url", target, "err", err)
	}
	return records, nil
}

func cmdCDX(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("cdx", flag.ContinueOnError)
	limit := fs.Int("limit", a.cfg.CDXLimit, "Maximum captures (negative counts from the newest)")
	year := fs.String("year", "", "Only captures from this year")
	cached := fs.Bool("cached", false, "Read the local cache instead of querying")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	target, err := targetArg(args, "cdx <url> [--limit N] [--year YYYY] [--cached]")
	if err != nil {
		return err
	}

	records, err := a.loadCDX(ctx, target, *limit, *cached)
	if err != nil {
		return err
	}
	records = timeline.FilterByYear(records, *year)
	a.printf("%s", ui.RenderCDXTable(records, ui.DefaultLayout().InnerWidth))
	return nil
}

func cmdTimeline(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	cached := fs.Bool("cached", false, "Read the local cache instead of querying")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	target, err := targetArg(args, "timeline <url> [--cached]")
	if err != nil {
		return err
	}

	records, err := a.loadCDX(ctx, target, a.cfg.CDXLimit, *cached)
	if err != nil {
		return err
	}
	ui.PrintHeader("Capture timeline", target)
	a.printf("%s", ui.RenderTimeline(timeline.Build(records), ui.DefaultLayout().InnerWidth))
	if latest, ok := timeline.Latest(records); ok {
		a.printf("Latest capture: %s\n", models.FormatWaybackTimestamp(latest.Timestamp))
	}
	return nil
}

func cmdSave(ctx context.Context, a *app, args []string) error {
	target, err := targetArg(args, "save <url>")
	if err != nil {
		return err
	}
	accessKey, secretKey := a.credentials()

	var result *models.SaveResult
	err = spin(ctx, "Requesting capture...", func(ctx context.Context) (err error) {
		result, err = a.wayback.SavePageNow(ctx, target, accessKey, secretKey)
		return err
	})
	if err != nil {
		return err
	}
	ui.PrintSuccess(result.Message)
	return nil
}

func (a *app) captureService(concurrency int) *capture.Service {
	if concurrency < 1 {
		concurrency = a.cfg.Concurrency
	}
	return capture.NewService(a.wayback, a.store, capture.Options{
		ReplayBase:  a.cfg.ReplayBase,
		Concurrency: concurrency,
		RateLimit:   a.cfg.RateLimit,
	}, a.logger)
}

func cmdDownload(ctx context.Context, a *app, args []string) error {
	var rec models.CDXRecord
	switch len(args) {
	case 1:
		parsed, err := capture.ParseReplayURL(args[0])
		if err != nil {
			return err
		}
		rec = parsed
	case 2:
		rec = models.CDXRecord{Timestamp: args[0], Original: args[1]}
	default:
		return needArgs(args, 1, "download <waybackURL | timestamp original>")
	}

	var snap *models.SavedSnapshot
	err := spin(ctx, "Downloading "+rec.Original+"...", func(ctx context.Context) (err error) {
		snap, err = a.captureService(1).Capture(ctx, rec)
		return err
	})
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Saved %s (%d bytes)", snap.ID, len(snap.Content)))
	return nil
}

func cmdDownloadAll(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("download-all", flag.ContinueOnError)
	year := fs.String("year", "", "Only captures from this year")
	concurrency := fs.Int("concurrency", a.cfg.Concurrency, "Parallel downloads")
	pick := fs.Bool("pick", false, "Choose captures interactively")
	includeErrors := fs.Bool("include-errors", false, "Also download 4xx/5xx captures")
	cached := fs.Bool("cached", false, "Read the capture list from the local cache")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	target, err := targetArg(args, "download-all <url> [--year YYYY] [--pick] [--include-errors]")
	if err != nil {
		return err
	}

	records, err := a.loadCDX(ctx, target, a.cfg.CDXLimit, *cached)
	if err != nil {
		return err
	}
	records = timeline.FilterByYear(records, *year)
	if !*includeErrors {
		kept := records[:0:0]
		for _, r := range records {
			if c := timeline.StatusClass(r.StatusCode); c != "4xx" && c != "5xx" {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	if *pick && interactive() {
		records, err = ui.PickRecords("Select captures of "+target, records)
		if err != nil {
			return err
		}
	}
	if len(records) == 0 {
		ui.PrintInfo("Nothing to download.")
		return nil
	}

	start := time.Now()
	failed := 0
	result, err := a.captureService(*concurrency).CaptureAll(ctx, records, func(p capture.Progress) {
		if p.Err != nil {
			failed++
		}
		ui.PrintProgress(p.Done, p.Total, failed)
	})
	if result != nil {
		ui.PrintSuccess(fmt.Sprintf("Saved %d snapshots in %s", len(result.Saved), time.Since(start).Round(time.Second)))
		if result.Duplicates > 0 {
			ui.PrintInfo(fmt.Sprintf("Skipped %d duplicate captures", result.Duplicates))
		}
		if len(result.Failed) > 0 {
			ids := make([]string, 0, len(result.Failed))
			for id, ferr := range result.Failed {
				ids = append(ids, fmt.Sprintf("  %s: %v", id, ferr))
			}
			ui.PrintError(fmt.Sprintf("%d downloads failed:\n%s", len(result.Failed), strings.Join(ids, "\n")))
		}
	}
	return err
}

func cmdMetadata(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 1, "metadata <identifier>"); err != nil {
		return err
	}
	var meta *models.ItemMetadata
	err := spin(ctx, "Fetching metadata...", func(ctx context.Context) (err error) {
		meta, err = a.items.FetchMetadata(ctx, args[0])
		return err
	})
	if err != nil {
		return fmt.Errorf("metadata lookup failed: %w", err)
	}
	a.printf("%s", ui.RenderMetadata(args[0], meta))
	return nil
}

func cmdViews(ctx context.Context, a *app, args []string) error {
	if err := needArgs(args, 1, "views <identifier>"); err != nil {
		return err
	}
	var views *models.ItemViews
	err := spin(ctx, "Fetching view counts...", func(ctx context.Context) (err error) {
		views, err = a.items.FetchViews(ctx, args[0])
		return err
	})
	if err != nil {
		return fmt.Errorf("views lookup failed: %w", err)
	}
	a.printf("%s", ui.RenderViews(args[0], views))
	return nil
}
