// Debug tool to probe CDX fetching through each proxy route
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/log"

	"github.com/thesavant42/omnidash/internal/api"
	"github.com/thesavant42/omnidash/internal/config"
	"github.com/thesavant42/omnidash/internal/ui"
)

type route struct {
	name   string
	prefix string // empty means direct
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fs := flag.NewFlagSet("debug-wayback", flag.ExitOnError)
	limit := fs.Int("limit", 5, "CDX rows to request")
	cfg, args, err := config.Load(fs, os.Args[1:])
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}

	domain := "raspberrypi.com"
	if len(args) > 0 {
		domain = args[0]
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           log.DebugLevel,
		ReportTimestamp: true,
	})

	target := cfg.CDXEndpoint + "?" + api.BuildCDXQuery(domain, *limit)
	fmt.Printf("Testing CDX fetch for domain: %s\n", domain)
	fmt.Printf("Query: %s\n\n", target)

	routes := []route{{name: "direct"}}
	if cfg.CORSProxy != "" {
		routes = append(routes, route{name: "configured proxy", prefix: cfg.CORSProxy})
	}
	for _, s := range api.FallbackStrategies(cfg.FallbackProxies, cfg.FallbackTimeout) {
		routes = append(routes, route{name: s.Name, prefix: s.Prefix})
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	for _, r := range routes {
		probe(ctx, client, r, target, logger)
	}

	// Full chain, as the CLI uses it
	fmt.Println("\n--- Full fallback chain ---")
	source, _ := api.NewSources(cfg, logger)
	var count int
	var chainErr error
	start := time.Now()
	err = spinner.New().
		Title("Fetching through the full chain...").
		Action(func() {
			records, err := source.FetchCDX(ctx, domain, *limit)
			count, chainErr = len(records), err
		}).
		Run()
	if err != nil {
		ui.PrintError(fmt.Sprintf("spinner error: %v", err))
		os.Exit(1)
	}
	if chainErr != nil {
		ui.PrintError(fmt.Sprintf("%v (CORS exhausted: %v)", chainErr, api.IsCORSError(chainErr)))
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("%d records in %s", count, time.Since(start).Round(time.Millisecond)))
}

// probe tries one route with no fallback and reports what came back
func probe(ctx context.Context, client *http.Client, r route, target string, logger *log.Logger) {
	fetcher := api.NewFetcher(client, r.prefix, nil, logger)

	var resp *api.Response
	var fetchErr error
	start := time.Now()
	err := spinner.New().
		Title("Probing " + r.name + "...").
		Action(func() {
			resp, fetchErr = fetcher.Send(ctx, api.Request{Method: http.MethodGet, URL: target})
		}).
		Run()
	elapsed := time.Since(start).Round(time.Millisecond)

	fmt.Printf("--- %s ---\n", r.name)
	if err != nil {
		ui.PrintError(fmt.Sprintf("spinner error: %v", err))
		return
	}
	if resp != nil {
		fmt.Printf("  URL:     %s\n", resp.URL)
		fmt.Printf("  Status:  %d (%s)\n", resp.StatusCode, resp.ContentType())
		fmt.Printf("  Body:    %d bytes in %s\n", len(resp.Body), elapsed)
	}
	if fetchErr != nil {
		ui.PrintError(fetchErr.Error())
		return
	}
	if err := api.ValidateJSONBody(resp); err != nil {
		ui.PrintError(err.Error())
		return
	}
	records, err := api.ParseCDXResponse(resp.Body)
	if err != nil {
		ui.PrintError(err.Error())
		return
	}
	ui.PrintSuccess(fmt.Sprintf("  %d records", len(records)))
	for i, rec := range records {
		if i >= 3 {
			fmt.Printf("  ... and %d more\n", len(records)-3)
			break
		}
		fmt.Printf("  %d. %s %s (status: %s)\n", i+1, rec.Timestamp, rec.Original, rec.StatusCode)
	}
}
