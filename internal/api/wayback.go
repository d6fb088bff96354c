package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/omnidash/internal/models"
)

// DefaultCDXLimit is used when callers pass a zero limit
const DefaultCDXLimit = 10000

// WaybackEndpoints are the upstream URLs used by WaybackClient
type WaybackEndpoints struct {
	Availability string
	CDX          string
	Save         string
	Replay       string
}

// WaybackClient talks to the live Wayback Machine APIs
type WaybackClient struct {
	fetcher   *Fetcher
	endpoints WaybackEndpoints
	logger    *log.Logger
}

// NewWaybackClient creates a new Wayback Machine API client
func NewWaybackClient(fetcher *Fetcher, endpoints WaybackEndpoints, logger *log.Logger) *WaybackClient {
	return &WaybackClient{
		fetcher:   fetcher,
		endpoints: endpoints,
		logger:    logger,
	}
}

// BuildCDXQuery constructs the raw query string for the CDX API.
// Returns the query string WITHOUT the leading '?'.
// No collapse parameter: every unique capture is listed, not one per time bucket.
func BuildCDXQuery(targetURL string, limit int) string {
	if limit == 0 {
		limit = DefaultCDXLimit
	}
	return fmt.Sprintf(
		"url=%s&output=json&limit=%d&fl=%s",
		url.QueryEscape(strings.TrimSpace(targetURL)),
		limit,
		models.CDXFields,
	)
}

// CheckAvailability asks the availability API for the closest capture.
// When it reports nothing, the most recent CDX row is used instead.
// "Not archived" is an empty ArchivedSnapshots, never an error.
func (c *WaybackClient) CheckAvailability(ctx context.Context, targetURL string) (*models.WaybackAvailability, error) {
	target := c.endpoints.Availability + "?url=" + url.QueryEscape(targetURL)

	resp, err := c.fetcher.Get(ctx, target, nil, ValidateJSONBody)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Any failure degrades to demo data so the caller stays usable
		if c.logger != nil {
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) && !IsCORSError(err) {
				c.logger.Warn("Availability API returned an error status, returning mock data", "url", targetURL, "status", statusErr.StatusCode)
			} else {
				c.logger.Warn("Availability check failed, returning mock data; check the CORS proxy setting", "url", targetURL, "err", err)
			}
		}
		return MockAvailability(targetURL), nil
	}

	result := &models.WaybackAvailability{URL: targetURL}
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			if c.logger != nil {
				c.logger.Warn("Unparseable availability response, treating as not archived", "url", targetURL, "err", err)
			}
			result = &models.WaybackAvailability{URL: targetURL}
		}
	}
	if result.URL == "" {
		result.URL = targetURL
	}
	if result.ArchivedSnapshots.Closest != nil {
		return result, nil
	}

	// Availability API often lags behind the index; ask CDX for the latest capture
	latest, err := c.FetchCDX(ctx, targetURL, -1)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.logger != nil {
			c.logger.Warn("CDX fallback for availability failed", "url", targetURL, "err", err)
		}
		return result, nil
	}
	if len(latest) == 0 {
		return result, nil
	}

	row := latest[len(latest)-1]
	result.ArchivedSnapshots.Closest = &models.ClosestSnapshot{
		Available: true,
		Status:    row.StatusCode,
		Timestamp: row.Timestamp,
		URL:       ReplayURL(c.endpoints.Replay, row.Timestamp, row.Original),
	}
	return result, nil
}

// FetchCDX lists captures of targetURL, up to limit rows (negative limits count from the newest).
// An empty or header-only result is an empty slice. Exhausted proxies surface as *CORSError.
func (c *WaybackClient) FetchCDX(ctx context.Context, targetURL string, limit int) ([]models.CDXRecord, error) {
	target := c.endpoints.CDX + "?" + BuildCDXQuery(targetURL, limit)

	resp, err := c.fetcher.Get(ctx, target, nil, ValidateJSONBody)
	if err != nil {
		return nil, fmt.Errorf("CDX fetch failed: %w", err)
	}

	if !strings.Contains(resp.ContentType(), "json") {
		if len(bytes.TrimSpace(resp.Body)) == 0 {
			return []models.CDXRecord{}, nil
		}
		if !json.Valid(resp.Body) {
			return nil, &ValidationError{URL: resp.URL, Reason: "received non-JSON response from CDX API"}
		}
	}

	records, err := ParseCDXResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Info("CDX fetched", "url", targetURL, "records", len(records), "via", resp.Via)
	}
	return records, nil
}

// ParseCDXResponse parses the CDX JSON response.
// Format: [[header], [record1], [record2], ...]
// Each record is mapped positionally onto CDXRecord; the header row is dropped.
func ParseCDXResponse(body []byte) ([]models.CDXRecord, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []models.CDXRecord{}, nil
	}

	var rawRows [][]string
	if err := json.Unmarshal(body, &rawRows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if len(rawRows) <= 1 {
		return []models.CDXRecord{}, nil
	}

	records := make([]models.CDXRecord, 0, len(rawRows)-1)
	for _, row := range rawRows[1:] {
		records = append(records, models.CDXRecord{
			URLKey:     field(row, 0),
			Timestamp:  field(row, 1),
			Original:   field(row, 2),
			MimeType:   field(row, 3),
			StatusCode: field(row, 4),
			Digest:     field(row, 5),
			Length:     field(row, 6),
		})
	}
	return records, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// SavePageNow requests an on-demand capture of targetURL.
// Both credentials must be non-empty; failures are returned verbatim and never mocked.
func (c *WaybackClient) SavePageNow(ctx context.Context, targetURL, accessKey, secretKey string) (*models.SaveResult, error) {
	if strings.TrimSpace(accessKey) == "" || strings.TrimSpace(secretKey) == "" {
		return nil, ErrMissingCredentials
	}

	form := "url=" + url.QueryEscape(targetURL) + "&capture_all=1"
	req := Request{
		Method: http.MethodPost,
		URL:    c.endpoints.Save,
		Header: http.Header{
			"Accept":        {"application/json"},
			"Authorization": {AuthorizationHeader(accessKey, secretKey)},
			"Content-Type":  {"application/x-www-form-urlencoded"},
		},
		Body: []byte(form),
	}

	resp, err := c.fetcher.Send(ctx, req)
	if err == nil {
		if c.logger != nil {
			c.logger.Info("Capture request submitted", "url", targetURL)
		}
		return &models.SaveResult{Saved: true, Message: "Capture request submitted."}, nil
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return nil, fmt.Errorf("capture request failed: %w", err)
	}
	if resp != nil && looksLikeHTML(resp.Body) {
		return nil, fmt.Errorf("capture failed (status %d): %w", statusErr.StatusCode, ErrProxyRequired)
	}
	return nil, fmt.Errorf("capture rejected: %w", err)
}

// AuthorizationHeader builds the archive.org S3-style header value
func AuthorizationHeader(accessKey, secretKey string) string {
	return "LOW " + accessKey + ":" + secretKey
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(strings.TrimSpace(string(body)))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.Contains(head, "<html")
}

// replayTimestamp matches the timestamp path segment of a replay URL, with or without a modifier
var replayTimestamp = regexp.MustCompile(`/web/(\d{1,14})([a-z]{2}_)?/`)

// RawReplayURL rewrites a replay URL to request raw content without the Wayback toolbar,
// by giving the timestamp segment the id_ modifier.
func RawReplayURL(waybackURL string) string {
	loc := replayTimestamp.FindStringSubmatchIndex(waybackURL)
	if loc == nil {
		return waybackURL
	}
	// loc[2:4] is the timestamp, loc[4:6] the existing modifier (if any)
	end := loc[3]
	if loc[4] >= 0 {
		return waybackURL[:loc[4]] + "id_" + waybackURL[loc[5]:]
	}
	return waybackURL[:end] + "id_" + waybackURL[end:]
}

// DownloadSnapshotContent fetches the raw body of a capture
func (c *WaybackClient) DownloadSnapshotContent(ctx context.Context, waybackURL string) (string, error) {
	target := RawReplayURL(waybackURL)
	header := http.Header{"Accept": {"text/html,application/xhtml+xml,*/*"}}

	resp, err := c.fetcher.Get(ctx, target, header, ValidateNonEmpty)
	if err != nil {
		return "", fmt.Errorf("snapshot download failed: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("Snapshot downloaded", "url", target, "bytes", len(resp.Body), "via", resp.Via)
	}
	return string(resp.Body), nil
}

// ReplayURL builds the replay URL of a capture
func ReplayURL(replayBase, timestamp, original string) string {
	return strings.TrimRight(replayBase, "/") + "/" + timestamp + "/" + original
}
