package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/thesavant42/omnidash/internal/models"
)

// MockSource serves canned data for demo mode and offline testing.
// Output is deterministic; latency only delays it.
type MockSource struct {
	latency    time.Duration
	replayBase string
}

// NewMockSource creates a demo data source
func NewMockSource(latency time.Duration, replayBase string) *MockSource {
	if replayBase == "" {
		replayBase = "http://web.archive.org/web"
	}
	return &MockSource{latency: latency, replayBase: replayBase}
}

func (m *MockSource) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MockAvailability returns a canned "archived" availability record
func MockAvailability(targetURL string) *models.WaybackAvailability {
	return &models.WaybackAvailability{
		URL: targetURL,
		ArchivedSnapshots: models.ArchivedSnapshots{
			Closest: &models.ClosestSnapshot{
				Available: true,
				Status:    "200",
				Timestamp: "20231015120000",
				URL:       "http://web.archive.org/web/20231015120000/" + targetURL,
			},
		},
	}
}

// MockCDX returns 200 captures spread over 2010-2023, 15 per year
func MockCDX(targetURL string) []models.CDXRecord {
	const baseYear = 2010
	records := make([]models.CDXRecord, 0, 200)
	for i := 0; i < 200; i++ {
		year := baseYear + i/15
		month := i%12 + 1
		status := "200"
		if i%10 == 0 {
			status = "404"
		}
		records = append(records, models.CDXRecord{
			URLKey:     targetURL,
			Timestamp:  fmt.Sprintf("%d%02d01120000", year, month),
			Original:   targetURL,
			MimeType:   "text/html",
			StatusCode: status,
			Digest:     "3I42H3S6NNFQ2MSVX7XZKYAYSCX5QBYJ",
			Length:     "1234",
		})
	}
	return records
}

// CheckAvailability implements WaybackSource
func (m *MockSource) CheckAvailability(ctx context.Context, targetURL string) (*models.WaybackAvailability, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	result := MockAvailability(targetURL)
	closest := result.ArchivedSnapshots.Closest
	closest.URL = ReplayURL(m.replayBase, closest.Timestamp, targetURL)
	return result, nil
}

// FetchCDX implements WaybackSource. Negative limits return the newest rows.
func (m *MockSource) FetchCDX(ctx context.Context, targetURL string, limit int) ([]models.CDXRecord, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	records := MockCDX(targetURL)
	switch {
	case limit > 0 && limit < len(records):
		records = records[:limit]
	case limit < 0 && -limit < len(records):
		records = records[len(records)+limit:]
	}
	return records, nil
}

// SavePageNow implements WaybackSource
func (m *MockSource) SavePageNow(ctx context.Context, targetURL, accessKey, secretKey string) (*models.SaveResult, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return &models.SaveResult{Saved: true, Message: "Mock Mode: URL successfully queued for capture."}, nil
}

// DownloadSnapshotContent implements WaybackSource
func (m *MockSource) DownloadSnapshotContent(ctx context.Context, waybackURL string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	raw := RawReplayURL(waybackURL)
	return "<!DOCTYPE html>\n<html><head><title>Mock snapshot</title></head>" +
		"<body><h1>Mock snapshot</h1><p>Demo content for " + escapeText(raw) + "</p></body></html>", nil
}

// FetchMetadata implements ItemSource
func (m *MockSource) FetchMetadata(ctx context.Context, identifier string) (*models.ItemMetadata, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	raw := func(v string) json.RawMessage { b, _ := json.Marshal(v); return b }
	return &models.ItemMetadata{
		Created:    1625097600,
		ItemSize:   1024500,
		FilesCount: 2,
		Metadata: map[string]json.RawMessage{
			"identifier":  raw(identifier),
			"title":       raw("Mock Item: " + identifier),
			"creator":     raw("Internet Archive (Mock)"),
			"date":        raw("2023-01-01"),
			"mediatype":   raw("web"),
			"description": raw("This is a mock response because demo mode is enabled."),
			"subject":     json.RawMessage(`["mock","test","archive"]`),
		},
		Files: []models.ItemFile{
			{Name: "main.pdf", Source: "original", Format: "PDF", Size: "500KB"},
			{Name: "data.xml", Source: "metadata", Format: "XML", Size: "2KB"},
		},
	}, nil
}

// FetchViews implements ItemSource
func (m *MockSource) FetchViews(ctx context.Context, identifier string) (*models.ItemViews, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return &models.ItemViews{AllTime: 4821, Last30Day: 1530, Last7Day: 412, HaveData: true}, nil
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
