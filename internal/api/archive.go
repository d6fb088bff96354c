package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/omnidash/internal/models"
)

// ItemClient reads archive.org item metadata and view counts
type ItemClient struct {
	fetcher          *Fetcher
	metadataEndpoint string
	viewsEndpoint    string
	logger           *log.Logger
}

// NewItemClient creates a new archive.org item client
func NewItemClient(fetcher *Fetcher, metadataEndpoint, viewsEndpoint string, logger *log.Logger) *ItemClient {
	return &ItemClient{
		fetcher:          fetcher,
		metadataEndpoint: strings.TrimRight(metadataEndpoint, "/"),
		viewsEndpoint:    strings.TrimRight(viewsEndpoint, "/"),
		logger:           logger,
	}
}

// FetchMetadata returns the metadata record of an item.
// Unknown identifiers come back as an empty record; check Exists.
func (c *ItemClient) FetchMetadata(ctx context.Context, identifier string) (*models.ItemMetadata, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}

	target := c.metadataEndpoint + "/" + url.PathEscape(identifier)
	resp, err := c.fetcher.Get(ctx, target, nil, ValidateJSONBody)
	if err != nil {
		return nil, fmt.Errorf("metadata fetch failed: %w", err)
	}

	var meta models.ItemMetadata
	if err := json.Unmarshal(resp.Body, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("Item metadata fetched", "identifier", identifier, "files", len(meta.Files), "via", resp.Via)
	}
	return &meta, nil
}

// FetchViews returns the short-form view counts of an item
func (c *ItemClient) FetchViews(ctx context.Context, identifier string) (*models.ItemViews, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}

	target := c.viewsEndpoint + "/" + url.PathEscape(identifier)
	resp, err := c.fetcher.Get(ctx, target, nil, ValidateJSONBody)
	if err != nil {
		return nil, fmt.Errorf("views fetch failed: %w", err)
	}

	// Response is keyed by identifier
	var byID map[string]models.ItemViews
	if err := json.Unmarshal(resp.Body, &byID); err != nil {
		return nil, fmt.Errorf("failed to parse views: %w", err)
	}

	views, ok := byID[identifier]
	if !ok {
		return &models.ItemViews{}, nil
	}
	return &views, nil
}
