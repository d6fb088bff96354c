package models

// SavedSnapshot is a downloaded capture persisted in the local store
type SavedSnapshot struct {
	ID          string `json:"id"`
	URL         string `json:"url"` // Wayback replay URL
	OriginalURL string `json:"originalUrl"`
	Timestamp   string `json:"timestamp"`
	SavedAt     int64  `json:"savedAt"` // epoch milliseconds
	Content     string `json:"content"`
	MimeType    string `json:"mimetype"`
}

// SnapshotID builds the store key for a capture.
// Every stored id is derived from (timestamp, original URL); nothing else mints ids.
func SnapshotID(timestamp, originalURL string) string {
	return timestamp + "_" + originalURL
}

// SiteStats counts stored snapshots for one registrable domain
type SiteStats struct {
	Site          string
	SnapshotCount int
}
