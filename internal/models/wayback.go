package models

// CDXRecord represents one Wayback Machine capture as returned by the CDX API.
// Fields are positional: urlkey,timestamp,original,mimetype,statuscode,digest,length
type CDXRecord struct {
	URLKey     string `json:"urlkey"`
	Timestamp  string `json:"timestamp"` // 14-digit format: YYYYMMDDhhmmss
	Original   string `json:"original"`
	MimeType   string `json:"mimetype"`
	StatusCode string `json:"statuscode"` // may be "-" or another placeholder
	Digest     string `json:"digest"`
	Length     string `json:"length"`
}

// CDXFields is the fl= value requested from the CDX API, in CDXRecord order
const CDXFields = "urlkey,timestamp,original,mimetype,statuscode,digest,length"

// ClosestSnapshot is the nearest capture reported by the availability API
type ClosestSnapshot struct {
	Available bool   `json:"available"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

// ArchivedSnapshots wraps the optional closest capture.
// A nil Closest means the URL is not archived.
type ArchivedSnapshots struct {
	Closest *ClosestSnapshot `json:"closest,omitempty"`
}

// WaybackAvailability is the result of an availability lookup
type WaybackAvailability struct {
	URL               string            `json:"url"`
	ArchivedSnapshots ArchivedSnapshots `json:"archived_snapshots"`
}

// IsArchived reports whether a usable closest capture exists
func (a WaybackAvailability) IsArchived() bool {
	return a.ArchivedSnapshots.Closest != nil && a.ArchivedSnapshots.Closest.Available
}

// YearCount is one bar of the capture timeline
type YearCount struct {
	Year  string `json:"year"`
	Count int    `json:"count"`
}

// SaveResult is the outcome of a SavePageNow request
type SaveResult struct {
	Saved   bool   `json:"saved"`
	Message string `json:"message"`
}

// FormatWaybackTimestamp renders a 14-digit timestamp as "YYYY-MM-DD hh:mm:ss".
// Shorter (malformed) values are returned unchanged.
func FormatWaybackTimestamp(ts string) string {
	if len(ts) < 14 {
		return ts
	}
	return ts[0:4] + "-" + ts[4:6] + "-" + ts[6:8] + " " + ts[8:10] + ":" + ts[10:12] + ":" + ts[12:14]
}
