// Package timeline groups CDX captures for the year histogram and year filter.
package timeline

import (
	"sort"
	"strings"

	"github.com/thesavant42/omnidash/internal/models"
)

// yearOf returns the year key of a capture timestamp.
// Timestamps shorter than a year are grouped under their whole value.
func yearOf(timestamp string) string {
	if len(timestamp) < 4 {
		return timestamp
	}
	return timestamp[:4]
}

// Build counts captures per year, ascending by year.
// Counts always sum to len(records).
func Build(records []models.CDXRecord) []models.YearCount {
	counts := make(map[string]int)
	for _, r := range records {
		counts[yearOf(r.Timestamp)]++
	}

	years := make([]string, 0, len(counts))
	for y := range counts {
		years = append(years, y)
	}
	sort.Strings(years)

	out := make([]models.YearCount, 0, len(years))
	for _, y := range years {
		out = append(out, models.YearCount{Year: y, Count: counts[y]})
	}
	return out
}

// FilterByYear keeps the records whose timestamp starts with year.
// An empty year keeps everything.
func FilterByYear(records []models.CDXRecord, year string) []models.CDXRecord {
	if year == "" {
		return records
	}
	out := make([]models.CDXRecord, 0)
	for _, r := range records {
		if strings.HasPrefix(r.Timestamp, year) {
			out = append(out, r)
		}
	}
	return out
}

// StatusClass buckets an HTTP status code string
func StatusClass(code string) string {
	if len(code) != 3 {
		return "other"
	}
	switch code[0] {
	case '2':
		return "2xx"
	case '3':
		return "3xx"
	case '4':
		return "4xx"
	case '5':
		return "5xx"
	}
	return "other"
}

// Latest returns the capture with the greatest timestamp
func Latest(records []models.CDXRecord) (models.CDXRecord, bool) {
	if len(records) == 0 {
		return models.CDXRecord{}, false
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.Timestamp > latest.Timestamp {
			latest = r
		}
	}
	return latest, true
}
