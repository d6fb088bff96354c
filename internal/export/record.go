// Package export serializes saved snapshots into downloadable formats.
package export

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/thesavant42/omnidash/internal/models"
)

const (
	// ExcelCellLimit is the content length above which spreadsheet cells are truncated.
	// Excel itself rejects cells over 32767 characters.
	ExcelCellLimit = 32000

	// TruncationMarker is appended to truncated spreadsheet cells
	TruncationMarker = "...[TRUNCATED FOR EXCEL LIMIT]"

	savedDateLayout = "2006-01-02 15:04:05"
)

// Record is one snapshot prepared for export
type Record struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	OriginalURL string `json:"original_url"`
	CaptureDate string `json:"capture_date"`
	SavedDate   string `json:"saved_date"`
	MimeType    string `json:"mimetype"`
	PageContent string `json:"page_content"`
}

// Columns is the fixed field order shared by every tabular format
var Columns = []string{"id", "url", "original_url", "capture_date", "saved_date", "mimetype", "page_content"}

// Values returns the record fields in Columns order
func (r Record) Values() []string {
	return []string{r.ID, r.URL, r.OriginalURL, r.CaptureDate, r.SavedDate, r.MimeType, r.PageContent}
}

// Options are user choices applied to every format
type Options struct {
	StripHTML bool
	Location  *time.Location // saved_date zone; nil means time.Local
}

// Constraints are per-format limits applied while preparing records
type Constraints struct {
	MaxCellLength int // 0 means unlimited
}

// PrepareRecords converts snapshots into export records.
// Content is stripped first (if requested), then truncated to the format's cell limit.
func PrepareRecords(snaps []models.SavedSnapshot, opts Options, c Constraints) []Record {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	records := make([]Record, 0, len(snaps))
	for _, s := range snaps {
		content := s.Content
		if opts.StripHTML {
			content = StripHTML(content)
		}
		if c.MaxCellLength > 0 {
			content = truncateCell(content, c.MaxCellLength)
		}

		records = append(records, Record{
			ID:          s.ID,
			URL:         s.URL,
			OriginalURL: s.OriginalURL,
			CaptureDate: models.FormatWaybackTimestamp(s.Timestamp),
			SavedDate:   time.UnixMilli(s.SavedAt).In(loc).Format(savedDateLayout),
			MimeType:    s.MimeType,
			PageContent: content,
		})
	}
	return records
}

func truncateCell(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + TruncationMarker
}

// StripHTML extracts the visible text of an HTML document with whitespace collapsed
func StripHTML(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return strings.Join(strings.Fields(content), " ")
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}
