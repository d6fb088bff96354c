package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/thesavant42/omnidash/internal/models"
	"github.com/thesavant42/omnidash/internal/timeline"
)

// CLI reports are plain string formatting; lipgloss only colors the text.
// Interactive tables use bubbles/table (see picker.go).

const (
	colDate   = 19
	colStatus = 6
	colType   = 22
	colSize   = 9
	// minimum room left for the URL column
	colURLMin = 20
)

// truncate shortens s to max runes, marking the cut with "..."
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func pad(s string, width int) string {
	s = truncate(s, width)
	if n := len([]rune(s)); n < width {
		s += strings.Repeat(" ", width-n)
	}
	return s
}

// humanSize renders a byte count like "12.3 KB"
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// PrintHeader prints a styled title with an optional subtitle
func PrintHeader(title, subtitle string) {
	fmt.Println()
	fmt.Println(AccentStyle.Render(title))
	if subtitle != "" {
		fmt.Println(InfoStyle.Render(subtitle))
	}
	fmt.Println()
}

// RenderAvailability describes the closest capture of a URL
func RenderAvailability(a *models.WaybackAvailability) string {
	if a == nil || !a.IsArchived() {
		return ErrorStyle.Render("Not archived") + "\n"
	}
	c := a.ArchivedSnapshots.Closest
	var sb strings.Builder
	sb.WriteString(SuccessStyle.Render("Archived") + "\n")
	fmt.Fprintf(&sb, "  %s %s\n", DimStyle.Render("Captured:"), NormalStyle.Render(models.FormatWaybackTimestamp(c.Timestamp)))
	fmt.Fprintf(&sb, "  %s %s\n", DimStyle.Render("Status:  "), StatusStyle(timeline.StatusClass(c.Status)).Render(c.Status))
	fmt.Fprintf(&sb, "  %s %s\n", DimStyle.Render("Replay:  "), NormalStyle.Render(c.URL))
	return sb.String()
}

// RenderTimeline draws one horizontal bar per year, scaled to the busiest year
func RenderTimeline(counts []models.YearCount, width int) string {
	if len(counts) == 0 {
		return DimStyle.Render("No captures") + "\n"
	}

	peak, total := 0, 0
	for _, c := range counts {
		total += c.Count
		if c.Count > peak {
			peak = c.Count
		}
	}
	if peak == 0 {
		peak = 1
	}
	countWidth := len(strconv.Itoa(peak))
	// "2024 │" + " " + count
	barMax := width - 7 - countWidth - 1
	if barMax < 10 {
		barMax = 10
	}

	var sb strings.Builder
	for _, c := range counts {
		n := c.Count * barMax / peak
		if n == 0 && c.Count > 0 {
			n = 1
		}
		fmt.Fprintf(&sb, "%s │%s %*d\n",
			NormalStyle.Render(pad(c.Year, 4)),
			BarStyle.Render(strings.Repeat("█", n)),
			countWidth+barMax-n, c.Count)
	}
	fmt.Fprintf(&sb, "%s\n", DimStyle.Render(fmt.Sprintf("%d captures across %d years", total, len(counts))))
	return sb.String()
}

func tableRule(width int) string {
	return lipgloss.NewStyle().Foreground(ColorBorder).Render(strings.Repeat("─", width))
}

// RenderCDXTable lists captures, one per line
func RenderCDXTable(records []models.CDXRecord, width int) string {
	if len(records) == 0 {
		return DimStyle.Render("No captures") + "\n"
	}
	urlWidth := width - colDate - colStatus - colType - colSize - 8
	if urlWidth < colURLMin {
		urlWidth = colURLMin
	}

	var sb strings.Builder
	header := strings.Join([]string{
		pad("Captured", colDate), pad("Status", colStatus), pad("Type", colType), pad("Size", colSize), "URL",
	}, "  ")
	sb.WriteString(TitleStyle.UnsetMarginBottom().Render(header) + "\n")
	sb.WriteString(tableRule(len([]rune(header))+urlWidth-3) + "\n")

	for _, r := range records {
		size := r.Length
		if n, err := strconv.ParseInt(r.Length, 10, 64); err == nil {
			size = humanSize(n)
		}
		status := StatusStyle(timeline.StatusClass(r.StatusCode)).Render(pad(r.StatusCode, colStatus))
		fmt.Fprintf(&sb, "%s  %s  %s  %s  %s\n",
			NormalStyle.Render(pad(models.FormatWaybackTimestamp(r.Timestamp), colDate)),
			status,
			NormalStyle.Render(pad(r.MimeType, colType)),
			NormalStyle.Render(pad(size, colSize)),
			NormalStyle.Render(truncate(r.Original, urlWidth)))
	}
	fmt.Fprintf(&sb, "%s\n", DimStyle.Render(fmt.Sprintf("%d captures", len(records))))
	return sb.String()
}

// RenderSnapshotTable lists stored snapshots, newest first as given
func RenderSnapshotTable(snaps []models.SavedSnapshot, width int, loc *time.Location) string {
	if len(snaps) == 0 {
		return DimStyle.Render("No saved snapshots") + "\n"
	}
	if loc == nil {
		loc = time.Local
	}
	urlWidth := width - 2*colDate - colSize - 6
	if urlWidth < colURLMin {
		urlWidth = colURLMin
	}

	var sb strings.Builder
	header := strings.Join([]string{pad("Saved", colDate), pad("Captured", colDate), pad("Size", colSize), "URL"}, "  ")
	sb.WriteString(TitleStyle.UnsetMarginBottom().Render(header) + "\n")
	sb.WriteString(tableRule(len([]rune(header))+urlWidth-3) + "\n")

	var totalBytes int64
	for _, s := range snaps {
		totalBytes += int64(len(s.Content))
		fmt.Fprintf(&sb, "%s  %s  %s  %s\n",
			NormalStyle.Render(time.UnixMilli(s.SavedAt).In(loc).Format("2006-01-02 15:04:05")),
			NormalStyle.Render(pad(models.FormatWaybackTimestamp(s.Timestamp), colDate)),
			NormalStyle.Render(pad(humanSize(int64(len(s.Content))), colSize)),
			NormalStyle.Render(truncate(s.OriginalURL, urlWidth)))
	}
	fmt.Fprintf(&sb, "%s\n", DimStyle.Render(fmt.Sprintf("%d snapshots, %s", len(snaps), humanSize(totalBytes))))
	return sb.String()
}

// RenderSnapshot shows one stored snapshot with a content preview
func RenderSnapshot(s *models.SavedSnapshot, previewRunes int) string {
	var sb strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&sb, "%s %s\n", DimStyle.Render(pad(label+":", 13)), NormalStyle.Render(value))
	}
	row("ID", s.ID)
	row("Original URL", s.OriginalURL)
	row("Wayback URL", s.URL)
	row("Captured", models.FormatWaybackTimestamp(s.Timestamp))
	row("Saved", time.UnixMilli(s.SavedAt).Format("2006-01-02 15:04:05"))
	row("Type", s.MimeType)
	row("Size", humanSize(int64(len(s.Content))))
	if previewRunes > 0 {
		sb.WriteString("\n")
		sb.WriteString(NormalStyle.Render(truncate(s.Content, previewRunes)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderSiteCounts lists snapshot counts per registrable domain
func RenderSiteCounts(stats []models.SiteStats) string {
	if len(stats) == 0 {
		return DimStyle.Render("No saved snapshots") + "\n"
	}
	width := 4
	for _, s := range stats {
		if n := len([]rune(s.Site)); n > width {
			width = n
		}
	}
	var sb strings.Builder
	for _, s := range stats {
		fmt.Fprintf(&sb, "%s  %s\n", NormalStyle.Render(pad(s.Site, width)), AccentStyle.Render(strconv.Itoa(s.SnapshotCount)))
	}
	return sb.String()
}

// RenderMetadata summarizes an archive.org item
func RenderMetadata(identifier string, meta *models.ItemMetadata) string {
	if meta == nil || !meta.Exists() {
		return ErrorStyle.Render("Item not found: "+identifier) + "\n"
	}
	var sb strings.Builder
	sb.WriteString(AccentStyle.Render(identifier) + "\n")

	keys := make([]string, 0, len(meta.Metadata))
	for k := range meta.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// the interesting fields first
	priority := map[string]int{"title": 0, "creator": 1, "date": 2, "mediatype": 3, "collection": 4, "description": 5}
	sort.SliceStable(keys, func(i, j int) bool {
		pi, iok := priority[keys[i]]
		pj, jok := priority[keys[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		}
		return false
	})

	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s %s\n", DimStyle.Render(pad(k+":", 14)), NormalStyle.Render(truncate(meta.MetadataString(k), 200)))
	}
	if meta.FilesCount > 0 || meta.ItemSize > 0 {
		fmt.Fprintf(&sb, "  %s %d files, %s\n", DimStyle.Render(pad("files:", 14)), meta.FilesCount, humanSize(meta.ItemSize))
	}
	return sb.String()
}

// RenderViews shows the view counters of an item
func RenderViews(identifier string, v *models.ItemViews) string {
	if v == nil || !v.HaveData {
		return DimStyle.Render("No view data for "+identifier) + "\n"
	}
	return fmt.Sprintf("%s\n  %s %d\n  %s %d\n  %s %d\n",
		AccentStyle.Render(identifier),
		DimStyle.Render("All time:    "), v.AllTime,
		DimStyle.Render("Last 30 days:"), v.Last30Day,
		DimStyle.Render("Last 7 days: "), v.Last7Day)
}

// PrintProgress rewrites the current line with download progress
func PrintProgress(done, total int, failed int) {
	msg := fmt.Sprintf("Downloading snapshots... %d/%d", done, total)
	if failed > 0 {
		msg += fmt.Sprintf(" (%d failed)", failed)
	}
	fmt.Printf("\r%s", ProgressStyle.Render(msg))
	if done == total {
		fmt.Println()
	}
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println(SuccessStyle.Render(message))
}

// PrintInfo prints a neutral message
func PrintInfo(message string) {
	fmt.Println(InfoStyle.Render(message))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Println(ErrorStyle.Render("Error: " + message))
}
