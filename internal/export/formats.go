package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	textPreviewLength = 1000
	sqlTableName      = "snapshots"
	xlsxSheetName     = "Snapshots"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// JSONExporter writes a pretty-printed array of records
type JSONExporter struct{}

func (JSONExporter) Format() string           { return "json" }
func (JSONExporter) Extension() string        { return "json" }
func (JSONExporter) ContentType() string      { return "application/json" }
func (JSONExporter) Constraints() Constraints { return Constraints{} }

func (JSONExporter) Export(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	// page content is HTML; keep it readable
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// CSVExporter writes a header row followed by one row per record
type CSVExporter struct{}

func (CSVExporter) Format() string           { return "csv" }
func (CSVExporter) Extension() string        { return "csv" }
func (CSVExporter) ContentType() string      { return "text/csv" }
func (CSVExporter) Constraints() Constraints { return Constraints{} }

func (CSVExporter) Export(w io.Writer, records []Record) error {
	return writeDelimited(w, ',', records)
}

func writeDelimited(w io.Writer, comma rune, records []Record) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush rows: %w", err)
	}
	return nil
}

// TextExporter writes one human-readable block per record with a content preview
type TextExporter struct{}

func (TextExporter) Format() string           { return "text" }
func (TextExporter) Extension() string        { return "txt" }
func (TextExporter) ContentType() string      { return "text/plain" }
func (TextExporter) Constraints() Constraints { return Constraints{} }

func (TextExporter) Export(w io.Writer, records []Record) error {
	const rule = "=================================================="
	const thin = "--------------------------------------------------"

	blocks := make([]string, 0, len(records))
	for _, r := range records {
		var sb strings.Builder
		sb.WriteString("\n" + rule + "\n")
		sb.WriteString("ID: " + r.ID + "\n")
		sb.WriteString("Original URL: " + r.OriginalURL + "\n")
		sb.WriteString("Wayback URL: " + r.URL + "\n")
		sb.WriteString("Capture Date: " + r.CaptureDate + "\n")
		sb.WriteString("Saved Date: " + r.SavedDate + "\n")
		sb.WriteString("MimeType: " + r.MimeType + "\n")
		sb.WriteString(thin + "\n")
		sb.WriteString("CONTENT PREVIEW:\n")
		sb.WriteString(preview(r.PageContent, textPreviewLength) + "\n")
		sb.WriteString(rule + "\n")
		blocks = append(blocks, sb.String())
	}

	if _, err := io.WriteString(w, strings.Join(blocks, "\n\n")); err != nil {
		return fmt.Errorf("failed to write text: %w", err)
	}
	return nil
}

func preview(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// SQLExporter writes a CREATE TABLE statement and one INSERT per record
type SQLExporter struct{}

func (SQLExporter) Format() string           { return "sql" }
func (SQLExporter) Extension() string        { return "sql" }
func (SQLExporter) ContentType() string      { return "application/sql" }
func (SQLExporter) Constraints() Constraints { return Constraints{} }

func (SQLExporter) Export(w io.Writer, records []Record) error {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS " + sqlTableName + " (\n")
	sb.WriteString("  id VARCHAR(255) PRIMARY KEY,\n")
	sb.WriteString("  url TEXT,\n")
	sb.WriteString("  original_url TEXT,\n")
	sb.WriteString("  capture_date DATETIME,\n")
	sb.WriteString("  saved_date DATETIME,\n")
	sb.WriteString("  mimetype VARCHAR(50),\n")
	sb.WriteString("  page_content TEXT\n")
	sb.WriteString(");\n\n")

	if len(records) == 0 {
		sb.WriteString("-- No data to export\n")
	}

	columns := strings.Join(Columns, ", ")
	for _, r := range records {
		values := r.Values()
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = sqlQuote(v)
		}
		fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s);\n", sqlTableName, columns, strings.Join(quoted, ", "))
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write sql: %w", err)
	}
	return nil
}

// sqlQuote wraps v in single quotes, doubling embedded quotes
func sqlQuote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// XLSXExporter writes a single-sheet workbook. Content is truncated to ExcelCellLimit.
type XLSXExporter struct{}

func (XLSXExporter) Format() string           { return "xlsx" }
func (XLSXExporter) Extension() string        { return "xlsx" }
func (XLSXExporter) ContentType() string      { return xlsxContentType }
func (XLSXExporter) Constraints() Constraints { return Constraints{MaxCellLength: ExcelCellLimit} }

func (XLSXExporter) Export(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setRow(f, 1, Columns); err != nil {
		return err
	}
	for i, r := range records {
		if err := setRow(f, i+2, r.Values()); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell: %w", err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(xlsxSheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
