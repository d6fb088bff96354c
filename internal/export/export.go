package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/thesavant42/omnidash/internal/models"
)

// DefaultFilePrefix names exported files
const DefaultFilePrefix = "omnidash_export"

// Exporter serializes prepared records in one format
type Exporter interface {
	Format() string
	Extension() string
	ContentType() string
	Constraints() Constraints
	Export(w io.Writer, records []Record) error
}

var exporters = map[string]Exporter{
	"json": JSONExporter{},
	"csv":  CSVExporter{},
	"text": TextExporter{},
	"sql":  SQLExporter{},
	"xlsx": XLSXExporter{},
}

// Formats lists the supported format names
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForFormat returns the exporter for a format name (case-insensitive)
func ForFormat(name string) (Exporter, error) {
	e, ok := exporters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q (want one of %s)", name, strings.Join(Formats(), ", "))
	}
	return e, nil
}

// Run prepares snaps with the exporter's constraints and writes them to w
func Run(e Exporter, snaps []models.SavedSnapshot, opts Options, w io.Writer) error {
	return e.Export(w, PrepareRecords(snaps, opts, e.Constraints()))
}

// ClipboardText renders snaps for pasting.
// Spreadsheets become tab-separated rows so they paste straight into a sheet.
func ClipboardText(e Exporter, snaps []models.SavedSnapshot, opts Options) (string, error) {
	records := PrepareRecords(snaps, opts, e.Constraints())

	var buf bytes.Buffer
	if e.Format() == "xlsx" {
		if err := writeDelimited(&buf, '\t', records); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	if err := e.Export(&buf, records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// CopyToClipboard places text on the system clipboard
func CopyToClipboard(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

// Filename builds <prefix>_<YYYY-MM-DD>.<ext> using the UTC date of now
func Filename(prefix string, now time.Time, ext string) string {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.UTC().Format("2006-01-02"), ext)
}

// WriteFile exports snaps into dir and returns the written path
func WriteFile(dir string, e Exporter, snaps []models.SavedSnapshot, opts Options, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, Filename(DefaultFilePrefix, now, e.Extension()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	if err := Run(e, snaps, opts, f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// BackupDatabase copies the snapshot database file into dir
func BackupDatabase(dbPath, dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(dbPath), filepath.Ext(dbPath))
	backupPath := filepath.Join(dir, fmt.Sprintf("%s-backup-%s.db", baseName, now.Format("2006-01-02-150405")))

	// Open source file
	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy database: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}
	return backupPath, nil
}
