package ui

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesavant42/omnidash/internal/models"
)

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "example.com", sanitizeInput("exa\x00mple.com\x07"))
	assert.Equal(t, "a\tb\nc", sanitizeInput("a\tb\nc"))
}

func TestValidateTargetURL(t *testing.T) {
	assert.NoError(t, validateTargetURL("example.com"))
	assert.NoError(t, validateTargetURL("https://example.com/page"))
	assert.Error(t, validateTargetURL("  "))
	assert.Error(t, validateTargetURL("exa mple.com"))
	assert.Error(t, validateTargetURL("https://"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "he...", truncate("hello world", 5))
	assert.Equal(t, "日本...", truncate("日本語のテキスト", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.0 KB", humanSize(1024))
	assert.Equal(t, "1.5 MB", humanSize(1536*1024))
}

func TestNewLayout(t *testing.T) {
	l := NewLayout(40, 0)
	assert.Equal(t, MinViewportWidth, l.ViewportWidth)
	assert.Equal(t, TableHeight, l.TableHeight)

	l = NewLayout(500, 30)
	assert.Equal(t, MaxViewportWidth, l.ViewportWidth)
	assert.Equal(t, MaxViewportWidth-2, l.InnerWidth)
	assert.Equal(t, 24, l.TableHeight)
}

func TestRenderTimeline(t *testing.T) {
	out := RenderTimeline([]models.YearCount{{Year: "2010", Count: 100}, {Year: "2011", Count: 1}}, 60)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "2010 │"))
	assert.Greater(t, strings.Count(lines[0], "█"), strings.Count(lines[1], "█"))
	// small years still get a visible bar
	assert.Equal(t, 1, strings.Count(lines[1], "█"))
	assert.Contains(t, lines[2], "101 captures across 2 years")

	assert.Contains(t, RenderTimeline(nil, 60), "No captures")
}

func TestRenderCDXTable(t *testing.T) {
	out := RenderCDXTable([]models.CDXRecord{
		{Timestamp: "20200101120000", Original: "http://example.com/", MimeType: "text/html", StatusCode: "200", Length: "2048"},
	}, 100)
	assert.Contains(t, out, "2020-01-01 12:00:00")
	assert.Contains(t, out, "http://example.com/")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "1 captures")

	assert.Contains(t, RenderCDXTable(nil, 100), "No captures")
}

func TestRenderSnapshotTable(t *testing.T) {
	snaps := []models.SavedSnapshot{{
		ID: "20200101120000_http://a.com/", OriginalURL: "http://a.com/", Timestamp: "20200101120000",
		SavedAt: time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC).UnixMilli(), Content: "hello",
	}}
	out := RenderSnapshotTable(snaps, 100, time.UTC)
	assert.Contains(t, out, "2024-03-01 08:30:00")
	assert.Contains(t, out, "2020-01-01 12:00:00")
	assert.Contains(t, out, "1 snapshots, 5 B")
}

func TestRenderAvailability(t *testing.T) {
	assert.Contains(t, RenderAvailability(&models.WaybackAvailability{URL: "a.com"}), "Not archived")

	out := RenderAvailability(&models.WaybackAvailability{ArchivedSnapshots: models.ArchivedSnapshots{
		Closest: &models.ClosestSnapshot{Available: true, Status: "200", Timestamp: "20231015120000", URL: "http://web.archive.org/web/20231015120000/a.com"},
	}})
	assert.Contains(t, out, "Archived")
	assert.Contains(t, out, "2023-10-15 12:00:00")
}

func TestRenderMetadataOrdersKnownFieldsFirst(t *testing.T) {
	m := &models.ItemMetadata{Metadata: map[string]json.RawMessage{
		"zeta":    json.RawMessage(`"last"`),
		"title":   json.RawMessage(`"A Title"`),
		"subject": json.RawMessage(`["x","y"]`),
	}}
	out := RenderMetadata("item", m)
	assert.Less(t, strings.Index(out, "title:"), strings.Index(out, "subject:"))
	assert.Less(t, strings.Index(out, "subject:"), strings.Index(out, "zeta:"))
	assert.Contains(t, out, "x, y")

	assert.Contains(t, RenderMetadata("nope", &models.ItemMetadata{}), "Item not found")
}

func TestRenderViews(t *testing.T) {
	out := RenderViews("item", &models.ItemViews{AllTime: 10, Last30Day: 5, Last7Day: 1, HaveData: true})
	assert.Contains(t, out, "10")
	assert.Contains(t, RenderViews("item", &models.ItemViews{}), "No view data")
}

func pickerRecords() []models.CDXRecord {
	return []models.CDXRecord{
		{Timestamp: "20200101000000", Original: "http://a.com/1", StatusCode: "200"},
		{Timestamp: "20200102000000", Original: "http://a.com/2", StatusCode: "200"},
		{Timestamp: "20200103000000", Original: "http://a.com/3", StatusCode: "404"},
	}
}

func press(m pickerModel, msgs ...tea.KeyMsg) pickerModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(pickerModel)
	}
	return m
}

var (
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyAll   = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

func TestPickerDefaultsToCursorRow(t *testing.T) {
	m := newPickerModel("t", pickerRecords(), DefaultLayout())
	m = press(m, keyDown, keyEnter)
	assert.True(t, m.done)
	chosen := m.Chosen()
	require.Len(t, chosen, 1)
	assert.Equal(t, "http://a.com/2", chosen[0].Original)
}

func TestPickerToggleSelection(t *testing.T) {
	m := newPickerModel("t", pickerRecords(), DefaultLayout())
	m = press(m, keySpace, keyDown, keyDown, keySpace)
	chosen := m.Chosen()
	require.Len(t, chosen, 2)
	assert.Equal(t, "http://a.com/1", chosen[0].Original)
	assert.Equal(t, "http://a.com/3", chosen[1].Original)
	assert.Equal(t, "✓", m.table.Rows()[0][0])

	// toggling again unmarks
	m = press(m, keySpace)
	assert.Len(t, m.Chosen(), 1)
}

func TestPickerSelectAll(t *testing.T) {
	m := newPickerModel("t", pickerRecords(), DefaultLayout())
	m = press(m, keyAll)
	assert.Len(t, m.Chosen(), 3)
	m = press(m, keyAll)
	assert.Empty(t, m.selected)
}

func TestPickerCancel(t *testing.T) {
	m := newPickerModel("t", pickerRecords(), DefaultLayout())
	m = press(m, keySpace, keyQuit)
	assert.True(t, m.cancelled)
	assert.Nil(t, m.Chosen())
	assert.Empty(t, m.View())
}

func TestSpinnerCtrlCCancelsAction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(done)
	}()

	m := newBlockingSpinnerModel("working", done, cancel)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)

	final := updated.(blockingSpinnerModel)
	assert.True(t, final.cancelled)
	assert.Empty(t, final.View())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("action did not observe cancellation")
	}
}

func TestSpinnerFinishesWhenActionDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	close(done)
	m := newBlockingSpinnerModel("working", done, cancel)

	msg := m.waitForAction()()
	assert.Equal(t, actionDoneMsg{}, msg)

	updated, _ := m.Update(msg)
	final := updated.(blockingSpinnerModel)
	assert.True(t, final.finished)
	assert.False(t, final.cancelled)
	assert.NoError(t, ctx.Err())
}
