package ui

// picker.go is an interactive capture list for choosing what to download.

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thesavant42/omnidash/internal/models"
)

type pickerModel struct {
	title     string
	records   []models.CDXRecord
	selected  map[int]bool
	table     table.Model
	layout    Layout
	done      bool
	cancelled bool
}

func pickerColumns(layout Layout) []table.Column {
	urlWidth := layout.InnerWidth - 2 - colDate - colStatus - colType - 8
	if urlWidth < colURLMin {
		urlWidth = colURLMin
	}
	return []table.Column{
		{Title: " ", Width: 2},
		{Title: "Captured", Width: colDate},
		{Title: "Status", Width: colStatus},
		{Title: "Type", Width: colType},
		{Title: "URL", Width: urlWidth},
	}
}

func newPickerModel(title string, records []models.CDXRecord, layout Layout) pickerModel {
	t := table.New(
		table.WithColumns(pickerColumns(layout)),
		table.WithFocused(true),
		table.WithHeight(layout.TableHeight),
	)
	ApplyTableStyles(&t)

	m := pickerModel{
		title:    title,
		records:  records,
		selected: make(map[int]bool),
		table:    t,
		layout:   layout,
	}
	m.refreshRows()
	return m
}

func (m *pickerModel) refreshRows() {
	rows := make([]table.Row, len(m.records))
	for i, r := range m.records {
		mark := ""
		if m.selected[i] {
			mark = "✓"
		}
		rows[i] = table.Row{mark, models.FormatWaybackTimestamp(r.Timestamp), r.StatusCode, r.MimeType, r.Original}
	}
	m.table.SetRows(rows)
}

// Chosen returns the selected records in list order.
// With nothing marked, the row under the cursor is the choice.
func (m pickerModel) Chosen() []models.CDXRecord {
	if m.cancelled || len(m.records) == 0 {
		return nil
	}
	var out []models.CDXRecord
	for i, r := range m.records {
		if m.selected[i] {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = append(out, m.records[m.table.Cursor()])
	}
	return out
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = NewLayout(msg.Width, msg.Height)
		m.table.SetColumns(pickerColumns(m.layout))
		m.table.SetHeight(m.layout.TableHeight)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		case " ":
			if len(m.records) > 0 {
				i := m.table.Cursor()
				m.selected[i] = !m.selected[i]
				if !m.selected[i] {
					delete(m.selected, i)
				}
				m.refreshRows()
			}
			return m, nil
		case "a":
			if len(m.selected) == len(m.records) {
				m.selected = make(map[int]bool)
			} else {
				for i := range m.records {
					m.selected[i] = true
				}
			}
			m.refreshRows()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(AccentStyle.Render(m.title) + "\n")
	sb.WriteString(m.table.View() + "\n")
	sb.WriteString(DimStyle.Render(fmt.Sprintf("%d of %d selected", len(m.selected), len(m.records))) + "\n")
	sb.WriteString(HintStyle.Render("space: toggle  a: all  enter: download  q: cancel"))
	return BorderedBox(m.layout).Render(sb.String())
}

// PickRecords lets the user mark captures in a table and returns the marked ones
func PickRecords(title string, records []models.CDXRecord) ([]models.CDXRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	p := tea.NewProgram(newPickerModel(title, records, DefaultLayout()), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("picker error: %w", err)
	}
	m := final.(pickerModel)
	if m.cancelled {
		return nil, ErrCancelled
	}
	return m.Chosen(), nil
}
