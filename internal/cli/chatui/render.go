package chatui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glide-the/RAGFlowMCP/internal/events"
)

// Color palette (256-color).
var (
	ClrBrand  = lipgloss.Color("214") // orange
	ClrMuted  = lipgloss.Color("245") // gray
	ClrSubtle = lipgloss.Color("242")
	ClrGreen  = lipgloss.Color("114")
	ClrRed    = lipgloss.Color("203")
	ClrCyan   = lipgloss.Color("81")
	ClrYellow = lipgloss.Color("220")
)

// Palette is the set of styles FormatEvent renders with.
type Palette struct {
	Brand   lipgloss.Style
	Muted   lipgloss.Style
	Green   lipgloss.Style
	Red     lipgloss.Style
	Cyan    lipgloss.Style
	Yellow  lipgloss.Style
	Keyword lipgloss.Style
}

// DefaultPalette is used on terminals.
func DefaultPalette() Palette {
	return Palette{
		Brand:   lipgloss.NewStyle().Foreground(ClrBrand).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(ClrMuted),
		Green:   lipgloss.NewStyle().Foreground(ClrGreen),
		Red:     lipgloss.NewStyle().Foreground(ClrRed),
		Cyan:    lipgloss.NewStyle().Foreground(ClrCyan).Underline(true),
		Yellow:  lipgloss.NewStyle().Foreground(ClrYellow),
		Keyword: lipgloss.NewStyle().Foreground(ClrBrand),
	}
}

// PlainPalette renders raw text, for pipes and redirected output.
func PlainPalette() Palette {
	noop := lipgloss.NewStyle()
	return Palette{Brand: noop, Muted: noop, Green: noop, Red: noop, Cyan: noop, Yellow: noop, Keyword: noop}
}

const maxTableRows = 10

// FormatEvent renders e for a terminal. End events render as an empty
// string.
func FormatEvent(p Palette, e events.Event) string {
	switch e.Type {
	case events.TypeText:
		return e.Text
	case events.TypeImage:
		line := p.Brand.Render("[image]") + " " + p.Cyan.Render(e.ImageURL)
		if e.Caption != "" {
			line += " " + p.Muted.Render(e.Caption)
		}
		return line
	case events.TypeLink:
		title := e.Title
		if title == "" {
			title = e.URL
		}
		line := p.Brand.Render("[link]") + " " + title + " " + p.Cyan.Render(e.URL)
		if e.Description != "" {
			line += "\n  " + p.Muted.Render(e.Description)
		}
		return line
	case events.TypeButtons:
		var b strings.Builder
		if e.Text != "" {
			b.WriteString(e.Text + "\n")
		}
		labels := make([]string, 0, len(e.Buttons))
		for _, btn := range e.Buttons {
			labels = append(labels, p.Keyword.Render("["+btn.Label+"]"))
		}
		b.WriteString(strings.Join(labels, " "))
		return b.String()
	case events.TypeDataFrame:
		return formatTable(p, e.JSONTable)
	case events.TypePlotly:
		title := ""
		if layout, ok := e.JSONPlotly["layout"].(map[string]any); ok {
			title = stringOf(layout["title"])
		}
		return p.Brand.Render("[chart]") + " " + title
	case events.TypeSQL:
		return p.Brand.Render("[sql]") + " " + p.Yellow.Render(e.Query)
	case events.TypeError:
		return p.Red.Render("error: " + e.Error)
	default:
		return ""
	}
}

func formatTable(p Palette, table map[string]any) string {
	var b strings.Builder
	b.WriteString(p.Brand.Render("[dataframe]"))
	if title := stringOf(table["title"]); title != "" {
		b.WriteString(" " + title)
	}

	rows, _ := table["rows"].([]any)
	columns := columnNames(table, rows)
	if len(columns) > 0 {
		b.WriteString("\n  " + p.Muted.Render(strings.Join(columns, " | ")))
	}
	for i, raw := range rows {
		if i >= maxTableRows {
			fmt.Fprintf(&b, "\n  %s", p.Muted.Render(fmt.Sprintf("... %d more rows", len(rows)-maxTableRows)))
			break
		}
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		cells := make([]string, 0, len(columns))
		for _, col := range columns {
			cells = append(cells, stringOf(row[col]))
		}
		b.WriteString("\n  " + strings.Join(cells, " | "))
	}
	return b.String()
}

// columnNames prefers the declared columns and falls back to the sorted keys
// of the first row.
func columnNames(table map[string]any, rows []any) []string {
	if cols, ok := table["columns"].([]any); ok && len(cols) > 0 {
		out := make([]string, 0, len(cols))
		for _, c := range cols {
			out = append(out, stringOf(c))
		}
		return out
	}
	if len(rows) == 0 {
		return nil
	}
	first, ok := rows[0].(map[string]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(first))
	for k := range first {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool, int:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
