package ui

import (
	"chatpanel/internal/chatapi"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const (
	// MaxColumnWidth caps one results column; longer cells are truncated.
	MaxColumnWidth = 40
	// MinColumnWidth keeps squeezed columns readable.
	MinColumnWidth = 4
)

// TableCells lays rows out for display. The header is the first row's
// columns in key order. Each body row is that row's values in its own key
// order, one cell per value; later rows are not realigned to the header.
func TableCells(rows []chatapi.ResultRow) (headers []string, body [][]string) {
	if len(rows) == 0 {
		return nil, nil
	}
	headers = rows[0].Columns()
	body = make([][]string, len(rows))
	for i, row := range rows {
		body[i] = row.Strings()
	}
	return headers, body
}

// ColumnWidths sizes each column to its widest cell, capped at
// MaxColumnWidth. When the total exceeds width (and width > 0) every column
// is capped at an equal share instead.
func ColumnWidths(headers []string, body [][]string, width int) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range body {
		for i := 0; i < len(widths) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	limit := MaxColumnWidth
	if width > 0 && len(widths) > 0 {
		// Each column carries two cells of padding.
		total := 0
		for _, w := range widths {
			total += min(w, limit) + 2
		}
		if total > width {
			limit = max(width/len(widths)-2, MinColumnWidth)
		}
	}
	for i, w := range widths {
		widths[i] = max(min(w, limit), 1)
	}
	return widths
}

// ResultsTable builds a scrollable table showing height body rows. Body rows
// are padded or cut to the header length because the table widget indexes
// cells by column.
func ResultsTable(rows []chatapi.ResultRow, width, height int, styles Styles) table.Model {
	headers, body := TableCells(rows)
	widths := ColumnWidths(headers, body, width)

	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		cols[i] = table.Column{Title: h, Width: widths[i]}
	}

	trows := make([]table.Row, len(body))
	for i, cells := range body {
		r := make(table.Row, len(headers))
		copy(r, cells)
		trows[i] = r
	}

	if height < 1 {
		height = 1
	}

	s := table.DefaultStyles()
	s.Header = styles.TableHeader
	s.Cell = styles.TableCell
	s.Selected = styles.TableSelected

	// WithHeight counts the header, so columns and styles go first.
	opts := []table.Option{
		table.WithColumns(cols),
		table.WithStyles(s),
		table.WithRows(trows),
		table.WithHeight(height + lipgloss.Height(s.Header.Render("x"))),
		table.WithFocused(false),
	}
	if width > 0 {
		opts = append(opts, table.WithWidth(width))
	}
	return table.New(opts...)
}
