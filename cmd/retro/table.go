package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// detailWidth bounds the last column so long probe errors wrap instead of
// stretching the table past the terminal.
const detailWidth = 60

// renderTable draws rows under headers. Short rows are padded; the last
// column soft-wraps at detailWidth.
func renderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{
		Number:           len(headers),
		WidthMax:         detailWidth,
		WidthMaxEnforcer: text.WrapSoft,
	}})
	return tw.Render()
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
