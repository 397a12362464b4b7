package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type column struct {
	header string
	align  text.Align
	// width soft-wraps cell text beyond this many characters; 0 is unbounded.
	width int
}

func left(header string) column { return column{header: header, align: text.AlignLeft} }
func right(header string) column { return column{header: header, align: text.AlignRight} }
func wrapped(header string, w int) column { return column{header: header, align: text.AlignLeft, width: w} }

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.header
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       col.align,
			AlignHeader: text.AlignLeft,
		}
		if col.width > 0 {
			configs[i].WidthMax = col.width
			configs[i].WidthMaxEnforcer = text.WrapSoft
		}
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	tw.SetColumnConfigs(configs)
	return tw.Render() + "\n"
}
