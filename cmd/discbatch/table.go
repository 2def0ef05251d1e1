package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

type tableOptions struct {
	footer []string
	style  table.Style
}

type tableOption func(*tableOptions)

// withFooter appends a totals row below the body.
func withFooter(cells ...string) tableOption {
	return func(o *tableOptions) { o.footer = cells }
}

// withPlainStyle draws ASCII borders for output that is not a terminal.
func withPlainStyle(plain bool) tableOption {
	return func(o *tableOptions) {
		if plain {
			o.style = table.StyleDefault
		}
	}
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, opts ...tableOption) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}
	options := tableOptions{style: table.StyleRounded}
	for _, opt := range opts {
		opt(&options)
	}

	tw := table.NewWriter()
	tw.SetStyle(options.style)
	tw.AppendHeader(padRow(headers, columns))
	for _, row := range rows {
		tw.AppendRow(padRow(row, columns))
	}
	if len(options.footer) > 0 {
		tw.AppendFooter(padRow(options.footer, columns))
	}

	configs := make([]table.ColumnConfig, columns)
	for i := range configs {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func padRow(cells []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
