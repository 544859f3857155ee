package driver

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/randalmurphal/ingestflow/lifecycle"
)

type listRow struct {
	state    lifecycle.State
	key      string
	size     int64
	modified time.Time
}

func renderListing(rows []listRow) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"State", "Tarball", "Metadata size", "Last modified"})

	for _, row := range rows {
		modified := ""
		if !row.modified.IsZero() {
			modified = humanize.Time(row.modified)
		}
		tw.AppendRow(table.Row{row.state.String(), row.key, humanize.Bytes(uint64(max(row.size, 0))), modified})
	}
	tw.AppendFooter(table.Row{"", "", "", humanize.Comma(int64(len(rows))) + " tarballs"})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
