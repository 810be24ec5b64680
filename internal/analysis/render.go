package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/KaramelBytes/csvreport-cli/internal/table"
)

const (
	missingText  = "NaN"
	maxCellWidth = 50
	colGap       = "  "
)

// statRows is the row order of the summary statistics frame.
var statRows = []string{"count", "unique", "top", "freq", "mean", "std", "min", "25%", "50%", "75%", "max"}

// renderFrame lays out a grid as aligned text lines: the index column is left
// aligned, data columns are right aligned under their headers.
func renderFrame(index, header []string, rows [][]string) []string {
	idxW := 0
	for _, s := range index {
		idxW = max(idxW, runewidth.StringWidth(s))
	}
	widths := make([]int, len(header))
	for j, h := range header {
		widths[j] = runewidth.StringWidth(h)
		for _, row := range rows {
			widths[j] = max(widths[j], runewidth.StringWidth(row[j]))
		}
	}

	line := func(idx string, cells []string) string {
		var b strings.Builder
		b.WriteString(runewidth.FillRight(idx, idxW))
		for j, cell := range cells {
			b.WriteString(colGap)
			b.WriteString(runewidth.FillLeft(cell, widths[j]))
		}
		return strings.TrimRight(b.String(), " ")
	}

	out := make([]string, 0, len(rows)+1)
	out = append(out, line("", header))
	for i, row := range rows {
		out = append(out, line(index[i], row))
	}
	return out
}

// renderSeries lays out name/value pairs, names left aligned.
func renderSeries(names, values []string) []string {
	w := 0
	for _, n := range names {
		w = max(w, runewidth.StringWidth(n))
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = runewidth.FillRight(n, w) + "    " + values[i]
	}
	return out
}

// renderRows renders t with a positional index starting at offset.
func renderRows(t *table.Table, offset int) []string {
	header := make([]string, t.NumCols())
	for j, name := range t.Names() {
		header[j] = cellText(name)
	}
	if t.NumRows() == 0 {
		return []string{
			"Empty table",
			"Columns: [" + strings.Join(header, ", ") + "]",
		}
	}
	index := make([]string, t.NumRows())
	rows := make([][]string, t.NumRows())
	for i := range rows {
		index[i] = strconv.Itoa(offset + i)
		row := make([]string, t.NumCols())
		for j, c := range t.Columns() {
			if c.IsNull(i) {
				row[j] = missingText
			} else {
				row[j] = cellText(c.Format(i))
			}
		}
		rows[i] = row
	}
	return renderFrame(index, header, rows)
}

// renderStats renders the describe frame: one column per table column, one
// row per statistic.
func renderStats(sums []ColumnSummary) []string {
	header := make([]string, len(sums))
	for j, s := range sums {
		header[j] = cellText(s.Name)
	}
	rows := make([][]string, len(statRows))
	for i, stat := range statRows {
		row := make([]string, len(sums))
		for j, s := range sums {
			row[j] = statCell(s, stat)
		}
		rows[i] = row
	}
	return renderFrame(statRows, header, rows)
}

func statCell(s ColumnSummary, stat string) string {
	switch stat {
	case "count":
		return strconv.Itoa(s.Count)
	case "unique":
		if s.Numeric {
			return missingText
		}
		return strconv.Itoa(s.Unique)
	case "top":
		if s.Top == nil {
			return missingText
		}
		return cellText(*s.Top)
	case "freq":
		if s.Freq == nil {
			return missingText
		}
		return strconv.Itoa(*s.Freq)
	case "mean":
		return formatStat(s.Mean)
	case "std":
		return formatStat(s.Std)
	case "min":
		return formatStat(s.Min)
	case "25%":
		return formatStat(s.Q1)
	case "50%":
		return formatStat(s.Median)
	case "75%":
		return formatStat(s.Q3)
	case "max":
		return formatStat(s.Max)
	}
	return missingText
}

func formatStat(v *float64) string {
	if v == nil {
		return missingText
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// singleLine replaces line breaks and tabs with spaces.
func singleLine(s string) string { return lineBreaks.Replace(s) }

// cellText makes a value safe for a single report line and caps its width.
func cellText(s string) string {
	return runewidth.Truncate(singleLine(s), maxCellWidth, "...")
}

func quoteNames(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("'%s'", cellText(n))
	}
	return "[" + strings.Join(q, ", ") + "]"
}
