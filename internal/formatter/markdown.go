// Package formatter renders aligned markdown tables for generated
// documentation.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table renders a markdown table with columns padded to equal display
// width. Rows shorter than the header are filled with empty cells.
func Table(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}

			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder

	writeRow := func(cells []string) {
		b.WriteString("|")

		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}

			b.WriteString(" ")
			b.WriteString(pad(cell, widths[i]))
			b.WriteString(" |")
		}

		b.WriteString("\n")
	}

	writeRow(headers)

	b.WriteString("|")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteString("|")
	}
	b.WriteString("\n")

	for _, row := range rows {
		writeRow(row)
	}

	return b.String()
}

// pad right-pads cell to the target display width, accounting for wide
// runes.
func pad(cell string, width int) string {
	gap := width - runewidth.StringWidth(cell)
	if gap <= 0 {
		return cell
	}

	return cell + strings.Repeat(" ", gap)
}
