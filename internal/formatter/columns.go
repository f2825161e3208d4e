package formatter

import (
	"strings"

	runewidth "github.com/mattn/go-runewidth"
)

// FormatColumns aligns two-column rows, padding the first column to its
// widest display width. Wide characters count by their terminal width. Rows
// with an empty second column are printed as is and do not affect alignment.
func FormatColumns(rows [][2]string, gap int) string {
	width := 0
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		if w := runewidth.StringWidth(r[0]); w > width {
			width = w
		}
	}
	sep := strings.Repeat(" ", gap)
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		if r[1] == "" {
			b.WriteString(r[0])
			continue
		}
		b.WriteString(runewidth.FillRight(r[0], width))
		b.WriteString(sep)
		b.WriteString(r[1])
	}
	return b.String()
}
