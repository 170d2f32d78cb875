package patch

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Preview renders the line differences between before and after. Removed
// lines are prefixed with "-", inserted lines with "+" and unchanged lines
// within context lines of a change with a space. Other unchanged runs are
// replaced by "...". Identical inputs produce an empty string.
func Preview(before, after string, context int) string {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lineArray)

	type row struct {
		mark byte
		text string
	}
	var rows []row
	for _, d := range diffs {
		mark := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			mark = '+'
		case diffmatchpatch.DiffDelete:
			mark = '-'
		}
		for _, line := range SplitLines(d.Text) {
			rows = append(rows, row{mark: mark, text: strings.TrimSuffix(line, terminator)})
		}
	}

	keep := make([]bool, len(rows))
	for i, r := range rows {
		if r.mark == ' ' {
			continue
		}
		for j := max(0, i-context); j <= min(len(rows)-1, i+context); j++ {
			keep[j] = true
		}
	}

	var b strings.Builder
	elided := false
	for i, r := range rows {
		if !keep[i] {
			elided = true
			continue
		}
		if elided {
			b.WriteString("...\n")
		}
		elided = false
		b.WriteByte(r.mark)
		b.WriteString(r.text)
		b.WriteString(terminator)
	}
	if elided && b.Len() > 0 {
		b.WriteString("...\n")
	}
	return b.String()
}
