package patch

import (
	"fmt"
	"strings"
)

// Format serialises script back into diff text that Parse accepts. Control
// lines name the anchor on the left and the resulting line range on the right.
// Parse(Format(s)) yields operations with the same kinds, anchors and content.
func Format(script Script) string {
	var b strings.Builder
	delta := 0
	for _, op := range script {
		switch op.Type {
		case OperationAppend:
			start := op.Anchor + delta + 1
			b.WriteString(controlText(op.Anchor, 'a', start, len(op.Lines)))
			writePrefixed(&b, addedPrefix, op.Lines)
			delta += len(op.Lines)
		case OperationChange:
			start := op.Anchor + delta
			b.WriteString(controlText(op.Anchor, 'c', start, len(op.Lines)))
			removed := op.Removed
			if len(removed) != op.RemoveCount {
				removed = placeholderLines(op.RemoveCount)
			}
			writePrefixed(&b, removedPrefix, removed)
			b.WriteString(separator + terminator)
			writePrefixed(&b, addedPrefix, op.Lines)
			delta += len(op.Lines) - op.RemoveCount
		}
	}
	return b.String()
}

func controlText(anchor int, cmd byte, start, count int) string {
	if count > 1 {
		return fmt.Sprintf("%d%c%d,%d\n", anchor, cmd, start, start+count-1)
	}
	return fmt.Sprintf("%d%c%d\n", anchor, cmd, start)
}

func writePrefixed(b *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		b.WriteString(prefix)
		b.WriteString(line)
		if !strings.HasSuffix(line, terminator) {
			b.WriteString(terminator)
		}
	}
}

// placeholderLines stands in for removed text when a hand-built operation
// only carries a count.
func placeholderLines(n int) []string {
	if n <= 0 {
		return nil
	}
	lines := make([]string, n)
	for i := range lines {
		lines[i] = terminator
	}
	return lines
}
