package patch

import (
	"regexp"
	"strconv"
	"strings"
)

// OperationType identifies the kind of edit described by a control line.
type OperationType string

const (
	// OperationAppend represents an "Na..." control line.
	OperationAppend OperationType = "append"
	// OperationChange represents an "Nc..." control line.
	OperationChange OperationType = "change"
)

const (
	addedPrefix   = "> "
	removedPrefix = "< "
	separator     = "---"
)

// The range after the command is optional so hand-written scripts such as
// "2a" are accepted alongside diff(1) output such as "2a3,4".
var controlLine = regexp.MustCompile(`^(\d+)([ac])(?:(\d+)(?:,(\d+))?)?`)

// Operation is a single edit parsed from a diff script.
//
// Index is the 0-based position derived from Anchor. For appends the lines are
// inserted after that index; for changes RemoveCount lines starting at Index
// are replaced.
type Operation struct {
	Type        OperationType
	Anchor      int
	Index       int
	RemoveCount int
	Removed     []string
	Lines       []string
	Control     string
}

// Script is an ordered list of operations in the order they were parsed.
type Script []Operation

// Options configure how a script is applied.
type Options struct {
	// AllowOverlap skips Validate so overlapping or out-of-order operations
	// are applied the way they were written.
	AllowOverlap bool
}

// Parse converts diff text into a Script. Unrecognised lines are skipped and
// no error is ever reported.
func Parse(text string) Script {
	return ParseLines(SplitLines(text))
}

// ParseLines is Parse over input that has already been split with SplitLines.
func ParseLines(lines []string) Script {
	var script Script
	i := 0
	for i < len(lines) {
		line := lines[i]
		m := controlLine.FindStringSubmatch(line)
		if m == nil {
			i++
			continue
		}
		anchor, err := strconv.Atoi(m[1])
		if err != nil {
			// Only reachable on overflow; treat it like any other unknown line.
			i++
			continue
		}
		op := Operation{
			Anchor:  anchor,
			Index:   anchor - 1,
			Control: strings.TrimRight(line, "\n"),
		}
		i++

		if m[2] == "c" {
			op.Type = OperationChange
			op.Removed, i = collectPrefixed(lines, i, removedPrefix)
			op.RemoveCount = len(op.Removed)
			if i < len(lines) && strings.HasPrefix(lines[i], separator) {
				i++
			}
		} else {
			op.Type = OperationAppend
		}
		op.Lines, i = collectPrefixed(lines, i, addedPrefix)
		script = append(script, op)
	}
	return script
}

func collectPrefixed(lines []string, start int, prefix string) ([]string, int) {
	var out []string
	i := start
	for i < len(lines) && strings.HasPrefix(lines[i], prefix) {
		out = append(out, lines[i][len(prefix):])
		i++
	}
	return out, i
}
