package patch

import "strings"

const terminator = "\n"

// SplitLines splits text into lines that keep their trailing "\n". Windows and
// classic Mac line endings are normalised to "\n" first. The final element
// lacks a terminator when text does not end with one; empty text yields nil.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.SplitAfter(normalized, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// JoinLines concatenates lines produced by SplitLines or Apply.
func JoinLines(lines []string) string {
	return strings.Join(lines, "")
}

// NormalizeTerminators appends "\n" to every line that lacks one, including
// the last. The slice is modified in place and returned.
func NormalizeTerminators(lines []string) []string {
	for i, line := range lines {
		if !strings.HasSuffix(line, terminator) {
			lines[i] = line + terminator
		}
	}
	return lines
}
