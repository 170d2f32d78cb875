package decompile

import "strings"

// FilterComments drops every line whose trimmed form starts with "#". The
// remaining lines are joined with "\n".
func FilterComments(code string) string {
	lines := strings.Split(code, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
