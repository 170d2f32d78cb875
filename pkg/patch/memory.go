package patch

// ApplyText parses diff and applies it to the in-memory document source,
// returning the patched text. It is the string form of Apply(SplitLines(source),
// Parse(diff), opts).
func ApplyText(source, diff string, opts Options) (string, error) {
	lines, err := Apply(SplitLines(source), Parse(diff), opts)
	if err != nil {
		return "", err
	}
	return JoinLines(lines), nil
}
