package patch

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormatRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []string{
		"2a3\n> inserted\n",
		"2c2\n< two\n---\n> TWO\n",
		"0a1,2\n> a\n> b\n3c5,6\n< c\n< d\n---\n> C\n> D\n9a12\n> tail\n",
		"4c4\n< gone\n---\n",
	}

	for _, diff := range cases {
		diff := diff
		t.Run(strings.SplitN(diff, "\n", 2)[0], func(t *testing.T) {
			t.Parallel()
			script := Parse(diff)
			formatted := Format(script)
			if formatted != diff {
				t.Fatalf("Format() = %q, want %q", formatted, diff)
			}
			reparsed := Parse(formatted)
			if d := cmp.Diff(script, reparsed); d != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", d)
			}
		})
	}
}

func TestFormatFillsMissingTerminatorsAndRemovedText(t *testing.T) {
	t.Parallel()

	script := Script{
		{Type: OperationAppend, Anchor: 1, Index: 0, Lines: []string{"x"}},
		{Type: OperationChange, Anchor: 3, Index: 2, RemoveCount: 2, Lines: []string{"y\n"}},
	}
	got := Format(script)
	want := "1a2\n> x\n3c4\n< \n< \n---\n> y\n"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}

	reparsed := Parse(got)
	if len(reparsed) != 2 || reparsed[1].RemoveCount != 2 || reparsed[0].Lines[0] != "x\n" {
		t.Fatalf("unexpected reparsed script: %#v", reparsed)
	}
}
