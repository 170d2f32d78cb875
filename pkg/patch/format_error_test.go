package patch

import (
	"strings"
	"testing"
)

func TestFormatErrorIncludesOperation(t *testing.T) {
	t.Parallel()

	err := &Error{
		Message:   "append anchor 9 is outside the file (3 lines)",
		Code:      CodeOutOfRange,
		Path:      "msgpack/_unpacker.pyx",
		Operation: 2,
		Control:   "9a10",
	}

	got := FormatError(err)
	if !containsAll(got, []string{
		"append anchor 9 is outside the file (3 lines)",
		"File: ./msgpack/_unpacker.pyx",
		"Operation 2 (9a10)",
		"Code: INDEX_OUT_OF_RANGE",
	}) {
		t.Fatalf("unexpected formatted output:\n%s", got)
	}
}

func TestFormatErrorForUnknown(t *testing.T) {
	t.Parallel()

	if got := FormatError(nil); got != "Unknown error occurred." {
		t.Fatalf("unexpected message for nil error: %q", got)
	}

	err := &Error{Message: "custom failure"}
	if got := FormatError(err); got != "custom failure" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	t.Parallel()

	cause := &Error{Message: "inner"}
	err := &Error{Message: "outer", Err: cause}
	if err.Unwrap() != cause {
		t.Fatalf("Unwrap() did not return the cause")
	}
	var nilErr *Error
	if nilErr.Error() != "" || nilErr.Unwrap() != nil {
		t.Fatalf("nil *Error should be inert")
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
