// Package difftest renders a readable diff between an expected and an actual
// string when a text-identity assertion fails, instead of dumping two large
// strings for the reader to eyeball side by side.
package difftest

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// AssertTextEqual fails the test with a diffmatchpatch-rendered diff when
// want != got. Intended for spec §8 invariant 3 (text-identity) checks where
// the compared strings can be long enough that testify's default output is
// unreadable.
func AssertTextEqual(t *testing.T, want, got string, msgAndArgs ...any) {
	t.Helper()

	if want == got {
		return
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(want, got, false)

	t.Fatalf("text mismatch%s:\n%s", formatMsg(msgAndArgs), dmp.DiffPrettyText(diffs))
}

func formatMsg(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}

	format, ok := msgAndArgs[0].(string)
	if !ok {
		return ""
	}

	return " (" + format + ")"
}
