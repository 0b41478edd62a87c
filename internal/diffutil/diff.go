// Package diffutil renders the textual patch stored alongside each change.
// The patch is descriptive only: it is shown to reviewers and kept for
// audit, never replayed to reconstruct file content.
package diffutil

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Patch returns a textual patch transforming oldText into newText,
// headed by the file path. Deterministic for identical inputs.
func Patch(path, oldText, newText string) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	patches := dmp.PatchMake(oldText, diffs)

	var b strings.Builder
	fmt.Fprintf(&b, "Index: %s\n", path)
	b.WriteString("===================================================================\n")
	b.WriteString(dmp.PatchToText(patches))
	return b.String()
}

// Stats counts the characters inserted and deleted between two versions.
func Stats(oldText, newText string) (additions, deletions int) {
	dmp := diffmatchpatch.New()
	for _, d := range dmp.DiffMain(oldText, newText, false) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += len(d.Text)
		}
	}
	return additions, deletions
}
