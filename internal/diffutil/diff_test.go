package diffutil

import (
	"strings"
	"testing"
)

func TestPatch_Create(t *testing.T) {
	patch := Patch("a.txt", "", "hello")

	if !strings.Contains(patch, "Index: a.txt") {
		t.Errorf("patch should name the file path, got:\n%s", patch)
	}
	if !strings.Contains(patch, "hello") {
		t.Errorf("patch should contain the inserted text, got:\n%s", patch)
	}
}

func TestPatch_Deterministic(t *testing.T) {
	p1 := Patch("f.go", "old content", "new content")
	p2 := Patch("f.go", "old content", "new content")

	if p1 != p2 {
		t.Error("identical inputs should produce identical patches")
	}
}

func TestPatch_NoChange(t *testing.T) {
	patch := Patch("same.txt", "unchanged", "unchanged")

	// Header only, no hunks
	if !strings.Contains(patch, "Index: same.txt") {
		t.Errorf("patch should still carry the header, got:\n%s", patch)
	}
	if strings.Contains(patch, "@@") {
		t.Errorf("no-op patch should contain no hunks, got:\n%s", patch)
	}
}

func TestStats(t *testing.T) {
	tests := []struct {
		name      string
		old       string
		new       string
		additions int
		deletions int
	}{
		{"pure insert", "", "abc", 3, 0},
		{"pure delete", "abc", "", 0, 3},
		{"no change", "abc", "abc", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			add, del := Stats(tt.old, tt.new)
			if add != tt.additions {
				t.Errorf("additions = %d, expected %d", add, tt.additions)
			}
			if del != tt.deletions {
				t.Errorf("deletions = %d, expected %d", del, tt.deletions)
			}
		})
	}
}
