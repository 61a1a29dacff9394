package catalog

import (
	"testing"

	"github.com/Spok95/homestock/internal/domain/errs"
)

func TestReindex(t *testing.T) {
	got, err := Reindex([]int64{1, 2, 3}, []int64{3, 1, 2})
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	want := map[int64]int{3: 1, 1: 2, 2: 3}
	for id, pos := range want {
		if got[id] != pos {
			t.Fatalf("id %d at %d, want %d", id, got[id], pos)
		}
	}
}

func TestReindex_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		order []int64
	}{
		{"missing", []int64{1, 2}},
		{"unknown", []int64{1, 2, 9}},
		{"duplicate", []int64{1, 1, 2}},
	}
	for _, tc := range cases {
		if _, err := Reindex([]int64{1, 2, 3}, tc.order); !errs.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestCleanColor(t *testing.T) {
	if c, err := cleanColor(""); err != nil || c != defaultTagColor {
		t.Fatalf("empty color = %q, %v", c, err)
	}
	if c, err := cleanColor(" #AABBCC "); err != nil || c != "#aabbcc" {
		t.Fatalf("color = %q, %v", c, err)
	}
	if _, err := cleanColor("red"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCleanName(t *testing.T) {
	if _, err := cleanName("   "); !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n, _ := cleanName("  Dairy "); n != "Dairy" {
		t.Fatalf("name = %q", n)
	}
}
