package stock

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/homestock/internal/domain/errs"
)

func TestNextStatus(t *testing.T) {
	cases := map[Status]Status{
		StatusUnchecked:  StatusSufficient,
		StatusSufficient: StatusNeeded,
		StatusNeeded:     StatusUnchecked,
		"":               StatusSufficient,
		"garbage":        StatusSufficient,
	}
	for in, want := range cases {
		if got := NextStatus(in); got != want {
			t.Fatalf("NextStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNextStatus_ThreeStepsReturn(t *testing.T) {
	for _, s := range statusCycle {
		if got := NextStatus(NextStatus(NextStatus(s))); got != s {
			t.Fatalf("three steps from %s landed on %s", s, got)
		}
	}
}

func TestNormalizeMode(t *testing.T) {
	cases := []struct {
		mode       Mode
		bucket     Bucket
		wantMode   Mode
		wantBucket Bucket
		wantErr    bool
	}{
		{"", "", ModeExact, BucketNone, false},
		{ModeExact, BucketMany, ModeExact, BucketNone, false},
		{ModeApproximate, "", ModeApproximate, BucketFew, false},
		{ModeApproximate, BucketMany, ModeApproximate, BucketMany, false},
		{"fuzzy", "", "", "", true},
		{ModeApproximate, "lots", "", "", true},
	}
	for _, tc := range cases {
		m, b, err := NormalizeMode(tc.mode, tc.bucket)
		if tc.wantErr {
			if !errs.IsValidation(err) {
				t.Fatalf("NormalizeMode(%q,%q): expected validation error, got %v", tc.mode, tc.bucket, err)
			}
			continue
		}
		if err != nil || m != tc.wantMode || b != tc.wantBucket {
			t.Fatalf("NormalizeMode(%q,%q) = %q,%q,%v", tc.mode, tc.bucket, m, b, err)
		}
	}
}

func TestSnapshotAdd_FloorsAtZero(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSnapshot(1, at)
	s.Quantity = decimal.NewFromInt(3)
	s.Status = StatusSufficient

	if !s.Add(decimal.NewFromInt(-10), at) {
		t.Fatal("expected a change")
	}
	if !s.Quantity.IsZero() || s.Status != StatusUnchecked {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if s.Add(decimal.NewFromInt(-1), at) {
		t.Fatal("clamped no-op reported a change")
	}
}

func TestSnapshotSetQuantity_UnchangedKeepsStatus(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSnapshot(1, at)
	s.Quantity = decimal.NewFromInt(5)
	s.Status = StatusNeeded

	later := at.Add(time.Hour)
	if s.SetQuantity(decimal.RequireFromString("5.000"), later) {
		t.Fatal("equal quantity reported a change")
	}
	if s.Status != StatusNeeded || !s.LastUpdated.Equal(later) {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}
