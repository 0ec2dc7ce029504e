package book

import (
	"testing"
	"time"
)

func TestReconcileAvailable(t *testing.T) {
	tests := []struct {
		name      string
		available int
		oldTotal  int
		newTotal  int
		want      int
	}{
		{name: "grow", available: 2, oldTotal: 5, newTotal: 8, want: 5},
		{name: "shrink_within_free_copies", available: 4, oldTotal: 5, newTotal: 3, want: 2},
		{name: "shrink_below_borrowed_clamps_to_zero", available: 2, oldTotal: 5, newTotal: 1, want: 0},
		{name: "unchanged", available: 3, oldTotal: 3, newTotal: 3, want: 3},
		{name: "never_above_total", available: 4, oldTotal: 2, newTotal: 3, want: 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ReconcileAvailable(tt.available, tt.oldTotal, tt.newTotal)
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewStartsFullyAvailable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := New(Input{Title: "Dune", Author: "Frank Herbert", TotalCopies: 3}, now)

	if b.ID == "" {
		t.Fatalf("expected an id")
	}
	if b.AvailableCopies != 3 || b.TotalCopies != 3 {
		t.Fatalf("got available=%d total=%d", b.AvailableCopies, b.TotalCopies)
	}
	if !b.CreatedAt.Equal(now) || !b.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps not set from clock")
	}
}

func TestTakeAndReturnCopyStayInBounds(t *testing.T) {
	b := Book{TotalCopies: 1, AvailableCopies: 1}

	b.TakeCopy()
	b.TakeCopy()
	if b.AvailableCopies != 0 {
		t.Fatalf("available went below zero: %d", b.AvailableCopies)
	}

	b.ReturnCopy()
	b.ReturnCopy()
	if b.AvailableCopies != 1 {
		t.Fatalf("available exceeded total: %d", b.AvailableCopies)
	}
}

func TestVersion_MicrosecondPrecision(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	b := New(Input{Title: "Dune", Author: "Herbert", TotalCopies: 2}, now)
	if b.UpdatedAt.Nanosecond()%1000 != 0 {
		t.Fatalf("UpdatedAt kept sub-microsecond digits: %v", b.UpdatedAt)
	}

	// what a TIMESTAMPTZ column gives back
	stored := b
	stored.UpdatedAt = stored.UpdatedAt.Round(time.Microsecond)
	if stored.Version() != b.Version() {
		t.Fatalf("version changed after a storage round trip: %s vs %s", stored.Version(), b.Version())
	}

	b.Apply(Input{Title: "Dune", Author: "Herbert", TotalCopies: 3}, now.Add(999))
	if b.UpdatedAt.Nanosecond()%1000 != 0 {
		t.Fatalf("Apply kept sub-microsecond digits: %v", b.UpdatedAt)
	}

	before := b.Version()
	b.TakeCopy()
	if b.Version() == before {
		t.Fatalf("taking a copy must change the version")
	}
}
