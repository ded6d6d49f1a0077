package engine

import (
	"testing"
	"time"
)

func at(h int) time.Time {
	return time.Date(2026, 9, 1, h, 0, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                   string
		aStart, aEnd           time.Time
		bStart, bEnd           time.Time
		want                   bool
	}{
		{"identical", at(10), at(12), at(10), at(12), true},
		{"partial", at(10), at(12), at(11), at(13), true},
		{"contained", at(10), at(14), at(11), at(12), true},
		{"adjacent end-to-start", at(10), at(11), at(11), at(12), false},
		{"adjacent start-to-end", at(11), at(12), at(10), at(11), false},
		{"disjoint", at(8), at(9), at(11), at(12), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Overlaps(c.aStart, c.aEnd, c.bStart, c.bEnd); got != c.want {
				t.Fatalf("Overlaps = %v, want %v", got, c.want)
			}
			// The predicate is symmetric.
			if got := Overlaps(c.bStart, c.bEnd, c.aStart, c.aEnd); got != c.want {
				t.Fatalf("Overlaps (swapped) = %v, want %v", got, c.want)
			}
		})
	}
}

func TestIntraBatchConflict(t *testing.T) {
	t.Run("same slot overlapping", func(t *testing.T) {
		items := []ItemInput{
			{SlotID: 1, StartsAt: at(10), EndsAt: at(12)},
			{SlotID: 1, StartsAt: at(11), EndsAt: at(13)},
		}
		i, j, ok := intraBatchConflict(items)
		if !ok || i != 0 || j != 1 {
			t.Fatalf("got (%d, %d, %v), want (0, 1, true)", i, j, ok)
		}
	})
	t.Run("same slot adjacent", func(t *testing.T) {
		items := []ItemInput{
			{SlotID: 1, StartsAt: at(10), EndsAt: at(11)},
			{SlotID: 1, StartsAt: at(11), EndsAt: at(12)},
		}
		if _, _, ok := intraBatchConflict(items); ok {
			t.Fatal("adjacent ranges reported as conflicting")
		}
	})
	t.Run("different slots overlapping", func(t *testing.T) {
		items := []ItemInput{
			{SlotID: 1, StartsAt: at(10), EndsAt: at(12)},
			{SlotID: 2, StartsAt: at(10), EndsAt: at(12)},
		}
		if _, _, ok := intraBatchConflict(items); ok {
			t.Fatal("ranges on distinct slots reported as conflicting")
		}
	})
}

func TestUniqueSlotIDs(t *testing.T) {
	items := []ItemInput{
		{SlotID: 3, StartsAt: at(10), EndsAt: at(11)},
		{SlotID: 1, StartsAt: at(11), EndsAt: at(12)},
		{SlotID: 3, StartsAt: at(12), EndsAt: at(13)},
	}
	ids := uniqueSlotIDs(items)
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}
	seen := map[uint64]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[1] || !seen[3] {
		t.Fatalf("ids = %v, want {1, 3}", ids)
	}
}
