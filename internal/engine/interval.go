package engine

import "time"

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.  Touching ranges, where one ends exactly
// when the other starts, do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// intraBatchConflict scans the items of a single reservation request
// for two entries that claim the same slot with intersecting ranges.
// It returns the indices of the first conflicting pair.
func intraBatchConflict(items []ItemInput) (int, int, bool) {
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[i].SlotID != items[j].SlotID {
				continue
			}
			if Overlaps(items[i].StartsAt, items[i].EndsAt, items[j].StartsAt, items[j].EndsAt) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// uniqueSlotIDs returns the distinct slot ids referenced by the items,
// in first-seen order.  Used for the batched existence check and the
// row locks, which must each name a slot only once.
func uniqueSlotIDs(items []ItemInput) []uint64 {
	seen := make(map[uint64]struct{}, len(items))
	out := make([]uint64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.SlotID]; ok {
			continue
		}
		seen[it.SlotID] = struct{}{}
		out = append(out, it.SlotID)
	}
	return out
}
