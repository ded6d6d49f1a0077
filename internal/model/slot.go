package model

import "time"

// Slot statuses.  BOOKED and IN_USE are the only statuses that may
// carry a next_available_at hint; AVAILABLE and INACTIVE must not.
const (
	SlotAvailable = "AVAILABLE"
	SlotBooked    = "BOOKED"
	SlotInUse     = "IN_USE"
	SlotInactive  = "INACTIVE"
)

// Slot is the smallest bookable charging unit.  Slots are uniquely
// identified within their port by Order, which is used for physical
// and display ordering and enforced by a uniqueness constraint on
// (port_id, order_no).
//
// Fields:
//  ID              – primary key identifier.
//  PortID          – port to which this slot belongs.
//  Order           – 1-based position within the port.
//  Status          – AVAILABLE, BOOKED, IN_USE or INACTIVE.
//  NextAvailableAt – optional hint for when the slot frees up.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Slot struct {
	ID              uint64     // slots.id
	PortID          uint64     // slots.port_id
	Order           uint32     // slots.order_no
	Status          string     // slots.status
	NextAvailableAt *time.Time // slots.next_available_at (nullable)
	CreatedAt       time.Time  // slots.created_at
	UpdatedAt       time.Time  // slots.updated_at
}

// SlotPatch describes a partial update to a slot.  Nil fields are
// left untouched.
type SlotPatch struct {
	Order           *uint32
	Status          *string
	NextAvailableAt *time.Time
	// ClearNextAvailable distinguishes "set to null" from "not supplied".
	ClearNextAvailable bool
}

// ApplyPatch merges the patch into a copy of the slot and normalises
// the result.  The next_available_at invariant is evaluated against
// the post-merge status, not the patch alone: a patch that flips the
// status to AVAILABLE clears a previously stored hint even when the
// patch never mentions next_available_at.
func (s Slot) ApplyPatch(p SlotPatch) Slot {
	out := s
	if p.Order != nil {
		out.Order = *p.Order
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.ClearNextAvailable {
		out.NextAvailableAt = nil
	} else if p.NextAvailableAt != nil {
		t := p.NextAvailableAt.UTC()
		out.NextAvailableAt = &t
	}
	if out.Status == SlotAvailable || out.Status == SlotInactive {
		out.NextAvailableAt = nil
	}
	return out
}

// DisplayStatus derives the presentation status of a slot from the
// stored status and whether an active reservation currently claims it.
// The stored field is treated as a fast filter only; INACTIVE always
// wins, everything else is recomputed from reservation state.  The
// result must never be written back from a read path.
func (s Slot) DisplayStatus(activelyReserved bool) string {
	if s.Status == SlotInactive {
		return SlotInactive
	}
	if activelyReserved {
		return SlotInUse
	}
	return SlotAvailable
}

// ValidSlotStatus reports whether the given string is one of the four
// slot statuses.
func ValidSlotStatus(s string) bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotInUse, SlotInactive:
		return true
	}
	return false
}
