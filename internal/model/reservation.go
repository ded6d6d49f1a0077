package model

import "time"

// Reservation statuses.  COMPLETED and CANCELLED are terminal.
const (
	ReservationPending   = "PENDING"
	ReservationConfirmed = "CONFIRMED"
	ReservationCompleted = "COMPLETED"
	ReservationCancelled = "CANCELLED"
)

// Reservation records a vehicle's claim on one or more slot/time-range
// pairs.  Items are immutable once the reservation is committed; only
// the status field (and the check-in bookkeeping) may change
// afterwards.
//
// Fields:
//  ID        – primary key identifier.
//  VehicleID – vehicle the reservation belongs to.
//  Status    – PENDING, CONFIRMED, COMPLETED or CANCELLED.
//  QRCheck   – one-way latch set when staff scan the QR payload.
//  QR        – opaque check-in payload generated at creation time.
//  CheckedBy – staff user who performed the check-in, when any.
//  CheckedAt – when the check-in happened.
//  Items     – ordered slot/time-range pairs.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64            // reservations.id
	VehicleID uint64            // reservations.vehicle_id
	Status    string            // reservations.status
	QRCheck   bool              // reservations.qr_check
	QR        string            // reservations.qr (opaque payload)
	CheckedBy *uint64           // reservations.checked_by (nullable)
	CheckedAt *time.Time        // reservations.checked_at (nullable)
	Items     []ReservationItem // reservation_items rows
	CreatedAt time.Time         // reservations.created_at
	UpdatedAt time.Time         // reservations.updated_at
}

// ReservationItem is one slot/time-range pair inside a reservation.
// StartsAt and EndsAt are UTC instants forming the half-open interval
// [StartsAt, EndsAt).
type ReservationItem struct {
	ID            uint64    // reservation_items.id
	ReservationID uint64    // reservation_items.reservation_id
	SlotID        uint64    // reservation_items.slot_id
	StartsAt      time.Time // reservation_items.starts_at
	EndsAt        time.Time // reservation_items.ends_at
}

// Active reports whether the reservation still holds its slots, i.e.
// participates in overlap checking.
func (r Reservation) Active() bool {
	return r.Status == ReservationPending || r.Status == ReservationConfirmed
}
