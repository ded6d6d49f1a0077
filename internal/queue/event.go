// Package queue defines message payloads exchanged over the message
// broker and the background consumer that processes them.
package queue

// ReservationConfirmedEvent is published when a reservation passes QR
// check-in.  It carries enough information for downstream consumers to
// log or notify without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	VehicleID     uint64 `json:"vehicle_id"`
	CheckedBy     uint64 `json:"checked_by"`
	ConfirmedAt   string `json:"confirmed_at"`
	Items         int    `json:"items"`
}
