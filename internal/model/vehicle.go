package model

import "time"

// Vehicle is owned by exactly one user and referenced by reservations
// and charging sessions.  It exists in this service only as a foreign
// key and an ownership-authorization source.
type Vehicle struct {
	ID          uint64    // vehicles.id
	OwnerUserID uint64    // vehicles.owner_user_id
	Plate       string    // vehicles.plate
	Model       string    // vehicles.model
	CreatedAt   time.Time // vehicles.created_at
	UpdatedAt   time.Time // vehicles.updated_at
}
