package model

import "time"

// Station statuses.  A station is soft-deleted by flipping it to
// StationInactive, which cascades to its ports and slots.
const (
	StationActive      = "ACTIVE"
	StationInactive    = "INACTIVE"
	StationMaintenance = "MAINTENANCE"
)

// Station represents a physical charging site.  A station contains
// zero or more ports.  This struct corresponds to a row in the
// `stations` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – human readable site name.
//  Latitude  – geographic latitude of the site.
//  Longitude – geographic longitude of the site.
//  Status    – lifecycle status (ACTIVE, INACTIVE, MAINTENANCE).
//  CreatedAt – timestamp when the station was created.
//  UpdatedAt – timestamp of last update.
type Station struct {
	ID        uint64    // stations.id
	Name      string    // stations.name
	Latitude  float64   // stations.latitude
	Longitude float64   // stations.longitude
	Status    string    // stations.status
	CreatedAt time.Time // stations.created_at
	UpdatedAt time.Time // stations.updated_at
}
