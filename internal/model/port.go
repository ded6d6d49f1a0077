package model

import "time"

// Port statuses.
const (
	PortAvailable = "AVAILABLE"
	PortInUse     = "IN_USE"
	PortInactive  = "INACTIVE"
)

// Connector classes recognised by the API.  The list mirrors the
// connector types deployed in the field; anything else is rejected at
// the handler layer.
const (
	ConnectorType2    = "TYPE2"
	ConnectorCCS      = "CCS"
	ConnectorCHAdeMO  = "CHADEMO"
	ConnectorSchuko   = "SCHUKO"
)

// Port represents a physical charging connector group inside a
// station.  Each port belongs to exactly one station and owns zero or
// more slots.
//
// Fields:
//  ID            – primary key identifier.
//  StationID     – parent station.
//  ConnectorType – connector class (TYPE2, CCS, CHADEMO, SCHUKO).
//  PowerKW       – rated power in kilowatts.
//  SpeedClass    – marketing speed tier (SLOW, FAST, RAPID).
//  PricePerKWh   – price in minor currency units per kWh.
//  Status        – lifecycle status (AVAILABLE, IN_USE, INACTIVE).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Port struct {
	ID            uint64    // ports.id
	StationID     uint64    // ports.station_id
	ConnectorType string    // ports.connector_type
	PowerKW       float64   // ports.power_kw
	SpeedClass    string    // ports.speed_class
	PricePerKWh   uint32    // ports.price_per_kwh
	Status        string    // ports.status
	CreatedAt     time.Time // ports.created_at
	UpdatedAt     time.Time // ports.updated_at
}
