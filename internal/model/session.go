package model

import "time"

// Charging session statuses.
const (
	SessionActive    = "ACTIVE"
	SessionCompleted = "COMPLETED"
)

// ChargingSession tracks a live charging run on a slot.  Progress is
// time based: the session declares a planned duration at start and the
// percent complete is derived from the elapsed time on every read,
// never stored.
type ChargingSession struct {
	ID          uint64    // charging_sessions.id
	SlotID      uint64    // charging_sessions.slot_id
	VehicleID   uint64    // charging_sessions.vehicle_id
	Status      string    // charging_sessions.status
	StartedAt   time.Time // charging_sessions.started_at
	PlannedMins uint32    // charging_sessions.planned_minutes
	EnergyKWh   float64   // charging_sessions.energy_kwh (target)
	EndedAt     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Progress returns the percent complete at the given instant, clamped
// to [0,100].  Completed sessions always report 100.
func (s ChargingSession) Progress(now time.Time) float64 {
	if s.Status == SessionCompleted {
		return 100
	}
	if s.PlannedMins == 0 {
		return 0
	}
	elapsed := now.Sub(s.StartedAt)
	if elapsed <= 0 {
		return 0
	}
	pct := elapsed.Minutes() / float64(s.PlannedMins) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
