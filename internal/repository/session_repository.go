package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// SessionRepo tracks charging sessions.  A slot carries at most one
// ACTIVE session at a time; the percent-complete figure is derived
// from elapsed time on read and never stored.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// Start opens a session on a slot.  The slot row is locked so two
// concurrent starts cannot both pass the single-active-session check.
func (r *SessionRepo) Start(ctx context.Context, s *model.ChargingSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var slotStatus string
	err = tx.QueryRowContext(ctx, `SELECT status FROM slots WHERE id = ? FOR UPDATE`, s.SlotID).Scan(&slotStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: slot %d", ErrNotFound, s.SlotID)
	}
	if err != nil {
		return err
	}
	if slotStatus == model.SlotInactive {
		return fmt.Errorf("%w: slot %d", ErrNotFound, s.SlotID)
	}

	var active bool
	const activeQ = `SELECT EXISTS (SELECT 1 FROM charging_sessions WHERE slot_id = ? AND status = 'ACTIVE')`
	if err := tx.QueryRowContext(ctx, activeQ, s.SlotID).Scan(&active); err != nil {
		return err
	}
	if active {
		return fmt.Errorf("%w: slot %d already has an active session", ErrConflict, s.SlotID)
	}

	s.Status = model.SessionActive
	const q = `INSERT INTO charging_sessions (slot_id, vehicle_id, status, started_at, planned_minutes, energy_kwh)
               VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, s.SlotID, s.VehicleID, s.Status, s.StartedAt.UTC(), s.PlannedMins, s.EnergyKWh)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)

	// The slot shows as occupied while charging runs.
	if _, err := tx.ExecContext(ctx, `UPDATE slots SET status = 'IN_USE' WHERE id = ?`, s.SlotID); err != nil {
		return err
	}
	const sel = `SELECT created_at, updated_at FROM charging_sessions WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, s.ID).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID fetches a session by id.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.ChargingSession, error) {
	const q = `SELECT id, slot_id, vehicle_id, status, started_at, planned_minutes, energy_kwh, ended_at, created_at, updated_at
               FROM charging_sessions WHERE id = ?`
	var s model.ChargingSession
	var endedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.SlotID, &s.VehicleID, &s.Status, &s.StartedAt, &s.PlannedMins, &s.EnergyKWh, &endedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	s.StartedAt = s.StartedAt.UTC()
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		s.EndedAt = &t
	}
	return &s, nil
}

// ListByVehicle returns a vehicle's sessions, newest first.
func (r *SessionRepo) ListByVehicle(ctx context.Context, vehicleID uint64) ([]model.ChargingSession, error) {
	const q = `SELECT id, slot_id, vehicle_id, status, started_at, planned_minutes, energy_kwh, ended_at, created_at, updated_at
               FROM charging_sessions WHERE vehicle_id = ? ORDER BY started_at DESC`
	rows, err := r.db.QueryContext(ctx, q, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ChargingSession, 0)
	for rows.Next() {
		var s model.ChargingSession
		var endedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.SlotID, &s.VehicleID, &s.Status, &s.StartedAt, &s.PlannedMins, &s.EnergyKWh, &endedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.StartedAt = s.StartedAt.UTC()
		if endedAt.Valid {
			t := endedAt.Time.UTC()
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Complete closes an ACTIVE session and frees its slot.  Completing a
// session twice returns ErrInvalidInput naming the current status.
func (r *SessionRepo) Complete(ctx context.Context, id uint64) (*model.ChargingSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `SELECT id, slot_id, vehicle_id, status, started_at, planned_minutes, energy_kwh
               FROM charging_sessions WHERE id = ? FOR UPDATE`
	var s model.ChargingSession
	err = tx.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.SlotID, &s.VehicleID, &s.Status, &s.StartedAt, &s.PlannedMins, &s.EnergyKWh)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if s.Status != model.SessionActive {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidInput, s.Status)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE charging_sessions SET status = 'COMPLETED', ended_at = NOW() WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE slots SET status = 'AVAILABLE', next_available_at = NULL WHERE id = ? AND status = 'IN_USE'`, s.SlotID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.Status = model.SessionCompleted
	return &s, nil
}
