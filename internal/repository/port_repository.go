package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// PortRepo provides CRUD operations on charging ports.
type PortRepo struct {
	db *sql.DB
}

// NewPortRepo returns a PortRepo bound to the given database.
func NewPortRepo(db *sql.DB) *PortRepo { return &PortRepo{db: db} }

// Create inserts a port under an existing live station.  The parent
// lookup and the insert share a transaction so the station cannot be
// soft-deleted in between.
func (r *PortRepo) Create(ctx context.Context, p *model.Port) error {
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

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM stations WHERE id = ? FOR UPDATE`, p.StationID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: station %d", ErrNotFound, p.StationID)
	}
	if err != nil {
		return err
	}
	if status == model.StationInactive {
		return fmt.Errorf("%w: station %d", ErrNotFound, p.StationID)
	}

	if p.Status == "" {
		p.Status = model.PortAvailable
	}
	const q = `INSERT INTO ports (station_id, connector_type, power_kw, speed_class, price_per_kwh, status) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, p.StationID, p.ConnectorType, p.PowerKW, p.SpeedClass, p.PricePerKWh, p.Status)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)

	const sel = `SELECT created_at, updated_at FROM ports WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, p.ID).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID retrieves a live port; soft-deleted ports return ErrNotFound.
func (r *PortRepo) GetByID(ctx context.Context, id uint64) (*model.Port, error) {
	const q = `SELECT id, station_id, connector_type, power_kw, speed_class, price_per_kwh, status, created_at, updated_at
               FROM ports WHERE id = ? AND status <> 'INACTIVE'`
	var p model.Port
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.StationID, &p.ConnectorType, &p.PowerKW, &p.SpeedClass, &p.PricePerKWh, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: port %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByStation returns the live ports of a station ordered by id.
func (r *PortRepo) ListByStation(ctx context.Context, stationID uint64) ([]model.Port, error) {
	const q = `SELECT id, station_id, connector_type, power_kw, speed_class, price_per_kwh, status, created_at, updated_at
               FROM ports WHERE station_id = ? AND status <> 'INACTIVE' ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Port, 0)
	for rows.Next() {
		var p model.Port
		if err := rows.Scan(&p.ID, &p.StationID, &p.ConnectorType, &p.PowerKW, &p.SpeedClass, &p.PricePerKWh, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites the mutable columns of a port.
func (r *PortRepo) Update(ctx context.Context, p *model.Port) error {
	const q = `UPDATE ports SET connector_type = ?, power_kw = ?, speed_class = ?, price_per_kwh = ?, status = ?
               WHERE id = ? AND status <> 'INACTIVE'`
	result, err := r.db.ExecContext(ctx, q, p.ConnectorType, p.PowerKW, p.SpeedClass, p.PricePerKWh, p.Status, p.ID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish "no change" from "no row": re-read the port.
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ports WHERE id = ? AND status <> 'INACTIVE')`, p.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: port %d", ErrNotFound, p.ID)
		}
	}
	return nil
}

// SoftDelete retires a port and its slots in one transaction.
// Repeating the delete is a no-op.
func (r *PortRepo) SoftDelete(ctx context.Context, id uint64) error {
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

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ports WHERE id = ?)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: port %d", ErrNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ports SET status = 'INACTIVE' WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE slots SET status = 'INACTIVE', next_available_at = NULL WHERE port_id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
