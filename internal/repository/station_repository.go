package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// StationRepo provides CRUD operations on stations and owns the
// multi-table transactions of the station lifecycle: nested port
// creation, port synchronisation on update and the cascading soft
// delete.  All timestamp fields are stored in UTC.
type StationRepo struct {
	db *sql.DB
}

// NewStationRepo returns a StationRepo bound to the given database.
func NewStationRepo(db *sql.DB) *StationRepo { return &StationRepo{db: db} }

// CreateWithPorts inserts a station together with its nested ports in
// one transaction.  The whole batch commits or none of it does.  When
// the number of live stations has reached maxStations the create is
// rejected with ErrConflict; the count runs inside the transaction so
// two concurrent creates cannot both squeeze under the cap.
func (r *StationRepo) CreateWithPorts(ctx context.Context, st *model.Station, ports []model.Port, maxStations int) error {
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

	if maxStations > 0 {
		var live int
		const countQ = `SELECT COUNT(*) FROM stations WHERE status <> 'INACTIVE' FOR UPDATE`
		if err := tx.QueryRowContext(ctx, countQ).Scan(&live); err != nil {
			return err
		}
		if live >= maxStations {
			return fmt.Errorf("%w: station capacity of %d reached", ErrConflict, maxStations)
		}
	}

	if st.Status == "" {
		st.Status = model.StationActive
	}
	const insQ = `INSERT INTO stations (name, latitude, longitude, status) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, insQ, st.Name, st.Latitude, st.Longitude, st.Status)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return fmt.Errorf("%w: station name already exists", ErrConflict)
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)

	if len(ports) > 0 {
		query := `INSERT INTO ports (station_id, connector_type, power_kw, speed_class, price_per_kwh, status) VALUES `
		args := make([]interface{}, 0, len(ports)*6)
		for i := range ports {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			p := &ports[i]
			p.StationID = st.ID
			if p.Status == "" {
				p.Status = model.PortAvailable
			}
			args = append(args, st.ID, p.ConnectorType, p.PowerKW, p.SpeedClass, p.PricePerKWh, p.Status)
		}
		portRes, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		firstID, err := portRes.LastInsertId()
		if err != nil {
			return err
		}
		for i := range ports {
			ports[i].ID = uint64(firstID) + uint64(i)
		}
	}

	// Query back the row to populate timestamps and defaults.
	const sel = `SELECT created_at, updated_at FROM stations WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, st.ID).Scan(&st.CreatedAt, &st.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID retrieves a live station.  Soft-deleted stations behave as
// if they never existed and return ErrNotFound.
func (r *StationRepo) GetByID(ctx context.Context, id uint64) (*model.Station, error) {
	const q = `SELECT id, name, latitude, longitude, status, created_at, updated_at
               FROM stations WHERE id = ? AND status <> 'INACTIVE'`
	var st model.Station
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&st.ID, &st.Name, &st.Latitude, &st.Longitude, &st.Status, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: station %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// List returns live stations ordered by id with limit/offset paging.
func (r *StationRepo) List(ctx context.Context, limit, offset int) ([]model.Station, error) {
	const q = `SELECT id, name, latitude, longitude, status, created_at, updated_at
               FROM stations WHERE status <> 'INACTIVE'
               ORDER BY id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Station, 0)
	for rows.Next() {
		var st model.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Latitude, &st.Longitude, &st.Status, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateWithPorts updates a station and synchronises its port list in
// one transaction.  Payload ports with an ID update the existing row;
// ports without an ID are inserted.  When removeMissing is set, live
// ports of the station absent from the payload are soft-deleted along
// with their slots.
func (r *StationRepo) UpdateWithPorts(ctx context.Context, st *model.Station, ports []model.Port, removeMissing bool) error {
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

	// Lock the station row; updating a soft-deleted station is a 404.
	const checkQ = `SELECT status FROM stations WHERE id = ? FOR UPDATE`
	var current string
	err = tx.QueryRowContext(ctx, checkQ, st.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: station %d", ErrNotFound, st.ID)
	}
	if err != nil {
		return err
	}
	if current == model.StationInactive {
		return fmt.Errorf("%w: station %d", ErrNotFound, st.ID)
	}

	const upQ = `UPDATE stations SET name = ?, latitude = ?, longitude = ?, status = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upQ, st.Name, st.Latitude, st.Longitude, st.Status, st.ID); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return fmt.Errorf("%w: station name already exists", ErrConflict)
		}
		return err
	}

	kept := make([]uint64, 0, len(ports))
	for i := range ports {
		p := &ports[i]
		p.StationID = st.ID
		if p.ID != 0 {
			const q = `UPDATE ports SET connector_type = ?, power_kw = ?, speed_class = ?, price_per_kwh = ?, status = ?
                       WHERE id = ? AND station_id = ?`
			result, err := tx.ExecContext(ctx, q, p.ConnectorType, p.PowerKW, p.SpeedClass, p.PricePerKWh, p.Status, p.ID, st.ID)
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				// The id either does not exist or belongs to another
				// station; both reject the whole update.
				var exists bool
				if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ports WHERE id = ?)`, p.ID).Scan(&exists); err != nil {
					return err
				}
				if exists {
					return fmt.Errorf("%w: port %d belongs to another station", ErrInvalidInput, p.ID)
				}
			}
			kept = append(kept, p.ID)
			continue
		}
		if p.Status == "" {
			p.Status = model.PortAvailable
		}
		const insQ = `INSERT INTO ports (station_id, connector_type, power_kw, speed_class, price_per_kwh, status) VALUES (?, ?, ?, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, insQ, st.ID, p.ConnectorType, p.PowerKW, p.SpeedClass, p.PricePerKWh, p.Status)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = uint64(id)
		kept = append(kept, p.ID)
	}

	if removeMissing {
		q := `UPDATE ports SET status = 'INACTIVE' WHERE station_id = ? AND status <> 'INACTIVE'`
		args := []interface{}{st.ID}
		if len(kept) > 0 {
			placeholders := make([]string, 0, len(kept))
			for _, id := range kept {
				placeholders = append(placeholders, "?")
				args = append(args, id)
			}
			q += ` AND id NOT IN (` + strings.Join(placeholders, ",") + `)`
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
		// Slots of retired ports go dark too, and the availability
		// hint cannot survive an INACTIVE status.
		slotQ := `UPDATE slots SET status = 'INACTIVE', next_available_at = NULL
                  WHERE port_id IN (SELECT id FROM ports WHERE station_id = ? AND status = 'INACTIVE')`
		if _, err := tx.ExecContext(ctx, slotQ, st.ID); err != nil {
			return err
		}
	}

	const sel = `SELECT created_at, updated_at FROM stations WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, st.ID).Scan(&st.CreatedAt, &st.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SoftDelete retires a station and cascades to every port and slot
// underneath it in one transaction.  Deleting an already soft-deleted
// station is a no-op, not an error, so retries land safely.  The
// station row must exist; otherwise ErrNotFound.
func (r *StationRepo) SoftDelete(ctx context.Context, id uint64) error {
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

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM stations WHERE id = ? FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: station %d", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if current != model.StationInactive {
		if _, err := tx.ExecContext(ctx, `UPDATE stations SET status = 'INACTIVE' WHERE id = ?`, id); err != nil {
			return err
		}
	}
	// Cascade is re-applied even on repeat deletes so a port added in
	// between cannot stay live under a dead station.
	if _, err := tx.ExecContext(ctx, `UPDATE ports SET status = 'INACTIVE' WHERE station_id = ?`, id); err != nil {
		return err
	}
	const slotQ = `UPDATE slots SET status = 'INACTIVE', next_available_at = NULL
                   WHERE port_id IN (SELECT id FROM ports WHERE station_id = ?)`
	if _, err := tx.ExecContext(ctx, slotQ, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// HardDelete removes the station row permanently.  It refuses with
// ErrConflict while any port row still references the station,
// soft-deleted ports included; those must be hard-deleted first.
func (r *StationRepo) HardDelete(ctx context.Context, id uint64) error {
	var ports int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ports WHERE station_id = ?`, id).Scan(&ports); err != nil {
		return err
	}
	if ports > 0 {
		return fmt.Errorf("%w: station %d still has %d ports", ErrConflict, id, ports)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM stations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: station %d", ErrNotFound, id)
	}
	return nil
}
