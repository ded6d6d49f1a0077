package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// VehicleRepo provides access to the vehicles table.  Vehicles exist
// in this service as reservation subjects and as the source of the
// ownership check.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo returns a VehicleRepo bound to the given database.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

// Create inserts a vehicle for its owner.  Plates are unique; a
// duplicate returns ErrConflict.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
	const q = `INSERT INTO vehicles (owner_user_id, plate, model) VALUES (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, v.OwnerUserID, v.Plate, v.Model)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return fmt.Errorf("%w: plate %s already registered", ErrConflict, v.Plate)
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM vehicles WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, v.ID).Scan(&v.CreatedAt, &v.UpdatedAt)
}

// GetByID fetches a vehicle by id.
func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (*model.Vehicle, error) {
	const q = `SELECT id, owner_user_id, plate, model, created_at, updated_at FROM vehicles WHERE id = ?`
	var v model.Vehicle
	err := r.db.QueryRowContext(ctx, q, id).Scan(&v.ID, &v.OwnerUserID, &v.Plate, &v.Model, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: vehicle %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByOwner returns the vehicles registered to a user, newest first.
func (r *VehicleRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Vehicle, error) {
	const q = `SELECT id, owner_user_id, plate, model, created_at, updated_at
               FROM vehicles WHERE owner_user_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Vehicle, 0)
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.OwnerUserID, &v.Plate, &v.Model, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
