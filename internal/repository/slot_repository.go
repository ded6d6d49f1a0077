package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// SlotRepo provides CRUD operations on charging slots.  The stored
// status column is written by the booking flow; read paths derive the
// presentation status from live reservation state instead of trusting
// it.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// SlotDetail is the read-model of a slot.  Status carries the derived
// presentation status; StoredStatus exposes the raw column for staff
// tooling.
type SlotDetail struct {
	ID              uint64  `json:"id"`
	PortID          uint64  `json:"port_id"`
	Order           uint32  `json:"order"`
	Status          string  `json:"status"`
	StoredStatus    string  `json:"stored_status"`
	NextAvailableAt *string `json:"next_available_at"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// Create inserts a slot under a live port.  When s.Order is zero the
// next free position (max + 1) is assigned; the read and the insert
// share a transaction with the port row locked so two concurrent
// auto-ordered creates cannot collide.  An explicit duplicate order
// returns ErrConflict via the (port_id, order_no) unique key.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
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

	var portStatus string
	err = tx.QueryRowContext(ctx, `SELECT status FROM ports WHERE id = ? FOR UPDATE`, s.PortID).Scan(&portStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: port %d", ErrNotFound, s.PortID)
	}
	if err != nil {
		return err
	}
	if portStatus == model.PortInactive {
		return fmt.Errorf("%w: port %d", ErrNotFound, s.PortID)
	}

	if s.Order == 0 {
		var max uint32
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_no), 0) FROM slots WHERE port_id = ?`, s.PortID).Scan(&max); err != nil {
			return err
		}
		s.Order = max + 1
	}
	if s.Status == "" {
		s.Status = model.SlotAvailable
	}
	// The hint column is only meaningful for BOOKED and IN_USE rows.
	if s.Status == model.SlotAvailable || s.Status == model.SlotInactive {
		s.NextAvailableAt = nil
	}

	const q = `INSERT INTO slots (port_id, order_no, status, next_available_at) VALUES (?, ?, ?, ?)`
	var hint interface{}
	if s.NextAvailableAt != nil {
		hint = s.NextAvailableAt.UTC()
	}
	result, err := tx.ExecContext(ctx, q, s.PortID, s.Order, s.Status, hint)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return fmt.Errorf("%w: order %d is already taken on port %d", ErrConflict, s.Order, s.PortID)
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)

	const sel = `SELECT created_at, updated_at FROM slots WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, s.ID).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID retrieves a slot regardless of stored status; callers that
// only want live slots filter on Status themselves.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*model.Slot, error) {
	const q = `SELECT id, port_id, order_no, status, next_available_at, created_at, updated_at
               FROM slots WHERE id = ?`
	var s model.Slot
	var hint sql.NullTime
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.PortID, &s.Order, &s.Status, &hint, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if hint.Valid {
		t := hint.Time.UTC()
		s.NextAvailableAt = &t
	}
	return &s, nil
}

// ListByPort returns the slots of a port ordered by position, with the
// presentation status derived from whether a PENDING or CONFIRMED
// reservation currently covers the instant `now`.  The stored column
// is reported separately and never rewritten by this read.
func (r *SlotRepo) ListByPort(ctx context.Context, portID uint64, now time.Time) ([]SlotDetail, error) {
	const q = `SELECT s.id, s.port_id, s.order_no, s.status, s.next_available_at, s.created_at, s.updated_at,
                      EXISTS (
                          SELECT 1 FROM reservation_items ri
                          JOIN reservations r ON r.id = ri.reservation_id
                          WHERE ri.slot_id = s.id
                            AND r.status IN ('PENDING', 'CONFIRMED')
                            AND ri.starts_at <= ? AND ? < ri.ends_at
                      )
               FROM slots s
               WHERE s.port_id = ? AND s.status <> 'INACTIVE'
               ORDER BY s.order_no`
	nowUTC := now.UTC()
	rows, err := r.db.QueryContext(ctx, q, nowUTC, nowUTC, portID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]SlotDetail, 0)
	for rows.Next() {
		var s model.Slot
		var hint sql.NullTime
		var reserved bool
		if err := rows.Scan(&s.ID, &s.PortID, &s.Order, &s.Status, &hint, &s.CreatedAt, &s.UpdatedAt, &reserved); err != nil {
			return nil, err
		}
		d := SlotDetail{
			ID:           s.ID,
			PortID:       s.PortID,
			Order:        s.Order,
			Status:       s.DisplayStatus(reserved),
			StoredStatus: s.Status,
			CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    s.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if hint.Valid {
			iso := hint.Time.UTC().Format(time.RFC3339)
			d.NextAvailableAt = &iso
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivelyReserved reports whether a PENDING or CONFIRMED reservation
// covers the slot at the given instant.
func (r *SlotRepo) ActivelyReserved(ctx context.Context, slotID uint64, now time.Time) (bool, error) {
	const q = `SELECT EXISTS (
                   SELECT 1 FROM reservation_items ri
                   JOIN reservations r ON r.id = ri.reservation_id
                   WHERE ri.slot_id = ?
                     AND r.status IN ('PENDING', 'CONFIRMED')
                     AND ri.starts_at <= ? AND ? < ri.ends_at
               )`
	nowUTC := now.UTC()
	var reserved bool
	if err := r.db.QueryRowContext(ctx, q, slotID, nowUTC, nowUTC).Scan(&reserved); err != nil {
		return false, err
	}
	return reserved, nil
}

// Update persists a fully merged slot.  Callers run the patch merge
// (model.Slot.ApplyPatch) first so the status/hint invariant is
// already normalised by the time the row is written.
func (r *SlotRepo) Update(ctx context.Context, s *model.Slot) error {
	var hint interface{}
	if s.NextAvailableAt != nil {
		hint = s.NextAvailableAt.UTC()
	}
	const q = `UPDATE slots SET order_no = ?, status = ?, next_available_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, s.Order, s.Status, hint, s.ID)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return fmt.Errorf("%w: order %d is already taken on port %d", ErrConflict, s.Order, s.PortID)
	}
	return err
}

// Delete removes a slot row permanently.  A slot referenced by any
// reservation item, historical or live, is kept for audit and the
// delete is rejected with ErrConflict.
func (r *SlotRepo) Delete(ctx context.Context, id uint64) error {
	var referenced bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reservation_items WHERE slot_id = ?)`, id).Scan(&referenced); err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: slot %d is referenced by reservations", ErrConflict, id)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}
	return nil
}
