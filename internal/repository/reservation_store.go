package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ev-charging-reservation/internal/engine"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// ReservationStore is the MySQL implementation of the engine's storage
// contract.  Each engine transaction maps onto one *sql.Tx; the slot
// row locks taken by LockSlots are what serialise concurrent
// check-then-insert sequences, so the overlap query runs race-free.
type ReservationStore struct {
	db *sql.DB
}

// NewReservationStore returns a ReservationStore bound to the given database.
func NewReservationStore(db *sql.DB) *ReservationStore { return &ReservationStore{db: db} }

// Begin opens a transaction and wraps it for the engine.
func (s *ReservationStore) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &reservationTx{tx: tx}, nil
}

// VehicleOwner resolves the owning user of a vehicle.
func (s *ReservationStore) VehicleOwner(ctx context.Context, vehicleID uint64) (uint64, error) {
	const q = `SELECT owner_user_id FROM vehicles WHERE id = ?`
	var owner uint64
	err := s.db.QueryRowContext(ctx, q, vehicleID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return owner, nil
}

// reservationTx adapts one *sql.Tx to the engine's Tx interface.
type reservationTx struct {
	tx *sql.Tx
}

// LockSlots takes row locks on live slot rows and returns the ids that
// exist.  INACTIVE slots (including those soft-deleted via their
// station or port) are treated as absent for booking purposes.
func (t *reservationTx) LockSlots(ctx context.Context, slotIDs []uint64) ([]uint64, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(slotIDs))
	args := make([]interface{}, 0, len(slotIDs))
	for _, id := range slotIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT id FROM slots WHERE id IN (` + strings.Join(placeholders, ",") + `) AND status <> 'INACTIVE' ORDER BY id FOR UPDATE`
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make([]uint64, 0, len(slotIDs))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found = append(found, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

// HasOverlap reports whether a PENDING or CONFIRMED reservation already
// holds an item on the slot intersecting the half-open range
// [start, end).  Two ranges intersect when each starts before the other
// ends; touching endpoints do not conflict.
func (t *reservationTx) HasOverlap(ctx context.Context, slotID uint64, start, end time.Time) (bool, error) {
	const q = `SELECT EXISTS (
                   SELECT 1
                   FROM reservation_items ri
                   JOIN reservations r ON r.id = ri.reservation_id
                   WHERE ri.slot_id = ?
                     AND r.status IN ('PENDING', 'CONFIRMED')
                     AND ri.starts_at < ?
                     AND ? < ri.ends_at
               )`
	var clash bool
	if err := t.tx.QueryRowContext(ctx, q, slotID, end.UTC(), start.UTC()).Scan(&clash); err != nil {
		return false, err
	}
	return clash, nil
}

// InsertReservation writes the reservation row and bulk-inserts its
// items, populating res.ID and the item ids by insertion order.
func (t *reservationTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (vehicle_id, status, qr_check, qr) VALUES (?, ?, 0, '')`
	result, err := t.tx.ExecContext(ctx, q, res.VehicleID, res.Status)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	if len(res.Items) == 0 {
		return nil
	}
	itemQ := `INSERT INTO reservation_items (reservation_id, slot_id, starts_at, ends_at) VALUES `
	args := make([]interface{}, 0, len(res.Items)*4)
	for i := range res.Items {
		if i > 0 {
			itemQ += ","
		}
		itemQ += "(?, ?, ?, ?)"
		it := &res.Items[i]
		it.ReservationID = res.ID
		args = append(args, res.ID, it.SlotID, it.StartsAt.UTC(), it.EndsAt.UTC())
	}
	itemRes, err := t.tx.ExecContext(ctx, itemQ, args...)
	if err != nil {
		return err
	}
	// MySQL reports the first id of a multi-row insert; ids are
	// consecutive within one statement.
	firstID, err := itemRes.LastInsertId()
	if err != nil {
		return err
	}
	for i := range res.Items {
		res.Items[i].ID = uint64(firstID) + uint64(i)
	}

	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	return t.tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt)
}

// ReservationForUpdate loads a reservation plus items under a row lock
// so lifecycle transitions cannot interleave.
func (t *reservationTx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, vehicle_id, status, qr_check, qr, checked_by, checked_at, created_at, updated_at
               FROM reservations WHERE id = ? FOR UPDATE`
	var res model.Reservation
	var checkedBy sql.NullInt64
	var checkedAt sql.NullTime
	err := t.tx.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.VehicleID, &res.Status, &res.QRCheck, &res.QR,
		&checkedBy, &checkedAt, &res.CreatedAt, &res.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if checkedBy.Valid {
		cb := uint64(checkedBy.Int64)
		res.CheckedBy = &cb
	}
	if checkedAt.Valid {
		ca := checkedAt.Time.UTC()
		res.CheckedAt = &ca
	}

	const itemQ = `SELECT id, reservation_id, slot_id, starts_at, ends_at
                   FROM reservation_items WHERE reservation_id = ? ORDER BY starts_at, id`
	rows, err := t.tx.QueryContext(ctx, itemQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.ReservationItem
		if err := rows.Scan(&it.ID, &it.ReservationID, &it.SlotID, &it.StartsAt, &it.EndsAt); err != nil {
			return nil, err
		}
		it.StartsAt = it.StartsAt.UTC()
		it.EndsAt = it.EndsAt.UTC()
		res.Items = append(res.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &res, nil
}

// SetReservationStatus updates only the status column.
func (t *reservationTx) SetReservationStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, status, id)
	return err
}

// SetReservationQR stores the QR payload generated after the insert.
func (t *reservationTx) SetReservationQR(ctx context.Context, id uint64, qr string) error {
	const q = `UPDATE reservations SET qr = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, qr, id)
	return err
}

// MarkCheckedIn confirms the reservation and latches the scan flag.
func (t *reservationTx) MarkCheckedIn(ctx context.Context, id uint64, staffID uint64, at time.Time) error {
	const q = `UPDATE reservations SET status = 'CONFIRMED', qr_check = 1, checked_by = ?, checked_at = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, staffID, at.UTC(), id)
	return err
}

// SetSlotStatus updates the stored status of the given slots.  A slot
// moving to AVAILABLE or INACTIVE loses its next_available_at in the
// same statement; those statuses never carry the hint.
func (t *reservationTx) SetSlotStatus(ctx context.Context, slotIDs []uint64, status string) error {
	if len(slotIDs) == 0 {
		return nil
	}
	set := `status = ?`
	if status == model.SlotAvailable || status == model.SlotInactive {
		set = `status = ?, next_available_at = NULL`
	}
	placeholders := make([]string, 0, len(slotIDs))
	args := []interface{}{status}
	for _, id := range slotIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `UPDATE slots SET ` + set + ` WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := t.tx.ExecContext(ctx, q, args...)
	return err
}

func (t *reservationTx) Commit() error   { return t.tx.Commit() }
func (t *reservationTx) Rollback() error { return t.tx.Rollback() }
