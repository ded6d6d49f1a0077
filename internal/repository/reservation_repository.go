package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReservationRepo serves the read side of reservations: listings for
// drivers and staff and single-reservation detail views.  All writes
// go through ReservationStore under the engine's transaction
// discipline.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationItemDetail is one booked slot/time-range pair with its
// location context resolved for display.
type ReservationItemDetail struct {
	SlotID      uint64 `json:"slot_id"`
	SlotOrder   uint32 `json:"slot_order"`
	PortID      uint64 `json:"port_id"`
	StationID   uint64 `json:"station_id"`
	StationName string `json:"station_name"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
}

// ReservationDetail is the API read-model of a reservation.
type ReservationDetail struct {
	ID        uint64                  `json:"id"`
	VehicleID uint64                  `json:"vehicle_id"`
	Plate     string                  `json:"plate"`
	Status    string                  `json:"status"`
	QRCheck   bool                    `json:"qr_check"`
	QR        string                  `json:"qr,omitempty"`
	CheckedBy *uint64                 `json:"checked_by,omitempty"`
	CheckedAt *string                 `json:"checked_at,omitempty"`
	CreatedAt string                  `json:"created_at"`
	Items     []ReservationItemDetail `json:"items"`
}

const reservationSelect = `SELECT r.id, r.vehicle_id, v.plate, r.status, r.qr_check, r.qr, r.checked_by, r.checked_at, r.created_at
                           FROM reservations r
                           JOIN vehicles v ON v.id = r.vehicle_id`

func scanReservationDetail(scan func(dest ...interface{}) error) (*ReservationDetail, error) {
	var d ReservationDetail
	var checkedBy sql.NullInt64
	var checkedAt sql.NullTime
	var createdAt time.Time
	if err := scan(&d.ID, &d.VehicleID, &d.Plate, &d.Status, &d.QRCheck, &d.QR, &checkedBy, &checkedAt, &createdAt); err != nil {
		return nil, err
	}
	if checkedBy.Valid {
		cb := uint64(checkedBy.Int64)
		d.CheckedBy = &cb
	}
	if checkedAt.Valid {
		iso := checkedAt.Time.UTC().Format(time.RFC3339)
		d.CheckedAt = &iso
	}
	d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	d.Items = []ReservationItemDetail{}
	return &d, nil
}

// attachItems bulk-loads the items for a page of reservations in a
// single query and distributes them by reservation id.
func (r *ReservationRepo) attachItems(ctx context.Context, details []*ReservationDetail) error {
	if len(details) == 0 {
		return nil
	}
	index := make(map[uint64]*ReservationDetail, len(details))
	ids := make([]interface{}, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		index[d.ID] = d
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
	}
	q := `SELECT ri.reservation_id, ri.slot_id, s.order_no, s.port_id, p.station_id, st.name, ri.starts_at, ri.ends_at
          FROM reservation_items ri
          JOIN slots s ON s.id = ri.slot_id
          JOIN ports p ON p.id = s.port_id
          JOIN stations st ON st.id = p.station_id
          WHERE ri.reservation_id IN (` + strings.Join(placeholders, ",") + `)
          ORDER BY ri.reservation_id, ri.starts_at`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var resID uint64
		var it ReservationItemDetail
		var starts, ends time.Time
		if err := rows.Scan(&resID, &it.SlotID, &it.SlotOrder, &it.PortID, &it.StationID, &it.StationName, &starts, &ends); err != nil {
			return err
		}
		it.StartsAt = starts.UTC().Format(time.RFC3339)
		it.EndsAt = ends.UTC().Format(time.RFC3339)
		if d, ok := index[resID]; ok {
			d.Items = append(d.Items, it)
		}
	}
	return rows.Err()
}

// GetByID loads a reservation with its items.  The caller decides
// whether the requester may see it (owner or staff) from VehicleID.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*ReservationDetail, error) {
	q := reservationSelect + ` WHERE r.id = ?`
	d, err := scanReservationDetail(r.db.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*ReservationDetail{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// OwnerID resolves the user owning the vehicle behind a reservation.
func (r *ReservationRepo) OwnerID(ctx context.Context, id uint64) (uint64, error) {
	const q = `SELECT v.owner_user_id
               FROM reservations r
               JOIN vehicles v ON v.id = r.vehicle_id
               WHERE r.id = ?`
	var owner uint64
	err := r.db.QueryRowContext(ctx, q, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
	}
	if err != nil {
		return 0, err
	}
	return owner, nil
}

// ReservationFilter narrows a reservation listing.  Zero values mean
// "no restriction"; OwnerUserID scopes drivers to their own vehicles,
// VehicleID narrows to one vehicle, Status to one lifecycle state.
type ReservationFilter struct {
	OwnerUserID uint64
	VehicleID   uint64
	Status      string
	Limit       int
	Offset      int
}

// sqlTail renders the WHERE/ORDER/LIMIT suffix appended to
// reservationSelect, with the matching argument list.
func (f ReservationFilter) sqlTail() (string, []interface{}) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)
	if f.OwnerUserID != 0 {
		conds = append(conds, `v.owner_user_id = ?`)
		args = append(args, f.OwnerUserID)
	}
	if f.VehicleID != 0 {
		conds = append(conds, `r.vehicle_id = ?`)
		args = append(args, f.VehicleID)
	}
	if f.Status != "" {
		conds = append(conds, `r.status = ?`)
		args = append(args, f.Status)
	}
	q := ""
	if len(conds) > 0 {
		q = ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)
	return q, args
}

// List returns a page of reservations matching the filter, newest
// first.  Both the driver listing (owner-scoped, optionally narrowed
// to one vehicle) and the staff listing (unscoped) go through here.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]*ReservationDetail, error) {
	tail, args := f.sqlTail()
	rows, err := r.db.QueryContext(ctx, reservationSelect+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]*ReservationDetail, 0)
	for rows.Next() {
		d, err := scanReservationDetail(rows.Scan)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, details); err != nil {
		return nil, err
	}
	return details, nil
}
