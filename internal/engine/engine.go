// Package engine implements the reservation conflict-resolution core:
// validating a batch of slot/time-range bookings, committing them
// atomically with an overlap check inside one transaction, and driving
// the reservation lifecycle (cancel, complete, QR check-in).  The
// engine is storage-agnostic; the SQL implementation of Store lives in
// the repository package so the overlap discipline can be exercised
// against an in-memory store in tests.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/queue"
	"github.com/iliyamo/ev-charging-reservation/internal/utils"
)

// Store opens transactions against the reservation state and resolves
// vehicle ownership.  Begin must hand back a Tx whose overlap query
// and insert observe each other under concurrency: after LockSlots
// returns, no other transaction may pass its own overlap check for the
// same slots until this Tx commits or rolls back.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	// VehicleOwner returns the owning user of a vehicle, or
	// ErrNotFound when the vehicle does not exist.
	VehicleOwner(ctx context.Context, vehicleID uint64) (uint64, error)
}

// Tx is one atomic unit of reservation work.  Implementations must
// guarantee that every mutation becomes visible all-or-nothing at
// Commit.
type Tx interface {
	// LockSlots acquires write locks on the given slot rows and
	// returns the ids that exist.  Locking the slot rows themselves
	// (not reservation rows, which may not exist yet) is what
	// serialises two concurrent check-then-insert sequences.
	LockSlots(ctx context.Context, slotIDs []uint64) ([]uint64, error)
	// HasOverlap reports whether any PENDING or CONFIRMED reservation
	// holds an item on slotID intersecting [start, end).
	HasOverlap(ctx context.Context, slotID uint64, start, end time.Time) (bool, error)
	// InsertReservation persists the reservation and its items,
	// populating res.ID.
	InsertReservation(ctx context.Context, res *model.Reservation) error
	// ReservationForUpdate loads a reservation with its items and
	// locks it against concurrent lifecycle transitions.  Returns
	// ErrNotFound when absent.
	ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	// SetReservationStatus updates only the status column.
	SetReservationStatus(ctx context.Context, id uint64, status string) error
	// SetReservationQR stores the QR payload for a reservation.  The
	// payload embeds the generated id, so it is written in a second
	// step inside the same transaction as the insert.
	SetReservationQR(ctx context.Context, id uint64, qr string) error
	// MarkCheckedIn flips the reservation to CONFIRMED, latches
	// qr_check and records who scanned it and when.
	MarkCheckedIn(ctx context.Context, id uint64, staffID uint64, at time.Time) error
	// SetSlotStatus updates the stored status of the given slots.
	SetSlotStatus(ctx context.Context, slotIDs []uint64, status string) error
	Commit() error
	Rollback() error
}

// Publisher emits domain events after a successful commit.  A nil
// publisher disables eventing.
type Publisher interface {
	PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
}

// ItemInput is one requested slot/time-range pair.  Times must be UTC.
type ItemInput struct {
	SlotID   uint64
	StartsAt time.Time
	EndsAt   time.Time
}

// CreateInput carries everything needed to create a reservation.  The
// requester fields implement the ownership rule: drivers may only book
// for vehicles they own, staff and admins for any vehicle.
type CreateInput struct {
	VehicleID   uint64
	Items       []ItemInput
	Status      string // optional initial status; defaults to PENDING
	RequesterID uint64
	Staff       bool
}

// CheckInResult is the outcome of a QR scan.  AlreadyUsed is set when
// the latch was already flipped by an earlier scan; that case is an
// explicit outcome rather than an error so clients can tell idempotent
// re-scans from hard failures.
type CheckInResult struct {
	ReservationID uint64
	Status        string
	QRCheck       bool
	CheckedAt     *time.Time
	AlreadyUsed   bool
}

// Engine wires the store, the QR secret and the event publisher.
type Engine struct {
	store  Store
	secret string
	pub    Publisher
	logger *zap.Logger
}

// New constructs an Engine.  logger must be non-nil (use zap.NewNop in
// tests); pub may be nil.
func New(store Store, qrSecret string, pub Publisher, logger *zap.Logger) *Engine {
	if store == nil {
		panic("nil store passed to engine.New")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, secret: qrSecret, pub: pub, logger: logger}
}

// Create validates and atomically commits a reservation.  All items
// commit or none do; a single overlapping range anywhere aborts the
// whole batch with ErrConflict.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	if in.VehicleID == 0 {
		return nil, fmt.Errorf("%w: vehicle id is required", ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidInput)
	}
	status := in.Status
	if status == "" {
		status = model.ReservationPending
	}
	if status != model.ReservationPending && status != model.ReservationConfirmed {
		return nil, fmt.Errorf("%w: initial status must be PENDING or CONFIRMED", ErrInvalidInput)
	}

	// Ownership: the vehicle must exist, and unless the caller is
	// staff/admin it must belong to them.
	owner, err := e.store.VehicleOwner(ctx, in.VehicleID)
	if err != nil {
		return nil, err
	}
	if !in.Staff && owner != in.RequesterID {
		return nil, fmt.Errorf("%w: vehicle belongs to another user", ErrForbidden)
	}

	// Shape checks before any transaction is opened.
	for i, it := range in.Items {
		if it.SlotID == 0 {
			return nil, fmt.Errorf("%w: item %d: slot id is required", ErrInvalidInput, i)
		}
		if !it.StartsAt.Before(it.EndsAt) {
			return nil, fmt.Errorf("%w: item %d: start must be before end", ErrInvalidInput, i)
		}
	}
	if i, j, ok := intraBatchConflict(in.Items); ok {
		return nil, fmt.Errorf("%w: items %d and %d overlap on slot %d", ErrConflict, i, j, in.Items[i].SlotID)
	}

	slotIDs := uniqueSlotIDs(in.Items)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the slot rows first.  This doubles as the batched existence
	// check and serialises concurrent creates touching the same slots.
	found, err := tx.LockSlots(ctx, slotIDs)
	if err != nil {
		return nil, err
	}
	if len(found) != len(slotIDs) {
		missing := missingIDs(slotIDs, found)
		return nil, fmt.Errorf("%w: slot %d does not exist", ErrNotFound, missing)
	}

	// Cross-reservation overlap check, now race-free under the locks.
	for _, it := range in.Items {
		clash, err := tx.HasOverlap(ctx, it.SlotID, it.StartsAt, it.EndsAt)
		if err != nil {
			return nil, err
		}
		if clash {
			return nil, fmt.Errorf("%w: slot %d is already reserved for an overlapping range", ErrConflict, it.SlotID)
		}
	}

	res := &model.Reservation{
		VehicleID: in.VehicleID,
		Status:    status,
		Items:     make([]model.ReservationItem, 0, len(in.Items)),
	}
	for _, it := range in.Items {
		res.Items = append(res.Items, model.ReservationItem{
			SlotID:   it.SlotID,
			StartsAt: it.StartsAt.UTC(),
			EndsAt:   it.EndsAt.UTC(),
		})
	}
	if err := tx.InsertReservation(ctx, res); err != nil {
		return nil, err
	}

	// The QR payload embeds an HMAC over the now-known id, so it is
	// generated and stored inside the same transaction.
	res.QR = utils.QRPayload(res.ID, utils.QRToken(e.secret, res.ID))
	if err := tx.SetReservationQR(ctx, res.ID, res.QR); err != nil {
		return nil, err
	}
	if err := tx.SetSlotStatus(ctx, slotIDs, model.SlotBooked); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	e.logger.Info("reservation created",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("vehicle_id", res.VehicleID),
		zap.Int("items", len(res.Items)))
	return res, nil
}

// Cancel transitions a PENDING or CONFIRMED reservation to CANCELLED
// and releases its slots back to AVAILABLE in the same transaction.
func (e *Engine) Cancel(ctx context.Context, id, requesterID uint64, staff bool) (*model.Reservation, error) {
	return e.finish(ctx, id, requesterID, staff, model.ReservationCancelled)
}

// Complete transitions a non-terminal reservation to COMPLETED with
// the same slot release semantics as Cancel.
func (e *Engine) Complete(ctx context.Context, id, requesterID uint64, staff bool) (*model.Reservation, error) {
	return e.finish(ctx, id, requesterID, staff, model.ReservationCompleted)
}

func (e *Engine) finish(ctx context.Context, id, requesterID uint64, staff bool, target string) (*model.Reservation, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ReservationForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !staff {
		owner, err := e.store.VehicleOwner(ctx, res.VehicleID)
		if err != nil {
			return nil, err
		}
		if owner != requesterID {
			return nil, fmt.Errorf("%w: reservation belongs to another user", ErrForbidden)
		}
	}
	if !res.Active() {
		return nil, fmt.Errorf("%w: reservation is %s", ErrInvalidInput, res.Status)
	}

	if err := tx.SetReservationStatus(ctx, id, target); err != nil {
		return nil, err
	}
	slotIDs := make([]uint64, 0, len(res.Items))
	seen := make(map[uint64]struct{}, len(res.Items))
	for _, it := range res.Items {
		if _, ok := seen[it.SlotID]; ok {
			continue
		}
		seen[it.SlotID] = struct{}{}
		slotIDs = append(slotIDs, it.SlotID)
	}
	if err := tx.SetSlotStatus(ctx, slotIDs, model.SlotAvailable); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	res.Status = target
	e.logger.Info("reservation closed",
		zap.Uint64("reservation_id", id),
		zap.String("status", target))
	return res, nil
}

// CheckIn performs the staff QR scan.  The integrity token is verified
// in constant time before any state is touched; a tampered token never
// reaches the database.
func (e *Engine) CheckIn(ctx context.Context, reservationID uint64, token string, staffID uint64) (*CheckInResult, error) {
	if !utils.VerifyQRToken(e.secret, reservationID, token) {
		return nil, fmt.Errorf("%w: integrity token mismatch", ErrInvalidInput)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ReservationForUpdate(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.QRCheck {
		// Idempotent re-scan: report the existing state, change nothing.
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return &CheckInResult{
			ReservationID: reservationID,
			Status:        res.Status,
			QRCheck:       true,
			CheckedAt:     res.CheckedAt,
			AlreadyUsed:   true,
		}, nil
	}
	if res.Status != model.ReservationPending {
		return nil, fmt.Errorf("%w: reservation is %s, check-in requires PENDING", ErrInvalidInput, res.Status)
	}

	now := time.Now().UTC()
	if err := tx.MarkCheckedIn(ctx, reservationID, staffID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	if e.pub != nil {
		ev := queue.ReservationConfirmedEvent{
			ReservationID: reservationID,
			VehicleID:     res.VehicleID,
			CheckedBy:     staffID,
			ConfirmedAt:   now.Format(time.RFC3339),
			Items:         len(res.Items),
		}
		if err := e.pub.PublishReservationConfirmed(ctx, ev); err != nil {
			e.logger.Warn("failed to publish reservation.confirmed", zap.Error(err))
		}
	}

	e.logger.Info("reservation checked in",
		zap.Uint64("reservation_id", reservationID),
		zap.Uint64("staff_id", staffID))
	return &CheckInResult{
		ReservationID: reservationID,
		Status:        model.ReservationConfirmed,
		QRCheck:       true,
		CheckedAt:     &now,
	}, nil
}

func missingIDs(want, have []uint64) uint64 {
	present := make(map[uint64]struct{}, len(have))
	for _, id := range have {
		present[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := present[id]; !ok {
			return id
		}
	}
	return 0
}
