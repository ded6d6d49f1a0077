package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/queue"
	"github.com/iliyamo/ev-charging-reservation/internal/utils"
)

// memStore is an in-memory Store whose transactions hold a mutex from
// the first lock acquisition until commit or rollback, mirroring the
// row-lock discipline of the SQL implementation.  That makes it a fair
// stand-in for exercising the concurrency guarantees.
type memStore struct {
	mu           sync.Mutex
	slots        map[uint64]string
	hints        map[uint64]*time.Time // slot id -> next_available_at
	vehicles     map[uint64]uint64     // vehicle id -> owner user id
	reservations map[uint64]*model.Reservation
	nextID       uint64
}

func newMemStore() *memStore {
	return &memStore{
		slots:        map[uint64]string{1: model.SlotAvailable, 2: model.SlotAvailable, 3: model.SlotAvailable},
		hints:        map[uint64]*time.Time{},
		vehicles:     map[uint64]uint64{1: 10, 2: 20},
		reservations: map[uint64]*model.Reservation{},
	}
}

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{s: s}, nil
}

// VehicleOwner reads the vehicles map without the store mutex; the map
// is fixed after construction and this method is called both outside
// and inside open transactions.
func (s *memStore) VehicleOwner(ctx context.Context, vehicleID uint64) (uint64, error) {
	owner, ok := s.vehicles[vehicleID]
	if !ok {
		return 0, ErrNotFound
	}
	return owner, nil
}

type memTx struct {
	s      *memStore
	locked bool
	undo   []func()
}

func (t *memTx) lock() {
	if !t.locked {
		t.s.mu.Lock()
		t.locked = true
	}
}

func (t *memTx) LockSlots(ctx context.Context, slotIDs []uint64) ([]uint64, error) {
	t.lock()
	found := make([]uint64, 0, len(slotIDs))
	for _, id := range slotIDs {
		if status, ok := t.s.slots[id]; ok && status != model.SlotInactive {
			found = append(found, id)
		}
	}
	return found, nil
}

func (t *memTx) HasOverlap(ctx context.Context, slotID uint64, start, end time.Time) (bool, error) {
	t.lock()
	for _, res := range t.s.reservations {
		if !res.Active() {
			continue
		}
		for _, it := range res.Items {
			if it.SlotID == slotID && Overlaps(start, end, it.StartsAt, it.EndsAt) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *memTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	t.lock()
	t.s.nextID++
	res.ID = t.s.nextID
	clone := *res
	clone.Items = append([]model.ReservationItem(nil), res.Items...)
	t.s.reservations[res.ID] = &clone
	id := res.ID
	t.undo = append(t.undo, func() { delete(t.s.reservations, id) })
	return nil
}

func (t *memTx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	t.lock()
	res, ok := t.s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *res
	clone.Items = append([]model.ReservationItem(nil), res.Items...)
	return &clone, nil
}

func (t *memTx) SetReservationStatus(ctx context.Context, id uint64, status string) error {
	t.lock()
	res, ok := t.s.reservations[id]
	if !ok {
		return ErrNotFound
	}
	prev := res.Status
	res.Status = status
	t.undo = append(t.undo, func() { res.Status = prev })
	return nil
}

func (t *memTx) SetReservationQR(ctx context.Context, id uint64, qr string) error {
	t.lock()
	res, ok := t.s.reservations[id]
	if !ok {
		return ErrNotFound
	}
	prev := res.QR
	res.QR = qr
	t.undo = append(t.undo, func() { res.QR = prev })
	return nil
}

func (t *memTx) MarkCheckedIn(ctx context.Context, id uint64, staffID uint64, at time.Time) error {
	t.lock()
	res, ok := t.s.reservations[id]
	if !ok {
		return ErrNotFound
	}
	prev := *res
	res.Status = model.ReservationConfirmed
	res.QRCheck = true
	res.CheckedBy = &staffID
	res.CheckedAt = &at
	t.undo = append(t.undo, func() { *res = prev })
	return nil
}

// SetSlotStatus mirrors the SQL store: AVAILABLE and INACTIVE never
// carry a next_available_at, so the hint is dropped in the same step.
func (t *memTx) SetSlotStatus(ctx context.Context, slotIDs []uint64, status string) error {
	t.lock()
	for _, id := range slotIDs {
		id := id
		prev := t.s.slots[id]
		prevHint := t.s.hints[id]
		t.s.slots[id] = status
		if status == model.SlotAvailable || status == model.SlotInactive {
			t.s.hints[id] = nil
		}
		t.undo = append(t.undo, func() {
			t.s.slots[id] = prev
			t.s.hints[id] = prevHint
		})
	}
	return nil
}

func (t *memTx) Commit() error {
	if t.locked {
		t.undo = nil
		t.locked = false
		t.s.mu.Unlock()
	}
	return nil
}

func (t *memTx) Rollback() error {
	if t.locked {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.undo = nil
		t.locked = false
		t.s.mu.Unlock()
	}
	return nil
}

// capturePublisher records confirmed events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []queue.ReservationConfirmedEvent
}

func (p *capturePublisher) PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

const testSecret = "qr-test-secret"

func newTestEngine(s *memStore, pub Publisher) *Engine {
	return New(s, testSecret, pub, zap.NewNop())
}

func item(slot uint64, startH, endH int) ItemInput {
	return ItemInput{SlotID: slot, StartsAt: at(startH), EndsAt: at(endH)}
}

func mustCreate(t *testing.T, e *Engine, in CreateInput) *model.Reservation {
	t.Helper()
	res, err := e.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return res
}

func TestCreateRejectsMalformedInput(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing vehicle", CreateInput{Items: []ItemInput{item(1, 10, 11)}, RequesterID: 10}},
		{"no items", CreateInput{VehicleID: 1, RequesterID: 10}},
		{"bad status", CreateInput{VehicleID: 1, Items: []ItemInput{item(1, 10, 11)}, Status: model.ReservationCancelled, RequesterID: 10}},
		{"missing slot", CreateInput{VehicleID: 1, Items: []ItemInput{item(0, 10, 11)}, RequesterID: 10}},
		{"inverted range", CreateInput{VehicleID: 1, Items: []ItemInput{item(1, 12, 10)}, RequesterID: 10}},
		{"zero-length range", CreateInput{VehicleID: 1, Items: []ItemInput{item(1, 10, 10)}, RequesterID: 10}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := e.Create(ctx, c.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCreateUnknownVehicle(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	_, err := e.Create(context.Background(), CreateInput{VehicleID: 99, Items: []ItemInput{item(1, 10, 11)}, RequesterID: 10})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateOwnership(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	ctx := context.Background()

	// Vehicle 1 belongs to user 10; user 20 may not book it.
	_, err := e.Create(ctx, CreateInput{VehicleID: 1, Items: []ItemInput{item(1, 10, 11)}, RequesterID: 20})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	// Staff may book on behalf of any owner.
	if _, err := e.Create(ctx, CreateInput{VehicleID: 1, Items: []ItemInput{item(1, 10, 11)}, RequesterID: 20, Staff: true}); err != nil {
		t.Fatalf("staff create: %v", err)
	}
}

func TestCreateIntraBatchConflict(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	_, err := e.Create(context.Background(), CreateInput{
		VehicleID:   1,
		RequesterID: 10,
		Items:       []ItemInput{item(1, 10, 12), item(1, 11, 13)},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestCreateUnknownSlot(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	_, err := e.Create(context.Background(), CreateInput{
		VehicleID:   1,
		RequesterID: 10,
		Items:       []ItemInput{item(1, 10, 11), item(777, 10, 11)},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateOverlapAcrossReservations(t *testing.T) {
	s := newMemStore()
	e := newTestEngine(s, nil)
	ctx := context.Background()

	mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 12)}})

	// Any intersection with the committed range loses.
	_, err := e.Create(ctx, CreateInput{VehicleID: 2, RequesterID: 20, Items: []ItemInput{item(1, 11, 13)}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// One conflicting item aborts the whole batch, including items on
	// free slots.
	_, err = e.Create(ctx, CreateInput{VehicleID: 2, RequesterID: 20, Items: []ItemInput{item(2, 10, 11), item(1, 11, 13)}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(s.reservations) != 1 {
		t.Fatalf("aborted batch left %d reservations, want 1", len(s.reservations))
	}

	// Back-to-back ranges share an instant but not an interval.
	if _, err := e.Create(ctx, CreateInput{VehicleID: 2, RequesterID: 20, Items: []ItemInput{item(1, 12, 14)}}); err != nil {
		t.Fatalf("adjacent create: %v", err)
	}
}

func TestCreateMarksSlotsAndIssuesQR(t *testing.T) {
	s := newMemStore()
	e := newTestEngine(s, nil)

	res := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 11), item(2, 10, 11)}})
	if res.Status != model.ReservationPending {
		t.Fatalf("status = %s, want PENDING", res.Status)
	}
	if s.slots[1] != model.SlotBooked || s.slots[2] != model.SlotBooked {
		t.Fatalf("slots = %s/%s, want BOOKED/BOOKED", s.slots[1], s.slots[2])
	}

	id, token, ok := utils.DecodeQRPayload(res.QR)
	if !ok {
		t.Fatal("QR payload failed to decode")
	}
	if id != res.ID {
		t.Fatalf("QR id = %d, want %d", id, res.ID)
	}
	if !utils.VerifyQRToken(testSecret, id, token) {
		t.Fatal("QR token failed verification")
	}
}

func TestCancelReleasesSlotsAndAllowsRebooking(t *testing.T) {
	s := newMemStore()
	e := newTestEngine(s, nil)
	ctx := context.Background()

	res := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 12)}})

	got, err := e.Cancel(ctx, res.ID, 10, false)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != model.ReservationCancelled {
		t.Fatalf("status = %s, want CANCELLED", got.Status)
	}
	if s.slots[1] != model.SlotAvailable {
		t.Fatalf("slot 1 = %s, want AVAILABLE", s.slots[1])
	}

	// Cancelled reservations no longer block the range.
	if _, err := e.Create(ctx, CreateInput{VehicleID: 2, RequesterID: 20, Items: []ItemInput{item(1, 10, 12)}}); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestReleaseClearsAvailabilityHint(t *testing.T) {
	s := newMemStore()
	e := newTestEngine(s, nil)
	ctx := context.Background()

	// A BOOKED slot may legitimately carry a next_available_at hint.
	hint := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.hints[1] = &hint
	s.hints[2] = &hint

	res1 := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 12)}})
	res2 := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(2, 10, 12)}})

	if _, err := e.Cancel(ctx, res1.ID, 10, false); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if s.slots[1] != model.SlotAvailable {
		t.Fatalf("slot 1 = %s, want AVAILABLE", s.slots[1])
	}
	if s.hints[1] != nil {
		t.Fatalf("slot 1 hint = %v, want nil after release to AVAILABLE", s.hints[1])
	}

	if _, err := e.Complete(ctx, res2.ID, 10, false); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if s.hints[2] != nil {
		t.Fatalf("slot 2 hint = %v, want nil after release to AVAILABLE", s.hints[2])
	}
}

func TestCancelGuards(t *testing.T) {
	s := newMemStore()
	e := newTestEngine(s, nil)
	ctx := context.Background()

	res := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 12)}})

	if _, err := e.Cancel(ctx, res.ID, 20, false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign cancel err = %v, want ErrForbidden", err)
	}
	if _, err := e.Cancel(ctx, 999, 10, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing cancel err = %v, want ErrNotFound", err)
	}

	if _, err := e.Cancel(ctx, res.ID, 10, false); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// Terminal states reject further transitions.
	if _, err := e.Cancel(ctx, res.ID, 10, false); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("double cancel err = %v, want ErrInvalidInput", err)
	}
	if _, err := e.Complete(ctx, res.ID, 10, false); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("complete after cancel err = %v, want ErrInvalidInput", err)
	}
}

func TestCompleteReleasesSlots(t *testing.T) {
	s := newMemStore()
	e := newTestEngine(s, nil)

	res := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 12)}})
	got, err := e.Complete(context.Background(), res.ID, 0, true)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Status != model.ReservationCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if s.slots[1] != model.SlotAvailable {
		t.Fatalf("slot 1 = %s, want AVAILABLE", s.slots[1])
	}
}

func TestCheckInLifecycle(t *testing.T) {
	s := newMemStore()
	pub := &capturePublisher{}
	e := newTestEngine(s, pub)
	ctx := context.Background()

	res := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 12)}})
	_, token, _ := utils.DecodeQRPayload(res.QR)

	// First scan confirms the reservation and emits an event.
	out, err := e.CheckIn(ctx, res.ID, token, 30)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if out.Status != model.ReservationConfirmed || !out.QRCheck || out.AlreadyUsed {
		t.Fatalf("first scan = %+v", out)
	}
	if out.CheckedAt == nil {
		t.Fatal("first scan left CheckedAt nil")
	}
	if len(pub.events) != 1 || pub.events[0].ReservationID != res.ID || pub.events[0].CheckedBy != 30 {
		t.Fatalf("events = %+v", pub.events)
	}

	// Second scan is an explicit already-used outcome, not an error,
	// and publishes nothing.
	out, err = e.CheckIn(ctx, res.ID, token, 31)
	if err != nil {
		t.Fatalf("re-scan: %v", err)
	}
	if !out.AlreadyUsed || out.Status != model.ReservationConfirmed {
		t.Fatalf("re-scan = %+v", out)
	}
	if len(pub.events) != 1 {
		t.Fatalf("re-scan published an event, total %d", len(pub.events))
	}
}

func TestCheckInRejectsTamperedToken(t *testing.T) {
	s := newMemStore()
	e := newTestEngine(s, nil)

	res := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 12)}})
	if _, err := e.CheckIn(context.Background(), res.ID, "deadbeef", 30); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if s.reservations[res.ID].QRCheck {
		t.Fatal("tampered scan flipped the latch")
	}
}

func TestCheckInRequiresPending(t *testing.T) {
	s := newMemStore()
	e := newTestEngine(s, nil)
	ctx := context.Background()

	res := mustCreate(t, e, CreateInput{VehicleID: 1, RequesterID: 10, Items: []ItemInput{item(1, 10, 12)}})
	if _, err := e.Cancel(ctx, res.ID, 10, false); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	token := utils.QRToken(testSecret, res.ID)
	if _, err := e.CheckIn(ctx, res.ID, token, 30); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

// TestConcurrentCreatesSingleWinner drives the core guarantee: many
// simultaneous attempts at the same slot and range must yield exactly
// one committed reservation, with every loser seeing a conflict.
func TestConcurrentCreatesSingleWinner(t *testing.T) {
	const attempts = 16

	s := newMemStore()
	e := newTestEngine(s, nil)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := e.Create(context.Background(), CreateInput{
				VehicleID:   1,
				RequesterID: 10,
				Items:       []ItemInput{item(1, 10, 12)},
			})
			errs[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != attempts-1 {
		t.Fatalf("wins = %d, conflicts = %d, want 1 and %d", wins, conflicts, attempts-1)
	}
	if len(s.reservations) != 1 {
		t.Fatalf("store holds %d reservations, want 1", len(s.reservations))
	}
}
