package model

import (
	"testing"
	"time"
)

func ts(h int) *time.Time {
	t := time.Date(2025, 10, 1, h, 0, 0, 0, time.UTC)
	return &t
}

func status(s string) *string { return &s }

func TestApplyPatchClearsHintOnAvailable(t *testing.T) {
	s := Slot{ID: 1, PortID: 2, Order: 1, Status: SlotBooked, NextAvailableAt: ts(12)}

	// Patch flips status to AVAILABLE without mentioning the hint; the
	// previously stored hint must still be cleared.
	out := s.ApplyPatch(SlotPatch{Status: status(SlotAvailable)})
	if out.Status != SlotAvailable {
		t.Fatalf("status = %q, want AVAILABLE", out.Status)
	}
	if out.NextAvailableAt != nil {
		t.Fatalf("next_available_at not cleared: %v", out.NextAvailableAt)
	}
}

func TestApplyPatchClearsHintOnInactive(t *testing.T) {
	s := Slot{Status: SlotInUse, NextAvailableAt: ts(9)}
	out := s.ApplyPatch(SlotPatch{Status: status(SlotInactive), NextAvailableAt: ts(15)})
	if out.NextAvailableAt != nil {
		t.Fatalf("supplied hint must be discarded for INACTIVE, got %v", out.NextAvailableAt)
	}
}

func TestApplyPatchKeepsHintWhileBooked(t *testing.T) {
	s := Slot{Status: SlotBooked}
	out := s.ApplyPatch(SlotPatch{NextAvailableAt: ts(14)})
	if out.NextAvailableAt == nil || !out.NextAvailableAt.Equal(*ts(14)) {
		t.Fatalf("hint = %v, want %v", out.NextAvailableAt, ts(14))
	}
}

func TestApplyPatchIdempotentAvailable(t *testing.T) {
	s := Slot{Status: SlotAvailable}
	once := s.ApplyPatch(SlotPatch{Status: status(SlotAvailable)})
	twice := once.ApplyPatch(SlotPatch{Status: status(SlotAvailable)})
	if once.NextAvailableAt != nil || twice.NextAvailableAt != nil {
		t.Fatal("setting AVAILABLE twice must leave next_available_at null both times")
	}
	if once != twice {
		t.Fatalf("patch not idempotent: %+v vs %+v", once, twice)
	}
}

func TestApplyPatchOrderOnly(t *testing.T) {
	order := uint32(7)
	s := Slot{Order: 3, Status: SlotBooked, NextAvailableAt: ts(12)}
	out := s.ApplyPatch(SlotPatch{Order: &order})
	if out.Order != 7 {
		t.Fatalf("order = %d, want 7", out.Order)
	}
	if out.NextAvailableAt == nil {
		t.Fatal("status did not change, hint must survive")
	}
}

func TestDisplayStatus(t *testing.T) {
	cases := []struct {
		stored   string
		reserved bool
		want     string
	}{
		{SlotAvailable, false, SlotAvailable},
		{SlotAvailable, true, SlotInUse},
		{SlotBooked, false, SlotAvailable}, // stale flag self-heals on read
		{SlotBooked, true, SlotInUse},
		{SlotInactive, true, SlotInactive},
	}
	for _, c := range cases {
		got := Slot{Status: c.stored}.DisplayStatus(c.reserved)
		if got != c.want {
			t.Errorf("DisplayStatus(%q, %v) = %q, want %q", c.stored, c.reserved, got, c.want)
		}
	}
}

func TestSessionProgress(t *testing.T) {
	start := time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)
	s := ChargingSession{Status: SessionActive, StartedAt: start, PlannedMins: 60}

	if got := s.Progress(start); got != 0 {
		t.Errorf("progress at start = %f, want 0", got)
	}
	if got := s.Progress(start.Add(30 * time.Minute)); got < 49.9 || got > 50.1 {
		t.Errorf("progress at half = %f, want ~50", got)
	}
	if got := s.Progress(start.Add(2 * time.Hour)); got != 100 {
		t.Errorf("progress past end = %f, want 100", got)
	}

	s.Status = SessionCompleted
	if got := s.Progress(start); got != 100 {
		t.Errorf("completed session progress = %f, want 100", got)
	}
}
