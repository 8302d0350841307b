package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/testfixtures"
)

func validInput() ClassInput {
	return ClassInput{
		Title: "Morning Yoga", Description: "Slow flow", Date: "2030-05-02", Time: "07:30",
		DurationMin: 45, Location: "Room 1", Capacity: 8,
	}
}

func TestCreateClassValidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := h.catalog.CreateClass(ctx, validInput())
	if err != nil {
		t.Fatalf("CreateClass: %v", err)
	}
	if c.ID == 0 || c.StartTime != "07:30" || c.Date != "2030-05-02" {
		t.Fatalf("unexpected class %+v", c)
	}

	mutations := map[string]func(*ClassInput){
		"empty title":   func(in *ClassInput) { in.Title = "  " },
		"zero capacity": func(in *ClassInput) { in.Capacity = 0 },
		"zero duration": func(in *ClassInput) { in.DurationMin = 0 },
		"bad date":      func(in *ClassInput) { in.Date = "02/05/2030" },
		"bad time":      func(in *ClassInput) { in.Time = "7:30" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			if _, err := h.catalog.CreateClass(ctx, in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdateClassCapacityBelowBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := testfixtures.Class(t, h.db, "Yoga", 3)
	for i := 0; i < 2; i++ {
		u := testfixtures.User(t, h.db, "m", false)
		testfixtures.Fund(t, h.db, u.ID, 1)
		if _, err := h.bookings.RequestBooking(ctx, u.ID, c.ID); err != nil {
			t.Fatalf("booking: %v", err)
		}
	}

	one := 1
	if _, err := h.catalog.UpdateClass(ctx, c.ID, ClassPatch{Capacity: &one}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	two, title := 2, "Power Yoga"
	got, err := h.catalog.UpdateClass(ctx, c.ID, ClassPatch{Capacity: &two, Title: &title})
	if err != nil {
		t.Fatalf("UpdateClass: %v", err)
	}
	if got.Capacity != 2 || got.Title != "Power Yoga" || got.Location != c.Location {
		t.Fatalf("unexpected update result %+v", got)
	}
	sum, err := h.catalog.GetClass(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClass: %v", err)
	}
	if sum.Status != "full" || sum.SeatsLeft != 0 {
		t.Fatalf("expected full class, got %+v", sum)
	}
	if _, err := h.catalog.UpdateClass(ctx, 9999, ClassPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteClassRefundsBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := testfixtures.Class(t, h.db, "Spin", 5)
	keep := testfixtures.Class(t, h.db, "Keep", 5)
	a := testfixtures.User(t, h.db, "a", false)
	b := testfixtures.User(t, h.db, "b", false)
	testfixtures.Fund(t, h.db, a.ID, 2)
	testfixtures.Fund(t, h.db, b.ID, 1)
	for _, uid := range []uint64{a.ID, b.ID} {
		if _, err := h.bookings.RequestBooking(ctx, uid, c.ID); err != nil {
			t.Fatalf("booking: %v", err)
		}
	}
	if _, err := h.bookings.RequestBooking(ctx, a.ID, keep.ID); err != nil {
		t.Fatalf("booking: %v", err)
	}

	n, err := h.catalog.DeleteClass(ctx, c.ID)
	if err != nil {
		t.Fatalf("DeleteClass: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 refunded bookings, got %d", n)
	}
	if got := testfixtures.Balance(t, h.db, a.ID); got != 1 {
		t.Fatalf("a: want 1 (one refund, one kept booking), got %d", got)
	}
	if got := testfixtures.Balance(t, h.db, b.ID); got != 1 {
		t.Fatalf("b: want 1, got %d", got)
	}
	if _, err := h.catalog.GetClass(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted class to be gone, got %v", err)
	}
	list, err := h.catalog.ListClasses(ctx)
	if err != nil {
		t.Fatalf("ListClasses: %v", err)
	}
	if len(list) != 1 || list[0].ID != keep.ID || list[0].Booked != 1 {
		t.Fatalf("unexpected listing %+v", list)
	}
	if h.events.count(queue.RoutingClassDeleted) != 1 {
		t.Fatalf("expected class.deleted event, got %v", h.events.keys)
	}
	if _, err := h.catalog.DeleteClass(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
