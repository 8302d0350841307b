package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// CatalogService manages the class catalog.  Updates and deletes take
// the class lock so they cannot interleave with bookings of that class.
type CatalogService struct {
	db       *sql.DB
	classes  *repository.ClassRepo
	bookings *repository.BookingRepo
	ledger   *repository.LedgerRepo
	locks    *KeyLocker
	events   Publisher
	log      logrus.FieldLogger
}

func NewCatalogService(db *sql.DB, classes *repository.ClassRepo, bookings *repository.BookingRepo,
	ledger *repository.LedgerRepo, locks *KeyLocker, events Publisher, log logrus.FieldLogger) *CatalogService {
	if events == nil {
		events = NopPublisher{}
	}
	return &CatalogService{db: db, classes: classes, bookings: bookings, ledger: ledger,
		locks: locks, events: events, log: log}
}

// ClassInput is the payload for creating a class.
type ClassInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	DurationMin int    `json:"duration_min"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
}

// ClassPatch carries the fields to change on update; nil means keep.
type ClassPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	DurationMin *int    `json:"duration_min"`
	Location    *string `json:"location"`
	Capacity    *int    `json:"capacity"`
}

func validateClass(c model.Class) error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case c.Capacity < 1:
		return fmt.Errorf("%w: capacity must be at least 1", ErrInvalidInput)
	case c.DurationMin < 1:
		return fmt.Errorf("%w: duration must be at least 1 minute", ErrInvalidInput)
	}
	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if _, err := time.Parse("15:04", c.StartTime); err != nil || len(c.StartTime) != 5 {
		return fmt.Errorf("%w: time must be HH:MM", ErrInvalidInput)
	}
	return nil
}

// CreateClass validates in and stores a new class.
func (s *CatalogService) CreateClass(ctx context.Context, in ClassInput) (model.Class, error) {
	c := model.Class{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Date:        strings.TrimSpace(in.Date),
		StartTime:   strings.TrimSpace(in.Time),
		DurationMin: in.DurationMin,
		Location:    strings.TrimSpace(in.Location),
		Capacity:    in.Capacity,
	}
	if err := validateClass(c); err != nil {
		return model.Class{}, err
	}
	if err := s.classes.Create(ctx, &c); err != nil {
		return model.Class{}, err
	}
	s.log.WithFields(logrus.Fields{"class_id": c.ID, "title": c.Title}).Info("class created")
	return c, nil
}

// UpdateClass applies p to class id.  Lowering the capacity below the
// number of current bookings fails with ErrConflict.
func (s *CatalogService) UpdateClass(ctx context.Context, id uint64, p ClassPatch) (model.Class, error) {
	unlock := s.locks.Lock(classKey(id))
	defer unlock()

	var c model.Class
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = s.classes.GetForUpdateTx(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: class %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if p.Title != nil {
			c.Title = strings.TrimSpace(*p.Title)
		}
		if p.Description != nil {
			c.Description = strings.TrimSpace(*p.Description)
		}
		if p.Date != nil {
			c.Date = strings.TrimSpace(*p.Date)
		}
		if p.Time != nil {
			c.StartTime = strings.TrimSpace(*p.Time)
		}
		if p.DurationMin != nil {
			c.DurationMin = *p.DurationMin
		}
		if p.Location != nil {
			c.Location = strings.TrimSpace(*p.Location)
		}
		if p.Capacity != nil {
			c.Capacity = *p.Capacity
		}
		if err := validateClass(c); err != nil {
			return err
		}
		booked, err := s.bookings.CountByClassTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Capacity < booked {
			return fmt.Errorf("%w: capacity %d is below %d current bookings", ErrConflict, c.Capacity, booked)
		}
		return s.classes.UpdateTx(ctx, tx, &c)
	})
	if err != nil {
		return model.Class{}, err
	}
	s.log.WithField("class_id", id).Info("class updated")
	return c, nil
}

// DeleteClass cancels every booking of the class with a one-token refund
// each and then removes the class, all in one transaction.  It returns
// the number of refunded bookings.
func (s *CatalogService) DeleteClass(ctx context.Context, id uint64) (int, error) {
	unlock := s.locks.Lock(classKey(id))
	defer unlock()

	var (
		c        model.Class
		refunded int
	)
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = s.classes.GetForUpdateTx(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: class %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		list, err := s.bookings.ListByClassTx(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, b := range list {
			if err := s.bookings.DeleteTx(ctx, tx, b.ID); err != nil {
				return err
			}
			bid := b.ID
			if err := s.ledger.AppendTx(ctx, tx, &model.LedgerEntry{
				UserID: b.UserID, Amount: 1, Kind: model.KindRefund, BookingID: &bid,
			}); err != nil {
				return err
			}
		}
		refunded = len(list)
		return s.classes.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"class_id": id, "refunded": refunded}).Info("class deleted")
	publish(ctx, s.events, s.log, queue.RoutingClassDeleted, queue.ClassDeletedEvent{
		ClassID: id, Title: c.Title, Refunded: refunded, OccurredAt: occurredAt(),
	})
	return refunded, nil
}

// ListClasses returns every class with its availability.
func (s *CatalogService) ListClasses(ctx context.Context) ([]model.ClassSummary, error) {
	return s.classes.List(ctx)
}

// GetClass returns one class with its availability.
func (s *CatalogService) GetClass(ctx context.Context, id uint64) (model.ClassSummary, error) {
	c, err := s.classes.GetSummary(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClassSummary{}, fmt.Errorf("%w: class %d", ErrNotFound, id)
	}
	return c, err
}
