package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// BookingService is the booking engine.  A booking and the token it
// costs are written in one transaction, after the class and the user are
// locked both in process (KeyLocker) and in the database (row locks on
// MySQL, a single writer connection on SQLite).
type BookingService struct {
	db       *sql.DB
	users    *repository.UserRepo
	classes  *repository.ClassRepo
	bookings *repository.BookingRepo
	ledger   *repository.LedgerRepo
	locks    *KeyLocker
	events   Publisher
	log      logrus.FieldLogger
}

func NewBookingService(db *sql.DB, users *repository.UserRepo, classes *repository.ClassRepo,
	bookings *repository.BookingRepo, ledger *repository.LedgerRepo, locks *KeyLocker,
	events Publisher, log logrus.FieldLogger) *BookingService {
	if events == nil {
		events = NopPublisher{}
	}
	return &BookingService{
		db: db, users: users, classes: classes, bookings: bookings,
		ledger: ledger, locks: locks, events: events, log: log,
	}
}

// RequestBooking books classID for userID and debits one token.
//
// Checks run in this order: class and user exist, no existing booking,
// a free place, a positive balance.  Either the booking and its ledger
// entry are both committed or neither is.
func (s *BookingService) RequestBooking(ctx context.Context, userID, classID uint64) (model.Booking, error) {
	unlock := s.locks.Lock(classKey(classID), userKey(userID))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	class, err := s.classes.GetForUpdateTx(ctx, tx, classID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("%w: class %d", ErrNotFound, classID)
	}
	if err != nil {
		return model.Booking{}, err
	}
	if _, err := s.users.LockTx(ctx, tx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return model.Booking{}, err
	}

	exists, err := s.bookings.ExistsTx(ctx, tx, userID, classID)
	if err != nil {
		return model.Booking{}, err
	}
	if exists {
		return model.Booking{}, ErrAlreadyBooked
	}
	booked, err := s.bookings.CountByClassTx(ctx, tx, classID)
	if err != nil {
		return model.Booking{}, err
	}
	if booked >= class.Capacity {
		return model.Booking{}, ErrClassFull
	}
	bal, err := s.ledger.BalanceTx(ctx, tx, userID)
	if err != nil {
		return model.Booking{}, err
	}
	if bal < 1 {
		return model.Booking{}, ErrInsufficientFunds
	}

	booking := model.Booking{UserID: userID, ClassID: classID}
	if err := s.bookings.CreateTx(ctx, tx, &booking); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Booking{}, ErrAlreadyBooked
		}
		return model.Booking{}, err
	}
	bid := booking.ID
	if err := s.ledger.AppendTx(ctx, tx, &model.LedgerEntry{
		UserID: userID, Amount: -1, Kind: model.KindUse, BookingID: &bid,
	}); err != nil {
		return model.Booking{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	committed = true

	s.log.WithFields(logrus.Fields{"booking_id": booking.ID, "user_id": userID, "class_id": classID}).
		Info("booking confirmed")
	publish(ctx, s.events, s.log, queue.RoutingBookingConfirmed, queue.BookingEvent{
		BookingID: booking.ID, UserID: userID, ClassID: classID,
		ClassTitle: class.Title, ClassDate: class.Date, ClassTime: class.StartTime,
		Balance: bal - 1, OccurredAt: occurredAt(),
	})
	return booking, nil
}

// CancelBooking deletes a booking and refunds its token.  The actor must
// own the booking or be an admin according to the stored user record.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, actorID uint64) error {
	// The booking is read once without locks only to learn which keys to
	// lock; everything is re-read under the locks below.
	b, err := s.bookings.GetByID(ctx, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
	}
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(classKey(b.ClassID), userKey(b.UserID))
	defer unlock()

	var (
		class model.Class
		bal   int64
	)
	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		class, err = s.classes.GetForUpdateTx(ctx, tx, b.ClassID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if _, err := s.users.LockTx(ctx, tx, b.UserID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		cur, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
		}
		if err != nil {
			return err
		}
		if cur.UserID != actorID {
			admin, err := s.users.IsAdminTx(ctx, tx, actorID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if !admin {
				return ErrForbidden
			}
		}
		if err := s.bookings.DeleteTx(ctx, tx, bookingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
			}
			return err
		}
		bid := bookingID
		if err := s.ledger.AppendTx(ctx, tx, &model.LedgerEntry{
			UserID: cur.UserID, Amount: 1, Kind: model.KindRefund, BookingID: &bid,
		}); err != nil {
			return err
		}
		bal, err = s.ledger.BalanceTx(ctx, tx, cur.UserID)
		return err
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"booking_id": bookingID, "user_id": b.UserID, "actor_id": actorID}).
		Info("booking cancelled")
	publish(ctx, s.events, s.log, queue.RoutingBookingCancelled, queue.BookingEvent{
		BookingID: bookingID, UserID: b.UserID, ClassID: b.ClassID,
		ClassTitle: class.Title, ClassDate: class.Date, ClassTime: class.StartTime,
		Balance: bal, ActorID: actorID, OccurredAt: occurredAt(),
	})
	return nil
}

// ListBookingsForUser returns the user's bookings with class details.
func (s *BookingService) ListBookingsForUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// ListAllBookings returns every booking with class and user details.
func (s *BookingService) ListAllBookings(ctx context.Context) ([]model.BookingDetail, error) {
	return s.bookings.ListAll(ctx)
}
