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

// LedgerService owns the token ledger.  Balances are never stored; they
// are the sum of a user's entries, read under the user's lock whenever a
// debit depends on them.
type LedgerService struct {
	db     *sql.DB
	users  *repository.UserRepo
	ledger *repository.LedgerRepo
	locks  *KeyLocker
	events Publisher
	log    logrus.FieldLogger
}

func NewLedgerService(db *sql.DB, users *repository.UserRepo, ledger *repository.LedgerRepo,
	locks *KeyLocker, events Publisher, log logrus.FieldLogger) *LedgerService {
	if events == nil {
		events = NopPublisher{}
	}
	return &LedgerService{db: db, users: users, ledger: ledger, locks: locks, events: events, log: log}
}

// Statement is a user's balance with their entries, newest first.
type Statement struct {
	Balance int64               `json:"balance"`
	Entries []model.LedgerEntry `json:"entries"`
}

// Append adds an entry for userID.  The sign of amount must match kind.
// Debits are checked against the balance while the user lock is held.
func (s *LedgerService) Append(ctx context.Context, userID uint64, amount int64, kind model.EntryKind) (model.LedgerEntry, error) {
	entry, _, err := s.append(ctx, userID, amount, kind)
	return entry, err
}

// append is Append that also reports the balance after the entry.
func (s *LedgerService) append(ctx context.Context, userID uint64, amount int64, kind model.EntryKind) (model.LedgerEntry, int64, error) {
	if !kind.Valid() {
		return model.LedgerEntry{}, 0, fmt.Errorf("%w: unknown entry kind %q", ErrInvalidInput, kind)
	}
	if !kind.SignMatches(amount) {
		return model.LedgerEntry{}, 0, fmt.Errorf("%w: amount %d does not fit kind %s", ErrInvalidInput, amount, kind)
	}
	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	entry := model.LedgerEntry{UserID: userID, Amount: amount, Kind: kind}
	var after int64
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.users.LockTx(ctx, tx, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: user %d", ErrNotFound, userID)
			}
			return err
		}
		bal, err := s.ledger.BalanceTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if amount < 0 && bal+amount < 0 {
			return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, bal, -amount)
		}
		after = bal + amount
		return s.ledger.AppendTx(ctx, tx, &entry)
	})
	if err != nil {
		return model.LedgerEntry{}, 0, err
	}
	return entry, after, nil
}

// Use debits amount tokens directly and returns the new balance.
func (s *LedgerService) Use(ctx context.Context, userID uint64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	_, bal, err := s.append(ctx, userID, -amount, model.KindUse)
	if err != nil {
		return 0, err
	}
	publish(ctx, s.events, s.log, queue.RoutingTokensUsed, queue.TokensEvent{
		UserID: userID, Amount: -amount, Balance: bal, OccurredAt: occurredAt(),
	})
	return bal, nil
}

// BalanceOf returns the user's balance, 0 when they have no entries.
func (s *LedgerService) BalanceOf(ctx context.Context, userID uint64) (int64, error) {
	return s.ledger.Balance(ctx, userID)
}

// History returns the user's statement.
func (s *LedgerService) History(ctx context.Context, userID uint64) (Statement, error) {
	entries, err := s.ledger.History(ctx, userID)
	if err != nil {
		return Statement{}, err
	}
	var bal int64
	for _, e := range entries {
		bal += e.Amount
	}
	return Statement{Balance: bal, Entries: entries}, nil
}

// AllBalances returns the balance of every user.
func (s *LedgerService) AllBalances(ctx context.Context) ([]model.UserBalance, error) {
	return s.ledger.AllBalances(ctx)
}
