package services

import (
	"context"
	"errors"
	"fmt"

	"terretahub/models"
	"terretahub/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrLedgerUnavailable wraps any failure of the underlying ledger store.
	ErrLedgerUnavailable = errors.New("xp ledger unavailable")

	// ErrDuplicateGrant is returned when a one-time grant code was already issued.
	ErrDuplicateGrant = store.ErrDuplicateGrant

	// ErrProfileNotFound is returned when the target profile does not exist.
	ErrProfileNotFound = errors.New("profile not found")
)

// XpLedger is the append-only journal of XP grants and penalties. It is the
// audit trail and the deduplication index; experience totals live on the
// profile and are never re-derived from it.
type XpLedger struct {
	store store.Ledger
}

func NewXpLedger(s store.Ledger) *XpLedger {
	return &XpLedger{store: s}
}

// HasGrant reports whether grantCode was already issued to the user.
func (l *XpLedger) HasGrant(ctx context.Context, userID primitive.ObjectID, grantCode string) (bool, error) {
	ok, err := l.store.HasGrant(ctx, userID, grantCode)
	if err != nil {
		return false, ledgerError("check grant", err)
	}
	return ok, nil
}

// HasGrantDescription is the exact, case-sensitive description lookup used
// for rows written before grant codes existed.
func (l *XpLedger) HasGrantDescription(ctx context.Context, userID primitive.ObjectID, description string) (bool, error) {
	ok, err := l.store.HasGrantDescription(ctx, userID, description)
	if err != nil {
		return false, ledgerError("check grant description", err)
	}
	return ok, nil
}

// AppendGrant inserts a ledger row. Amounts are not validated; negative
// values are penalties. A non-empty grantCode is unique per user.
func (l *XpLedger) AppendGrant(ctx context.Context, userID primitive.ObjectID, amount int, description, grantCode string) (primitive.ObjectID, error) {
	entry := &models.XPEntry{
		UserID:      userID,
		XPAmount:    amount,
		Description: description,
		GrantCode:   grantCode,
	}
	id, err := l.store.AppendGrant(ctx, entry)
	if err != nil {
		return primitive.NilObjectID, ledgerError("append grant", err)
	}
	return id, nil
}

// History returns the user's rows whose description starts with prefix,
// newest first. limit <= 0 returns everything.
func (l *XpLedger) History(ctx context.Context, userID primitive.ObjectID, prefix string, limit int) ([]models.XPEntry, error) {
	entries, err := l.store.History(ctx, userID, prefix, limit)
	if err != nil {
		return nil, ledgerError("read history", err)
	}
	return entries, nil
}

// ledgerError keeps duplicates distinguishable from outages.
func ledgerError(op string, err error) error {
	if errors.Is(err, store.ErrDuplicateGrant) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, err)
}
