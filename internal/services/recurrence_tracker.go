package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"ledger/internal/core"
)

// RecurrenceTracker maintains the next expected occurrence of each
// recurring transaction. A refresh pass observes the user's recent
// transactions and advances every schedule that a matching payment has
// satisfied; schedules that missed a whole extra period are flagged
// overdue but stay active until the user deactivates them.
type RecurrenceTracker struct {
	recurring      RecurringStore
	transactions   TransactionStore
	toleranceCents int64
}

// NewRecurrenceTracker creates a tracker. toleranceCents is how far an
// observed amount may deviate from the recorded one and still count as
// an occurrence of the recurring payment.
func NewRecurrenceTracker(recurring RecurringStore, transactions TransactionStore, toleranceCents int64) *RecurrenceTracker {
	return &RecurrenceTracker{
		recurring:      recurring,
		transactions:   transactions,
		toleranceCents: toleranceCents,
	}
}

// Refresh walks all active recurring transactions for the user and
// advances their schedules up to now. It returns one update per active
// record, whether or not the schedule moved.
func (t *RecurrenceTracker) Refresh(ctx context.Context, userID int64, now core.Date) ([]core.RecurringUpdate, error) {
	records, err := t.recurring.ActiveRecurring(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load active recurring: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// One snapshot of the observation window for the whole pass.
	from := records[0].NextDate
	for _, r := range records[1:] {
		if r.NextDate.Before(from) {
			from = r.NextDate
		}
	}
	observed, err := t.transactions.TransactionsInRange(ctx, userID, from, now)
	if err != nil {
		return nil, fmt.Errorf("load observation window: %w", err)
	}
	sort.Slice(observed, func(i, j int) bool {
		if !observed[i].Date.Equal(observed[j].Date.Time) {
			return observed[i].Date.Before(observed[j].Date)
		}
		return observed[i].ID < observed[j].ID
	})

	updates := make([]core.RecurringUpdate, 0, len(records))
	for _, rec := range records {
		update, err := t.refreshOne(rec, observed, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to refresh recurring transaction",
				"id", rec.ID, "error", err)
			continue
		}

		if update.Advanced {
			if err := t.recurring.UpdateRecurringSchedule(ctx, rec.ID, update.LastDate, update.NextDate, update.Active); err != nil {
				return updates, fmt.Errorf("persist schedule for %d: %w", rec.ID, err)
			}
			slog.InfoContext(ctx, "Advanced recurring schedule",
				"id", rec.ID,
				"vendor_id", rec.VendorID,
				"last_date", update.LastDate.String(),
				"next_date", update.NextDate.String())
		}
		updates = append(updates, update)
	}

	return updates, nil
}

// refreshOne applies every matching observation to a single record and
// computes its overdue state. Pure; persistence happens in Refresh.
func (t *RecurrenceTracker) refreshOne(rec core.RecurringTransaction, observed []core.Transaction, now core.Date) (core.RecurringUpdate, error) {
	advancer, err := GetDateAdvancer(rec.Frequency)
	if err != nil {
		return core.RecurringUpdate{}, err
	}

	update := core.RecurringUpdate{
		ID:       rec.ID,
		VendorID: rec.VendorID,
		LastDate: rec.LastDate,
		NextDate: rec.NextDate,
		Active:   rec.Active,
	}

	for _, tx := range observed {
		if tx.VendorID != rec.VendorID {
			continue
		}
		if !rec.Amount.WithinTolerance(tx.Amount, t.toleranceCents) {
			continue
		}
		if !tx.Date.OnOrAfter(update.NextDate) {
			continue
		}
		update.LastDate = tx.Date
		update.NextDate = advancer.Advance(tx.Date)
		update.Advanced = true
	}

	// Overdue once a full extra period has passed beyond the expected
	// date with no matching payment.
	graceEnd := advancer.Advance(update.NextDate)
	update.Overdue = now.OnOrAfter(graceEnd)

	return update, nil
}

// Deactivate turns one of the user's recurring transactions off. Only
// an explicit call does this; overdue detection never deactivates on
// its own. A record owned by another user reads as not found.
func (t *RecurrenceTracker) Deactivate(ctx context.Context, userID, id int64) error {
	if err := t.recurring.SetRecurringActive(ctx, userID, id, false); err != nil {
		return fmt.Errorf("deactivate recurring %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Deactivated recurring transaction", "user_id", userID, "id", id)
	return nil
}
