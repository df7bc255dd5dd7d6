// Package worker consumes import notifications and runs keyword
// classification over the referenced transactions.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/services"
)

// BacklogLister reports which users have unclassified transactions.
type BacklogLister interface {
	UsersWithUnclassified(ctx context.Context) ([]int64, error)
}

// ClassifyWorker applies keyword rules to freshly imported transactions.
type ClassifyWorker struct {
	classifier *services.ClassificationService
	backlog    BacklogLister
}

func NewClassifyWorker(classifier *services.ClassificationService, backlog BacklogLister) *ClassifyWorker {
	return &ClassifyWorker{classifier: classifier, backlog: backlog}
}

// HandleImportMessage processes one import notification. The message
// carries transaction IDs; with none present the worker sweeps whatever
// unclassified rows the user has, so a lost ID list degrades to a
// slightly larger batch instead of lost work.
func (w *ClassifyWorker) HandleImportMessage(ctx context.Context, msg *amqp.TransactionsImportedMessage) error {
	slog.InfoContext(ctx, "Processing import message",
		"user_id", msg.UserID,
		"transaction_count", len(msg.TransactionIDs))

	classified, err := w.classifier.ClassifyBatch(ctx, msg.UserID, msg.TransactionIDs)
	if err != nil {
		return fmt.Errorf("classify batch for user %d: %w", msg.UserID, err)
	}

	slog.InfoContext(ctx, "Import message processed",
		"user_id", msg.UserID,
		"classified", classified)
	return nil
}

// SweepBacklog classifies unclassified rows for every user that has
// any. Covers transactions whose import notification was lost.
func (w *ClassifyWorker) SweepBacklog(ctx context.Context) error {
	users, err := w.backlog.UsersWithUnclassified(ctx)
	if err != nil {
		return fmt.Errorf("list backlog users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	total := 0
	for _, uid := range users {
		classified, err := w.classifier.ClassifyBatch(ctx, uid, nil)
		if err != nil {
			return fmt.Errorf("sweep user %d: %w", uid, err)
		}
		total += classified
	}

	slog.InfoContext(ctx, "Backlog sweep finished",
		"users", len(users),
		"classified", total)
	return nil
}
