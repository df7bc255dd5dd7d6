package services

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/core"
	"ledger/internal/rules"
)

// ClassificationService attaches vendors and categories to
// transactions. Each batch reads the rule set exactly once and reuses
// that snapshot for every transaction in the batch, so a concurrent
// rule edit can never split one batch between two rule sets.
type ClassificationService struct {
	rules        RuleStore
	transactions TransactionStore
	clean        rules.CleanFunc
	batchLimit   int
}

// NewClassificationService creates the service. cleanFn may be nil, in
// which case the default merchant-name cleaning heuristic is used for
// newly created vendors.
func NewClassificationService(ruleStore RuleStore, txStore TransactionStore, cleanFn rules.CleanFunc, batchLimit int) *ClassificationService {
	if cleanFn == nil {
		cleanFn = rules.CleanMerchantName
	}
	if batchLimit <= 0 {
		batchLimit = 500
	}
	return &ClassificationService{
		rules:        ruleStore,
		transactions: txStore,
		clean:        cleanFn,
		batchLimit:   batchLimit,
	}
}

// Snapshot builds a classifier from the user's current rules and
// aliases. The returned classifier is immutable and safe to share.
func (s *ClassificationService) Snapshot(ctx context.Context, userID int64) (*rules.Classifier, error) {
	vendorRules, err := s.rules.RulesByScope(ctx, userID, core.VendorRule)
	if err != nil {
		return nil, fmt.Errorf("load vendor rules: %w", err)
	}
	categoryRules, err := s.rules.RulesByScope(ctx, userID, core.CategoryRule)
	if err != nil {
		return nil, fmt.Errorf("load category rules: %w", err)
	}
	vendors, err := s.rules.VendorsByScope(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load vendors: %w", err)
	}

	classifier, err := rules.NewClassifier(vendorRules, categoryRules, vendors)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	return classifier, nil
}

// Classify resolves one description. "No match" comes back as an
// all-unmatched Classification, not as an error.
func (s *ClassificationService) Classify(ctx context.Context, userID int64, description string) (rules.Classification, error) {
	classifier, err := s.Snapshot(ctx, userID)
	if err != nil {
		return rules.Classification{}, err
	}
	return classifier.Classify(description), nil
}

// ClassifyBatch classifies stored transactions and persists the
// assignments. With ids, exactly those transactions are processed;
// with a nil or empty ids slice, the oldest still-unclassified
// transactions are picked up, bounded by the batch limit. It returns
// how many transactions received at least one assignment.
func (s *ClassificationService) ClassifyBatch(ctx context.Context, userID int64, ids []int64) (int, error) {
	classifier, err := s.Snapshot(ctx, userID)
	if err != nil {
		return 0, err
	}

	var txns []core.Transaction
	if len(ids) > 0 {
		txns, err = s.transactions.TransactionsByIDs(ctx, userID, ids)
	} else {
		txns, err = s.transactions.UnclassifiedTransactions(ctx, userID, s.batchLimit)
	}
	if err != nil {
		return 0, fmt.Errorf("load transactions: %w", err)
	}

	classified := 0
	for _, tx := range txns {
		c := classifier.Classify(tx.Description)
		if !c.VendorMatched && !c.CategoryMatched {
			continue
		}

		// Never overwrite an assignment the user already made.
		vendorID := tx.VendorID
		if vendorID == 0 && c.VendorMatched {
			vendorID = c.VendorID
		}
		categoryID := tx.CategoryID
		if categoryID == 0 && c.CategoryMatched {
			categoryID = c.CategoryID
		}
		if vendorID == tx.VendorID && categoryID == tx.CategoryID {
			continue
		}

		if err := s.transactions.SetTransactionClassification(ctx, tx.ID, vendorID, categoryID); err != nil {
			return classified, fmt.Errorf("classify transaction %d: %w", tx.ID, err)
		}
		classified++
	}

	slog.InfoContext(ctx, "Classified transaction batch",
		"user_id", userID,
		"checked", len(txns),
		"classified", classified)

	return classified, nil
}

// EnsureVendor resolves a raw merchant string to a vendor id, creating
// a vendor keyed by the cleaned name when neither an alias nor a rule
// knows the string. The raw form is recorded as an alias of the new
// vendor so the next occurrence resolves exactly.
func (s *ClassificationService) EnsureVendor(ctx context.Context, userID int64, raw string) (int64, bool, error) {
	classifier, err := s.Snapshot(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	if id, ok := classifier.ResolveVendor(raw); ok {
		return id, false, nil
	}

	name := s.clean(raw)
	id, err := s.rules.CreateVendor(ctx, core.Vendor{UserID: userID, Name: name})
	if err != nil {
		return 0, false, fmt.Errorf("create vendor %q: %w", name, err)
	}
	if err := s.rules.AddVendorAlias(ctx, id, raw); err != nil {
		return id, true, fmt.Errorf("record alias for vendor %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Created vendor from unmatched merchant string",
		"user_id", userID,
		"vendor_id", id,
		"name", name)

	return id, true, nil
}
