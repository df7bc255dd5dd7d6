// Package storage is the SQLite-backed record store for the ledger.
// Soft-deleted rows (budgets, keyword rules) are filtered explicitly in
// every query; nothing relies on implicit global filters.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- keyword rules ---

// RulesByScope returns the user's live rules plus the global ones for
// one rule kind. The ORDER BY mirrors the in-memory rule ordering, but
// the classifier re-sorts regardless so determinism never depends on
// the storage engine.
func (r *SQLiteRepository) RulesByScope(ctx context.Context, userID int64, kind core.RuleKind) ([]core.KeywordRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, keyword, target_id, priority
		FROM keyword_rules
		WHERE deleted_at IS NULL AND kind = ? AND (user_id = 0 OR user_id = ?)
		ORDER BY priority DESC, length(keyword) DESC, id ASC`,
		string(kind), userID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []core.KeywordRule
	for rows.Next() {
		var rule core.KeywordRule
		var k string
		if err := rows.Scan(&rule.ID, &rule.UserID, &k, &rule.Keyword, &rule.TargetID, &rule.Priority); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Kind = core.RuleKind(k)
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.KeywordRule) (int64, error) {
	if err := rule.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO keyword_rules (user_id, kind, keyword, target_id, priority)
		VALUES (?, ?, ?, ?, ?)`,
		rule.UserID, string(rule.Kind), rule.Keyword, rule.TargetID, rule.Priority)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("rule id: %w", err)
	}

	slog.InfoContext(ctx, "Keyword rule created",
		"id", id, "kind", string(rule.Kind), "keyword", rule.Keyword, "user_id", rule.UserID)
	return id, nil
}

// SoftDeleteRule marks a rule deleted; running batches keep the
// snapshot they already read.
func (r *SQLiteRepository) SoftDeleteRule(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE keyword_rules SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("soft delete rule: %w", err)
	}
	return requireAffected(res, id)
}

// --- vendors ---

func (r *SQLiteRepository) VendorsByScope(ctx context.Context, userID int64) ([]core.Vendor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name FROM vendors
		WHERE user_id = 0 OR user_id = ?
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	var vendors []core.Vendor
	index := make(map[int64]int)
	for rows.Next() {
		var v core.Vendor
		if err := rows.Scan(&v.ID, &v.UserID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		index[v.ID] = len(vendors)
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasRows, err := r.db.QueryContext(ctx, `
		SELECT va.vendor_id, va.alias
		FROM vendor_aliases va
		JOIN vendors v ON v.id = va.vendor_id
		WHERE v.user_id = 0 OR v.user_id = ?
		ORDER BY va.vendor_id ASC, va.alias ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer aliasRows.Close()

	for aliasRows.Next() {
		var vendorID int64
		var alias string
		if err := aliasRows.Scan(&vendorID, &alias); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		if i, ok := index[vendorID]; ok {
			vendors[i].Aliases = append(vendors[i].Aliases, alias)
		}
	}
	return vendors, aliasRows.Err()
}

func (r *SQLiteRepository) CreateVendor(ctx context.Context, v core.Vendor) (int64, error) {
	if strings.TrimSpace(v.Name) == "" {
		return 0, errors.New("empty vendor name")
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO vendors (user_id, name) VALUES (?, ?)`, v.UserID, v.Name)
	if err != nil {
		return 0, fmt.Errorf("insert vendor: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("vendor id: %w", err)
	}

	for _, alias := range v.Aliases {
		if err := r.AddVendorAlias(ctx, id, alias); err != nil {
			return id, err
		}
	}

	slog.InfoContext(ctx, "Vendor created", "id", id, "name", v.Name, "user_id", v.UserID)
	return id, nil
}

func (r *SQLiteRepository) AddVendorAlias(ctx context.Context, vendorID int64, alias string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO vendor_aliases (vendor_id, alias) VALUES (?, ?)`,
		vendorID, alias)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

// --- categories ---

func (r *SQLiteRepository) CategoriesByUser(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, parent_id FROM categories
		WHERE user_id = 0 OR user_id = ?
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var ct string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &ct, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.TransactionType(ct)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CategoryByID(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	var ct string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, parent_id FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.Name, &ct, &c.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("query category: %w", err)
	}
	c.Type = core.TransactionType(ct)
	return c, nil
}

// CreateCategory enforces the two-level tree: a parent must itself be a
// top-level group.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if c.ParentID != 0 {
		parent, err := r.CategoryByID(ctx, c.ParentID)
		if err != nil {
			return 0, err
		}
		if parent.ParentID != 0 {
			return 0, core.ErrCategoryDepth
		}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, type, parent_id)
		VALUES (?, ?, ?, ?)`, c.UserID, c.Name, string(c.Type), c.ParentID)
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return res.LastInsertId()
}

// --- transactions ---

const transactionColumns = `id, account_id, user_id, description, amount_cents, currency, tx_date, tx_type, category_id, vendor_id`

func (r *SQLiteRepository) scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var date, txType string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.UserID, &tx.Description,
			&tx.Amount.Cents, &tx.Currency, &date, &txType, &tx.CategoryID, &tx.VendorID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d date %q: %w", tx.ID, date, err)
		}
		tx.Date = d
		tx.Type = core.TransactionType(txType)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND tx_date >= ? AND tx_date <= ?
		ORDER BY tx_date ASC, id ASC`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	return r.scanTransactions(rows)
}

func (r *SQLiteRepository) TransactionsByIDs(ctx context.Context, userID int64, ids []int64) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND id IN (`+placeholders+`)
		ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions by ids: %w", err)
	}
	defer rows.Close()
	return r.scanTransactions(rows)
}

func (r *SQLiteRepository) UnclassifiedTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND category_id = 0 AND vendor_id = 0
		ORDER BY id ASC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query unclassified transactions: %w", err)
	}
	defer rows.Close()
	return r.scanTransactions(rows)
}

// UsersWithUnclassified lists users holding transactions that still
// need classification. Drives the worker's backlog sweep.
func (r *SQLiteRepository) UsersWithUnclassified(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM transactions
		WHERE category_id = 0 AND vendor_id = 0
		ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query backlog users: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SetTransactionClassification writes the only fields of a transaction
// this service owns.
func (r *SQLiteRepository) SetTransactionClassification(ctx context.Context, txID, vendorID, categoryID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET vendor_id = ?, category_id = ? WHERE id = ?`,
		vendorID, categoryID, txID)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	return requireAffected(res, txID)
}

// CreateTransaction exists for the import boundary and for seeding;
// everything after insertion treats the row as externally owned.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (account_id, user_id, description, amount_cents, currency, tx_date, tx_type, category_id, vendor_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.AccountID, tx.UserID, tx.Description, tx.Amount.Cents, tx.Currency,
		tx.Date.String(), string(tx.Type), tx.CategoryID, tx.VendorID)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// --- budgets ---

func (r *SQLiteRepository) BudgetsForMonth(ctx context.Context, userID int64, month, year int) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, amount_cents, month, year FROM budgets
		WHERE deleted_at IS NULL AND user_id = ? AND month = ? AND year = ?
		ORDER BY category_id ASC`, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount.Cents, &b.Month, &b.Year); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBudget inserts a budget; a live duplicate for the same (user,
// category, month, year) comes back as ErrConflict for the caller to
// resolve.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	var existing int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM budgets
		WHERE deleted_at IS NULL AND user_id = ? AND category_id = ? AND month = ? AND year = ?`,
		b.UserID, b.CategoryID, b.Month, b.Year).Scan(&existing)
	if err == nil {
		return 0, fmt.Errorf("budget for category %d in %d-%02d: %w",
			b.CategoryID, b.Year, b.Month, core.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check existing budget: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category_id, amount_cents, month, year)
		VALUES (?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Amount.Cents, b.Month, b.Year)
	if err != nil {
		// The partial unique index backs the pre-check up under races.
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, fmt.Errorf("budget for category %d in %d-%02d: %w",
				b.CategoryID, b.Year, b.Month, core.ErrConflict)
		}
		return 0, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("budget id: %w", err)
	}

	slog.InfoContext(ctx, "Budget created",
		"id", id, "user_id", b.UserID, "category_id", b.CategoryID,
		"month", b.Month, "year", b.Year, "amount_cents", b.Amount.Cents)
	return id, nil
}

func (r *SQLiteRepository) SoftDeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("soft delete budget: %w", err)
	}
	return requireAffected(res, id)
}

// --- recurring transactions ---

func (r *SQLiteRepository) ActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, vendor_id, amount_cents, frequency, last_date, next_date, active
		FROM recurring_transactions
		WHERE user_id = ? AND active = 1
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query recurring: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransaction
	for rows.Next() {
		var rt core.RecurringTransaction
		var freq, last, next string
		var active int
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.VendorID, &rt.Amount.Cents,
			&freq, &last, &next, &active); err != nil {
			return nil, fmt.Errorf("scan recurring: %w", err)
		}
		rt.Frequency = core.Frequency(freq)
		rt.Active = active == 1
		if rt.LastDate, err = core.ParseDate(last); err != nil {
			return nil, fmt.Errorf("recurring %d last_date %q: %w", rt.ID, last, err)
		}
		if rt.NextDate, err = core.ParseDate(next); err != nil {
			return nil, fmt.Errorf("recurring %d next_date %q: %w", rt.ID, next, err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// UsersWithRecurring lists users that hold at least one active
// recurring schedule. Drives the periodic refresh worker.
func (r *SQLiteRepository) UsersWithRecurring(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM recurring_transactions
		WHERE active = 1
		ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query recurring users: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, rt core.RecurringTransaction) (int64, error) {
	if err := rt.Validate(); err != nil {
		return 0, err
	}
	if err := rt.NextDate.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_transactions (user_id, vendor_id, amount_cents, frequency, last_date, next_date, active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		rt.UserID, rt.VendorID, rt.Amount.Cents, string(rt.Frequency),
		rt.LastDate.String(), rt.NextDate.String())
	if err != nil {
		return 0, fmt.Errorf("insert recurring: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) UpdateRecurringSchedule(ctx context.Context, id int64, lastDate, nextDate core.Date, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_transactions SET last_date = ?, next_date = ?, active = ?
		WHERE id = ?`,
		lastDate.String(), nextDate.String(), boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("update recurring schedule: %w", err)
	}
	return requireAffected(res, id)
}

func (r *SQLiteRepository) SetRecurringActive(ctx context.Context, userID, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_transactions SET active = ? WHERE id = ? AND user_id = ?`,
		boolToInt(active), id, userID)
	if err != nil {
		return fmt.Errorf("set recurring active: %w", err)
	}
	return requireAffected(res, id)
}

// --- helpers ---

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
