package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income      TransactionType = "income"
	Expense     TransactionType = "expense"
	TransferIn  TransactionType = "transfer_in"
	TransferOut TransactionType = "transfer_out"
	Adjustment  TransactionType = "adjustment"
)

const (
	Weekly   Frequency = "weekly"
	BiWeekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Annually Frequency = "annually"
)

const (
	VendorRule   RuleKind = "vendor"
	CategoryRule RuleKind = "category"
)

// GlobalScope is the UserID value of a rule that applies to every user.
const GlobalScope int64 = 0

type (
	TransactionType string

	Frequency string

	RuleKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is owned by the import pipeline; classification only
	// ever touches VendorID and CategoryID.
	Transaction struct {
		ID          int64
		AccountID   int64
		UserID      int64
		Description string
		Amount      Money
		Currency    string
		Date        Date
		Type        TransactionType
		CategoryID  int64 // 0 = unclassified
		VendorID    int64 // 0 = unclassified
	}

	// KeywordRule maps a description substring to a vendor or category.
	// UserID == GlobalScope makes the rule visible to all users.
	KeywordRule struct {
		ID       int64
		UserID   int64
		Kind     RuleKind
		Keyword  string
		TargetID int64
		Priority int
	}

	// Vendor is the canonical identity a transaction description
	// resolves to. Aliases are exact (case-insensitive) raw strings
	// previously seen for this vendor.
	Vendor struct {
		ID      int64
		UserID  int64
		Name    string
		Aliases []string
	}

	// Category sits in a two-level tree: a top-level group has
	// ParentID == 0, a child points at a top-level group.
	Category struct {
		ID       int64
		UserID   int64
		Name     string
		Type     TransactionType
		ParentID int64
	}

	Budget struct {
		ID         int64
		UserID     int64
		CategoryID int64
		Amount     Money
		Month      int // 1-12
		Year       int
	}

	RecurringTransaction struct {
		ID        int64
		UserID    int64
		VendorID  int64
		Amount    Money
		Frequency Frequency
		LastDate  Date
		NextDate  Date
		Active    bool
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrInvalidRule      = errors.New("invalid rule")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrCurrencyMismatch = errors.New("mixed currencies in one aggregation")
	ErrCategoryDepth    = errors.New("category tree exceeds two levels")
)

// NewDate creates a Date at midnight UTC. Dates in this package never
// carry a time of day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// Before reports whether d falls on an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// OnOrAfter reports whether d falls on the same day as other or later.
func (d Date) OnOrAfter(other Date) bool {
	return !d.Time.Before(other.Time)
}

// InRange reports whether d falls within [from, to] inclusive.
func (d Date) InRange(from, to Date) bool {
	return !d.Time.Before(from.Time) && !d.Time.After(to.Time)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense, TransferIn, TransferOut, Adjustment:
		return nil
	}
	return errors.New("invalid transaction type")
}

func (f Frequency) Validate() error {
	switch f {
	case Weekly, BiWeekly, Monthly, Annually:
		return nil
	}
	return ErrInvalidFrequency
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return errors.New("empty description")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return t.Type.Validate()
}

// Validate checks the rule invariants: non-empty keyword, non-negative
// priority, a concrete target and a known kind.
func (r KeywordRule) Validate() error {
	if len(strings.TrimSpace(r.Keyword)) == 0 {
		return ErrInvalidRule
	}
	if r.Priority < 0 {
		return ErrInvalidRule
	}
	if r.TargetID <= 0 {
		return ErrInvalidRule
	}
	switch r.Kind {
	case VendorRule, CategoryRule:
		return nil
	}
	return ErrInvalidRule
}

// Global reports whether the rule applies to every user.
func (r KeywordRule) Global() bool {
	return r.UserID == GlobalScope
}

func (b Budget) Validate() error {
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.Month < 1 || b.Month > 12 {
		return errors.New("month out of range")
	}
	if b.CategoryID <= 0 {
		return errors.New("missing category")
	}
	return nil
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return errors.New("empty category name")
	}
	switch c.Type {
	case Income, Expense, TransferIn, TransferOut:
		return nil
	}
	return errors.New("invalid category type")
}

func (rt RecurringTransaction) Validate() error {
	if err := rt.Amount.Validate(); err != nil {
		return err
	}
	if err := rt.Frequency.Validate(); err != nil {
		return err
	}
	if rt.VendorID <= 0 {
		return errors.New("missing vendor")
	}
	return rt.LastDate.Validate()
}
