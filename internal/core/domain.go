package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Debit         PaymentMethod = "debit"
	Credit        PaymentMethod = "credit"
	Pix           PaymentMethod = "pix"
	NotApplicable PaymentMethod = "not-applicable"
)

// Reserved categories carry metrics semantics and are only produced by
// the synthetic constructors in guard.go.
const (
	CategoryBillPayment      = "Bill Payment"
	CategoryGoalContribution = "Goal Contribution"
)

const maxDescriptionLen = 200

type (
	Kind          string
	PaymentMethod string

	Transaction struct {
		ID            int64         `json:"id"`
		Description   string        `json:"description"`
		Amount        Money         `json:"amount"`
		Kind          Kind          `json:"kind"`
		PaymentMethod PaymentMethod `json:"paymentMethod"`
		Category      string        `json:"category"`
		Timestamp     time.Time     `json:"timestamp"`
	}

	// Draft is an unvalidated create/update request as it arrives from a
	// client. Amount is still text so that parsing errors surface as
	// validation errors.
	Draft struct {
		Description   string        `json:"description"`
		Amount        string        `json:"amount"`
		Kind          Kind          `json:"kind"`
		PaymentMethod PaymentMethod `json:"paymentMethod"`
		Category      string        `json:"category"`
		Timestamp     time.Time     `json:"timestamp"`
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyDescription     = errors.New("empty description")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrInvalidKind          = errors.New("invalid transaction kind")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInsufficientBalance  = errors.New("insufficient account balance")
	ErrEmptyCategory        = errors.New("empty category")
	ErrReservedCategory     = errors.New("reserved category")
	ErrEmptyGoalName        = errors.New("empty goal name")
	ErrInvalidGoalType      = errors.New("invalid goal type")
)

func (k Kind) IsValid() bool {
	return k == Income || k == Expense
}

func (p PaymentMethod) IsValid() bool {
	switch p {
	case Debit, Credit, Pix, NotApplicable:
		return true
	}
	return false
}

// IsCredit reports whether the transaction is a credit card expense.
func (t Transaction) IsCredit() bool {
	return t.Kind == Expense && t.PaymentMethod == Credit
}

// BalanceEffect is the signed change the transaction applies to the
// account balance. Credit card expenses do not touch the account.
func (t Transaction) BalanceEffect() Money {
	switch {
	case t.Kind == Income:
		return t.Amount
	case t.Kind == Expense && t.PaymentMethod != Credit:
		return Money{Cents: -t.Amount.Cents}
	}
	return Money{}
}

// Signed returns the amount with income positive and expenses negative.
func (t Transaction) Signed() Money {
	if t.Kind == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}

// MonthKey buckets the transaction as "YYYY-MM".
func (t Transaction) MonthKey() string {
	return MonthKey(t.Timestamp)
}

// MonthKey formats a time as a zero-padded "YYYY-MM" key.
func MonthKey(at time.Time) string {
	return at.Format("2006-01")
}

// SameMonth reports whether a and b fall in the same calendar month,
// evaluated in b's location.
func SameMonth(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}
	if !t.PaymentMethod.IsValid() {
		return ErrInvalidPaymentMethod
	}
	if t.Kind == Income && t.PaymentMethod != NotApplicable {
		return ErrInvalidPaymentMethod
	}
	if t.Kind == Expense && t.PaymentMethod == NotApplicable {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// Build parses and normalizes the draft into a transaction without an ID.
// Income always carries NotApplicable; a Bill Payment draft is forced to a
// debit expense. A zero timestamp is replaced by now.
func (d Draft) Build(now time.Time) (Transaction, error) {
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return Transaction{}, err
	}
	t := Transaction{
		Description:   strings.TrimSpace(d.Description),
		Amount:        amount,
		Kind:          Kind(strings.ToLower(strings.TrimSpace(string(d.Kind)))),
		PaymentMethod: PaymentMethod(strings.ToLower(strings.TrimSpace(string(d.PaymentMethod)))),
		Category:      strings.TrimSpace(d.Category),
		Timestamp:     d.Timestamp,
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = now
	}
	if t.Kind == Income {
		t.PaymentMethod = NotApplicable
	}
	if t.Category == CategoryBillPayment {
		t.Kind = Expense
		t.PaymentMethod = Debit
	}
	if t.Category == "" {
		return Transaction{}, ErrEmptyCategory
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}
