package core

import (
	"fmt"
	"time"
)

// Balance returns total income minus non-credit expenses.
func Balance(txs []Transaction) Money {
	var b Money
	for _, t := range txs {
		b = b.Add(t.BalanceEffect())
	}
	return b
}

// CheckBalance simulates replacing prior with next (prior is nil for a
// create) and rejects the change if the account balance would go negative.
func CheckBalance(txs []Transaction, prior *Transaction, next Transaction) error {
	simulated := Balance(txs)
	if prior != nil {
		simulated = simulated.Sub(prior.BalanceEffect())
	}
	simulated = simulated.Add(next.BalanceEffect())
	if simulated.IsNegative() {
		return fmt.Errorf("%w: balance would be %s", ErrInsufficientBalance, simulated)
	}
	return nil
}

// CheckFunds rejects a withdrawal larger than the current balance.
func CheckFunds(txs []Transaction, amount Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	if balance := Balance(txs); amount.Cents > balance.Cents {
		return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientBalance, amount, balance)
	}
	return nil
}

// NewBillPayment builds the debit expense that settles credit card debt.
func NewBillPayment(amount Money, at time.Time) Transaction {
	return Transaction{
		Description:   "Credit card bill payment",
		Amount:        amount,
		Kind:          Expense,
		PaymentMethod: Debit,
		Category:      CategoryBillPayment,
		Timestamp:     at,
	}
}

// NewGoalContribution builds the debit expense that moves money into a goal.
func NewGoalContribution(goalName string, amount Money, at time.Time) Transaction {
	return Transaction{
		Description:   "Contribution: " + goalName,
		Amount:        amount,
		Kind:          Expense,
		PaymentMethod: Debit,
		Category:      CategoryGoalContribution,
		Timestamp:     at,
	}
}

// IsReservedCategory reports whether name is produced only by synthetic
// transactions and cannot be added as a custom category.
func IsReservedCategory(name string) bool {
	return name == CategoryBillPayment || name == CategoryGoalContribution
}
