package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction is a ledger line. Income is stored with a positive amount and
// expenses with a negative one.
type Transaction struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Date        time.Time       `json:"date"`
}

// Label is the grouping key used by summaries.
func (t Transaction) Label() string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	if d := strings.TrimSpace(t.Description); d != "" {
		return d
	}
	return "Uncategorized"
}

// Signed returns the transaction with its amount sign matching its type.
func (t Transaction) Signed() Transaction {
	switch t.Type {
	case TransactionExpense:
		t.Amount = t.Amount.Abs().Neg()
	case TransactionIncome:
		t.Amount = t.Amount.Abs()
	default:
		if t.Amount.IsNegative() {
			t.Type = TransactionExpense
		} else {
			t.Type = TransactionIncome
		}
	}
	return t
}

// Holding is an investment position with its current value and unrealised gain.
type Holding struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Ticker string          `json:"ticker"`
	Value  decimal.Decimal `json:"value"`
	Gain   decimal.Decimal `json:"gain"`
}
