// Package model holds the types shared by the statement extraction pipeline.
package model

import (
	"github.com/shopspring/decimal"
)

// RawLine is a single trimmed, non-empty line of statement text.
// Index is the zero-based position among the kept lines of the document.
type RawLine struct {
	Index int
	Text  string
}

// Sign is an explicit direction captured next to an amount.
type Sign int

const (
	SignNone Sign = iota
	SignPositive
	SignNegative
)

// ParseSign maps a captured "+" or "-" to a Sign. Anything else is SignNone.
func ParseSign(s string) Sign {
	switch s {
	case "+":
		return SignPositive
	case "-":
		return SignNegative
	default:
		return SignNone
	}
}

// Transaction is one extracted statement movement.
// Amount is signed: negative values are outflows.
type Transaction struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Merchant    string          `json:"merchant"`
}

// IsIncome reports whether the transaction moves money into the account.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// Candidate is a transaction proposed by a strategy before validation.
type Candidate struct {
	Line        int
	RawDate     string
	RawDate2    string // used when RawDate does not parse
	RawAmount   string
	Sign        Sign
	Description string
}
