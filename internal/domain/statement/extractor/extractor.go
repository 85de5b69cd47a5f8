// Package extractor turns raw bank statement text into a deduplicated list of
// transactions. Strategies are tried in order and the first one that yields a
// validated transaction wins; a line scan runs when none does.
package extractor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/classifier"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/normalizer"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/rules"
)

// Stats are diagnostic counters collected during one extraction.
type Stats struct {
	LinesSeen  int            `json:"lines_seen"`
	Candidates map[string]int `json:"candidates"`
	Rejected   map[string]int `json:"rejected"`
	Duplicates int            `json:"duplicates"`
}

// Result is the outcome of one extraction. Transactions is never nil.
type Result struct {
	Transactions []model.Transaction `json:"transactions"`
	Strategy     string              `json:"strategy,omitempty"`
	Stats        Stats               `json:"stats"`
}

// Extractor runs the configured strategies over statement text.
// It is immutable after construction and safe for concurrent use.
type Extractor struct {
	strategies  []Strategy
	fallback    Strategy
	classifier  *classifier.Classifier
	tolerance   decimal.Decimal
	defaultSign model.Sign
	yearPivot   int
}

// New builds an extractor from a validated rule set.
func New(r *rules.Rules) (*Extractor, error) {
	if r == nil {
		r = rules.Default()
	}
	strategies, err := buildStrategies(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build strategies: %w", err)
	}

	cls := classifier.New(r)
	e := &Extractor{
		strategies:  strategies,
		classifier:  cls,
		tolerance:   r.ToleranceValue(),
		defaultSign: r.DefaultSignValue(),
		yearPivot:   r.TwoDigitYearPivot,
	}
	if r.Fallback {
		e.fallback = fallbackStrategy{classifier: cls}
	}
	return e, nil
}

var defaultExtractor = mustNew(rules.Default())

func mustNew(r *rules.Rules) *Extractor {
	e, err := New(r)
	if err != nil {
		panic(err)
	}
	return e
}

// ExtractTransactions runs the default rule set over text.
func ExtractTransactions(text string) []model.Transaction {
	return defaultExtractor.Extract(text).Transactions
}

// Strategies returns the names of the strategies in the order they are tried.
func (e *Extractor) Strategies() []string {
	names := make([]string, 0, len(e.strategies)+1)
	for _, s := range e.strategies {
		names = append(names, s.Name())
	}
	if e.fallback != nil {
		names = append(names, e.fallback.Name())
	}
	return names
}

// Extract runs the pipeline over text. Per-line problems never fail the
// extraction; they only show up in the returned stats.
func (e *Extractor) Extract(text string) Result {
	lines := Tokenize(text)
	res := Result{
		Transactions: []model.Transaction{},
		Stats: Stats{
			LinesSeen:  len(lines),
			Candidates: make(map[string]int),
			Rejected:   make(map[string]int),
		},
	}
	if len(lines) == 0 {
		return res
	}

	for _, s := range e.strategies {
		if e.run(s, lines, &res) {
			return res
		}
	}
	if e.fallback != nil {
		e.run(e.fallback, lines, &res)
	}
	return res
}

// run feeds one strategy's candidates through validation and reports whether
// it produced at least one transaction.
func (e *Extractor) run(s Strategy, lines []model.RawLine, res *Result) bool {
	candidates := s.Candidates(lines)
	res.Stats.Candidates[s.Name()] += len(candidates)

	for _, c := range candidates {
		tx, reason := e.validate(c)
		if reason != classifier.ReasonNone {
			res.Stats.Rejected[string(reason)]++
			continue
		}
		if e.isDuplicate(res.Transactions, tx) {
			res.Stats.Duplicates++
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}

	if len(res.Transactions) == 0 {
		return false
	}
	res.Strategy = s.Name()
	return true
}

func (e *Extractor) validate(c model.Candidate) (model.Transaction, classifier.RejectReason) {
	date, err := normalizer.NormalizeDate(c.RawDate, e.yearPivot)
	if err != nil && c.RawDate2 != "" {
		date, err = normalizer.NormalizeDate(c.RawDate2, e.yearPivot)
	}
	if err != nil {
		return model.Transaction{}, classifier.ReasonDateInvalid
	}

	if c.RawAmount == "" {
		return model.Transaction{}, classifier.ReasonAmountInvalid
	}
	magnitude, numeralSign, err := normalizer.ParseSignedAmount(c.RawAmount)
	if err != nil {
		return model.Transaction{}, classifier.ReasonAmountInvalid
	}
	amount := normalizer.ApplySign(magnitude, c.Sign, numeralSign, e.defaultSign)

	description := normalizer.CleanDescription(c.Description)
	if ok, reason := e.classifier.IsTransactionCandidate(description, amount); !ok {
		return model.Transaction{}, reason
	}

	return model.Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Merchant:    normalizer.ExtractMerchant(description),
	}, classifier.ReasonNone
}

func (e *Extractor) isDuplicate(accepted []model.Transaction, tx model.Transaction) bool {
	for _, t := range accepted {
		if t.Date == tx.Date &&
			t.Description == tx.Description &&
			t.Amount.Sub(tx.Amount).Abs().LessThan(e.tolerance) {
			return true
		}
	}
	return false
}
