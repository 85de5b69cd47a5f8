// Package classifier decides whether a parsed candidate looks like a real
// transaction or like statement noise (headers, balances, footers).
package classifier

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/rules"
)

// RejectReason names why a candidate was dropped.
type RejectReason string

const (
	ReasonNone              RejectReason = ""
	ReasonDateInvalid       RejectReason = "date_invalid"
	ReasonAmountInvalid     RejectReason = "amount_invalid"
	ReasonDescriptionLength RejectReason = "description_length"
	ReasonNumericOnly       RejectReason = "numeric_only"
	ReasonNoiseMarker       RejectReason = "noise_marker"
)

var (
	currencyTokenPattern = regexp.MustCompile(`(?i)EUR|USD|R\$`)
	numericOnlyPattern   = regexp.MustCompile(`^[\d\s.,\-/+€$£]*$`)
)

// Classifier applies the validation and noise rules of a rule set.
type Classifier struct {
	minAmount          decimal.Decimal
	minDescription     int
	maxDescription     int
	noiseMarkers       []string
	noiseMarkerPairs   [][]string
	headerFingerprints [][]string
}

// New builds a classifier from r.
func New(r *rules.Rules) *Classifier {
	return &Classifier{
		minAmount:          r.MinAmountValue(),
		minDescription:     r.DescriptionLength.Min,
		maxDescription:     r.DescriptionLength.Max,
		noiseMarkers:       r.NoiseMarkers,
		noiseMarkerPairs:   r.NoiseMarkerPairs,
		headerFingerprints: r.HeaderFingerprints,
	}
}

// IsTransactionCandidate validates a cleaned description and signed amount.
// Checks run in a fixed order and the first failing one is reported.
func (c *Classifier) IsTransactionCandidate(description string, amount decimal.Decimal) (bool, RejectReason) {
	if amount.Abs().LessThan(c.minAmount) {
		return false, ReasonAmountInvalid
	}

	n := utf8.RuneCountInString(description)
	if n < c.minDescription || n > c.maxDescription {
		return false, ReasonDescriptionLength
	}

	if isNumericOnly(description) {
		return false, ReasonNumericOnly
	}

	if c.hasNoiseMarker(description) {
		return false, ReasonNoiseMarker
	}

	return true, ReasonNone
}

// IsNoiseLine reports whether a raw line is a column header or balance line
// that the line scan must skip.
func (c *Classifier) IsNoiseLine(line string) bool {
	lower := strings.ToLower(line)
	for _, fp := range c.headerFingerprints {
		if len(fp) > 0 && containsAll(lower, fp) {
			return true
		}
	}
	return false
}

func (c *Classifier) hasNoiseMarker(description string) bool {
	lower := strings.ToLower(description)
	for _, marker := range c.noiseMarkers {
		if marker != "" && strings.Contains(lower, marker) {
			return true
		}
	}
	for _, pair := range c.noiseMarkerPairs {
		if containsAll(lower, pair) {
			return true
		}
	}
	return false
}

// isNumericOnly reports whether s is made of digits, separators and currency
// markers only.
func isNumericOnly(s string) bool {
	return numericOnlyPattern.MatchString(currencyTokenPattern.ReplaceAllString(s, ""))
}

func containsAll(s string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(s, term) {
			return false
		}
	}
	return true
}
