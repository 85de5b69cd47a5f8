// Package rules loads the data that drives statement extraction: strategy
// order, noise markers, header fingerprints and validation bounds.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
)

// Built-in strategy names, in their canonical order.
const (
	StrategyDuplicatedDateSequence     = "duplicated_date_sequence"
	StrategyDuplicatedDateSingleLine   = "duplicated_date_single_line"
	StrategySingleDateCurrency         = "single_date_currency"
	StrategySingleDateOptionalCurrency = "single_date_optional_currency"
	StrategyTableDelimited             = "table_delimited"
	StrategyFallbackLineScan           = "fallback_line_scan"
)

// BuiltinStrategies lists the strategies that ship with the extractor.
var BuiltinStrategies = []string{
	StrategyDuplicatedDateSequence,
	StrategyDuplicatedDateSingleLine,
	StrategySingleDateCurrency,
	StrategySingleDateOptionalCurrency,
	StrategyTableDelimited,
}

// PermissiveMaxDescription is the upper description bound used by the
// permissive rule variant.
const PermissiveMaxDescription = 500

var ErrInvalidRules = errors.New("invalid extraction rules")

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// LengthBounds is an inclusive rune-count range.
type LengthBounds struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// GroupRoles maps capture group indexes to transaction fields.
// Zero means the role is not captured.
type GroupRoles struct {
	Date        int `yaml:"date"`
	Date2       int `yaml:"date2"`
	Sign        int `yaml:"sign"`
	Description int `yaml:"description"`
	Amount      int `yaml:"amount"`
}

// CustomStrategy is a regex strategy declared in the rules file. Patterns run
// in multi-line mode over the whole statement text.
type CustomStrategy struct {
	Name    string     `yaml:"name"`
	Pattern string     `yaml:"pattern"`
	Groups  GroupRoles `yaml:"groups"`
}

// Rules is the full extraction rule set.
type Rules struct {
	DescriptionLength  LengthBounds     `yaml:"description_length"`
	MinAmount          string           `yaml:"min_amount"`
	AmountTolerance    string           `yaml:"amount_tolerance"`
	DefaultSign        string           `yaml:"default_sign"`
	TwoDigitYearPivot  int              `yaml:"two_digit_year_pivot"`
	NoiseMarkers       []string         `yaml:"noise_markers"`
	NoiseMarkerPairs   [][]string       `yaml:"noise_marker_pairs"`
	HeaderFingerprints [][]string       `yaml:"header_fingerprints"`
	StrategyOrder      []string         `yaml:"strategy_order"`
	Fallback           bool             `yaml:"fallback"`
	CustomStrategies   []CustomStrategy `yaml:"custom_strategies"`
}

// Default returns the embedded rule set.
func Default() *Rules {
	r, err := Parse(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return r
}

// Permissive returns the embedded rule set with the longer description bound.
func Permissive() *Rules {
	r := Default()
	r.DescriptionLength.Max = PermissiveMaxDescription
	return r
}

// Load reads rules from path. An empty path yields the embedded defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule document. Fields absent from the
// document keep their embedded default values.
func Parse(data []byte) (*Rules, error) {
	r := &Rules{}
	if len(defaultRulesYAML) > 0 {
		if err := yaml.Unmarshal(defaultRulesYAML, r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
		}
	}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// normalize lowercases the marker lists so matching can stay case-insensitive.
func (r *Rules) normalize() {
	for i, m := range r.NoiseMarkers {
		r.NoiseMarkers[i] = strings.ToLower(strings.TrimSpace(m))
	}
	for _, pair := range r.NoiseMarkerPairs {
		for i, m := range pair {
			pair[i] = strings.ToLower(strings.TrimSpace(m))
		}
	}
	for _, fp := range r.HeaderFingerprints {
		for i, m := range fp {
			fp[i] = strings.ToLower(strings.TrimSpace(m))
		}
	}
	r.DefaultSign = strings.ToLower(strings.TrimSpace(r.DefaultSign))
}

// Validate checks the rule set for internal consistency.
func (r *Rules) Validate() error {
	if r.DescriptionLength.Min < 1 {
		return fmt.Errorf("%w: description_length.min must be positive", ErrInvalidRules)
	}
	if r.DescriptionLength.Max < r.DescriptionLength.Min {
		return fmt.Errorf("%w: description_length.max below min", ErrInvalidRules)
	}
	if _, err := decimal.NewFromString(r.MinAmount); err != nil {
		return fmt.Errorf("%w: min_amount: %v", ErrInvalidRules, err)
	}
	if _, err := decimal.NewFromString(r.AmountTolerance); err != nil {
		return fmt.Errorf("%w: amount_tolerance: %v", ErrInvalidRules, err)
	}
	if r.DefaultSign != "negative" && r.DefaultSign != "positive" {
		return fmt.Errorf("%w: default_sign must be negative or positive", ErrInvalidRules)
	}
	if r.TwoDigitYearPivot < 0 || r.TwoDigitYearPivot > 99 {
		return fmt.Errorf("%w: two_digit_year_pivot out of range", ErrInvalidRules)
	}
	if len(r.StrategyOrder) == 0 && !r.Fallback {
		return fmt.Errorf("%w: no strategies enabled", ErrInvalidRules)
	}

	known := make(map[string]bool, len(BuiltinStrategies)+len(r.CustomStrategies))
	for _, name := range BuiltinStrategies {
		known[name] = true
	}
	for _, cs := range r.CustomStrategies {
		if cs.Name == "" {
			return fmt.Errorf("%w: custom strategy without name", ErrInvalidRules)
		}
		if known[cs.Name] {
			return fmt.Errorf("%w: duplicate strategy name %q", ErrInvalidRules, cs.Name)
		}
		re, err := regexp.Compile(cs.Pattern)
		if err != nil {
			return fmt.Errorf("%w: strategy %q: %v", ErrInvalidRules, cs.Name, err)
		}
		if err := cs.Groups.validate(re.NumSubexp()); err != nil {
			return fmt.Errorf("%w: strategy %q: %v", ErrInvalidRules, cs.Name, err)
		}
		known[cs.Name] = true
	}

	seen := make(map[string]bool, len(r.StrategyOrder))
	for _, name := range r.StrategyOrder {
		if !known[name] {
			return fmt.Errorf("%w: unknown strategy %q", ErrInvalidRules, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: strategy %q listed twice", ErrInvalidRules, name)
		}
		seen[name] = true
	}
	for _, pair := range r.NoiseMarkerPairs {
		if len(pair) < 2 {
			return fmt.Errorf("%w: noise marker pair needs two terms", ErrInvalidRules)
		}
	}
	return nil
}

func (g GroupRoles) validate(numGroups int) error {
	if g.Date == 0 || g.Description == 0 || g.Amount == 0 {
		return errors.New("date, description and amount groups are required")
	}
	for _, idx := range []int{g.Date, g.Date2, g.Sign, g.Description, g.Amount} {
		if idx < 0 || idx > numGroups {
			return fmt.Errorf("group %d out of range (pattern has %d)", idx, numGroups)
		}
	}
	return nil
}

// MinAmountValue returns the smallest accepted absolute amount.
func (r *Rules) MinAmountValue() decimal.Decimal {
	return decimal.RequireFromString(r.MinAmount)
}

// ToleranceValue returns the amount tolerance used by duplicate detection.
func (r *Rules) ToleranceValue() decimal.Decimal {
	return decimal.RequireFromString(r.AmountTolerance)
}

// DefaultSignValue returns the configured default sign.
func (r *Rules) DefaultSignValue() model.Sign {
	if r.DefaultSign == "positive" {
		return model.SignPositive
	}
	return model.SignNegative
}

// CustomStrategy looks up a declared custom strategy by name.
func (r *Rules) CustomStrategy(name string) (CustomStrategy, bool) {
	for _, cs := range r.CustomStrategies {
		if cs.Name == name {
			return cs, true
		}
	}
	return CustomStrategy{}, false
}
