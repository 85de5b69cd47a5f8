// Package normalizer handles regional money and date parsing.
// Converts the raw tokens found in bank statement text into canonical values.
package normalizer

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
)

var (
	ErrInvalidAmount = errors.New("invalid amount format")
	ErrInvalidDate   = errors.New("invalid date format")
)

var (
	currencyMarkerPattern = regexp.MustCompile(`(?i)EUR|USD|R\$|€|\$|£`)
	plainNumberPattern    = regexp.MustCompile(`^(?:\d+(?:\.\d+)?|\.\d+)$`)
)

// ParseAmount converts a locale-formatted amount into a signed decimal.
// The result is negative when the numeral has a leading minus or parentheses.
//
//	"1.234,56"   -> 1234.56
//	"1,234.56"   -> 1234.56
//	"(45,23 €)"  -> -45.23
//	"1,234"      -> 1234
func ParseAmount(raw string) (decimal.Decimal, error) {
	magnitude, sign, err := ParseSignedAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if sign == model.SignNegative {
		return magnitude.Neg(), nil
	}
	return magnitude, nil
}

// ParseSignedAmount returns the absolute value of raw together with the sign
// written on the numeral itself, or SignNone when it carries none.
func ParseSignedAmount(raw string) (decimal.Decimal, model.Sign, error) {
	cleaned := currencyMarkerPattern.ReplaceAllString(raw, "")
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return decimal.Zero, model.SignNone, ErrInvalidAmount
	}

	sign := model.SignNone
	switch {
	case strings.HasPrefix(cleaned, "-") || strings.Contains(cleaned, "("):
		sign = model.SignNegative
	case strings.HasPrefix(cleaned, "+"):
		sign = model.SignPositive
	}
	cleaned = strings.TrimLeft(cleaned, "+-")
	cleaned = strings.NewReplacer("(", "", ")", "").Replace(cleaned)

	cleaned = normalizeSeparators(cleaned)
	if !plainNumberPattern.MatchString(cleaned) {
		return decimal.Zero, model.SignNone, ErrInvalidAmount
	}

	val, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, model.SignNone, ErrInvalidAmount
	}
	return val, sign, nil
}

// normalizeSeparators rewrites a numeral so that '.' is the only, optional,
// decimal separator.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// the separator appearing last is the decimal one
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")

	case lastComma >= 0:
		// a comma is decimal only with exactly two trailing digits
		if len(s)-lastComma-1 == 2 {
			return strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:]
		}
		return strings.ReplaceAll(s, ",", "")

	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	}
	return s
}

// ApplySign combines an absolute amount with the available sign hints.
// An explicit captured sign wins, then the numeral's own sign, then def.
func ApplySign(magnitude decimal.Decimal, explicit, numeral, def model.Sign) decimal.Decimal {
	magnitude = magnitude.Abs()
	sign := def
	switch {
	case explicit != model.SignNone:
		sign = explicit
	case numeral != model.SignNone:
		sign = numeral
	}
	if sign == model.SignNegative {
		return magnitude.Neg()
	}
	return magnitude
}
