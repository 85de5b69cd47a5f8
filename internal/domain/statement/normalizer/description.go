package normalizer

import (
	"regexp"
	"strings"
)

var (
	whitespacePattern      = regexp.MustCompile(`\s+`)
	columnDelimiterPattern = regexp.MustCompile(`[|\t]`)
)

// currencyAmountPattern matches a balance glued to a currency marker, e.g.
// "EUR1.234,56" or "€12,00EUR".
var currencyAmountPattern = regexp.MustCompile(`(?:EUR|€|R\$|\$|USD)\d+(?:[.,]\d+)+(?:EUR|€|R\$|\$|USD)?`)

// CleanDescription normalizes description text: column delimiters become
// spaces, leftover currency-amount fragments are removed and whitespace is
// collapsed.
func CleanDescription(raw string) string {
	result := columnDelimiterPattern.ReplaceAllString(raw, " ")
	result = currencyAmountPattern.ReplaceAllString(result, "")
	result = whitespacePattern.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
