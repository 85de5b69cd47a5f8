package normalizer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxMerchantWords = 5
	maxMerchantRunes = 60
	minMerchantRunes = 3
)

var (
	merchantDatePattern   = regexp.MustCompile(`\d{2}[-/]\d{2}[-/]?\d{0,4}`)
	merchantAmountPattern = regexp.MustCompile(`[+-]?\d{1,10}[,.]\d{2}`)
)

// ExtractMerchant derives a short merchant label from a description.
// Dates and amounts are dropped and the result is limited to the first five
// words and 60 characters. When too little is left the description is used.
func ExtractMerchant(description string) string {
	cleaned := merchantDatePattern.ReplaceAllString(description, "")
	cleaned = merchantAmountPattern.ReplaceAllString(cleaned, "")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.Trim(cleaned, " -+/|")

	if utf8.RuneCountInString(cleaned) < minMerchantRunes {
		cleaned = strings.TrimSpace(description)
	}

	words := strings.Fields(cleaned)
	if len(words) > maxMerchantWords {
		words = words[:maxMerchantWords]
	}
	return truncateRunes(strings.Join(words, " "), maxMerchantRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
