package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
)

var lineBreakPattern = regexp.MustCompile(`\r\n|\r|\n`)

// Tokenize splits statement text into trimmed, non-empty lines.
// Text is NFC-normalized so that composed and decomposed accents compare equal.
func Tokenize(text string) []model.RawLine {
	parts := lineBreakPattern.Split(norm.NFC.String(text), -1)
	lines := make([]model.RawLine, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lines = append(lines, model.RawLine{Index: len(lines), Text: p})
	}
	return lines
}
