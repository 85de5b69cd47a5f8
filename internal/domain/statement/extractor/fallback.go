package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/classifier"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/rules"
)

var (
	fallbackDatePattern    = regexp.MustCompile(dateToken)
	leadingDatePattern     = regexp.MustCompile(`^` + dateToken + `\s*`)
	fallbackAmountPattern  = regexp.MustCompile(`(?i)([+-]?)\s*(` + amountToken + `)\s*` + currencyToken + `?`)
	currencyLettersPattern = regexp.MustCompile(`(?i)EUR|USD|R\$`)
)

// fallbackStrategy is the last-resort line scan. Every line carrying a date
// opens a candidate whose description is either the rest of that line or the
// next line, and whose amount is found on the description line or the one
// after it.
type fallbackStrategy struct {
	classifier *classifier.Classifier
}

func (fallbackStrategy) Name() string { return rules.StrategyFallbackLineScan }

func (s fallbackStrategy) Candidates(lines []model.RawLine) []model.Candidate {
	var out []model.Candidate
	for i, line := range lines {
		loc := fallbackDatePattern.FindStringIndex(line.Text)
		if loc == nil || s.classifier.IsNoiseLine(line.Text) {
			continue
		}

		c := model.Candidate{Line: line.Index, RawDate: line.Text[loc[0]:loc[1]]}
		rest := strings.TrimSpace(line.Text[loc[1]:])
		rest = leadingDatePattern.ReplaceAllString(rest, "")

		var descIdx int
		if hasAlphabetic(rest) {
			c.Description = rest
			descIdx = i
		} else {
			if i+1 >= len(lines) {
				continue
			}
			c.Description = lines[i+1].Text
			descIdx = i + 1
		}

		if m := fallbackAmountPattern.FindStringSubmatch(c.Description); m != nil {
			c.RawAmount, c.Sign = m[2], model.ParseSign(m[1])
			c.Description = strings.TrimSpace(strings.Replace(c.Description, m[0], " ", 1))
		} else if descIdx+1 < len(lines) {
			if m := fallbackAmountPattern.FindStringSubmatch(lines[descIdx+1].Text); m != nil {
				c.RawAmount, c.Sign = m[2], model.ParseSign(m[1])
			}
		}

		out = append(out, c)
	}
	return out
}

// hasAlphabetic reports whether s holds letters other than currency codes.
func hasAlphabetic(s string) bool {
	s = currencyLettersPattern.ReplaceAllString(s, "")
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
