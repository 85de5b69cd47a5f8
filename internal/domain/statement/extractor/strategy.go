package extractor

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/rules"
)

// Strategy proposes transaction candidates from a tokenized document.
// Implementations hold no mutable state and are safe for concurrent use.
type Strategy interface {
	Name() string
	Candidates(lines []model.RawLine) []model.Candidate
}

// Pattern fragments shared by the built-in strategies.
const (
	dateToken      = `\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`
	fixedDateToken = `\d{2}[/-]\d{2}[/-]\d{4}`
	amountToken    = `\d{1,10}(?:[.,]\d{3})*[.,]\d{2}`
	currencyToken  = `(?:EUR|€|R\$|\$|USD)`
)

// patternSpec is a regex strategy expressed as data.
type patternSpec struct {
	pattern string
	groups  rules.GroupRoles
}

var builtinPatterns = map[string]patternSpec{
	rules.StrategyDuplicatedDateSingleLine: {
		pattern: `(?i)(` + fixedDateToken + `)\s+(` + fixedDateToken + `)\s+(.+?)\s+([+-])?\s*(\d{1,3}(?:\.\d{3})*,\d{2})\s*(?:EUR|€)`,
		groups:  rules.GroupRoles{Date: 1, Date2: 2, Description: 3, Sign: 4, Amount: 5},
	},
	rules.StrategySingleDateCurrency: {
		pattern: `(?i)(` + dateToken + `)\s+(.+?)\s+([+-])?\s*(` + amountToken + `)\s*` + currencyToken,
		groups:  rules.GroupRoles{Date: 1, Description: 2, Sign: 3, Amount: 4},
	},
	rules.StrategySingleDateOptionalCurrency: {
		pattern: `(?i)(` + dateToken + `)\s+(.+?)\s+([+-])?\s*(` + amountToken + `)\b`,
		groups:  rules.GroupRoles{Date: 1, Description: 2, Sign: 3, Amount: 4},
	},
	rules.StrategyTableDelimited: {
		pattern: `(?i)(` + dateToken + `)\s*[|\t]\s*(.+?)\s*[|\t]\s*([+-])?\s*(` + amountToken + `)`,
		groups:  rules.GroupRoles{Date: 1, Description: 2, Sign: 3, Amount: 4},
	},
}

// regexStrategy matches one pattern over the whole document. Lines are
// rejoined with newlines so whitespace classes may span a line break while
// `.` stays within a line. Patterns run in multi-line mode.
type regexStrategy struct {
	name   string
	re     *regexp.Regexp
	groups rules.GroupRoles
}

func newRegexStrategy(name, pattern string, groups rules.GroupRoles) (*regexStrategy, error) {
	re, err := regexp.Compile(`(?m)` + pattern)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}
	return &regexStrategy{name: name, re: re, groups: groups}, nil
}

func (s *regexStrategy) Name() string { return s.name }

func (s *regexStrategy) Candidates(lines []model.RawLine) []model.Candidate {
	text, starts := joinLines(lines)

	var out []model.Candidate
	for _, loc := range s.re.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, model.Candidate{
			Line:        lines[lineAt(starts, loc[0])].Index,
			RawDate:     group(text, loc, s.groups.Date),
			RawDate2:    group(text, loc, s.groups.Date2),
			RawAmount:   group(text, loc, s.groups.Amount),
			Sign:        model.ParseSign(group(text, loc, s.groups.Sign)),
			Description: group(text, loc, s.groups.Description),
		})
	}
	return out
}

// joinLines rebuilds the document from its kept lines and returns the byte
// offset at which each line starts.
func joinLines(lines []model.RawLine) (string, []int) {
	var b strings.Builder
	starts := make([]int, len(lines))
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		starts[i] = b.Len()
		b.WriteString(line.Text)
	}
	return b.String(), starts
}

// lineAt returns the position in starts of the line holding offset.
func lineAt(starts []int, offset int) int {
	return sort.SearchInts(starts, offset+1) - 1
}

func group(text string, loc []int, idx int) string {
	if idx <= 0 || 2*idx+1 >= len(loc) || loc[2*idx] < 0 {
		return ""
	}
	return text[loc[2*idx]:loc[2*idx+1]]
}

var (
	sequenceHeaderPattern = regexp.MustCompile(`^(` + fixedDateToken + `)(` + fixedDateToken + `)$`)
	sequenceAmountPattern = regexp.MustCompile(`(?i)([+-]?)\s*(\d{1,3}(?:\s*\d{3})*,\d{2})\s*EUR`)
)

// lineSequenceStrategy handles layouts where each movement spans three lines:
// a header made of the booking and value dates glued together, the
// description, then the signed amount.
type lineSequenceStrategy struct{}

func (lineSequenceStrategy) Name() string { return rules.StrategyDuplicatedDateSequence }

func (lineSequenceStrategy) Candidates(lines []model.RawLine) []model.Candidate {
	var out []model.Candidate
	for i := 0; i < len(lines); {
		header := sequenceHeaderPattern.FindStringSubmatch(lines[i].Text)
		if header == nil || i+2 >= len(lines) {
			i++
			continue
		}
		amount := sequenceAmountPattern.FindStringSubmatch(lines[i+2].Text)
		if amount == nil {
			i++
			continue
		}
		out = append(out, model.Candidate{
			Line:        lines[i].Index,
			RawDate:     header[1],
			RawAmount:   amount[2],
			Sign:        model.ParseSign(amount[1]),
			Description: lines[i+1].Text,
		})
		i += 3
	}
	return out
}

// buildStrategies resolves the configured order into strategy values.
func buildStrategies(r *rules.Rules) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(r.StrategyOrder))
	for _, name := range r.StrategyOrder {
		if name == rules.StrategyDuplicatedDateSequence {
			strategies = append(strategies, lineSequenceStrategy{})
			continue
		}

		ps, ok := builtinPatterns[name]
		if !ok {
			cs, found := r.CustomStrategy(name)
			if !found {
				return nil, fmt.Errorf("%w: unknown strategy %q", rules.ErrInvalidRules, name)
			}
			ps = patternSpec{pattern: cs.Pattern, groups: cs.Groups}
		}

		s, err := newRegexStrategy(name, ps.pattern, ps.groups)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}
