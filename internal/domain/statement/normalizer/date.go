package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultYearPivot splits two-digit years: yy <= pivot is 20yy, otherwise 19yy.
const DefaultYearPivot = 50

var dayMonthYearPattern = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{2}|\d{4})$`)

// NormalizeDate converts a day-month-year date using '-' or '/' separators
// into ISO YYYY-MM-DD. Dates that do not exist in the calendar are rejected.
func NormalizeDate(raw string, pivot int) (string, error) {
	t, err := ParseStatementDate(raw, pivot)
	if err != nil {
		return "", err
	}
	return t.Format(time.DateOnly), nil
}

// ParseStatementDate is NormalizeDate returning a UTC time.Time.
func ParseStatementDate(raw string, pivot int) (time.Time, error) {
	m := dayMonthYearPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, ErrInvalidDate
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year = expandYear(year, pivot)
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, e.g. 31-02 becomes 03-03
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}

func expandYear(yy, pivot int) int {
	if yy <= pivot {
		return 2000 + yy
	}
	return 1900 + yy
}
