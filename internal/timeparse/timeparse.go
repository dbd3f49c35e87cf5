package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the wire format for range boundaries.
const Layout = "2006-01-02 15:04:05"

// Range is a resolved date window. Start is always <= End.
type Range struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

var digitRun = regexp.MustCompile(`\d+`)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"thirty": 30, "forty": 40, "fifty": 50, "sixty": 60,
	"seventy": 70, "eighty": 80, "ninety": 90, "hundred": 100,
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// Parse resolves a free-text temporal phrase against a reference instant.
// Branches are tried in a fixed priority order: relative past, explicit
// from/to month ranges, calendar quarters, relative future. Phrases that
// mix keywords across branches resolve to the first branch that matches.
// Anything unrecognized falls back to the last month.
func Parse(phrase string, now time.Time) Range {
	p := strings.ToLower(phrase)

	if r, ok := parseRelativePast(p, now); ok {
		return r
	}
	if r, ok := parseMonthRange(p, now); ok {
		return r
	}
	if r, ok := parseQuarter(p, now); ok {
		return r
	}
	if r, ok := parseRelativeFuture(p, now); ok {
		return r
	}

	return makeRange(now.AddDate(0, -1, 0), now)
}

func parseRelativePast(p string, now time.Time) (Range, bool) {
	if !strings.Contains(p, "last") {
		return Range{}, false
	}

	n := extractCount(p)
	switch {
	case strings.Contains(p, "day"):
		return makeRange(now.AddDate(0, 0, -n), now), true
	case strings.Contains(p, "week"):
		return makeRange(now.AddDate(0, 0, -7*n), now), true
	case strings.Contains(p, "month"):
		return makeRange(now.AddDate(0, -n, 0), now), true
	case strings.Contains(p, "year"):
		return makeRange(now.AddDate(-n, 0, 0), now), true
	}
	return Range{}, false
}

func parseMonthRange(p string, now time.Time) (Range, bool) {
	if !strings.Contains(p, "from") || !strings.Contains(p, "to") {
		return Range{}, false
	}

	firstIdx, lastIdx := -1, -1
	firstMonth, lastMonth := 0, 0
	for i, name := range monthNames {
		pos := strings.Index(p, name)
		if pos < 0 {
			continue
		}
		if firstIdx < 0 || pos < firstIdx {
			firstIdx = pos
			firstMonth = i + 1
		}
		end := strings.LastIndex(p, name)
		if end > lastIdx {
			lastIdx = end
			lastMonth = i + 1
		}
	}
	if firstIdx < 0 || lastIdx <= firstIdx {
		return Range{}, false
	}

	start := time.Date(now.Year(), time.Month(firstMonth), 1, 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), time.Month(lastMonth), 1, 0, 0, 0, 0, now.Location()).
		AddDate(0, 1, 0).AddDate(0, 0, -1)
	if end.Before(start) {
		// "from october to february" crosses the year boundary
		end = end.AddDate(1, 0, 0)
	}
	return makeRange(start, end), true
}

func parseQuarter(p string, now time.Time) (Range, bool) {
	for q := 1; q <= 4; q++ {
		if !strings.Contains(p, "q"+strconv.Itoa(q)) {
			continue
		}
		startMonth := time.Month((q-1)*3 + 1)
		start := time.Date(now.Year(), startMonth, 1, 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 3, 0).AddDate(0, 0, -1)
		return makeRange(start, end), true
	}
	return Range{}, false
}

func parseRelativeFuture(p string, now time.Time) (Range, bool) {
	if !strings.Contains(p, "next") {
		return Range{}, false
	}

	switch {
	case strings.Contains(p, "month"):
		return makeRange(now, now.AddDate(0, 1, 0)), true
	case strings.Contains(p, "quarter"):
		return makeRange(now, now.AddDate(0, 3, 0)), true
	case strings.Contains(p, "year"):
		return makeRange(now, now.AddDate(1, 0, 0)), true
	}
	return Range{}, false
}

// extractCount pulls the quantity out of a phrase. The first digit run wins
// over spelled-out number words; absent both, the count is 1.
func extractCount(p string) int {
	if m := digitRun.FindString(p); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil && n > 0 {
			return n
		}
	}
	for _, w := range strings.FieldsFunc(p, func(r rune) bool {
		return r < 'a' || r > 'z'
	}) {
		if n, ok := numberWords[w]; ok {
			return n
		}
	}
	return 1
}

func makeRange(start, end time.Time) Range {
	if end.Before(start) {
		start, end = end, start
	}
	return Range{
		Start: start.Format(Layout),
		End:   end.Format(Layout),
	}
}
