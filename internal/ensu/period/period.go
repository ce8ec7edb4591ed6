package period

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
)

// Matcher inspects a file path and reports a period when it recognizes one.
type Matcher func(path string) (types.Period, bool)

// TokenMatcher inspects a single name (file stem or directory name).
type TokenMatcher func(token string) (types.Period, bool)

var (
	// 2024_1t, 2024-2T, 2024_03t, 2015_1trim
	yearQuarterT = regexp.MustCompile(`(?:^|[^0-9])(20\d{2})[^0-9a-z]?0?([1-4])\s*t(?:rim)?(?:[^a-z]|$)`)
	// 2019_q2, 2019q2
	yearQuarterQ = regexp.MustCompile(`(?:^|[^0-9])(20\d{2})[^0-9a-z]?q([1-4])(?:[^0-9]|$)`)
	// q2_2019, 1t_2019
	quarterYear = regexp.MustCompile(`(?:^|[^0-9a-z])(?:q([1-4])|0?([1-4])t)[^0-9a-z]?(20\d{2})(?:[^0-9]|$)`)

	// 04_2017
	monthYear = regexp.MustCompile(`(?:^|[^0-9])(\d{1,2})[_-](20\d{2})(?:[^0-9]|$)`)
	// 2017_04
	yearMonth = regexp.MustCompile(`(?:^|[^0-9])(20\d{2})[_-](\d{1,2})(?:[^0-9]|$)`)
	// _0625, cb_0322
	monthYearShort = regexp.MustCompile(`(?:^|[^0-9])(\d{2})(\d{2})(?:[^0-9]|$)`)
)

func stem(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// QuarterFromMonth maps a month 1..12 to its quarter.
func QuarterFromMonth(month int) int {
	return (month-1)/3 + 1
}

// YearQuarterToken recognizes explicit year and quarter tokens.
func YearQuarterToken(token string) (types.Period, bool) {
	token = strings.ToLower(token)
	if m := yearQuarterT.FindStringSubmatch(token); m != nil {
		return types.NewPeriod(atoi(m[1]), atoi(m[2])), true
	}
	if m := yearQuarterQ.FindStringSubmatch(token); m != nil {
		return types.NewPeriod(atoi(m[1]), atoi(m[2])), true
	}
	if m := quarterYear.FindStringSubmatch(token); m != nil {
		q := m[1]
		if q == "" {
			q = m[2]
		}
		return types.NewPeriod(atoi(m[3]), atoi(q)), true
	}
	return types.Period{}, false
}

// MonthYearToken recognizes month and year tokens and converts the month to a quarter.
// Four-digit-year forms are tried before the two-digit MMYY form.
func MonthYearToken(token string) (types.Period, bool) {
	token = strings.ToLower(token)
	if m := monthYear.FindStringSubmatch(token); m != nil {
		if month := atoi(m[1]); month >= 1 && month <= 12 {
			return types.NewPeriod(atoi(m[2]), QuarterFromMonth(month)), true
		}
	}
	if m := yearMonth.FindStringSubmatch(token); m != nil {
		if month := atoi(m[2]); month >= 1 && month <= 12 {
			return types.NewPeriod(atoi(m[1]), QuarterFromMonth(month)), true
		}
	}
	for _, m := range monthYearShort.FindAllStringSubmatch(token, -1) {
		if month := atoi(m[1]); month >= 1 && month <= 12 {
			return types.NewPeriod(2000+atoi(m[2]), QuarterFromMonth(month)), true
		}
	}
	return types.Period{}, false
}

// FromFilename applies a token matcher to the file stem.
func FromFilename(tm TokenMatcher) Matcher {
	return func(path string) (types.Period, bool) {
		return tm(stem(path))
	}
}

// FromParentDirs applies the token matchers, in order, to each parent directory name,
// nearest first, up to depth levels.
func FromParentDirs(depth int, tms ...TokenMatcher) Matcher {
	return func(path string) (types.Period, bool) {
		dir := filepath.Dir(path)
		for i := 0; i < depth; i++ {
			name := filepath.Base(dir)
			if name == "." || name == string(filepath.Separator) || name == "" {
				break
			}
			for _, tm := range tms {
				if p, ok := tm(strings.ToLower(name)); ok {
					return p, true
				}
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
		return types.Period{}, false
	}
}

// Extractor runs matchers in priority order. The first match wins and no later matcher runs.
type Extractor struct {
	Matchers []Matcher
}

// DefaultMatchers is the standard priority order: explicit year and quarter in the filename,
// month and year in the filename, then parent directories.
func DefaultMatchers() []Matcher {
	return []Matcher{
		FromFilename(YearQuarterToken),
		FromFilename(MonthYearToken),
		FromParentDirs(3, YearQuarterToken, MonthYearToken),
	}
}

func NewExtractor() *Extractor {
	return &Extractor{Matchers: DefaultMatchers()}
}

// Extract returns the period for path, or types.Unidentified.
func (e *Extractor) Extract(path string) types.Period {
	for _, m := range e.Matchers {
		if p, ok := m(path); ok {
			return p
		}
	}
	return types.Unidentified
}
