package utils

import (
	"math"
	"strconv"
	"strings"
)

// ParseCode coerces a response code cell to an int. "2", " 2 " and "2.0" are accepted;
// empty, non-numeric and non-integral values are not.
func ParseCode(valStr string) (int, bool) {
	s := strings.TrimSpace(valStr)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// ParseCodes parses a comma-separated code list such as "1,2,9".
func ParseCodes(list string) ([]int, error) {
	var codes []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		codes = append(codes, n)
	}
	return codes, nil
}
