package types

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeriodOrderingPutsUnidentifiedLast(t *testing.T) {
	periods := []Period{Unidentified, NewPeriod(2023, 1), NewPeriod(2022, 4), NewPeriod(2022, 1)}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Less(periods[j]) })

	assert.Equal(t, []Period{NewPeriod(2022, 1), NewPeriod(2022, 4), NewPeriod(2023, 1), Unidentified}, periods)
	assert.Equal(t, "2022-Q1", NewPeriod(2022, 1).String())
	assert.Equal(t, UnidentifiedLabel, Unidentified.String())
}

func TestFileErrorMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &FileError{Path: "a.csv", Kind: ErrSchemaMissingField, Err: errors.New("NOM_MUN")})

	assert.True(t, errors.Is(err, ErrSchemaMissingField))
	assert.False(t, errors.Is(err, ErrFileUnreadable))
	assert.Contains(t, err.Error(), "a.csv")
}

func TestFileErrorDoesNotRepeatKind(t *testing.T) {
	inner := fmt.Errorf("%w: failed to parse a.csv: bad quote", ErrFileUnreadable)
	err := &FileError{Path: "a.csv", Kind: ErrFileUnreadable, Err: inner}

	assert.Equal(t, "a.csv: file unreadable: failed to parse a.csv: bad quote", err.Error())
	assert.True(t, errors.Is(err, ErrFileUnreadable))

	plain := &FileError{Path: "b.csv", Kind: ErrSchemaMissingField, Err: errors.New("NOM_MUN")}
	assert.Equal(t, "b.csv: required column missing: NOM_MUN", plain.Error())
}
