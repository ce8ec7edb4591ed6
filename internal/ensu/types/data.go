package types

import (
	"errors"
	"fmt"
	"time"
)

// Canonical column names every historical header variant is mapped onto.
const (
	ColEntity       = "entity"
	ColMunicipality = "municipality"
	ColResponseCode = "response_code"
)

// UnidentifiedLabel is written in place of year and quarter when no period matcher succeeded.
const UnidentifiedLabel = "unidentified"

var (
	ErrFileUnreadable      = errors.New("file unreadable")
	ErrSchemaMissingField  = errors.New("required column missing")
	ErrNoTargetEntityRows  = errors.New("no rows for target entity")
	ErrPeriodUnidentified  = errors.New("period unidentified")
	ErrRootNotFound        = errors.New("root directory does not exist")
	ErrConsolidationOutput = errors.New("consolidated output failed")
)

// Period is a survey wave. A zero Period is unidentified.
type Period struct {
	Year       int  `json:"year,omitempty"`
	Quarter    int  `json:"quarter,omitempty"`
	Identified bool `json:"identified"`
}

var Unidentified = Period{}

func NewPeriod(year, quarter int) Period {
	return Period{Year: year, Quarter: quarter, Identified: true}
}

func (p Period) String() string {
	if !p.Identified {
		return UnidentifiedLabel
	}
	return fmt.Sprintf("%d-Q%d", p.Year, p.Quarter)
}

// Less orders periods chronologically with unidentified last.
func (p Period) Less(o Period) bool {
	if p.Identified != o.Identified {
		return p.Identified
	}
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

// SurveyFile is a discovered input file.
type SurveyFile struct {
	Path     string    `json:"path"`
	Period   Period    `json:"period"`
	Columns  []string  `json:"columns,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
	ModTime  time.Time `json:"mod_time"`
}

// ResponseRecord is one respondent row after column normalization.
type ResponseRecord struct {
	Entity       string
	Municipality string
	Code         int
}

// Source identifies where an aggregate came from, used to break duplicate ties.
type Source struct {
	Path       string    `json:"path"`
	TargetRows int       `json:"target_rows"`
	ModTime    time.Time `json:"mod_time"`
}

// MunicipalityAggregate holds counts and percentages per response code for one
// (entity, municipality, period). Percentages are only set when Total > 0.
type MunicipalityAggregate struct {
	Entity       string          `json:"entity"`
	Municipality string          `json:"municipality"`
	Period       Period          `json:"period"`
	Counts       map[int]int     `json:"counts"`
	Percentages  map[int]float64 `json:"percentages"`
	Total        int             `json:"total_valid_responses"`
	Source       Source          `json:"source"`
}

// Key is the duplicate-detection key.
func (a MunicipalityAggregate) Key() string {
	return fmt.Sprintf("%s|%s|%s", a.Entity, a.Municipality, a.Period)
}

// FlaggedGroup is a group that ended up with zero valid responses and was not emitted.
type FlaggedGroup struct {
	Entity       string `json:"entity"`
	Municipality string `json:"municipality"`
	Path         string `json:"path"`
}

// Superseded is an aggregate that lost a duplicate resolution.
type Superseded struct {
	Record         MunicipalityAggregate `json:"record"`
	RetainedSource Source                `json:"retained_source"`
	Reason         string                `json:"reason"`
}

// FilterStats reports what the row filter dropped.
type FilterStats struct {
	TotalRows   int `json:"total_rows"`
	InvalidCode int `json:"invalid_code"`
	MissingText int `json:"missing_text"`
	OtherEntity int `json:"other_entity"`
	TargetRows  int `json:"target_rows"`
}

// FileStatus is the outcome of processing one file.
type FileStatus string

const (
	FileProcessed             FileStatus = "processed"
	FileKept                  FileStatus = "kept"
	FileSkippedUnreadable     FileStatus = "skipped_unreadable"
	FileSkippedMissingColumns FileStatus = "skipped_missing_columns"
	FileSkippedNoTargetRows   FileStatus = "skipped_no_target_rows"
)

// FileError carries the failing path and the error kind so callers can match with errors.Is.
type FileError struct {
	Path string
	Kind error
	Err  error
}

func (e *FileError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	case errors.Is(e.Err, e.Kind):
		// The wrapped error already carries the kind's text.
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
	}
}

func (e *FileError) Is(target error) bool {
	return target == e.Kind
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// FileResult is what processing one file yields.
type FileResult struct {
	File       SurveyFile              `json:"file"`
	Status     FileStatus              `json:"status"`
	Stats      FilterStats             `json:"stats"`
	Aggregates []MunicipalityAggregate `json:"-"`
	Flagged    []FlaggedGroup          `json:"flagged,omitempty"`
	OutputPath string                  `json:"output_path,omitempty"`
	Err        error                   `json:"-"`
	ErrMessage string                  `json:"error,omitempty"`
}

// RunSummary is the end-of-run report.
type RunSummary struct {
	RunID                 string       `json:"run_id"`
	StartedAt             time.Time    `json:"started_at"`
	FinishedAt            time.Time    `json:"finished_at"`
	Discovered            int          `json:"discovered"`
	Processed             int          `json:"processed"`
	Kept                  int          `json:"kept"`
	SkippedMissingColumns int          `json:"skipped_missing_columns"`
	SkippedNoTargetRows   int          `json:"skipped_no_target_rows"`
	SkippedUnreadable     int          `json:"skipped_unreadable"`
	DuplicatesResolved    int          `json:"duplicates_resolved"`
	UnidentifiedPeriods   int          `json:"unidentified_periods"`
	InvalidResponses      int          `json:"invalid_responses"`
	FlaggedGroups         int          `json:"flagged_groups"`
	ConsolidatedRows      int          `json:"consolidated_rows"`
	ConsolidatedPath      string       `json:"consolidated_path,omitempty"`
	Files                 []FileResult `json:"files"`
}
