package ensu

import (
	"errors"
	"os"

	"github.com/farxc/ensu_insecurity/internal/ensu/assemble"
	"github.com/farxc/ensu_insecurity/internal/ensu/files"
	"github.com/farxc/ensu_insecurity/internal/ensu/output"
	"github.com/farxc/ensu_insecurity/internal/ensu/period"
	"github.com/farxc/ensu_insecurity/internal/ensu/query"
	"github.com/farxc/ensu_insecurity/internal/ensu/schema"
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/logger"
	"golang.org/x/text/encoding"
)

// Processor turns one survey file into municipality aggregates. It holds no per-file state,
// so one Processor serves every worker.
type Processor struct {
	opts       Options
	normalizer *schema.Normalizer
	extractor  *period.Extractor
	fallback   encoding.Encoding
	appLogger  *logger.Logger
}

func NewProcessor(opts Options, appLogger *logger.Logger) (*Processor, error) {
	fallback, err := files.FallbackEncoding(opts.FallbackEncoding)
	if err != nil {
		return nil, err
	}
	return &Processor{
		opts:       opts,
		normalizer: schema.NewNormalizer(opts.Aliases),
		extractor:  period.NewExtractor(),
		fallback:   fallback,
		appLogger:  appLogger,
	}, nil
}

func fail(result types.FileResult, status types.FileStatus, kind, err error) types.FileResult {
	result.Status = status
	result.Err = &types.FileError{Path: result.File.Path, Kind: kind, Err: err}
	result.ErrMessage = result.Err.Error()
	return result
}

// ProcessFile runs the per-file stages: period extraction, decoding, schema resolution,
// filtering, aggregation and the per-file table. Failures are returned in the result.
func (p *Processor) ProcessFile(path string) types.FileResult {
	const component = "FileProcessor"

	file := types.SurveyFile{Path: path, Period: p.extractor.Extract(path)}
	if info, err := os.Stat(path); err == nil {
		file.ModTime = info.ModTime()
	}
	if sum, err := files.Checksum(path); err == nil {
		file.Checksum = sum
	}
	result := types.FileResult{File: file}

	if !file.Period.Identified {
		p.appLogger.Warn(component, "Flag for manual review: path=%s reason=%v", path, types.ErrPeriodUnidentified)
	}

	outPath := output.PerFilePath(p.opts.OutputDir, file)
	if p.opts.SkipExisting && output.Exists(outPath) {
		aggs, err := output.ReadAggregates(outPath, p.opts.ValidCodes)
		if err == nil {
			p.appLogger.Info(component, "Output for period already exists, keeping it: path=%s period=%s output=%s", path, file.Period, outPath)
			result.Status = types.FileKept
			result.Aggregates = aggs
			result.OutputPath = outPath
			if len(aggs) > 0 {
				result.Stats.TargetRows = aggs[0].Source.TargetRows
			}
			return result
		}
		p.appLogger.Warn(component, "Existing output unreadable, reprocessing: output=%s error=%v", outPath, err)
	}

	df, err := files.OpenFileAndDecode(path, p.fallback)
	if err != nil {
		p.appLogger.Warn(component, "Skipping unreadable file: path=%s error=%v", path, err)
		return fail(result, types.FileSkippedUnreadable, types.ErrFileUnreadable, err)
	}
	result.File.Columns = df.Names()

	mapping, err := p.normalizer.Resolve(df.Names())
	if err != nil {
		p.appLogger.Warn(component, "Skipping file with missing columns: path=%s error=%v", path, err)
		return fail(result, types.FileSkippedMissingColumns, types.ErrSchemaMissingField, err)
	}

	canonical, err := query.SelectCanonical(df, mapping)
	if err != nil {
		kind := types.ErrFileUnreadable
		status := types.FileSkippedUnreadable
		if errors.Is(err, types.ErrSchemaMissingField) {
			kind, status = types.ErrSchemaMissingField, types.FileSkippedMissingColumns
		}
		p.appLogger.Warn(component, "Skipping file, column selection failed: path=%s error=%v", path, err)
		return fail(result, status, kind, err)
	}

	filtered, stats, err := query.FilterResponses(canonical, query.FilterOptions{
		TargetEntity: p.opts.TargetEntity,
		ValidCodes:   p.opts.ValidCodes,
		ResolveCodes: p.opts.ResolveEntityCodes,
	}, p.appLogger)
	result.Stats = stats
	if err != nil {
		p.appLogger.Warn(component, "Skipping file, row filter failed: path=%s error=%v", path, err)
		return fail(result, types.FileSkippedUnreadable, types.ErrFileUnreadable, err)
	}
	if stats.InvalidCode > 0 {
		p.appLogger.Info(component, "Excluded rows with invalid response codes: path=%s count=%d", path, stats.InvalidCode)
	}

	if stats.TargetRows == 0 {
		p.appLogger.Info(component, "No rows for target entity, no output written: path=%s target=%s rows=%d", path, p.opts.TargetEntity, stats.TotalRows)
		return fail(result, types.FileSkippedNoTargetRows, types.ErrNoTargetEntityRows, nil)
	}

	source := types.Source{Path: path, TargetRows: stats.TargetRows, ModTime: file.ModTime}
	aggs, flagged := assemble.ByMunicipality(filtered, p.opts.ValidCodes, file.Period, source)
	for _, f := range flagged {
		p.appLogger.Warn(component, "Group with no valid responses not emitted: path=%s entity=%s municipality=%s", path, f.Entity, f.Municipality)
	}
	result.Aggregates = aggs
	result.Flagged = flagged
	result.Status = types.FileProcessed

	if err := output.WriteAggregates(outPath, aggs, p.opts.ValidCodes); err != nil {
		p.appLogger.Error(component, "Failed to write per-file table: path=%s output=%s error=%v", path, outPath, err)
		result.ErrMessage = err.Error()
		return result
	}
	result.OutputPath = outPath

	p.appLogger.Info(component, "File processed: path=%s period=%s targetRows=%d municipalities=%d", path, file.Period, stats.TargetRows, len(aggs))
	return result
}
