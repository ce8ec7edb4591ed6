package ensu

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/farxc/ensu_insecurity/internal/ensu/consolidate"
	"github.com/farxc/ensu_insecurity/internal/ensu/files"
	"github.com/farxc/ensu_insecurity/internal/ensu/output"
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/logger"
	"github.com/google/uuid"
)

type FileJob struct {
	Path string
}

// Orchestrator fans file jobs out to a fixed pool of workers. Files share no mutable state,
// so results only meet again in the collector.
type Orchestrator struct {
	processor *Processor
	appLogger *logger.Logger

	maxConcurrency int

	wg sync.WaitGroup

	jobChan    chan FileJob
	resultChan chan types.FileResult
}

func NewOrchestrator(processor *Processor, appLogger *logger.Logger, concurrency, buffer int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		processor:      processor,
		appLogger:      appLogger,
		maxConcurrency: concurrency,
		jobChan:        make(chan FileJob, buffer),
		resultChan:     make(chan types.FileResult, buffer),
	}
}

func (o *Orchestrator) Start(ctx context.Context) {
	const component = "Orchestrator"
	o.appLogger.Info(component, "Starting orchestrator: concurrency=%d", o.maxConcurrency)

	for i := 0; i < o.maxConcurrency; i++ {
		o.wg.Add(1)
		go o.worker(ctx, &o.wg)
	}
}

func (o *Orchestrator) AddJob(job FileJob) {
	o.jobChan <- job
}

func (o *Orchestrator) Close() {
	close(o.jobChan)
}

// Wait blocks until every worker is done and then closes the results channel.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
	close(o.resultChan)
}

func (o *Orchestrator) Results() <-chan types.FileResult {
	return o.resultChan
}

func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup) {
	const component = "Worker"
	defer wg.Done()

	for job := range o.jobChan {
		if ctx.Err() != nil {
			o.appLogger.Debug(component, "Context done, dropping job: path=%s", job.Path)
			continue
		}
		o.appLogger.Debug(component, "Processing job: path=%s", job.Path)
		o.resultChan <- o.processor.ProcessFile(job.Path)
	}
}

// Report is everything a run produced.
type Report struct {
	Summary      types.RunSummary
	Consolidated consolidate.Result
	Dataset      consolidate.Stats
}

func tally(summary *types.RunSummary, r types.FileResult) {
	switch r.Status {
	case types.FileProcessed:
		summary.Processed++
	case types.FileKept:
		summary.Kept++
	case types.FileSkippedUnreadable:
		summary.SkippedUnreadable++
	case types.FileSkippedMissingColumns:
		summary.SkippedMissingColumns++
	case types.FileSkippedNoTargetRows:
		summary.SkippedNoTargetRows++
	}
	if (r.Status == types.FileProcessed || r.Status == types.FileKept) && !r.File.Period.Identified {
		summary.UnidentifiedPeriods++
	}
	summary.InvalidResponses += r.Stats.InvalidCode
	summary.FlaggedGroups += len(r.Flagged)
}

// Run executes the whole pipeline. Per-file failures are recorded in the summary and the
// run goes on; only invalid options, a missing root, cancellation or a failure to write the
// consolidated table end it with an error.
func Run(ctx context.Context, opts Options, appLogger *logger.Logger) (Report, error) {
	const component = "Pipeline"

	if err := opts.Validate(); err != nil {
		return Report{}, err
	}

	report := Report{Summary: types.RunSummary{RunID: uuid.NewString(), StartedAt: time.Now()}}
	appLogger.Info(component, "Run started: runID=%s root=%s output=%s target=%s codes=%v workers=%d",
		report.Summary.RunID, opts.RootDir, opts.OutputDir, opts.TargetEntity, opts.ValidCodes, opts.Workers)

	discoverOpts := files.DiscoverOptions{SkipDirs: []string{opts.OutputDir}}
	if opts.PathPattern != "" {
		discoverOpts.Pattern = regexp.MustCompile(opts.PathPattern)
	}
	paths, err := files.Discover(opts.RootDir, discoverOpts, appLogger)
	if err != nil {
		return Report{}, err
	}
	paths = files.ExpandArchives(paths, filepath.Join(opts.OutputDir, "tmp", "extracted"), appLogger)
	report.Summary.Discovered = len(paths)

	processor, err := NewProcessor(opts, appLogger)
	if err != nil {
		return Report{}, err
	}

	orchestrator := NewOrchestrator(processor, appLogger, opts.Workers, len(paths))
	orchestrator.Start(ctx)
	go func() {
		defer orchestrator.Close()
		for _, p := range paths {
			if ctx.Err() != nil {
				return
			}
			orchestrator.AddJob(FileJob{Path: p})
		}
	}()
	go orchestrator.Wait()

	results := make([]types.FileResult, 0, len(paths))
	for r := range orchestrator.Results() {
		results = append(results, r)
	}
	if err := ctx.Err(); err != nil {
		appLogger.Warn(component, "Run cancelled: runID=%s processedFiles=%d", report.Summary.RunID, len(results))
		return Report{}, err
	}

	// Workers finish in any order; the report follows discovery order.
	sort.Slice(results, func(i, j int) bool { return results[i].File.Path < results[j].File.Path })

	var aggregates []types.MunicipalityAggregate
	for _, r := range results {
		tally(&report.Summary, r)
		aggregates = append(aggregates, r.Aggregates...)
	}
	report.Summary.Files = results

	report.Consolidated = consolidate.Consolidate(aggregates, appLogger)
	report.Summary.DuplicatesResolved = len(report.Consolidated.Superseded)
	report.Summary.ConsolidatedRows = len(report.Consolidated.Records)
	report.Dataset = consolidate.Summarize(report.Consolidated.Records, opts.ValidCodes)

	consolidatedPath := filepath.Join(opts.OutputDir, opts.ConsolidatedName)
	if err := output.WriteAggregates(consolidatedPath, report.Consolidated.Records, opts.ValidCodes); err != nil {
		return Report{}, fmt.Errorf("%w: %v", types.ErrConsolidationOutput, err)
	}
	report.Summary.ConsolidatedPath = consolidatedPath

	if opts.WriteWorkbook {
		xlsxPath := consolidatedPath[:len(consolidatedPath)-len(filepath.Ext(consolidatedPath))] + ".xlsx"
		if err := output.WriteWorkbook(xlsxPath, report.Consolidated.Records, report.Consolidated.Superseded, opts.ValidCodes); err != nil {
			appLogger.Error(component, "Failed to write workbook: path=%s error=%v", xlsxPath, err)
		}
	}

	report.Summary.FinishedAt = time.Now()
	if err := output.WriteInventory(output.InventoryPath(opts.OutputDir), report.Summary, report.Dataset); err != nil {
		appLogger.Error(component, "Failed to write inventory: error=%v", err)
	}

	LogSummary(report.Summary, appLogger)
	return report, nil
}

// LogSummary prints the end-of-run counters.
func LogSummary(s types.RunSummary, appLogger *logger.Logger) {
	const component = "Summary"
	appLogger.Info(component, "runID=%s discovered=%d processed=%d kept=%d skippedMissingColumns=%d skippedNoTargetRows=%d skippedUnreadable=%d duplicatesResolved=%d",
		s.RunID, s.Discovered, s.Processed, s.Kept, s.SkippedMissingColumns, s.SkippedNoTargetRows, s.SkippedUnreadable, s.DuplicatesResolved)
	appLogger.Info(component, "unidentifiedPeriods=%d invalidResponses=%d flaggedGroups=%d consolidatedRows=%d output=%s duration=%s",
		s.UnidentifiedPeriods, s.InvalidResponses, s.FlaggedGroups, s.ConsolidatedRows, s.ConsolidatedPath, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	for _, f := range s.Files {
		if f.Err != nil && !errors.Is(f.Err, types.ErrNoTargetEntityRows) {
			appLogger.Warn(component, "file=%s status=%s error=%s", f.File.Path, f.Status, f.ErrMessage)
		}
	}
}
