package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/farxc/ensu_insecurity/internal/db"
	"github.com/farxc/ensu_insecurity/internal/ensu"
	"github.com/farxc/ensu_insecurity/internal/ensu/fetch"
	"github.com/farxc/ensu_insecurity/internal/ensu/load"
	"github.com/farxc/ensu_insecurity/internal/ensu/schema"
	"github.com/farxc/ensu_insecurity/internal/ensu/utils"
	"github.com/farxc/ensu_insecurity/internal/env"
	"github.com/farxc/ensu_insecurity/internal/logger"
	"github.com/farxc/ensu_insecurity/internal/store"
)

type config struct {
	db       dbConfig
	opts     ensu.Options
	fetch    []string
	persist  bool
	logLevel string
	logFile  string
}

type dbConfig struct {
	addr         string
	maxOpenConns int
	maxIdleConns int
	maxIdleTime  string
}

// parseConfig reads flags over environment defaults. Flags win.
func parseConfig(args []string) (config, error) {
	defaults := ensu.DefaultOptions()

	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	rootPtr := fs.String("root", env.GetString("ENSU_ROOT", defaults.RootDir), "Root directory scanned for survey CSVs")
	outPtr := fs.String("out", env.GetString("ENSU_OUTPUT", defaults.OutputDir), "Output directory")
	entityPtr := fs.String("entity", env.GetString("ENSU_ENTITY", defaults.TargetEntity), "Target federal entity")
	codesPtr := fs.String("codes", env.GetString("ENSU_CODES", "1,2,9"), "Comma-separated list of valid response codes")
	aliasesPtr := fs.String("aliases", env.GetString("ENSU_ALIASES", ""), "YAML file with extra column aliases")
	encodingPtr := fs.String("encoding", env.GetString("ENSU_ENCODING", defaults.FallbackEncoding), "Fallback encoding for non UTF-8 files")
	patternPtr := fs.String("pattern", env.GetString("ENSU_PATTERN", defaults.PathPattern), "Regular expression a relative path must match")
	namePtr := fs.String("name", env.GetString("ENSU_CONSOLIDATED_NAME", defaults.ConsolidatedName), "Consolidated table file name")
	workersPtr := fs.Int("workers", env.GetInt("ENSU_WORKERS", defaults.Workers), "Files processed concurrently")
	skipPtr := fs.Bool("skip-existing", env.GetBool("ENSU_SKIP_EXISTING", false), "Keep per-file outputs that already exist")
	xlsxPtr := fs.Bool("xlsx", env.GetBool("ENSU_XLSX", false), "Also write the consolidated workbook")
	fetchPtr := fs.String("fetch", strings.Join(env.GetList("ENSU_FETCH_URLS", nil), ","), "Comma-separated survey archive URLs downloaded into the root before the run")
	persistPtr := fs.Bool("persist", env.GetBool("ENSU_PERSIST", false), "Load the consolidated records into Postgres")
	logLevelPtr := fs.String("loglevel", env.GetString("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	logFilePtr := fs.String("logfile", env.GetString("LOG_FILE", ""), "Also append logs to this file")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	codes, err := utils.ParseCodes(*codesPtr)
	if err != nil {
		return config{}, err
	}

	aliases := defaults.Aliases
	if *aliasesPtr != "" {
		if aliases, err = schema.LoadAliases(*aliasesPtr); err != nil {
			return config{}, err
		}
	}

	opts := defaults
	opts.RootDir = *rootPtr
	opts.OutputDir = *outPtr
	opts.TargetEntity = *entityPtr
	opts.ValidCodes = codes
	opts.Aliases = aliases
	opts.FallbackEncoding = *encodingPtr
	opts.PathPattern = *patternPtr
	opts.ConsolidatedName = *namePtr
	opts.Workers = *workersPtr
	opts.SkipExisting = *skipPtr
	opts.WriteWorkbook = *xlsxPtr

	return config{
		db: dbConfig{
			addr:         env.GetString("DB_ADDR", ""),
			maxOpenConns: env.GetInt("DB_MAX_OPEN_CONNS", 25),
			maxIdleConns: env.GetInt("DB_MAX_IDLE_CONNS", 25),
			maxIdleTime:  env.GetString("DB_MAX_IDLE_TIME", "15m"),
		},
		opts:     opts,
		fetch:    splitList(*fetchPtr),
		persist:  *persistPtr,
		logLevel: *logLevelPtr,
		logFile:  *logFilePtr,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func persist(ctx context.Context, cfg config, report ensu.Report, appLogger *logger.Logger) error {
	const component = "Persist"
	if cfg.db.addr == "" {
		return errors.New("DB_ADDR is not set")
	}

	database, err := db.New(cfg.db.addr, cfg.db.maxOpenConns, cfg.db.maxIdleConns, cfg.db.maxIdleTime)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close()
	appLogger.Info(component, "Database connection pool established")

	if err := store.Migrate(ctx, database); err != nil {
		return err
	}

	storage := store.NewStorage(database)
	_, err = load.LoadResult(ctx, report.Consolidated, report.Summary, storage, appLogger)
	return err
}

func main() {
	const component = "Main"

	log.SetFlags(0)
	appLogger := &logger.Logger{MinLevel: logger.LevelInfo}

	if err := env.Load(); err != nil {
		appLogger.Warn(component, "Failed to load .env: error=%v", err)
	}

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		appLogger.Fatal(component, "Invalid configuration: error=%v", err)
	}
	appLogger.SetLogLevel(logger.ParseLevel(cfg.logLevel))

	if cfg.logFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.logFile), os.ModePerm); err != nil {
			appLogger.Fatal(component, "Failed to create log directory: error=%v", err)
		}
		f, err := os.OpenFile(cfg.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			appLogger.Fatal(component, "Failed to open log file: path=%s error=%v", cfg.logFile, err)
		}
		defer f.Close()
		appLogger.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	monitor := NewMonitor()
	monitor.Start(400*time.Millisecond, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startingTime := time.Now()
	appLogger.Info(component, "Application starting: root=%s output=%s entity=%s codes=%s logLevel=%s",
		cfg.opts.RootDir, cfg.opts.OutputDir, cfg.opts.TargetEntity, strings.Trim(fmt.Sprint(cfg.opts.ValidCodes), "[]"), cfg.logLevel)

	if len(cfg.fetch) > 0 {
		if err := os.MkdirAll(cfg.opts.RootDir, os.ModePerm); err != nil {
			appLogger.Fatal(component, "Failed to create root directory: error=%v", err)
		}
		cacheDir := filepath.Join(cfg.opts.OutputDir, "tmp", "zips")
		if _, failed := fetch.FetchAll(ctx, fetch.DefaultClient, cfg.fetch, cacheDir, cfg.opts.RootDir, appLogger); failed > 0 {
			appLogger.Warn(component, "Some downloads failed, continuing with the files on disk: failed=%d", failed)
		}
	}

	report, err := ensu.Run(ctx, cfg.opts, appLogger)
	if err != nil {
		monitor.Stop()
		appLogger.Fatal(component, "Run failed: error=%v", err)
	}

	if cfg.persist {
		if err := persist(ctx, cfg, report, appLogger); err != nil {
			appLogger.Error(component, "Persisting results failed, CSV outputs are unaffected: error=%v", err)
		}
	}

	stats := monitor.Stop()
	appLogger.Info(component, "Application completed: duration=%.2f seconds peakGoroutines=%d peakMemoryMB=%d",
		time.Since(startingTime).Seconds(), stats.PeakGoroutines, stats.PeakMemoryMB)
}
