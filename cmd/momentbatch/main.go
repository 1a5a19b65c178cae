// Command momentbatch transforms force/moment data files between configured
// coordinate frames and writes the results as CSV, one run per invocation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/least106/MomentTransfer/internal/batch"
	"github.com/least106/MomentTransfer/internal/config"
	"github.com/least106/MomentTransfer/internal/infrastructure"
	"github.com/least106/MomentTransfer/internal/transform"
	"github.com/least106/MomentTransfer/pkg/contracts"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "application config YAML (optional, MT_* env vars take precedence)")
		projectPath = flag.String("project", "", "project frame configuration JSON (required)")
		formatPath  = flag.String("format", "", "tabular format descriptor JSON")
		input       = flag.String("input", "", "input file or directory (required)")
		pattern     = flag.String("pattern", "", "file pattern for directory input, e.g. *.csv")
		output      = flag.String("output", "", "output directory (default: next to each input file)")
		reportPath  = flag.String("report", "", "write the run report as JSON to this path")

		sourcePart = flag.String("source", "", "source part name (default: inferred when unambiguous)")
		targetPart = flag.String("target", "", "target part name (default: inferred when unambiguous)")

		workers         = flag.Int("workers", 0, "worker goroutines (overrides config when > 0)")
		chunkSize       = flag.Int("chunksize", 0, "rows per processing chunk (overrides config when > 0)")
		overwrite       = flag.Bool("overwrite", false, "replace existing output files instead of suffixing")
		nameTemplate    = flag.String("name-template", "", "output name template with {stem} and {timestamp}")
		nonNumeric      = flag.String("non-numeric", "", "non-numeric cell policy: zero, keep or drop")
		continueOnError = flag.Bool("continue-on-error", false, "record failed files and keep going")
		dryRun          = flag.Bool("dry-run", false, "enumerate planned work without writing")
		logFile         = flag.String("log-file", "", "also write logs to this file")
		verbose         = flag.Bool("verbose", false, "debug logging")
		showVersion     = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetVersionString())
		return 0
	}

	if *projectPath == "" || *input == "" {
		fmt.Fprintln(os.Stderr, "momentbatch: -project and -input are required")
		flag.Usage()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *chunkSize > 0 {
		cfg.Batch.ChunkSize = *chunkSize
	}
	if *continueOnError {
		cfg.Batch.ContinueOnError = true
	}
	if *logFile != "" {
		cfg.Logging.FilePath = *logFile
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger, closeLog, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		slog.Error("cannot set up logging", slog.String("error", err.Error()))
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	project, err := config.LoadProject(*projectPath, logger)
	if err != nil {
		logger.Error("cannot load project configuration",
			slog.String("path", *projectPath),
			slog.String("error", err.Error()))
		return 1
	}

	var format *domain.TableFormat
	if *formatPath != "" {
		format, err = config.LoadFormat(*formatPath)
		if err != nil {
			logger.Error("cannot load format descriptor",
				slog.String("path", *formatPath),
				slog.String("error", err.Error()))
			return 1
		}
	}
	if format != nil {
		if *overwrite {
			format.Overwrite = true
		}
		if *nameTemplate != "" {
			format.NameTemplate = *nameTemplate
		}
		if *nonNumeric != "" {
			policy := domain.NonNumericPolicy(*nonNumeric)
			switch policy {
			case domain.NonNumericZero, domain.NonNumericKeep, domain.NonNumericDrop:
				format.NonNumeric = policy
			default:
				logger.Error("unknown non-numeric policy", slog.String("policy", *nonNumeric))
				return 1
			}
		}
	}

	orchestrator, err := batch.New(batch.Options{
		Project: project,
		Format:  format,
		Batch:   cfg.Batch,
		Selection: transform.Selection{
			SourcePart: *sourcePart,
			TargetPart: *targetPart,
		},
		OutputDir: *output,
		DryRun:    *dryRun,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("cannot build batch pipeline", slog.String("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := orchestrator.Run(ctx, *input, *pattern)
	if report != nil && *reportPath != "" {
		if err := writeReport(*reportPath, report); err != nil {
			logger.Error("cannot write run report",
				slog.String("path", *reportPath),
				slog.String("error", err.Error()))
			return 1
		}
	}

	if runErr != nil {
		logger.Error("batch aborted", slog.String("error", runErr.Error()))
		return 1
	}
	if report.FailedFiles > 0 {
		return 1
	}
	return 0
}

func writeReport(path string, report *domain.BatchReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
