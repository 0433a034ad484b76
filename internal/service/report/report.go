package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/spf13/afero"
)

const (
	serviceName = "report"

	summaryHeader = "===== JOB EXECUTION SUMMARY ====="
	summaryFooter = "================================="
)

// Publisher keeps the last run report somewhere outside the process. It is never read back by the job.
type Publisher interface {
	Publish(ctx context.Context, outcome *entity.RunOutcome, markdown []byte) error
}

type Options struct {
	MarkdownFile string
	HTMLFile     string
}

type reportService struct {
	fs        afero.Fs
	opts      Options
	publisher Publisher
	log       *slog.Logger
}

// NewReportService creates the run reporter. publisher may be nil.
func NewReportService(fs afero.Fs, opts Options, publisher Publisher, log *slog.Logger) *reportService {
	return &reportService{
		fs:        fs,
		opts:      opts,
		publisher: publisher,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// Report logs the run summary and writes the configured reports. Report failures are logged
// and returned joined, they never change the outcome.
func (r *reportService) Report(ctx context.Context, outcome *entity.RunOutcome) error {
	r.logSummary(outcome)

	if r.opts.MarkdownFile == "" && r.opts.HTMLFile == "" && r.publisher == nil {
		return nil
	}

	md, err := Markdown(outcome)
	if err != nil {
		r.log.Error("Cannot build markdown report", slog.Any("error", err))

		return fmt.Errorf("cannot build markdown report: %w", err)
	}

	var errs []error

	if r.opts.MarkdownFile != "" {
		if err := r.write(r.opts.MarkdownFile, md); err != nil {
			errs = append(errs, err)
		}
	}

	if r.opts.HTMLFile != "" {
		page, err := RenderHTML(md)
		if err != nil {
			r.log.Error("Cannot render html report", slog.Any("error", err))
			errs = append(errs, fmt.Errorf("cannot render html report: %w", err))
		} else if err := r.write(r.opts.HTMLFile, page); err != nil {
			errs = append(errs, err)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, outcome, md); err != nil {
			r.log.Error("Cannot publish report", slog.Any("error", err))
			errs = append(errs, fmt.Errorf("cannot publish report: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (r *reportService) logSummary(outcome *entity.RunOutcome) {
	log := r.log.With(slog.String("run_id", outcome.RunID))

	log.Info(summaryHeader)
	if outcome.Interrupted {
		log.Info("Run was interrupted, the summary is partial")
	}
	log.Info(fmt.Sprintf("%d archives found", outcome.ArchivesFound))
	log.Info(fmt.Sprintf("%d files already imported", len(outcome.AlreadyImported)))
	log.Info(fmt.Sprintf("%d files successfully imported", len(outcome.Imported)))
	for _, f := range outcome.Imported {
		log.Info(fmt.Sprintf("File '%s' successfully imported", f))
	}
	log.Info(fmt.Sprintf("%d files import failed", len(outcome.ImportFailed)))
	for _, f := range outcome.ImportFailed {
		log.Info(fmt.Sprintf("File '%s' import failed !!", f))
	}
	for _, a := range outcome.FailedArchives {
		log.Info(fmt.Sprintf("Archive '%s' could not be processed", a))
	}
	log.Info(summaryFooter, slog.Duration("duration", outcome.Duration()))
}

func (r *reportService) write(fileName string, data []byte) error {
	if err := r.fs.MkdirAll(filepath.Dir(fileName), 0o755); err != nil {
		r.log.Error("Cannot create report dir", slog.String("file", fileName), slog.Any("error", err))

		return fmt.Errorf("cannot create report dir: %w", err)
	}

	if err := afero.WriteFile(r.fs, fileName, data, 0o644); err != nil {
		r.log.Error("Cannot write report", slog.String("file", fileName), slog.Any("error", err))

		return fmt.Errorf("cannot write report %s: %w", fileName, err)
	}

	r.log.Info("Report written", slog.String("file", fileName))

	return nil
}
