package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/boundaryimporter/internal/adapter/modelheader"
	"github.com/jgivc/boundaryimporter/internal/archive"
	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/jgivc/boundaryimporter/internal/naming"
)

type Source interface {
	List(ctx context.Context, dir string) ([]entity.RemoteFile, error)
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

type Registry interface {
	GetBoundaryInfos(ctx context.Context) ([]*entity.BoundaryInfo, error)
	ImportBoundary(ctx context.Context, file *entity.TransferableFile) error
}

type Options struct {
	Directory string
	Limits    archive.Limits
	// TrackImported remembers identifiers imported during the run, so a boundary found
	// in two archives of the same run is uploaded once.
	TrackImported bool
}

type memberStatus int

const (
	statusImported memberStatus = iota
	statusAlreadyImported
	statusImportFailed
)

type memberResult struct {
	name   string
	status memberStatus
}

type AcquisitionService struct {
	src      Source
	registry Registry
	opts     Options
	newRunID func() string
	now      func() time.Time
	log      *slog.Logger
}

func NewAcquisitionService(src Source, registry Registry, opts Options, log *slog.Logger) *AcquisitionService {
	if opts.Limits.MaxEntries < 1 || opts.Limits.MaxTotalBytes < 1 {
		opts.Limits = archive.DefaultLimits
	}

	return &AcquisitionService{
		src:      src,
		registry: registry,
		opts:     opts,
		newRunID: uuid.NewString,
		now:      time.Now,
		log:      log.With(slog.String("item", "AcquisitionService")),
	}
}

// Run performs one acquisition pass. The returned outcome is never nil, even on error.
// When ctx is cancelled the run stops between two remote calls and the error is common.ErrInterrupted.
func (s *AcquisitionService) Run(ctx context.Context) (*entity.RunOutcome, error) {
	outcome := entity.NewRunOutcome(s.newRunID(), s.now())
	defer func() {
		outcome.FinishedAt = s.now()
	}()

	log := s.log.With(slog.String("run_id", outcome.RunID))
	log.Info("Start acquisition", slog.String("directory", s.opts.Directory))

	archives, err := s.listArchives(ctx, log)
	if err != nil {
		if ctx.Err() != nil {
			return outcome, s.interrupted(outcome, log)
		}

		log.Error("Cannot list archives", slog.Any("error", err))

		return outcome, fmt.Errorf("cannot list archives: %w", err)
	}

	outcome.ArchivesFound = len(archives)

	if len(archives) == 0 {
		log.Info("No boundary archives found")

		return outcome, nil
	}

	known := s.fetchKnown(ctx, log)

	for _, file := range archives {
		if ctx.Err() != nil {
			return outcome, s.interrupted(outcome, log)
		}

		alog := log.With(slog.String("archive", file.Name))

		err := s.processArchive(ctx, file, known, outcome, alog)
		if err == nil {
			continue
		}

		if errors.Is(err, common.ErrInterrupted) || ctx.Err() != nil {
			return outcome, s.interrupted(outcome, log)
		}

		alog.Error("Cannot process archive", slog.Any("error", err))
		outcome.AddFailedArchive(file.Name)
	}

	log.Info("Acquisition done",
		slog.Int("imported", len(outcome.Imported)),
		slog.Int("already_imported", len(outcome.AlreadyImported)),
		slog.Int("import_failed", len(outcome.ImportFailed)),
		slog.Int("failed_archives", len(outcome.FailedArchives)))

	return outcome, nil
}

func (s *AcquisitionService) interrupted(outcome *entity.RunOutcome, log *slog.Logger) error {
	outcome.Interrupted = true
	log.Warn("Acquisition interrupted")

	return common.ErrInterrupted
}

// listArchives keeps the entries whose names follow the boundary archive convention, in listing order.
func (s *AcquisitionService) listArchives(ctx context.Context, log *slog.Logger) ([]entity.RemoteFile, error) {
	files, err := s.src.List(ctx, s.opts.Directory)
	if err != nil {
		return nil, err
	}

	archives := make([]entity.RemoteFile, 0, len(files))
	for _, file := range files {
		if !naming.IsValidArchiveName(file.Name) {
			log.Debug("Skip file", slog.String("name", file.Name))

			continue
		}

		archives = append(archives, file)
	}

	log.Info("Found boundary archives", slog.Int("listed", len(files)), slog.Int("count", len(archives)))

	return archives, nil
}

// fetchKnown falls back to an empty set when the registry cannot be queried.
func (s *AcquisitionService) fetchKnown(ctx context.Context, log *slog.Logger) *KnownSet {
	infos, err := s.registry.GetBoundaryInfos(ctx)
	if err != nil {
		log.Warn("Cannot get imported boundaries, assume none", slog.Any("error", err))

		return NewKnownSet(nil)
	}

	known := NewKnownSet(infos)
	log.Info("Got imported boundaries", slog.Int("count", known.Len()))

	return known
}

func (s *AcquisitionService) processArchive(ctx context.Context, file entity.RemoteFile, known *KnownSet,
	outcome *entity.RunOutcome, log *slog.Logger) error {
	data, err := s.src.Fetch(ctx, file.Locator)
	if err != nil {
		return fmt.Errorf("cannot fetch archive: %w", err)
	}

	log.Debug("Fetched archive", slog.Int("size", len(data)))

	r, err := archive.OpenBytes(data, s.opts.Limits)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		entryName, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}

		name := naming.BaseName(entryName)

		kind := naming.ClassifyMember(name)
		if kind == naming.MemberIgnored {
			continue
		}

		content, err := r.ReadAll()
		if err != nil {
			return fmt.Errorf("cannot read member %s: %w", entryName, err)
		}

		res, err := s.processMember(ctx, entity.NewTransferableFile(name, content), kind, known, log)
		if err != nil {
			return err
		}

		switch res.status {
		case statusImported:
			outcome.AddImported(res.name)
		case statusAlreadyImported:
			outcome.AddAlreadyImported(res.name)
		case statusImportFailed:
			outcome.AddImportFailed(res.name)
		}
	}

	log.Info("Archive processed", slog.Int("entries", r.Entries()), slog.Int64("bytes", r.TotalBytes()))

	return nil
}

// processMember only returns an error when the run is interrupted.
func (s *AcquisitionService) processMember(ctx context.Context, file *entity.TransferableFile, kind naming.MemberKind,
	known *KnownSet, log *slog.Logger) (memberResult, error) {
	log = log.With(slog.String("file", file.Name()), slog.String("kind", kind.String()))

	id, err := modelheader.ExtractID(file.Data())
	if err != nil {
		log.Error("Cannot read model header", slog.Any("error", err))

		return memberResult{name: file.Name(), status: statusImportFailed}, nil
	}

	log = log.With(slog.String("id", id))

	if known.Decide(id) == DecisionAlreadyPresent {
		log.Info("Boundary already imported")

		return memberResult{name: file.Name(), status: statusAlreadyImported}, nil
	}

	if ctx.Err() != nil {
		return memberResult{}, common.ErrInterrupted
	}

	if err := s.registry.ImportBoundary(ctx, file); err != nil {
		if ctx.Err() != nil {
			return memberResult{}, common.ErrInterrupted
		}

		log.Error("Cannot import boundary", slog.Any("error", err))

		return memberResult{name: file.Name(), status: statusImportFailed}, nil
	}

	if s.opts.TrackImported {
		known.Remember(id)
	}

	log.Info("Boundary imported", slog.Int("size", file.Size()))

	return memberResult{name: file.Name(), status: statusImported}, nil
}
