package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyRun             = "run"              // HASH. run_id, times, counters and the markdown report of the last run
	KeyImported        = "imported"         // LIST. imported file names
	KeyAlreadyImported = "already_imported" // LIST. file names the registry already had
	KeyImportFailed    = "import_failed"    // LIST. file names that could not be imported
	KeyFailedArchives  = "failed_archives"  // LIST. archives that could not be processed

	KeySeparator = ":"

	defaultKeyPrefix = "boundary-importer:last-run"
)

var listKeys = []string{KeyImported, KeyAlreadyImported, KeyImportFailed, KeyFailedArchives}

type redisClient interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type reportRepository struct {
	cl     redisClient
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewReportRepository stores the last run report under prefix. A zero ttl keeps the keys forever.
func NewReportRepository(cl redisClient, prefix string, ttl time.Duration, log *slog.Logger) *reportRepository {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &reportRepository{
		cl:     cl,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With(slog.String("item", "ReportRepository")),
	}
}

// Publish replaces the previous run report.
func (r *reportRepository) Publish(ctx context.Context, outcome *entity.RunOutcome, markdown []byte) error {
	log := r.log.With(slog.String("op", "Publish"), slog.String("run_id", outcome.RunID))

	keys := make([]string, 0, len(listKeys)+1)
	keys = append(keys, getKey(r.prefix, KeyRun))
	for _, key := range listKeys {
		keys = append(keys, getKey(r.prefix, key))
	}

	if _, err := r.cl.Del(ctx, keys...).Result(); err != nil {
		return fmt.Errorf("cannot delete previous report: %w", err)
	}

	runKey := getKey(r.prefix, KeyRun)
	if _, err := r.cl.HSet(ctx, runKey,
		"run_id", outcome.RunID,
		"started_at", outcome.StartedAt.UTC().Format(time.RFC3339),
		"finished_at", outcome.FinishedAt.UTC().Format(time.RFC3339),
		"interrupted", outcome.Interrupted,
		"archives_found", outcome.ArchivesFound,
		"imported", len(outcome.Imported),
		"already_imported", len(outcome.AlreadyImported),
		"import_failed", len(outcome.ImportFailed),
		"failed_archives", len(outcome.FailedArchives),
		"markdown", string(markdown),
	).Result(); err != nil {
		return fmt.Errorf("cannot save run: %w", err)
	}

	lists := map[string][]string{
		KeyImported:        outcome.Imported,
		KeyAlreadyImported: outcome.AlreadyImported,
		KeyImportFailed:    outcome.ImportFailed,
		KeyFailedArchives:  outcome.FailedArchives,
	}

	written := []string{runKey}
	for _, key := range listKeys {
		names := lists[key]
		if len(names) == 0 {
			continue
		}

		values := make([]any, len(names))
		for i, name := range names {
			values[i] = name
		}

		listKey := getKey(r.prefix, key)
		if _, err := r.cl.RPush(ctx, listKey, values...).Result(); err != nil {
			return fmt.Errorf("cannot save %s list: %w", key, err)
		}

		written = append(written, listKey)
	}

	if r.ttl > 0 {
		for _, key := range written {
			if _, err := r.cl.Expire(ctx, key, r.ttl).Result(); err != nil {
				return fmt.Errorf("cannot set %s expiration: %w", key, err)
			}
		}
	}

	log.Info("Report published", slog.Int("keys", len(written)))

	return nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
