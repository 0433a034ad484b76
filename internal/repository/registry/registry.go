package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jgivc/boundaryimporter/internal/adapter/multipart"
	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/jgivc/boundaryimporter/internal/util"
)

const (
	APIVersion      = "v1"
	PathInfos       = "/" + APIVersion + "/boundaries/infos"
	PathBoundaries  = "/" + APIVersion + "/boundaries"
	UploadFieldName = "file"

	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	defaultUploadTimeout = 2 * time.Minute
	defaultQueryTimeout  = 30 * time.Second
)

type boundaryRegistry struct {
	cl            *resty.Client
	uploadTimeout time.Duration
	queryTimeout  time.Duration
	log           *slog.Logger
}

func NewBoundaryRegistry(baseURL string, uploadTimeout, queryTimeout time.Duration, log *slog.Logger) *boundaryRegistry {
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}

	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}

	log = log.With(slog.String("item", "BoundaryRegistry"))

	cl := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetLogger(&restyLogger{log: log})

	return &boundaryRegistry{
		cl:            cl,
		uploadTimeout: uploadTimeout,
		queryTimeout:  queryTimeout,
		log:           log,
	}
}

// GetBoundaryInfos returns every boundary the registry already holds.
func (r *boundaryRegistry) GetBoundaryInfos(ctx context.Context) ([]*entity.BoundaryInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	resp, err := r.cl.R().
		SetContext(ctx).
		SetHeader("Accept", mimeJSON).
		Get(PathInfos)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot get boundary infos: %w", common.ErrRegistryUnavailable, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: registry responded with: %s", common.ErrRegistryUnavailable, resp.Status())
	}

	var infos []*entity.BoundaryInfo
	if err := json.Unmarshal(resp.Body(), &infos); err != nil {
		return nil, fmt.Errorf("%w: cannot decode boundary infos: %w", common.ErrRegistryUnavailable, err)
	}

	r.log.Debug("Got boundary infos", slog.Int("count", len(infos)))

	return infos, nil
}

// ImportBoundary uploads one boundary file. Anything but 200 OK is common.ErrUploadRejected.
func (r *boundaryRegistry) ImportBoundary(ctx context.Context, file *entity.TransferableFile) error {
	boundary, err := multipart.NewBoundary()
	if err != nil {
		return fmt.Errorf("cannot build upload request: %w", err)
	}

	body := multipart.Encode(UploadFieldName, file.Name(), file.Data(), boundary)

	ctx, cancel := context.WithTimeout(ctx, r.uploadTimeout)
	defer cancel()

	log := r.log.With(slog.String("file", file.Name()))
	log.Debug("Upload boundary", slog.Int("size", file.Size()), slog.String("sha1", util.Checksum(file.Data())))

	resp, err := r.cl.R().
		SetContext(ctx).
		SetHeader(headerContentType, multipart.ContentType(boundary)).
		SetBody(body).
		Post(PathBoundaries)
	if err != nil {
		return fmt.Errorf("cannot upload %s: %w", file.Name(), err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: %s: registry responded with: %s", common.ErrUploadRejected, file.Name(), resp.Status())
	}

	return nil
}

type restyLogger struct {
	log *slog.Logger
}

func (l *restyLogger) Errorf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *restyLogger) Warnf(format string, v ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *restyLogger) Debugf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
