package remote

import (
	"context"
	"fmt"
	"io"

	"bls-go/internal/bls"
	"bls-go/internal/config"
	"bls-go/internal/model"
)

// NewRemoteFromConfig creates a Remote based on the remote config type.
func NewRemoteFromConfig(ctx context.Context, cfg config.RemoteConfig) (bls.Remote, error) {
	switch cfg.Type {
	case "api":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("api remote requires base_url to be set")
		}
		return NewAPIRemote(cfg.BaseURL, cfg.TokenPath, nil), nil
	case "s3":
		return NewS3Remote(ctx, cfg)
	case "memory":
		return NewMemoryRemote(cfg.QuotaBytes), nil
	case "none":
		return noneRemote{}, nil
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}

// noneRemote is the remote for offline setups. Every operation fails,
// so commands that need the cloud side say why instead of hanging.
type noneRemote struct{}

var errNoRemote = fmt.Errorf("no remote configured")

func (noneRemote) IssueUpload(ctx context.Context, req bls.UploadRequest) (*bls.UploadTicket, error) {
	return nil, errNoRemote
}

func (noneRemote) IssueDownload(ctx context.Context, fileKey string) (string, error) {
	return "", errNoRemote
}

func (noneRemote) StatObject(ctx context.Context, fileKey string) (int64, bool, error) {
	return 0, false, errNoRemote
}

func (noneRemote) Put(ctx context.Context, url string, r io.Reader, size int64, progress func(n int64)) error {
	return errNoRemote
}

func (noneRemote) Get(ctx context.Context, url string, w io.Writer, progress func(n int64)) error {
	return errNoRemote
}

func (noneRemote) PushBooks(ctx context.Context, books []model.Book) error { return errNoRemote }

func (noneRemote) PullBooks(ctx context.Context, since int64) ([]model.Book, error) {
	return nil, errNoRemote
}

func (noneRemote) PushConfigs(ctx context.Context, configs []model.BookConfig) error {
	return errNoRemote
}

func (noneRemote) PullConfigs(ctx context.Context, since int64) ([]model.BookConfig, error) {
	return nil, errNoRemote
}

func (noneRemote) PushNotes(ctx context.Context, notes []model.BookNote) error { return errNoRemote }

func (noneRemote) PullNotes(ctx context.Context, since int64) ([]model.BookNote, error) {
	return nil, errNoRemote
}

var _ bls.Remote = noneRemote{}
