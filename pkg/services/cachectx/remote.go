package cachectx

import (
	"context"
	"io"
	"time"

	"google.golang.org/genai"
)

// Remote is the file and cache surface of the hosted model service
type Remote interface {
	Upload(ctx context.Context, r io.Reader, mimeType, displayName string) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	CreateCache(ctx context.Context, model string, cfg *genai.CreateCachedContentConfig) (*genai.CachedContent, error)
	Updater
}

// Updater extends the expiry of a cached content
type Updater interface {
	UpdateCache(ctx context.Context, name string, ttl time.Duration) error
}

type genaiRemote struct {
	cli *genai.Client
}

// NewRemote wraps a genai client
func NewRemote(cli *genai.Client) Remote {
	return &genaiRemote{cli: cli}
}

func (r *genaiRemote) Upload(ctx context.Context, rd io.Reader, mimeType, displayName string) (*genai.File, error) {
	return r.cli.Files.Upload(ctx, rd, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
}

func (r *genaiRemote) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return r.cli.Files.Get(ctx, name, nil)
}

func (r *genaiRemote) CreateCache(ctx context.Context, model string, cfg *genai.CreateCachedContentConfig) (*genai.CachedContent, error) {
	return r.cli.Caches.Create(ctx, model, cfg)
}

func (r *genaiRemote) UpdateCache(ctx context.Context, name string, ttl time.Duration) error {
	_, err := r.cli.Caches.Update(ctx, name, &genai.UpdateCachedContentConfig{TTL: ttl})
	return err
}
