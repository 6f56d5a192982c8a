package cachectx

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/liut/showroom/pkg/models/aigc"
)

type fakeRemote struct {
	mu         sync.Mutex
	processing int // polls before active
	failed     bool
	getErr     error
	uploaded   []byte
	created    *genai.CreateCachedContentConfig
	model      string
	updates    []string
	updateErr  error
}

func (r *fakeRemote) Upload(ctx context.Context, rd io.Reader, mimeType, displayName string) (*genai.File, error) {
	b, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	r.uploaded = b
	return &genai.File{Name: "files/ref1", URI: "https://example.test/files/ref1", MIMEType: mimeType, State: genai.FileStateProcessing}, nil
}

func (r *fakeRemote) GetFile(ctx context.Context, name string) (*genai.File, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	f := &genai.File{Name: name, URI: "https://example.test/files/ref1", MIMEType: mimeCSV}
	switch {
	case r.failed:
		f.State = genai.FileStateFailed
	case r.processing > 0:
		r.processing--
		f.State = genai.FileStateProcessing
	default:
		f.State = genai.FileStateActive
	}
	return f, nil
}

func (r *fakeRemote) CreateCache(ctx context.Context, model string, cfg *genai.CreateCachedContentConfig) (*genai.CachedContent, error) {
	r.model = model
	r.created = cfg
	return &genai.CachedContent{Name: "cachedContents/xyz", Model: model}, nil
}

func (r *fakeRemote) UpdateCache(ctx context.Context, name string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, name)
	return r.updateErr
}

func (r *fakeRemote) updated() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func writeCSV(t *testing.T) string {
	name := filepath.Join(t.TempDir(), "ioniq5.csv")
	require.NoError(t, os.WriteFile(name, []byte("feature,value\nRange,507 km\nCharging,18 min 10-80%\n"), 0o600))
	return name
}

func TestCachedStart(t *testing.T) {
	rm := &fakeRemote{processing: 2}
	c := NewCached(rm, aigc.Preset{
		Instruction: "You are a sales consultant.",
		Model:       "models/gemini-2.0-flash-001",
		Reference:   writeCSV(t),
		DisplayName: "sales_data",
	}, time.Second)
	c.pollEvery = time.Millisecond

	require.NoError(t, c.Start(context.Background()))
	select {
	case <-c.Ready():
	default:
		t.Fatal("not ready")
	}
	assert.Equal(t, "cachedContents/xyz", c.Name())
	assert.Empty(t, c.System())
	assert.NoError(t, c.Err())
	assert.Contains(t, string(rm.uploaded), "Range,507 km")

	require.NotNil(t, rm.created)
	assert.Equal(t, "models/gemini-2.0-flash-001", rm.model)
	assert.Equal(t, "sales_data", rm.created.DisplayName)
	assert.Equal(t, aigc.DefaultTTL, rm.created.TTL)
	require.NotNil(t, rm.created.SystemInstruction)
	assert.Equal(t, "You are a sales consultant.", rm.created.SystemInstruction.Parts[0].Text)
	require.Len(t, rm.created.Contents, 1)
	require.NotNil(t, rm.created.Contents[0].Parts[0].FileData)
	assert.Equal(t, "https://example.test/files/ref1", rm.created.Contents[0].Parts[0].FileData.FileURI)
}

func TestCachedUploadTimeout(t *testing.T) {
	rm := &fakeRemote{processing: 1 << 20}
	c := NewCached(rm, aigc.Preset{Model: "m", Reference: writeCSV(t)}, time.Millisecond*20)
	c.pollEvery = time.Millisecond

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrUploadTimeout)
	assert.ErrorIs(t, c.Err(), ErrUploadTimeout)
	assert.Nil(t, rm.created)
	select {
	case <-c.Ready():
		t.Fatal("should not be ready")
	default:
	}
}

func TestCachedUploadTimeoutOnGetError(t *testing.T) {
	unavailable := errors.New("503 backend unavailable")
	rm := &fakeRemote{getErr: unavailable}
	c := NewCached(rm, aigc.Preset{Model: "m", Reference: writeCSV(t)}, time.Millisecond*50)
	c.pollEvery = time.Millisecond

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrUploadTimeout)
	assert.ErrorIs(t, err, unavailable)
	assert.Nil(t, rm.created)
}

func TestCachedUploadCanceled(t *testing.T) {
	rm := &fakeRemote{processing: 1 << 20}
	c := NewCached(rm, aigc.Preset{Model: "m", Reference: writeCSV(t)}, 0)
	c.pollEvery = time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
	defer cancel()

	err := c.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrUploadTimeout)
}

func TestCachedUploadFailed(t *testing.T) {
	rm := &fakeRemote{failed: true}
	c := NewCached(rm, aigc.Preset{Model: "m", Reference: writeCSV(t)}, time.Second)
	c.pollEvery = time.Millisecond
	assert.ErrorIs(t, c.Start(context.Background()), ErrUploadFailed)
}

func TestCachedNoReference(t *testing.T) {
	rm := &fakeRemote{}
	c := NewCached(rm, aigc.Preset{Model: "m", Instruction: "hi"}, time.Second)
	require.NoError(t, c.Start(context.Background()))
	assert.Nil(t, rm.uploaded)
	assert.Empty(t, rm.created.Contents)
}

func TestInlineStart(t *testing.T) {
	c := NewInline(aigc.Preset{Instruction: "You are a sales consultant.", Reference: writeCSV(t)})
	require.NoError(t, c.Start(context.Background()))
	<-c.Ready()
	assert.Empty(t, c.Name())
	assert.Contains(t, c.System(), "You are a sales consultant.\n\nReference:\n### Range\n- value: 507 km")
}

func TestInlineMissingReference(t *testing.T) {
	c := NewInline(aigc.Preset{Reference: filepath.Join(t.TempDir(), "nope.csv")})
	assert.Error(t, c.Start(context.Background()))
	assert.Error(t, c.Err())
}

func TestRefresher(t *testing.T) {
	rm := &fakeRemote{updateErr: errors.New("quota")}
	r := NewRefresher(rm, "cachedContents/xyz", time.Hour, time.Millisecond*5)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return rm.updated() >= 2 }, time.Second, time.Millisecond*5)
	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, "cachedContents/xyz", rm.updates[0])
}

func TestRefresherNoName(t *testing.T) {
	r := NewRefresher(&fakeRemote{}, "", time.Hour, 0)
	assert.NoError(t, r.Run(context.Background()))
}
