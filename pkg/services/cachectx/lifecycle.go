// Package cachectx prepares the context attached to every generation call:
// the fixed instruction text plus an uploaded reference document.
package cachectx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"

	"github.com/liut/showroom/pkg/models/aigc"
)

const (
	dftPollEvery = time.Second * 2
)

// errors
var (
	ErrUploadTimeout = errors.New("upload processing timeout")
	ErrUploadFailed  = errors.New("upload processing failed")

	errProcessing = errors.New("file still processing")
)

// Lifecycle prepares a context and signals readiness
type Lifecycle interface {
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	Name() string
	System() string
	Err() error
}

type state struct {
	ready chan struct{}
	once  sync.Once
	mu    sync.RWMutex
	err   error
}

func (s *state) Ready() <-chan struct{} { return s.ready }

func (s *state) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *state) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *state) markReady() {
	s.once.Do(func() { close(s.ready) })
}

// Cached keeps instruction and reference in a remote cached content
type Cached struct {
	state

	rm            Remote
	preset        aigc.Preset
	uploadTimeout time.Duration
	pollEvery     time.Duration

	name string
}

var _ Lifecycle = (*Cached)(nil)

// NewCached ...
func NewCached(rm Remote, preset aigc.Preset, uploadTimeout time.Duration) *Cached {
	preset.SetDefaults()
	return &Cached{
		state:         state{ready: make(chan struct{})},
		rm:            rm,
		preset:        preset,
		uploadTimeout: uploadTimeout,
		pollEvery:     dftPollEvery,
	}
}

// Name of the cached content, valid after ready
func (c *Cached) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// System is empty, the instruction lives in the cache
func (c *Cached) System() string { return "" }

// Start uploads the reference, waits for processing and creates the cache
func (c *Cached) Start(ctx context.Context) error {
	err := c.start(ctx)
	if err != nil {
		logger().Warnw("prepare cached context fail", "err", err)
		c.setErr(err)
	}
	return err
}

func (c *Cached) start(ctx context.Context) error {
	cfg := &genai.CreateCachedContentConfig{
		DisplayName: c.preset.DisplayName,
		TTL:         c.preset.TTL,
	}
	if len(c.preset.Instruction) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(c.preset.Instruction, genai.RoleUser)
	}

	if len(c.preset.Reference) > 0 {
		doc, err := Load(ctx, c.preset.Reference)
		if err != nil {
			return fmt.Errorf("load reference: %w", err)
		}
		file, err := c.rm.Upload(ctx, bytes.NewReader(doc.Data), doc.MIMEType, doc.Name)
		if err != nil {
			return fmt.Errorf("upload reference: %w", err)
		}
		logger().Infow("uploaded reference", "name", file.Name, "state", file.State)
		if file, err = c.waitActive(ctx, file); err != nil {
			return err
		}
		cfg.Contents = []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{genai.NewPartFromURI(file.URI, file.MIMEType)}, genai.RoleUser),
		}
	}

	cc, err := c.rm.CreateCache(ctx, c.preset.Model, cfg)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	logger().Infow("created cached content", "name", cc.Name, "model", cc.Model, "expire", cc.ExpireTime)

	c.mu.Lock()
	c.name = cc.Name
	c.mu.Unlock()
	c.markReady()
	return nil
}

func (c *Cached) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	poll := retry.NewConstant(c.pollEvery)
	if c.uploadTimeout > 0 {
		poll = retry.WithMaxDuration(c.uploadTimeout, poll)
	}
	// only the max duration stops a constant backoff
	var expired bool
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := poll.Next()
		expired = stop
		return next, stop
	})
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		switch file.State {
		case genai.FileStateActive:
			return nil
		case genai.FileStateFailed:
			return ErrUploadFailed
		}
		f, err := c.rm.GetFile(ctx, file.Name)
		if err != nil {
			logger().Infow("get file fail", "name", file.Name, "err", err)
			return retry.RetryableError(err)
		}
		file = f
		switch f.State {
		case genai.FileStateActive:
			return nil
		case genai.FileStateFailed:
			return ErrUploadFailed
		}
		return retry.RetryableError(errProcessing)
	})
	if err != nil && expired {
		if errors.Is(err, errProcessing) {
			return nil, ErrUploadTimeout
		}
		return nil, fmt.Errorf("%w: %w", ErrUploadTimeout, err)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Refresher returns the periodic job keeping the cache alive, valid after ready
func (c *Cached) Refresher() *Refresher {
	return NewRefresher(c.rm, c.Name(), c.preset.TTL, c.preset.RefreshEvery)
}

// Inline carries instruction and reference as plain system text
type Inline struct {
	state

	preset aigc.Preset
	system string
}

var _ Lifecycle = (*Inline)(nil)

// NewInline ...
func NewInline(preset aigc.Preset) *Inline {
	return &Inline{state: state{ready: make(chan struct{})}, preset: preset}
}

func (c *Inline) Name() string { return "" }

func (c *Inline) System() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.system
}

// Start loads the reference document
func (c *Inline) Start(ctx context.Context) error {
	system := c.preset.Instruction
	if len(c.preset.Reference) > 0 {
		doc, err := Load(ctx, c.preset.Reference)
		if err == nil {
			var text string
			if text, err = doc.Text(); err == nil {
				system = system + "\n\nReference:\n" + text
			}
		}
		if err != nil {
			logger().Warnw("load reference fail", "ref", c.preset.Reference, "err", err)
			c.setErr(err)
			return err
		}
	}
	c.mu.Lock()
	c.system = system
	c.mu.Unlock()
	c.markReady()
	return nil
}
