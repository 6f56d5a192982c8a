// Package pipeline turns a customer question into a consultant answer while
// keeping a bounded conversational context.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liut/showroom/pkg/models/aigc"
	"github.com/liut/showroom/pkg/services/llm"
)

// ContextRef is the read-only handle of a pre-warmed context
type ContextRef interface {
	// Ready is closed once the context can be attached to calls
	Ready() <-chan struct{}
	// Name of the remote cached content, empty when not cached remotely
	Name() string
	// System text for providers without remote cache
	System() string
}

// Config of a pipeline
type Config struct {
	Preset    aigc.Preset
	Timeout   time.Duration
	Streaming bool
}

// Pipeline holds no conversation state, histories are passed in and returned.
type Pipeline struct {
	gen    llm.Generator
	ref    ContextRef
	preset aigc.Preset
	cfg    Config
}

// New return a pipeline
func New(gen llm.Generator, ref ContextRef, cfg Config) *Pipeline {
	cfg.Preset.SetDefaults()
	return &Pipeline{gen: gen, ref: ref, preset: cfg.Preset, cfg: cfg}
}

// Preset returns the effective preset
func (p *Pipeline) Preset() aigc.Preset {
	return p.preset
}

// Ready reports readiness of the cached context without blocking
func (p *Pipeline) Ready() bool {
	if p.ref == nil {
		return true
	}
	select {
	case <-p.ref.Ready():
		return true
	default:
		return false
	}
}

// Submit appends the user turn and its answer to a copy of history.
// On remote failure the returned history keeps the unanswered user turn,
// and further submits fail with ErrPendingTurn until Resubmit answers it.
func (p *Pipeline) Submit(ctx context.Context, history aigc.Turns, userText string) (aigc.Turns, string, error) {
	return p.submit(ctx, history, userText, p.cfg.Streaming, nil)
}

// SubmitStream is Submit over a streamed reply, each raw fragment goes to fn
func (p *Pipeline) SubmitStream(ctx context.Context, history aigc.Turns, userText string, fn func(string)) (aigc.Turns, string, error) {
	return p.submit(ctx, history, userText, true, fn)
}

func (p *Pipeline) submit(ctx context.Context, history aigc.Turns, userText string, stream bool, fn func(string)) (aigc.Turns, string, error) {
	if len(strings.TrimSpace(userText)) == 0 {
		return history, "", ErrEmptyPrompt
	}
	if history.Pending() {
		return history, "", ErrPendingTurn
	}
	if !p.Ready() {
		return history, "", ErrContextNotReady
	}
	working := history.With(aigc.Turn{Role: aigc.RoleUser, Content: userText})
	answer, err := p.answer(ctx, history, userText, stream, fn)
	if err != nil {
		return working, "", err
	}
	return working.With(aigc.Turn{Role: aigc.RoleAssistant, Content: answer}), answer, nil
}

// Resubmit answers the trailing unanswered user turn of history
func (p *Pipeline) Resubmit(ctx context.Context, history aigc.Turns, fn func(string)) (aigc.Turns, string, error) {
	if !history.Pending() {
		return history, "", ErrNothingPending
	}
	if !p.Ready() {
		return history, "", ErrContextNotReady
	}
	last := len(history) - 1
	answer, err := p.answer(ctx, history[:last], history[last].Content, p.cfg.Streaming || fn != nil, fn)
	if err != nil {
		return history, "", err
	}
	return history.With(aigc.Turn{Role: aigc.RoleAssistant, Content: answer}), answer, nil
}

// answer calls the remote model with the window of prior and extracts the answer
func (p *Pipeline) answer(ctx context.Context, prior aigc.Turns, userText string, stream bool, fn func(string)) (string, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	prompt := BuildPrompt(prior.Window(p.preset.WindowSize), p.preset.CustomerLabel, userText)
	opts := llm.Options{
		Model:       p.preset.Model,
		Temperature: p.preset.Temperature,
		TopP:        p.preset.TopP,
	}
	if p.ref != nil {
		opts.CachedContent = p.ref.Name()
		opts.System = p.ref.System()
	}

	var (
		raw string
		err error
	)
	if stream {
		raw, err = llm.Collect(p.gen.GenerateStream(ctx, prompt, opts), fn)
		if err != nil && len(strings.TrimSpace(raw)) > 0 {
			logger().Infow("stream interrupted, use partial text", "size", len(raw), "err", err)
			err = nil
		}
	} else {
		raw, err = p.gen.Generate(ctx, prompt, opts)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteGeneration, err)
	}
	if len(strings.TrimSpace(raw)) == 0 {
		return "", fmt.Errorf("%w: %w", ErrRemoteGeneration, ErrEmptyReply)
	}

	normalized := Normalize(raw)
	answer, how := extract(normalized)
	answer = PostProcess(answer)
	if len(answer) == 0 {
		return "", fmt.Errorf("%w: %w", ErrRemoteGeneration, ErrEmptyReply)
	}
	logger().Debugw("answer extracted", "how", how, "raw", len(raw), "answer", len(answer))
	return answer, nil
}

// Session is a conversation owned by its caller
type Session struct {
	ID      string
	History aigc.Turns
}

// Submit runs the pipeline and replaces the history of the session
func (s *Session) Submit(ctx context.Context, p *Pipeline, userText string) (string, error) {
	history, answer, err := p.Submit(ctx, s.History, userText)
	s.History = history
	return answer, err
}

// Resubmit retries the unanswered trailing turn of the session
func (s *Session) Resubmit(ctx context.Context, p *Pipeline) (string, error) {
	history, answer, err := p.Resubmit(ctx, s.History, nil)
	s.History = history
	return answer, err
}
