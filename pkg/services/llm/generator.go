// Package llm adapts hosted model services to a single prompt-in, text-out contract.
package llm

import (
	"context"
	"iter"
	"strings"
)

// Options of one generation call
type Options struct {
	Model       string
	Temperature float32
	TopP        float32

	// CachedContent is the remote name of a pre-warmed context, optional
	CachedContent string
	// System is sent as system instruction when no cached content is used
	System string
}

// Generator is a remote generation service
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
	// GenerateStream returns a finite sequence of text fragments, not restartable.
	GenerateStream(ctx context.Context, prompt string, opts Options) iter.Seq2[string, error]
}

// Collect concatenates fragments in arrival order. The text received before a
// failure is returned together with the error.
func Collect(seq iter.Seq2[string, error], fn func(string)) (string, error) {
	var sb strings.Builder
	for frag, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(frag)
		if fn != nil && len(frag) > 0 {
			fn(frag)
		}
	}
	return sb.String(), nil
}
