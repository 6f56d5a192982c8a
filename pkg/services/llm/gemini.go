package llm

import (
	"context"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// Gemini generates with google genai models
type Gemini struct {
	cli *genai.Client
}

var _ Generator = (*Gemini)(nil)

// NewGeminiClient return a client of the Gemini API
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newHTTPClient(0),
	})
}

// NewGemini ...
func NewGemini(cli *genai.Client) *Gemini {
	return &Gemini{cli: cli}
}

func (g *Gemini) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, opts.Model, genai.Text(prompt), contentConfig(opts))
	if err != nil {
		logger().Infow("gemini generate fail", "model", opts.Model, "err", err)
		return "", err
	}
	if resp.UsageMetadata != nil {
		logger().Debugw("gemini usage", "prompt", resp.UsageMetadata.PromptTokenCount,
			"cached", resp.UsageMetadata.CachedContentTokenCount,
			"candidates", resp.UsageMetadata.CandidatesTokenCount)
	}
	return responseText(resp), nil
}

func (g *Gemini) GenerateStream(ctx context.Context, prompt string, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range g.cli.Models.GenerateContentStream(ctx, opts.Model, genai.Text(prompt), contentConfig(opts)) {
			if err != nil {
				logger().Infow("gemini stream fail", "model", opts.Model, "err", err)
				yield("", err)
				return
			}
			if !yield(responseText(resp), nil) {
				return
			}
		}
	}
}

func contentConfig(opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: ptrFloat(opts.Temperature),
		TopP:        ptrFloat(opts.TopP),
	}
	if len(opts.CachedContent) > 0 {
		cfg.CachedContent = opts.CachedContent
	} else if len(opts.System) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}
	return cfg
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func ptrFloat(f float32) *float32 { return &f }
