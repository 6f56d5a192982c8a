package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestContentConfig(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		cached string
		system string
	}{
		{"cached wins", Options{CachedContent: "cachedContents/abc", System: "be nice"}, "cachedContents/abc", ""},
		{"system only", Options{System: "be nice"}, "", "be nice"},
		{"neither", Options{}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Temperature, tt.opts.TopP = 0.2, 0.1
			cfg := contentConfig(tt.opts)
			require.NotNil(t, cfg.Temperature)
			require.NotNil(t, cfg.TopP)
			assert.Equal(t, float32(0.2), *cfg.Temperature)
			assert.Equal(t, float32(0.1), *cfg.TopP)
			assert.Equal(t, tt.cached, cfg.CachedContent)
			if len(tt.system) == 0 {
				assert.Nil(t, cfg.SystemInstruction)
				return
			}
			require.NotNil(t, cfg.SystemInstruction)
			require.Len(t, cfg.SystemInstruction.Parts, 1)
			assert.Equal(t, tt.system, cfg.SystemInstruction.Parts[0].Text)
		})
	}
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""},
		{"parts joined", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"answer":`}, nil, {Text: `"hi"}`}}},
		}}}, `{"answer":"hi"}`},
		{"thought skipped", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "thinking...", Thought: true}, {Text: "done"}}},
		}}}, "done"},
		{"first candidate only", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "one"}}}},
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "two"}}}},
		}}, "one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, responseText(tt.resp))
		})
	}
}
