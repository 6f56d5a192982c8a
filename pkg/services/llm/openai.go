package llm

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	openaiTimeout = time.Second * 30
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
	}
}

// NewOpenAIClient return a client with proxy from env, baseURL is optional
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	occ := openai.DefaultConfig(apiKey)
	if len(baseURL) > 0 {
		occ.BaseURL = baseURL
	}
	occ.HTTPClient = newHTTPClient(openaiTimeout)
	return openai.NewClientWithConfig(occ)
}

// OpenAI generates with chat completions of an OpenAI compatible endpoint
type OpenAI struct {
	oc *openai.Client
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI ...
func NewOpenAI(oc *openai.Client) *OpenAI {
	return &OpenAI{oc: oc}
}

func (o *OpenAI) request(prompt string, opts Options) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if len(opts.System) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	return openai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}
}

func (o *OpenAI) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	res, err := o.oc.CreateChatCompletion(ctx, o.request(prompt, opts))
	if err != nil {
		logger().Infow("chat completion fail", "model", opts.Model, "err", err)
		return "", err
	}
	logger().Debugw("chat completion", "id", res.ID, "usage", &res.Usage)
	if len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Message.Content, nil
}

func (o *OpenAI) GenerateStream(ctx context.Context, prompt string, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ccs, err := o.oc.CreateChatCompletionStream(ctx, o.request(prompt, opts))
		if err != nil {
			logger().Infow("call chat stream fail", "err", err)
			yield("", err)
			return
		}
		defer ccs.Close()

		for {
			ccsr, err := ccs.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				logger().Infow("ccs recv fail", "err", err)
				yield("", err)
				return
			}
			if len(ccsr.Choices) == 0 {
				continue
			}
			if !yield(ccsr.Choices[0].Delta.Content, nil) {
				return
			}
			if len(ccsr.Choices[0].FinishReason) > 0 {
				logger().Debugw("stream done", "reason", ccsr.Choices[0].FinishReason)
				return
			}
		}
	}
}
