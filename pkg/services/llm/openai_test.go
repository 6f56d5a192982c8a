package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, h http.HandlerFunc) *OpenAI {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAI(NewOpenAIClient("sk-test", srv.URL+"/v1"))
}

func TestOpenAIGenerate(t *testing.T) {
	var got openai.ChatCompletionRequest
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"answer\":\"Hello\"}"},"finish_reason":"stop"}]}`)
	})

	text, err := o.Generate(context.Background(), "Customer: hi", Options{
		Model: "gpt-4o-mini", Temperature: 0.2, TopP: 0.1, System: "be nice",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"Hello"}`, text)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "be nice", got.Messages[0].Content)
	assert.Equal(t, "Customer: hi", got.Messages[1].Content)
	assert.InDelta(t, 0.2, got.Temperature, 0.0001)
	assert.InDelta(t, 0.1, got.TopP, 0.0001)
}

func TestOpenAIGenerateFail(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`)
	})
	_, err := o.Generate(context.Background(), "Customer: hi", Options{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}

func TestOpenAIStream(t *testing.T) {
	frags := []string{`{\"answ`, `er\":\"Go`, `odbye\"}`}
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frags {
			fmt.Fprintf(w, "data: {\"id\":\"s1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"%s\"}}]}\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var seen []string
	text, err := Collect(o.GenerateStream(context.Background(), "Customer: bye", Options{Model: "gpt-4o-mini"}),
		func(s string) { seen = append(seen, s) })
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"Goodbye"}`, text)
	assert.Len(t, seen, 3)
}

func TestCollectPartial(t *testing.T) {
	boom := fmt.Errorf("connection reset")
	seq := func(yield func(string, error) bool) {
		if !yield("{\"answer\":", nil) {
			return
		}
		if !yield("\"Par", nil) {
			return
		}
		yield("", boom)
	}
	text, err := Collect(seq, nil)
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(text, "{\"answer\":\"Par"))
}
