package mcputils

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liut/showroom/pkg/services/llm"
	"github.com/liut/showroom/pkg/services/pipeline"
	"github.com/liut/showroom/pkg/services/stores"
)

type fakeGen struct {
	reply string
	err   error
}

func (g *fakeGen) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	return g.reply, g.err
}

func (g *fakeGen) GenerateStream(ctx context.Context, prompt string, opts llm.Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) { yield(g.reply, g.err) }
}

func callAsk(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	var req mcp.CallToolRequest
	req.Params.Name = ToolNameAsk
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestAskTool(t *testing.T) {
	tool := AskTool()
	assert.Equal(t, ToolNameAsk, tool.Name)
	assert.Contains(t, tool.InputSchema.Required, "question")
}

func TestAskHandler(t *testing.T) {
	ss := stores.NewMemorySessions(0)
	pl := pipeline.New(&fakeGen{reply: `{"answer":"Hello"}`}, nil, pipeline.Config{})
	h := AskHandler(pl, ss)

	res := callAsk(t, h, map[string]any{"question": "hi"})
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 2)
	assert.Equal(t, "Hello", res.Content[0].(mcp.TextContent).Text)
	idLine := res.Content[1].(mcp.TextContent).Text
	cid := strings.TrimPrefix(idLine, "conversation_id: ")

	res = callAsk(t, h, map[string]any{"question": "again", "conversation_id": cid})
	assert.False(t, res.IsError)

	hs, err := ss.Conversation(cid).ListHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, hs, 4)
}

func TestAskHandlerErrors(t *testing.T) {
	ss := stores.NewMemorySessions(0)
	pl := pipeline.New(&fakeGen{err: errors.New("down")}, nil, pipeline.Config{})
	h := AskHandler(pl, ss)

	res := callAsk(t, h, map[string]any{})
	assert.True(t, res.IsError)

	res = callAsk(t, h, map[string]any{"question": "hi"})
	assert.True(t, res.IsError)
}

func TestAskHandlerAnswersPendingFirst(t *testing.T) {
	ss := stores.NewMemorySessions(0)
	gen := &fakeGen{err: errors.New("down")}
	pl := pipeline.New(gen, nil, pipeline.Config{})
	h := AskHandler(pl, ss)
	cs := ss.Conversation("")

	res := callAsk(t, h, map[string]any{"question": "q1", "conversation_id": cs.GetID()})
	assert.True(t, res.IsError)

	gen.err = nil
	gen.reply = `{"answer":"ok"}`
	res = callAsk(t, h, map[string]any{"question": "q2", "conversation_id": cs.GetID()})
	assert.False(t, res.IsError)

	hs, err := cs.ListHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, hs, 4)
	assert.Equal(t, "q1", hs[0].Content)
	assert.Equal(t, "ok", hs[1].Content)
	assert.Equal(t, "q2", hs[2].Content)
	assert.False(t, hs.Pending())
}
