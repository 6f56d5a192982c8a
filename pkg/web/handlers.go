package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jpillora/eventsource"
	"github.com/marcsv/go-binder/binder"
	"github.com/spf13/cast"

	"github.com/liut/showroom/pkg/models/aigc"
	"github.com/liut/showroom/pkg/services/stores"
)

var errBusy = errors.New("conversation is busy")

func (s *server) getReady(w http.ResponseWriter, r *http.Request) {
	if s.pl.Ready() {
		apiOk(w, r, M{"ready": true})
		return
	}
	msg := "cached context is preparing"
	if s.cfg.ContextErr != nil {
		if err := s.cfg.ContextErr(); err != nil {
			msg = err.Error()
		}
	}
	apiFail(w, r, http.StatusServiceUnavailable, msg)
}

func (s *server) getWelcome(w http.ResponseWriter, r *http.Request) {
	msg := new(aigc.Message)
	msg.Role = string(aigc.RoleAssistant)

	if s.preset.Welcome != nil {
		msg.Content = s.preset.Welcome.Content
	} else {
		msg.Content = welcomeText
	}

	cs := s.ss.Conversation("")
	msg.ID = cs.GetID()
	apiOk(w, r, msg)
}

func (s *server) getHistory(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	cs := s.ss.Conversation(cid)
	data, err := cs.ListHistory(r.Context())
	if err != nil {
		apiFail(w, r, 500, err)
		return
	}
	total := len(data)
	if n := cast.ToInt(r.URL.Query().Get("limit")); n > 0 {
		data = data.Window(n)
	}
	apiOk(w, r, data, total)
}

func (s *server) clearHistory(w http.ResponseWriter, r *http.Request) {
	cs := s.ss.Conversation(chi.URLParam(r, "cid"))
	if err := cs.ClearHistory(r.Context()); err != nil {
		apiFail(w, r, 500, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveTurns stores the turns appended after history, even if the client is gone
func saveTurns(ctx context.Context, cs stores.Conversation, history, updated aigc.Turns) {
	if len(updated) <= len(history) {
		return
	}
	if err := cs.AddHistory(context.WithoutCancel(ctx), updated[len(history):]...); err != nil {
		logger().Infow("save turns fail", "csid", cs.GetID(), "err", err)
	}
}

func (s *server) postChat(w http.ResponseWriter, r *http.Request) {
	var param ChatRequest
	if err := binder.BindBody(r, &param); err != nil {
		apiFail(w, r, 400, err)
		return
	}
	isSSE := param.Stream || strings.HasSuffix(r.URL.Path, "-sse")

	cs := s.ss.Conversation(param.ConversationID)
	release, ok := s.busy.acquire(cs.GetID())
	if !ok {
		apiFail(w, r, statusOf(errBusy), errBusy)
		return
	}
	defer release()

	history, err := cs.ListHistory(r.Context())
	if err != nil {
		apiFail(w, r, 500, err)
		return
	}
	logger().Infow("chat", "csid", cs.GetID(), "turns", len(history), "prompt", param.Prompt,
		"stream", isSSE, "ip", r.RemoteAddr, "user", userName(r.Context()))

	if isSSE {
		s.chatStreamResponse(cs, history, param.Prompt, w, r)
		return
	}

	updated, answer, err := s.pl.Submit(r.Context(), history, param.Prompt)
	saveTurns(r.Context(), cs, history, updated)
	if err != nil {
		logger().Infow("chat fail", "csid", cs.GetID(), "err", err)
		apiFail(w, r, statusOf(err), err)
		return
	}

	render.JSON(w, r, &ChatMessage{ID: cs.GetID(), Text: answer, FinishReason: "stop"})
}

func (s *server) postRetry(w http.ResponseWriter, r *http.Request) {
	cs := s.ss.Conversation(chi.URLParam(r, "cid"))
	release, ok := s.busy.acquire(cs.GetID())
	if !ok {
		apiFail(w, r, statusOf(errBusy), errBusy)
		return
	}
	defer release()

	history, err := cs.ListHistory(r.Context())
	if err != nil {
		apiFail(w, r, 500, err)
		return
	}
	updated, answer, err := s.pl.Resubmit(r.Context(), history, nil)
	saveTurns(r.Context(), cs, history, updated)
	if err != nil {
		apiFail(w, r, statusOf(err), err)
		return
	}
	render.JSON(w, r, &ChatMessage{ID: cs.GetID(), Text: answer, FinishReason: "stop"})
}

func (s *server) chatStreamResponse(cs stores.Conversation, history aigc.Turns, prompt string, w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Add("Conversation-ID", cs.GetID())

	var idx int
	next := func() string {
		idx++
		return strconv.Itoa(idx)
	}
	var alive = true
	onFragment := func(frag string) {
		if !alive {
			return
		}
		if alive = writeEvent(w, next(), &ChatMessage{ID: cs.GetID(), Delta: frag}); alive {
			flusher.Flush()
		}
	}

	updated, answer, err := s.pl.SubmitStream(r.Context(), history, prompt, onFragment)
	saveTurns(r.Context(), cs, history, updated)

	cm := ChatMessage{ID: cs.GetID(), Text: answer, FinishReason: "stop"}
	if err != nil {
		logger().Infow("chat stream fail", "csid", cs.GetID(), "err", err)
		cm.FinishReason = "error"
		cm.Error = err.Error()
	}
	if alive {
		_ = writeEvent(w, next(), &cm)
		_ = writeEvent(w, next(), esDone)
		flusher.Flush()
	}
	logger().Infow("stream done", "csid", cs.GetID(), "answer", len(answer), "events", idx)
}

// writeEvent write an event of eventsource
func writeEvent(w io.Writer, id string, m any) bool {
	var b []byte
	var err error
	if s, ok := m.(string); ok {
		b = []byte(s)
	} else {
		b, err = json.Marshal(m)
		if err != nil {
			logger().Infow("json marshal fail", "m", m, "err", err)
			return false
		}
	}

	if err = eventsource.WriteEvent(w, eventsource.Event{
		ID:   id,
		Data: b,
	}); err != nil {
		logger().Infow("eventsource write fail", "err", err)
		return false
	}

	return true
}

func userName(ctx context.Context) string {
	if user, ok := stores.UserFromContext(ctx); ok {
		return user.Name
	}
	return ""
}
