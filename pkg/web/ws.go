package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/liut/showroom/pkg/settings"
)

type wsRequest struct {
	Prompt string `json:"prompt"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		if settings.AllowAllOrigins() {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range settings.Current.AllowOrigins {
			if o == origin {
				return true
			}
		}
		return false
	},
}

// chatWS serves one conversation: each text frame {prompt} is one submission,
// replies are deltas followed by a final message.
func (s *server) chatWS(w http.ResponseWriter, r *http.Request) {
	cs := s.ss.Conversation(chi.URLParam(r, "cid"))
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger().Infow("ws upgrade fail", "err", err)
		return
	}
	defer conn.Close()
	logger().Infow("ws connected", "csid", cs.GetID(), "ip", r.RemoteAddr)

	ctx := r.Context()
	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger().Infow("ws read fail", "csid", cs.GetID(), "err", err)
			}
			return
		}

		release, ok := s.busy.acquire(cs.GetID())
		if !ok {
			_ = conn.WriteJSON(&ChatMessage{ID: cs.GetID(), FinishReason: "error", Error: errBusy.Error()})
			continue
		}

		history, err := cs.ListHistory(ctx)
		if err != nil {
			release()
			_ = conn.WriteJSON(&ChatMessage{ID: cs.GetID(), FinishReason: "error", Error: err.Error()})
			continue
		}

		alive := true
		updated, answer, err := s.pl.SubmitStream(ctx, history, req.Prompt, func(frag string) {
			if alive {
				alive = conn.WriteJSON(&ChatMessage{ID: cs.GetID(), Delta: frag}) == nil
			}
		})
		saveTurns(ctx, cs, history, updated)
		release()

		cm := ChatMessage{ID: cs.GetID(), Text: answer, FinishReason: "stop"}
		if err != nil {
			cm.FinishReason = "error"
			cm.Error = err.Error()
		}
		if !alive || conn.WriteJSON(&cm) != nil {
			return
		}
	}
}
