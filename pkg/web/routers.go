package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	staffio "github.com/liut/staffio-client"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/liut/showroom/pkg/services/pipeline"
)

type M = render.M

// User online user
type User = staffio.User

// vars from staffio
var (
	UserFromContext = staffio.UserFromContext
)

func (s *server) authMw(redir bool) func(next http.Handler) http.Handler {
	if s.authzr != nil {
		return s.authzr.MiddlewareWordy(redir)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(rw, req)
		})
	}
}

func (s *server) rateMw() func(next http.Handler) http.Handler {
	if len(s.cfg.RateLimit) > 0 {
		rate, err := limiter.NewRateFromFormatted(s.cfg.RateLimit)
		if err == nil {
			return mhttp.NewMiddleware(limiter.New(memory.NewStore(), rate)).Handler
		}
		logger().Infow("invalid rate limit", "rate", s.cfg.RateLimit, "err", err)
	}
	return func(next http.Handler) http.Handler { return next }
}

func (s *server) strapRouter() {

	s.ar.Get("/ping", handlerPing)

	if s.authzr != nil {
		s.ar.Route("/auth", func(r chi.Router) {
			r.Get("/login", staffio.LoginHandler)
			r.Get("/logout", staffio.LogoutHandler)
			r.Method(http.MethodGet, "/callback", staffio.AuthCodeCallback())
		})
	}

	s.ar.Route("/api", func(r chi.Router) {
		r.Use(s.authMw(false), s.rateMw())
		r.Get("/me", s.handleMe)

		r.Get("/ready", s.getReady)
		r.Get("/welcome", s.getWelcome)
		r.Get("/history/{cid}", s.getHistory)
		r.Delete("/history/{cid}", s.clearHistory)
		r.Post("/chat", s.postChat)
		r.Post("/chat-{suffix}", s.postChat)
		r.Post("/retry/{cid}", s.postRetry)
		r.Get("/ws/{cid}", s.chatWS)
	})

	s.ar.Group(func(r chi.Router) {
		r.Use(s.authMw(true))
		if s.cfg.DocHandler != nil {
			r.Get("/", s.cfg.DocHandler.ServeHTTP)
		}
	})
	if s.cfg.DocHandler != nil {
		s.ar.NotFound(s.cfg.DocHandler.ServeHTTP)
	}
}

func handlerPing(w http.ResponseWriter, r *http.Request) {
	render.Data(w, r, []byte("Pong\n"))
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	if s.authzr == nil {
		apiOk(w, r, &User{})
		return
	}
	if user, ok := UserFromContext(r.Context()); ok {
		apiOk(w, r, user)
	} else {
		apiFail(w, r, 401, "not login")
	}
}

// statusOf maps pipeline errors to http status
func statusOf(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyPrompt), errors.Is(err, pipeline.ErrNothingPending):
		return http.StatusBadRequest
	case errors.Is(err, errBusy), errors.Is(err, pipeline.ErrPendingTurn):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrContextNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrRemoteGeneration):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func apiFail(w http.ResponseWriter, r *http.Request, status int, err interface{}) {
	res := render.M{
		"status": status,
		"error":  err,
	}
	switch ret := err.(type) {
	case error:
		res["message"] = ret.Error()
		res["error"] = ret.Error()
	case fmt.Stringer:
		res["message"] = ret.String()
	case string, *string, []byte:
		res["message"] = ret
	}
	render.Status(r, status)
	render.JSON(w, r, res)
}

type RespDone struct {
	Status int `json:"status"`
	Data   any `json:"data,omitempty"`
	Count  int `json:"count,omitempty"`
}

func apiOk(w http.ResponseWriter, r *http.Request, args ...any) {
	res := &RespDone{}
	if len(args) > 0 && args[0] != nil {
		res.Data = args[0]
		if len(args) > 1 {
			if c, ok := args[1].(int); ok {
				res.Count = c
			}
		}
	}

	render.JSON(w, r, res)
}
