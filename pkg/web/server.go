package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	staffio "github.com/liut/staffio-client"

	"github.com/liut/showroom/pkg/models/aigc"
	"github.com/liut/showroom/pkg/services/pipeline"
	"github.com/liut/showroom/pkg/services/stores"
	"github.com/liut/showroom/pkg/settings"
)

type Service interface {
	Serve(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Config of web server
type Config struct {
	Addr      string
	Debug     bool
	RateLimit string // like "30-M", empty to disable

	DocHandler http.Handler

	Pipeline *pipeline.Pipeline
	Sessions stores.Sessions
	// ContextErr reports why the cached context is not ready, optional
	ContextErr func() error
}

type server struct {
	Addr string
	cfg  Config

	ar *chi.Mux     // app router
	hs *http.Server // http server

	authzr staffio.Authorizer
	pl     *pipeline.Pipeline
	ss     stores.Sessions
	preset aigc.Preset
	busy   *busySet

	// result of ListenAndServe, buffered so it never blocks after ctx is done
	runErr chan error
}

// New return new web server
func New(cfg Config) Service {
	ar := chi.NewMux()
	if cfg.Debug {
		ar.Use(middleware.Logger)
	}
	ar.Use(middleware.Recoverer, middleware.RealIP)

	s := &server{
		Addr: cfg.Addr, ar: ar,
		cfg:    cfg,
		pl:     cfg.Pipeline,
		ss:     cfg.Sessions,
		preset: cfg.Pipeline.Preset(),
		busy:   newBusySet(),
		runErr: make(chan error, 1),
	}

	if settings.Current.AuthRequired {
		s.authzr = staffio.NewAuth(staffio.WithCookie(
			settings.Current.CookieName,
			settings.Current.CookiePath,
			settings.Current.CookieDomain,
		), staffio.WithRefresh(), staffio.WithURI(staffio.LoginPath))
	}

	s.strapRouter()

	s.hs = &http.Server{
		Addr:              s.Addr,
		Handler:           s.ar,
		ReadHeaderTimeout: time.Second * 10,
	}

	if cfg.Debug {
		logger().Infow("routes:")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			route = strings.Replace(route, "/*/", "/", -1)
			fmt.Fprintf(os.Stderr, "DEBUG: %-6s %-24s --> %s (%d mw)\n", method, route, nameOfFunction(handler), len(middlewares))
			return nil
		}

		if err := chi.Walk(ar, walkFunc); err != nil {
			logger().Infow("router walk fail", "err", err)
		}
	}
	return s
}

func (s *server) Serve(ctx context.Context) error {
	// Run HTTP server
	runErrChan := s.runErr
	t := time.AfterFunc(time.Millisecond*200, func() {
		runErrChan <- s.hs.ListenAndServe()
	})

	defer t.Stop()
	logger().Infow("Listen on", "addr", s.hs.Addr)

	// Wait
	for {
		select {
		case runErr := <-runErrChan:
			if runErr != nil && runErr != http.ErrServerClosed {
				logger().Infow("run http server failed",
					"err", runErr,
				)
				return runErr
			}
			return nil
		case <-ctx.Done():
			logger().Info("http server has been stopped")
			return ctx.Err()
		}
	}
}

func (s *server) Stop(ctx context.Context) error {
	if err := s.hs.Shutdown(ctx); err != nil {
		logger().Infow("Server Shutdown", "err", err)
		return err
	}
	return nil
}
