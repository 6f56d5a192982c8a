package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cupogo/andvari/utils/zlog"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/liut/showroom/htdocs"
	"github.com/liut/showroom/pkg/services/cachectx"
	"github.com/liut/showroom/pkg/services/llm"
	"github.com/liut/showroom/pkg/services/mcputils"
	"github.com/liut/showroom/pkg/services/pipeline"
	"github.com/liut/showroom/pkg/services/stores"
	"github.com/liut/showroom/pkg/settings"
	"github.com/liut/showroom/pkg/web"
)

func main() {
	app := &cli.App{
		Name:    strings.ToLower(settings.Name),
		Usage:   "sales consultant chat service",
		Version: settings.Current.Version,
		Before: func(_ *cli.Context) error {
			setupLogger()
			return nil
		},
		Action: runWeb,
		Commands: []*cli.Command{
			{Name: "web", Usage: "serve the chat widget and api", Action: runWeb},
			{Name: "chat", Usage: "chat in terminal", Action: runChat},
			{Name: "mcp", Usage: "serve the consultant as a MCP tool over stdio", Action: runMCP},
			{Name: "usage", Usage: "show usage of environments", Action: func(_ *cli.Context) error {
				return settings.Usage()
			}},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("run fail: %s", err)
	}
}

func setupLogger() {
	var zlogger *zap.Logger
	if settings.InDevelop() {
		zlogger, _ = zap.NewDevelopment()
	} else {
		zlogger, _ = zap.NewProduction()
	}
	zap.ReplaceGlobals(zlogger)
	zlog.Set(zlogger.Sugar())
}

type runtime struct {
	pl *pipeline.Pipeline
	lc cachectx.Lifecycle
}

func setup(ctx context.Context) (*runtime, error) {
	preset, err := stores.LoadPreset()
	if err != nil {
		return nil, err
	}
	rt := new(runtime)
	var gen llm.Generator
	switch settings.Current.LLMProvider {
	case "openai":
		gen = llm.NewOpenAI(llm.NewOpenAIClient(settings.Current.OpenAIAPIKey, settings.Current.OpenAIBaseURL))
		rt.lc = cachectx.NewInline(preset)
	case "gemini", "":
		cli, err := llm.NewGeminiClient(ctx, settings.Current.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		gen = llm.NewGemini(cli)
		rt.lc = cachectx.NewCached(cachectx.NewRemote(cli), preset, settings.Current.UploadTimeout)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", settings.Current.LLMProvider)
	}
	rt.pl = pipeline.New(gen, rt.lc, pipeline.Config{
		Preset:    preset,
		Timeout:   settings.Current.GenerateTimeout,
		Streaming: settings.Current.Streaming,
	})
	zap.S().Infow("pipeline ready to start", "provider", settings.Current.LLMProvider,
		"model", preset.Model, "window", preset.WindowSize, "ttl", preset.TTL)
	return rt, nil
}

// prepare starts the cached context then keeps it alive until ctx is done.
// A failure only leaves the service unready.
func (rt *runtime) prepare(ctx context.Context) error {
	if err := rt.lc.Start(ctx); err != nil {
		return nil
	}
	if c, ok := rt.lc.(*cachectx.Cached); ok {
		return c.Refresher().Run(ctx)
	}
	return nil
}

// keepAlive refreshes a cached context in background until ctx is done
func (rt *runtime) keepAlive(ctx context.Context) {
	if c, ok := rt.lc.(*cachectx.Cached); ok {
		go func() { _ = c.Refresher().Run(ctx) }()
	}
}

func runWeb(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}

	srv := web.New(web.Config{
		Addr:       settings.Current.HTTPListen,
		Debug:      settings.InDevelop(),
		RateLimit:  settings.Current.RateLimit,
		DocHandler: http.FileServer(http.FS(htdocs.FS())),
		Pipeline:   rt.pl,
		Sessions:   stores.SgtSessions(),
		ContextErr: rt.lc.Err,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.prepare(gctx) })
	g.Go(func() error {
		if err := srv.Serve(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("shuting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		return srv.Stop(sctx)
	})
	return g.Wait()
}

func runChat(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	if err = rt.lc.Start(ctx); err != nil {
		return err
	}
	rt.keepAlive(ctx)

	sess := &pipeline.Session{ID: stores.CastID("").String()}
	fmt.Println("type a question, /retry, /reset or /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		var answer string
		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/reset":
			sess.History = nil
			continue
		case "/retry":
			answer, err = sess.Resubmit(ctx, rt.pl)
		default:
			answer, err = sess.Submit(ctx, rt.pl, line)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			continue
		}
		fmt.Printf("%s\n\n", answer)
	}
}

func runMCP(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	if err = rt.lc.Start(ctx); err != nil {
		return err
	}
	rt.keepAlive(ctx)
	s := mcputils.NewServer(settings.Name, settings.Current.Version, rt.pl, stores.SgtSessions())
	return server.ServeStdio(s)
}
