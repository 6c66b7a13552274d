// promptkit は画像から画像生成AI向けのプロンプトを作るサーバー/コンソールです。
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/gemini-prompt-kit/pkg/config"
	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/generator"
	"github.com/shouni/gemini-prompt-kit/pkg/lifecycle"
	"github.com/shouni/gemini-prompt-kit/pkg/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML 設定ファイルのパス (未指定なら PROMPTKIT_CONFIG)")
	consoleMode := flag.Bool("console", false, "HTTP サーバーの代わりに対話コンソールを起動する")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.Error("必要な設定がありません。起動を中止します", "key", cfgErr.Key, "error", err)
		} else {
			slog.Error("設定の読み込みに失敗しました", "error", err)
		}
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *consoleMode); err != nil {
		slog.Error("異常終了しました", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, consoleMode bool) error {
	gen, err := generator.New(ctx, cfg.GeneratorOptions())
	if err != nil {
		return err
	}
	lc, err := lifecycle.New(gen, lifecycle.WithTimeout(cfg.RequestTimeout()))
	if err != nil {
		return err
	}
	defer lc.Close()

	if consoleMode {
		return runConsole(ctx, lc)
	}
	return serve(ctx, cfg, lc)
}

// serve は HTTP サーバーを起動し、ctx が終わったら停止します。
func serve(ctx context.Context, cfg *config.Config, lc *lifecycle.Lifecycle) error {
	h, err := server.NewHandler(lc, cfg.PreviewMaxEdge)
	if err != nil {
		return err
	}
	defer h.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP サーバーを起動します", "addr", srv.Addr, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("HTTP サーバーを停止します")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
