package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/StrathCole/poster-oracle/pkg/config"
	"github.com/StrathCole/poster-oracle/pkg/feeder/poster"
	"github.com/StrathCole/poster-oracle/pkg/feeder/price"
	"github.com/StrathCole/poster-oracle/pkg/logging"
	"github.com/StrathCole/poster-oracle/pkg/metrics"
	"github.com/StrathCole/poster-oracle/pkg/pricemodel"
	"github.com/StrathCole/poster-oracle/pkg/server/api"
	"github.com/StrathCole/poster-oracle/pkg/setup"
	"github.com/StrathCole/poster-oracle/pkg/version"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the oracle with its read API and poster loop",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := initLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Starting poster-oracle", "version", version.Version)

	sys, err := setup.Build(ctx, cfg, logger, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build oracle: %w", err)
	}
	defer func() {
		if err := sys.Close(); err != nil {
			logger.Warn("Failed to close feeds", "error", err)
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		metrics.Init()
		srv := metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path)
		g.Go(func() error {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			return listen(srv.ListenAndServe)
		})
		g.Go(func() error { return shutdownOnDone(gCtx, srv.Shutdown) })
	}

	if cfg.Server.Enabled {
		assets := make([]api.Asset, 0, len(sys.Assets))
		for _, a := range sys.Assets {
			assets = append(assets, api.Asset{Symbol: a.Symbol, Address: a.Address})
		}

		srv := api.NewServer(cfg.Server.HTTP.Addr, sys.Oracle, assets, logger)
		if cfg.Server.WebSocket.Enabled {
			ws := api.NewWebSocketServer(sys.Oracle, sys.Oracle, assets, logger)
			srv.SetWebSocketServer(ws, cfg.Server.WebSocket.Path)
			g.Go(func() error { return ws.Run(gCtx) })
		}

		g.Go(func() error {
			if tls := cfg.Server.HTTP.TLS; tls.Enabled {
				return srv.StartTLS(tls.Cert, tls.Key)
			}
			return srv.Start()
		})
		g.Go(func() error { return shutdownOnDone(gCtx, srv.Stop) })
	}

	if cfg.Poster.Enabled {
		p, err := newPoster(cfg, sys, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return p.Start(gCtx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("Shutdown complete")
	return err
}

func newPoster(cfg *config.Config, sys *setup.System, logger *logging.Logger) (*poster.Poster, error) {
	pc := cfg.Poster
	client, err := price.NewHTTPClient(pc.PriceSource.URL, pc.PriceSource.FallbackURLs, pc.Timeout.ToDuration(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create price client: %w", err)
	}
	postSwing, err := pricemodel.ParseFixed(pc.PostSwing)
	if err != nil {
		return nil, fmt.Errorf("invalid post_swing: %w", err)
	}
	caller, err := config.ParseAddress(pc.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid poster address: %w", err)
	}

	return poster.New(poster.Config{
		Poster:     caller,
		Assets:     sys.PosterAssets(),
		Schedule:   pc.Schedule,
		PostSwing:  postSwing,
		PostBuffer: pc.PostBuffer.ToDuration(),
		Timeout:    pc.Timeout.ToDuration(),
	}, client, sys.Oracle, logger)
}

func listen(fn func() error) error {
	if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdownOnDone(ctx context.Context, shutdown func(context.Context) error) error {
	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return shutdown(sctx)
}
