package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftlane/driftlane/internal/server"
	redissource "github.com/driftlane/driftlane/pkg/source/redis"
)

// newServeCmd creates the serve command: the ingestion API plus the websocket
// placement feed, optionally fed from a redis pub/sub channel.
func newServeCmd() *cobra.Command {
	var (
		configPath   string
		listen       string
		redisAddr    string
		redisChannel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion API and websocket placement feed",
		Long: `Serve runs the overlay scheduler behind an HTTP API.

Endpoints:
  POST /api/messages   ingest a message ({"kind","text","author"})
  POST /api/rate       mirror the playback clock ({"rate": 1.5})
  POST /api/clear      wipe the surface
  GET  /api/stats      scheduler counters
  GET  /ws             websocket feed of placement events

With --redis-addr, messages are additionally consumed from a redis pub/sub
channel carrying the same JSON shape as POST /api/messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if redisAddr != "" {
				cfg.Redis.Addr = redisAddr
			}
			if redisChannel != "" {
				cfg.Redis.Channel = redisChannel
			}
			if cfg.Redis.Channel == "" {
				cfg.Redis.Channel = "driftlane:messages"
			}

			settings, err := cfg.settings()
			if err != nil {
				return err
			}
			width, height := cfg.surfaceSize()

			srv, err := server.New(server.Config{
				Settings: settings,
				Width:    width,
				Height:   height,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			if cfg.Redis.Addr != "" {
				src, err := redissource.New(redissource.Config{
					Addr:     cfg.Redis.Addr,
					Channel:  cfg.Redis.Channel,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
					Logger:   logger,
				})
				if err != nil {
					return err
				}
				defer src.Close()
				go func() {
					if err := src.Run(ctx, srv.Overlay().AddMessage); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("redis source stopped", "err", err)
					}
				}()
			}

			httpSrv := &http.Server{
				Addr:              cfg.listenAddr(),
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			logger.Info("listening", "addr", cfg.listenAddr(), "lanes", srv.Overlay().Geometry().LaneCount)
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to driftlane.toml")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default :8750)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "redis host:port to consume messages from")
	cmd.Flags().StringVar(&redisChannel, "redis-channel", "", "redis pub/sub channel (default driftlane:messages)")

	return cmd
}
