package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Meshdrop/internal/chat"
	"github.com/BioHazard786/Meshdrop/internal/metadata"
	"github.com/BioHazard786/Meshdrop/internal/server"
	"github.com/BioHazard786/Meshdrop/internal/signaling"
)

var (
	flagServeAddr  string
	flagServeRedis string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the signaling relay that members of a room negotiate through.

The relay keeps no negotiation state: a restart only costs in-flight
negotiations. Room occupancy counters are kept in Redis when --redis is
given, in memory otherwise.

Examples:
  meshdrop serve
  meshdrop serve --addr :9000 --redis redis://localhost:6379/0`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&flagServeRedis, "redis", "", "redis URL for room occupancy counters")
	rootCmd.AddCommand(serveCmd)
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var meta metadata.Store = metadata.NewMemoryStore()
	if flagServeRedis != "" {
		redisStore, err := metadata.NewRedisStore(ctx, flagServeRedis)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		meta = redisStore
		slog.Info("using redis for room occupancy", "url", flagServeRedis)
	}

	hub := signaling.NewHub(meta, chat.NewMemoryStore())
	go hub.Run()
	defer hub.Stop()

	srv := &http.Server{
		Addr:    flagServeAddr,
		Handler: server.Routes(hub),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("signaling server listening", "addr", flagServeAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}
