package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vineetmishra237/smart-irrigation/internal/services/gateway/app"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		gw := app.NewGateway(app.Config{
			Pipeline:       env.Pipeline,
			Stats:          env.Ledger,
			Weather:        env.Weather,
			Moisture:       env.Moisture,
			Location:       cfg.Weather.Location,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			PredictRate:    cfg.Server.PredictRate,
			PredictBurst:   cfg.Server.PredictBurst,
			WidgetTimeout:  cfg.Pipeline.SourceTimeout(),
			Registry:       env.Registry,
			Ready:          env.Ready,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           gw.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("gateway: listening", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "gateway: listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("gateway: shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
		if env.mqttMoisture != nil {
			g.Go(func() error { return env.mqttMoisture.Start(gctx) })
		}
		if env.Journal != nil {
			g.Go(func() error { return env.Journal.Run(gctx) })
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
