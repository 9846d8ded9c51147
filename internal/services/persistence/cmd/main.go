package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vineetmishra237/smart-irrigation/internal/config"
	"github.com/vineetmishra237/smart-irrigation/internal/services/persistence"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		panic(err)
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mqClient, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID + "-persistence",
	})
	if err != nil {
		zap.L().Fatal("persistence: mqtt connect failed", zap.Error(err))
	}

	influxClient := influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
	defer influxClient.Close()

	svc := persistence.NewService(
		rabbitmq.NewConsumer(mqClient, cfg.Moisture.Topic, nil),
		influxClient.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket),
		cfg.Influx.Measurement)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Feed.PersistenceHTTPPort),
		Handler:           persistence.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("persistence: HTTP listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})
	g.Go(func() error { return svc.Start(gctx) })

	if err := g.Wait(); err != nil {
		zap.L().Error("persistence: stopped", zap.Error(err))
	}
	zap.L().Info("persistence: shutdown complete")
}
