package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/config"
	"github.com/vineetmishra237/smart-irrigation/internal/services/aggregator"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID + "-aggregator",
	})
	if err != nil {
		zap.L().Fatal("aggregator: mqtt connect failed", zap.Error(err))
	}

	svc := aggregator.NewDataAggregatorService(
		rabbitmq.NewConsumer(client, cfg.Feed.RawTopic, nil),
		rabbitmq.NewPublisher(client, ""))

	zap.L().Info("aggregator: running",
		zap.String("topic", cfg.Feed.RawTopic),
		zap.Duration("window", cfg.Feed.AggregateEvery()))
	if err := svc.Start(ctx, cfg.Feed.AggregateEvery()); err != nil {
		zap.L().Fatal("aggregator: stopped", zap.Error(err))
	}
}
