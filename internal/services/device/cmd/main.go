package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/vineetmishra237/smart-irrigation/internal/config"
	"github.com/vineetmishra237/smart-irrigation/internal/services/device"
	"github.com/vineetmishra237/smart-irrigation/pkg/pumpctl"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		zap.L().Error("device: exiting", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
	_ = zap.L().Sync()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID + "-device",
	})
	if err != nil {
		return err
	}
	defer rabbitmq.CloseRabbitMQConn(client)

	// control writes arrive over gRPC, and over MQTT when the gateway publishes them there
	var consumer rabbitmq.IConsumer
	if cfg.Control.Transport == "mqtt" {
		topic := "control/#"
		if cfg.Control.TopicPrefix != "" {
			topic = cfg.Control.TopicPrefix + "/control/#"
		}
		consumer = rabbitmq.NewConsumer(client, topic, nil)
	}
	svc := device.NewDeviceService(consumer, rabbitmq.NewPublisher(client, ""), cfg.Device.FieldID, cfg.Device.StateTopic)

	addr := fmt.Sprintf(":%d", cfg.Device.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return eris.Wrapf(err, "listen %s", addr)
	}
	grpcServer := grpc.NewServer()
	pumpctl.RegisterPumpControlServer(grpcServer, device.NewGrpcHandler(svc))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("device: gRPC listening",
			zap.String("addr", addr),
			zap.String("field", cfg.Device.FieldID),
			zap.String("state_topic", cfg.Device.StateTopic))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("device: shutting down")
		grpcServer.GracefulStop()
		return nil
	})
	g.Go(func() error { return svc.Start(gctx) })
	return g.Wait()
}
