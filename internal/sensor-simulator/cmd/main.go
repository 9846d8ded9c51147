package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/config"
	sensorSimulator "github.com/vineetmishra237/smart-irrigation/internal/sensor-simulator"
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
		ClientID: cfg.MQTT.ClientID + "-" + cfg.Sensor.ID,
	})
	if err != nil {
		zap.L().Fatal("sensor: mqtt connect failed", zap.Error(err))
	}

	stateTopic := strings.NewReplacer("{field}", cfg.Sensor.FieldID).Replace(cfg.Device.StateTopic)
	consumer := rabbitmq.NewConsumer(client, stateTopic, nil)
	publisher := rabbitmq.NewPublisher(client, "")

	halfLife := time.Duration(cfg.Sensor.HalfLifeMins) * time.Minute
	gen := sensorSimulator.NewDataGenerator(cfg.Sensor.Seed, halfLife, uint64(time.Now().UnixNano()))
	sim := sensorSimulator.NewSensorSimulator(consumer, publisher, gen, cfg.Sensor.FieldID, cfg.Sensor.ID)

	zap.L().Info("sensor: running",
		zap.String("sensor", cfg.Sensor.ID),
		zap.String("field", cfg.Sensor.FieldID),
		zap.Duration("interval", cfg.Sensor.Interval()))
	sim.Start(ctx, cfg.Sensor.Interval())
}
