package main

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/config"
	"github.com/vineetmishra237/smart-irrigation/internal/services/analytics"
	ic "github.com/vineetmishra237/smart-irrigation/internal/services/irrigation-controller"
	"github.com/vineetmishra237/smart-irrigation/pkg/rabbitmq"
)

// decisionEnv holds everything the serve and decide commands need.
type decisionEnv struct {
	Pipeline *ic.Pipeline
	Ledger   *analytics.Ledger
	Journal  *analytics.Journal // nil when journal.driver is none
	Weather  ic.WeatherSource
	Moisture ic.MoistureSource
	Registry *prometheus.Registry

	// set when moisture.source is mqtt; must be started to fill the cache
	mqttMoisture *ic.MQTTMoisture
	mqttClient   mqtt.Client
	closers      []func()
}

func (e *decisionEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// Ready fails while the broker is disconnected or the journal keeps failing.
func (e *decisionEnv) Ready(context.Context) error {
	if e.mqttClient != nil && !e.mqttClient.IsConnectionOpen() {
		return eris.New("mqtt broker not connected")
	}
	if e.Journal != nil && e.Journal.LastErrorAge() < 30*time.Second {
		return eris.New("journal writes failing")
	}
	return nil
}

func modelConfig(c config.ModelConfig) ic.ModelConfig {
	mc := ic.DefaultModelConfig()
	mc.Seed = c.Seed
	if c.Samples > 0 {
		mc.Samples = c.Samples
	}
	if c.Estimators > 0 {
		mc.Estimators = c.Estimators
	}
	return mc
}

// initEnv trains the model and wires sources, control channel, ledger and journal
// according to cfg. Callers should defer env.Close().
func initEnv(ctx context.Context) (*decisionEnv, error) {
	env := &decisionEnv{Registry: prometheus.NewRegistry()}
	env.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	predictor, err := ic.TrainDischargeModel(modelConfig(cfg.Model))
	if err != nil {
		return nil, err
	}

	var influx influxdb2.Client
	influxClient := func() influxdb2.Client {
		if influx == nil {
			influx = influxdb2.NewClient(cfg.Influx.URL, cfg.Influx.Token)
			env.closers = append(env.closers, influx.Close)
		}
		return influx
	}
	mqttClient := func() (mqtt.Client, error) {
		if env.mqttClient == nil {
			c, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
				Host:     cfg.MQTT.Host,
				Port:     cfg.MQTT.Port,
				User:     cfg.MQTT.User,
				Password: cfg.MQTT.Password,
				ClientID: cfg.MQTT.ClientID,
			})
			if err != nil {
				return nil, err
			}
			env.mqttClient = c
			env.closers = append(env.closers, func() { rabbitmq.CloseRabbitMQConn(c) })
		}
		return env.mqttClient, nil
	}

	openFor := time.Duration(cfg.Breaker.OpenMs) * time.Millisecond
	interval := time.Duration(cfg.Breaker.IntervalMs) * time.Millisecond
	failures := uint32(max(cfg.Breaker.Failures, 1))

	// moisture
	var moisture ic.MoistureSource
	switch cfg.Moisture.Source {
	case "influx":
		moisture = ic.NewInfluxMoisture(
			influxClient().QueryAPI(cfg.Influx.Org),
			cfg.Influx.Bucket, cfg.Influx.Measurement, cfg.Device.FieldID,
			time.Duration(cfg.Moisture.LookbackMins)*time.Minute)
	default:
		client, err := mqttClient()
		if err != nil {
			env.Close()
			return nil, err
		}
		env.mqttMoisture = ic.NewMQTTMoisture(rabbitmq.NewConsumer(client, cfg.Moisture.Topic, nil), cfg.Device.FieldID, cfg.Moisture.MaxAge())
		moisture = env.mqttMoisture
	}
	env.Moisture = ic.WithMoistureBreaker(moisture, ic.BreakerSettings("moisture", failures, openFor, interval))

	// weather
	owm := ic.NewOWMClient(cfg.Weather.APIKey, cfg.Weather.BaseURL, cfg.Pipeline.SourceTimeout())
	env.Weather = ic.WithWeatherBreaker(owm, ic.BreakerSettings("weather", failures, openFor, interval))

	// control
	var control ic.ControlChannel
	switch cfg.Control.Transport {
	case "grpc":
		g, err := ic.NewGRPCControl(cfg.Control.GRPCAddr)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = g.Close() })
		control = g
	case "mqtt":
		client, err := mqttClient()
		if err != nil {
			env.Close()
			return nil, err
		}
		control = ic.NewMQTTControl(rabbitmq.NewPublisher(client, ""), cfg.Control.TopicPrefix)
	case "none":
		zap.L().Info("control: channel disabled")
	}

	// ledger and journal
	var sink analytics.Sink
	switch cfg.Journal.Driver {
	case "sqlite":
		s, err := analytics.OpenSQLiteSink(ctx, cfg.Journal.Path)
		if err != nil {
			env.Close()
			return nil, err
		}
		sink = s
	case "influx":
		c := influxClient()
		sink = analytics.NewInfluxSink(c.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket), nil)
	}
	env.Ledger = analytics.NewLedger()
	if sink != nil {
		env.Journal = analytics.NewJournal(sink, 256)
		env.Ledger.Observe(env.Journal.Enqueue)
	}
	ledgerSize := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "irrigation",
		Name:      "ledger_events",
		Help:      "Irrigation events recorded since start.",
	}, func() float64 { return float64(env.Ledger.Len()) })
	env.Registry.MustRegister(ledgerSize)

	env.Pipeline, err = ic.NewPipeline(predictor, env.Moisture, env.Weather, control, env.Ledger, ic.Options{
		Location:       cfg.Weather.Location,
		SourceTimeout:  cfg.Pipeline.SourceTimeout(),
		ControlTimeout: cfg.Pipeline.ControlTimeout(),
		Metrics:        ic.NewMetrics(env.Registry),
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	zap.L().Info("env: ready",
		zap.String("moisture", cfg.Moisture.Source),
		zap.String("control", cfg.Control.Transport),
		zap.String("journal", cfg.Journal.Driver),
		zap.String("location", cfg.Weather.Location))
	return env, nil
}
