// Package config loads service configuration from config.yaml and IRRIGATION_* env vars.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	MQTT     MQTTConfig     `yaml:"mqtt" mapstructure:"mqtt"`
	Influx   InfluxConfig   `yaml:"influx" mapstructure:"influx"`
	Weather  WeatherConfig  `yaml:"weather" mapstructure:"weather"`
	Moisture MoistureConfig `yaml:"moisture" mapstructure:"moisture"`
	Control  ControlConfig  `yaml:"control" mapstructure:"control"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Journal  JournalConfig  `yaml:"journal" mapstructure:"journal"`
	Device   DeviceConfig   `yaml:"device" mapstructure:"device"`
	Breaker  BreakerConfig  `yaml:"breaker" mapstructure:"breaker"`
	Sensor   SensorConfig   `yaml:"sensor" mapstructure:"sensor"`
	Feed     FeedConfig     `yaml:"feed" mapstructure:"feed"`
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	PredictRate    float64  `yaml:"predict_rate" mapstructure:"predict_rate"` // richieste/s su /predict
	PredictBurst   int      `yaml:"predict_burst" mapstructure:"predict_burst"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MQTTConfig points at the RabbitMQ MQTT plugin.
type MQTTConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
}

// InfluxConfig configures the InfluxDB v2 client.
type InfluxConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	Token       string `yaml:"token" mapstructure:"token"`
	Org         string `yaml:"org" mapstructure:"org"`
	Bucket      string `yaml:"bucket" mapstructure:"bucket"`
	Measurement string `yaml:"measurement" mapstructure:"measurement"`
}

// WeatherConfig configures the OpenWeather client.
type WeatherConfig struct {
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Location string `yaml:"location" mapstructure:"location"`
}

// MoistureConfig selects the soil moisture source: "mqtt" or "influx".
type MoistureConfig struct {
	Source       string `yaml:"source" mapstructure:"source"`
	Topic        string `yaml:"topic" mapstructure:"topic"`
	MaxAgeSecs   int    `yaml:"max_age_secs" mapstructure:"max_age_secs"`
	LookbackMins int    `yaml:"lookback_mins" mapstructure:"lookback_mins"`
}

// ControlConfig selects the pump control channel: "grpc", "mqtt" or "none".
type ControlConfig struct {
	Transport   string `yaml:"transport" mapstructure:"transport"`
	GRPCAddr    string `yaml:"grpc_addr" mapstructure:"grpc_addr"`
	TopicPrefix string `yaml:"topic_prefix" mapstructure:"topic_prefix"`
}

// PipelineConfig tunes the decision pipeline.
type PipelineConfig struct {
	SourceTimeoutMs  int `yaml:"source_timeout_ms" mapstructure:"source_timeout_ms"`
	ControlTimeoutMs int `yaml:"control_timeout_ms" mapstructure:"control_timeout_ms"`
}

// ModelConfig configures the discharge-rate forest trained at startup.
type ModelConfig struct {
	Seed       uint64 `yaml:"seed" mapstructure:"seed"`
	Samples    int    `yaml:"samples" mapstructure:"samples"`
	Estimators int    `yaml:"estimators" mapstructure:"estimators"`
}

// JournalConfig selects where ledger events are mirrored: "none", "sqlite" or "influx".
type JournalConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// DeviceConfig configures the pump control device service.
type DeviceConfig struct {
	GRPCPort   int    `yaml:"grpc_port" mapstructure:"grpc_port"`
	StateTopic string `yaml:"state_topic" mapstructure:"state_topic"`
	FieldID    string `yaml:"field_id" mapstructure:"field_id"`
}

// BreakerConfig configures the circuit breakers around external sources.
type BreakerConfig struct {
	Failures   int `yaml:"failures" mapstructure:"failures"`
	OpenMs     int `yaml:"open_ms" mapstructure:"open_ms"`
	IntervalMs int `yaml:"interval_ms" mapstructure:"interval_ms"`
}

// SensorConfig configures the simulated soil moisture probe.
type SensorConfig struct {
	ID           string  `yaml:"id" mapstructure:"id"`
	FieldID      string  `yaml:"field_id" mapstructure:"field_id"`
	IntervalSecs int     `yaml:"interval_secs" mapstructure:"interval_secs"`
	Seed         float64 `yaml:"seed" mapstructure:"seed"`                     // umidità iniziale 0..1
	HalfLifeMins int     `yaml:"half_life_mins" mapstructure:"half_life_mins"` // decadimento a valvola chiusa
}

// FeedConfig configures the aggregation and persistence stages between probe and pipeline.
type FeedConfig struct {
	RawTopic            string `yaml:"raw_topic" mapstructure:"raw_topic"`
	AggregateEverySecs  int    `yaml:"aggregate_every_secs" mapstructure:"aggregate_every_secs"`
	PersistenceHTTPPort int    `yaml:"persistence_http_port" mapstructure:"persistence_http_port"`
}

// Interval is the probe publish period.
func (s SensorConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSecs) * time.Second
}

// AggregateEvery is the aggregation window.
func (f FeedConfig) AggregateEvery() time.Duration {
	return time.Duration(f.AggregateEverySecs) * time.Second
}

// SourceTimeout is the per-call bound on moisture and weather lookups.
func (p PipelineConfig) SourceTimeout() time.Duration {
	return time.Duration(p.SourceTimeoutMs) * time.Millisecond
}

// ControlTimeout is the bound on the best-effort control write.
func (p PipelineConfig) ControlTimeout() time.Duration {
	return time.Duration(p.ControlTimeoutMs) * time.Millisecond
}

// MaxAge is how old a cached moisture reading may be before it is refused.
func (m MoistureConfig) MaxAge() time.Duration {
	return time.Duration(m.MaxAgeSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IRRIGATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.predict_rate", 5.0)
	v.SetDefault("server.predict_burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.user", "guest")
	v.SetDefault("mqtt.password", "guest")
	v.SetDefault("mqtt.client_id", "irrigation-gateway")
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "sdcc")
	v.SetDefault("influx.bucket", "agri")
	v.SetDefault("influx.measurement", "soil_moisture")
	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.base_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("weather.location", "Kolkata,IN")
	v.SetDefault("moisture.source", "mqtt")
	v.SetDefault("moisture.topic", "sensor/aggregated/#")
	v.SetDefault("moisture.max_age_secs", 900)
	v.SetDefault("moisture.lookback_mins", 1440)
	v.SetDefault("control.transport", "mqtt")
	v.SetDefault("control.grpc_addr", "localhost:50051")
	v.SetDefault("control.topic_prefix", "")
	v.SetDefault("pipeline.source_timeout_ms", 5000)
	v.SetDefault("pipeline.control_timeout_ms", 3000)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.samples", 100)
	v.SetDefault("model.estimators", 100)
	v.SetDefault("journal.driver", "none")
	v.SetDefault("journal.path", "irrigation-journal.db")
	v.SetDefault("device.grpc_port", 50051)
	v.SetDefault("device.state_topic", "event/StateChange/{field}")
	v.SetDefault("device.field_id", "field1")
	v.SetDefault("breaker.failures", 3)
	v.SetDefault("breaker.open_ms", 30000)
	v.SetDefault("breaker.interval_ms", 60000)
	v.SetDefault("sensor.id", "sensor1")
	v.SetDefault("sensor.field_id", "field1")
	v.SetDefault("sensor.interval_secs", 10)
	v.SetDefault("sensor.seed", 0.30)
	v.SetDefault("sensor.half_life_mins", 120)
	v.SetDefault("feed.raw_topic", "sensor/data/#")
	v.SetDefault("feed.aggregate_every_secs", 60)
	v.SetDefault("feed.persistence_http_port", 8081)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown driver names early.
func (c *Config) Validate() error {
	switch c.Moisture.Source {
	case "mqtt", "influx":
	default:
		return eris.Errorf("config: unknown moisture.source %q", c.Moisture.Source)
	}
	switch c.Control.Transport {
	case "grpc", "mqtt", "none":
	default:
		return eris.Errorf("config: unknown control.transport %q", c.Control.Transport)
	}
	switch c.Journal.Driver {
	case "none", "sqlite", "influx":
	default:
		return eris.Errorf("config: unknown journal.driver %q", c.Journal.Driver)
	}
	if c.Pipeline.SourceTimeoutMs <= 0 {
		return eris.New("config: pipeline.source_timeout_ms must be positive")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
