package irrigation_controller

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vineetmishra237/smart-irrigation/internal/model/entities"
	"github.com/vineetmishra237/smart-irrigation/internal/model/messages"
)

// MoistureSource returns the latest soil moisture percentage.
type MoistureSource interface {
	Read(ctx context.Context) (float64, error)
}

// WeatherSource returns current conditions for a location.
type WeatherSource interface {
	Current(ctx context.Context, location string) (entities.WeatherObservation, error)
}

// ControlChannel stores a value at a control path for the pump device to pick up.
type ControlChannel interface {
	Write(ctx context.Context, path string, value float64) error
}

// ControlChannelFunc adapts a function to ControlChannel.
type ControlChannelFunc func(ctx context.Context, path string, value float64) error

func (f ControlChannelFunc) Write(ctx context.Context, path string, value float64) error {
	return f(ctx, path, value)
}

// EventLog receives one event per completed decision.
type EventLog interface {
	Append(e messages.IrrigationEvent)
}

// BreakerSettings returns gobreaker settings that trip after `failures`
// consecutive failures and stay open for `open`.
func BreakerSettings(name string, failures uint32, open, interval time.Duration) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("breaker: state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

type breakerMoisture struct {
	next MoistureSource
	cb   *gobreaker.CircuitBreaker
}

// WithMoistureBreaker guards a moisture source with a circuit breaker.
func WithMoistureBreaker(next MoistureSource, st gobreaker.Settings) MoistureSource {
	return &breakerMoisture{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *breakerMoisture) Read(ctx context.Context) (float64, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Read(ctx)
	})
	if err != nil {
		return 0, err
	}
	return out.(float64), nil
}

type breakerWeather struct {
	next WeatherSource
	cb   *gobreaker.CircuitBreaker
}

// WithWeatherBreaker guards a weather source with a circuit breaker.
func WithWeatherBreaker(next WeatherSource, st gobreaker.Settings) WeatherSource {
	return &breakerWeather{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *breakerWeather) Current(ctx context.Context, location string) (entities.WeatherObservation, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Current(ctx, location)
	})
	if err != nil {
		return entities.WeatherObservation{}, err
	}
	return out.(entities.WeatherObservation), nil
}
