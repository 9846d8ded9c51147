package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vineetmishra237/smart-irrigation/internal/services/analytics"
	ic "github.com/vineetmishra237/smart-irrigation/internal/services/irrigation-controller"
)

// Decider runs one irrigation decision.
type Decider interface {
	Run(ctx context.Context, req ic.DecisionRequest) (ic.Trace, *ic.Decision, error)
}

// StatsSource serves the savings report.
type StatsSource interface {
	Stats() analytics.Stats
}

type Config struct {
	Pipeline Decider
	Stats    StatsSource
	Weather  ic.WeatherSource
	Moisture ic.MoistureSource
	Location string

	AllowedOrigins []string
	PredictRate    float64 // requests/s on /predict, <= 0 disables limiting
	PredictBurst   int
	WidgetTimeout  time.Duration

	Registry *prometheus.Registry
	Ready    func(ctx context.Context) error
}

type Gateway struct {
	cfg      Config
	limiter  *rate.Limiter
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewGateway(cfg Config) *Gateway {
	if cfg.Location == "" {
		cfg.Location = ic.DefaultLocation
	}
	if cfg.WidgetTimeout <= 0 {
		cfg.WidgetTimeout = 5 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	g := &Gateway{
		cfg: cfg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irrigation",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "irrigation",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	cfg.Registry.MustRegister(g.requests, g.latency)
	if cfg.PredictRate > 0 {
		burst := cfg.PredictBurst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.PredictRate), burst)
	}
	return g
}

// Routes builds the HTTP handler.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: g.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(g.instrument)

	r.Post("/predict", g.HandlePredict)
	r.Get("/stats", g.HandleStats)
	r.Route("/api", func(r chi.Router) {
		r.Get("/weather", g.HandleWeather)
		r.Get("/soil-moisture", g.HandleSoilMoisture)
	})
	r.Get("/healthz", g.HandleHealth)
	r.Get("/readyz", g.HandleReady)
	r.Handle("/metrics", promhttp.HandlerFor(g.cfg.Registry, promhttp.HandlerOpts{}))
	return r
}

func (g *Gateway) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		g.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		g.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		zap.L().Debug("http: request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
