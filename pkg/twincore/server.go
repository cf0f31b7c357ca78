// Package twincore provides the base HTTP server, CLI flags, middleware chain,
// and response helpers for the srvgraph service.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Config holds the server configuration, parsed from CLI flags and
// optionally completed from a config file.
type Config struct {
	Addr          string
	Latency       time.Duration
	FailRate      float64
	WebhookURL    string
	WebhookSecret string
	SeedFile      string
	ConfigFile    string
	Verbose       bool
	Name          string // service name for logging
}

// ParseFlags parses the process command line and returns a Config.
// Invalid flags terminate the process, as with the flag package defaults.
func ParseFlags(name string) *Config {
	cfg, err := ParseArgs(name, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	return cfg
}

// ParseArgs parses args into a Config.
func ParseArgs(name string, args []string) (*Config, error) {
	cfg := &Config{Name: name}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", "", "HTTP listen address (default 127.0.0.1:3000)")
	fs.DurationVar(&cfg.Latency, "latency", 0, "Base simulated latency")
	fs.Float64Var(&cfg.FailRate, "fail-rate", 0.0, "Random failure rate 0.0-1.0")
	fs.StringVar(&cfg.WebhookURL, "webhook-url", "", "URL to send record events to")
	fs.StringVar(&cfg.WebhookSecret, "webhook-secret", "", "Secret used to sign webhook payloads")
	fs.StringVar(&cfg.SeedFile, "seed-file", "", "Path to JSON state snapshot loaded at startup")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Path to YAML config file")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable request/response logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		return nil, fmt.Errorf("fail-rate must be between 0.0 and 1.0")
	}
	if cfg.Addr == "" {
		if p := os.Getenv("PORT"); p != "" {
			cfg.Addr = "127.0.0.1:" + p
		}
	}
	return cfg, nil
}

// Twin is the base server. It wraps a chi router with the common middleware
// and provides lifecycle management.
type Twin struct {
	Config   *Config
	Router   *chi.Mux
	Logger   *slog.Logger
	mw       *Middleware
	onUpdate []func(Config)
}

// New creates a new Twin with the given config.
func New(cfg *Config) *Twin {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	r := chi.NewRouter()
	mw := NewMiddleware(cfg, logger)

	// Latency and failure middleware are always mounted so they take effect
	// as soon as config is updated at runtime; both check the value first.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)
	r.Use(mw.LatencyInjection)
	r.Use(mw.RandomFailure)

	r.Method(http.MethodGet, "/metrics", mw.Metrics.Handler())

	return &Twin{
		Config: cfg,
		Router: r,
		Logger: logger,
		mw:     mw,
	}
}

// Middleware returns the middleware instance for external access (e.g., fault injection).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// OnUpdate registers fn to run with a copy of the config after every
// successful UpdateConfig.
func (t *Twin) OnUpdate(fn func(Config)) {
	t.mw.mu.Lock()
	defer t.mw.mu.Unlock()
	t.onUpdate = append(t.onUpdate, fn)
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (t *Twin) GetConfig() map[string]any {
	t.mw.mu.RLock()
	defer t.mw.mu.RUnlock()
	return map[string]any{
		"name":        t.Config.Name,
		"addr":        t.Config.Addr,
		"latency":     t.Config.Latency.String(),
		"fail_rate":   t.Config.FailRate,
		"webhook_url": t.Config.WebhookURL,
		"verbose":     t.Config.Verbose,
	}
}

// UpdateConfig updates runtime configuration fields from a map.
// This implements the admin.ConfigProvider interface.
// Only latency, fail_rate, verbose, and webhook_url can be updated at runtime.
// All fields are validated before any are applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	type configUpdate struct {
		latency    *time.Duration
		failRate   *float64
		verbose    *bool
		webhookURL *string
	}
	var cu configUpdate

	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("latency must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			cu.latency = &d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
			}
			cu.failRate = &f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			cu.verbose = &b
		case "webhook_url":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("webhook_url must be a string")
			}
			cu.webhookURL = &s
		case "name", "addr":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	t.mw.mu.Lock()
	if cu.latency != nil {
		t.Config.Latency = *cu.latency
	}
	if cu.failRate != nil {
		t.Config.FailRate = *cu.failRate
	}
	if cu.verbose != nil {
		t.Config.Verbose = *cu.verbose
	}
	if cu.webhookURL != nil {
		t.Config.WebhookURL = *cu.webhookURL
	}
	snapshot := *t.Config
	hooks := append([]func(Config){}, t.onUpdate...)
	t.mw.mu.Unlock()

	for _, fn := range hooks {
		fn(snapshot)
	}
	return nil
}

// Serve binds the configured address and serves until ctx is cancelled.
func (t *Twin) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", t.Config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.Config.Addr, err)
	}
	return t.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully. Per-connection errors are logged to stderr and never stop the
// server; only a listener failure is returned.
func (t *Twin) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(slog.NewJSONHandler(os.Stderr, nil), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	t.Logger.Info("listening", "name", t.Config.Name, "addr", "http://"+ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	t.Logger.Info("shutting down", "name", t.Config.Name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Twin can be used directly in tests.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// NotFound writes a 404 with an empty body.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}
