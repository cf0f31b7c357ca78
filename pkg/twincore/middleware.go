package twincore

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RequestLogEntry captures details of an incoming request for admin inspection.
type RequestLogEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers,omitempty"`
	StatusCode int               `json:"status_code"`
	Duration   time.Duration     `json:"duration_ms"`
	RequestID  string            `json:"request_id,omitempty"`
}

// RequestLog is a thread-safe ring buffer of recent requests.
type RequestLog struct {
	mu      sync.RWMutex
	entries []RequestLogEntry
	maxSize int
}

// NewRequestLog creates a request log with the given max size.
func NewRequestLog(maxSize int) *RequestLog {
	return &RequestLog{
		entries: make([]RequestLogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest if at capacity.
func (rl *RequestLog) Add(entry RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.entries) >= rl.maxSize {
		rl.entries = rl.entries[1:]
	}
	rl.entries = append(rl.entries, entry)
}

// Entries returns a copy of all log entries.
func (rl *RequestLog) Entries() []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]RequestLogEntry, len(rl.entries))
	copy(out, rl.entries)
	return out
}

// Clear removes all entries.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = rl.entries[:0]
}

// FaultConfig defines a fault injection for a specific endpoint path.
type FaultConfig struct {
	StatusCode int           `json:"status_code"`
	Body       string        `json:"body,omitempty"`
	Delay      time.Duration `json:"delay_ms,omitempty"`
	Rate       float64       `json:"rate"` // 0.0-1.0, probability of fault triggering
}

// FaultRegistry manages injected faults keyed by request path.
type FaultRegistry struct {
	mu     sync.RWMutex
	faults map[string]FaultConfig
}

// NewFaultRegistry creates a new fault registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{
		faults: make(map[string]FaultConfig),
	}
}

// Set injects a fault for the given path.
func (fr *FaultRegistry) Set(path string, fault FaultConfig) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fault.Rate == 0 {
		fault.Rate = 1.0
	}
	fr.faults[path] = fault
}

// Remove removes a fault for the given path.
func (fr *FaultRegistry) Remove(path string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	_, existed := fr.faults[path]
	delete(fr.faults, path)
	return existed
}

// Check returns a fault config if one matches the given path, or nil if no fault applies.
func (fr *FaultRegistry) Check(path string) *FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	if f, ok := fr.faults[path]; ok {
		if f.Rate >= 1.0 || rand.Float64() < f.Rate {
			return &f
		}
	}
	return nil
}

// All returns all registered faults.
func (fr *FaultRegistry) All() map[string]FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	out := make(map[string]FaultConfig, len(fr.faults))
	for k, v := range fr.faults {
		out[k] = v
	}
	return out
}

// Reset clears all faults.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.faults = make(map[string]FaultConfig)
}

// IdempotencyTracker remembers responses by Idempotency-Key. A key is
// claimed by the first request that carries it; later requests with the same
// key wait for that request to finish and then replay its response.
type IdempotencyTracker struct {
	mu       sync.Mutex
	entries  map[string]idempotencyEntry
	inflight map[string]chan struct{}
}

type idempotencyEntry struct {
	StatusCode int
	Body       []byte
	CreatedAt  time.Time
}

// NewIdempotencyTracker creates a new tracker.
func NewIdempotencyTracker() *IdempotencyTracker {
	return &IdempotencyTracker{
		entries:  make(map[string]idempotencyEntry),
		inflight: make(map[string]chan struct{}),
	}
}

// Acquire returns the cached response for key. When nothing is cached and no
// other request holds the key, the caller claims it, ok is false, and the
// caller must finish with Store or Abandon. Acquire blocks while another
// request holds the key.
func (it *IdempotencyTracker) Acquire(key string) (int, []byte, bool) {
	for {
		it.mu.Lock()
		if e, ok := it.entries[key]; ok {
			it.mu.Unlock()
			return e.StatusCode, e.Body, true
		}
		wait, busy := it.inflight[key]
		if !busy {
			it.inflight[key] = make(chan struct{})
			it.mu.Unlock()
			return 0, nil, false
		}
		it.mu.Unlock()
		<-wait
	}
}

// Store caches a response for the given idempotency key and releases any
// claim on it.
func (it *IdempotencyTracker) Store(key string, statusCode int, body []byte) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.entries[key] = idempotencyEntry{
		StatusCode: statusCode,
		Body:       body,
		CreatedAt:  time.Now(),
	}
	it.release(key)
}

// Abandon releases a claim without caching anything, so the next waiter
// claims the key and runs the request itself.
func (it *IdempotencyTracker) Abandon(key string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.release(key)
}

func (it *IdempotencyTracker) release(key string) {
	if ch, ok := it.inflight[key]; ok {
		close(ch)
		delete(it.inflight, key)
	}
}

// Len returns the number of remembered keys.
func (it *IdempotencyTracker) Len() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return len(it.entries)
}

// Reset clears all cached responses. Claims held by running requests stay
// in place until those requests finish.
func (it *IdempotencyTracker) Reset() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.entries = make(map[string]idempotencyEntry)
}

// Middleware provides the middleware chain and the runtime-inspectable state
// behind it (request log, faults, idempotency cache, metrics).
type Middleware struct {
	mu         sync.RWMutex // guards the cfg fields read per request
	cfg        *Config
	logger     *slog.Logger
	ReqLog     *RequestLog
	Faults     *FaultRegistry
	Idempotent *IdempotencyTracker
	Metrics    *Metrics
}

// NewMiddleware creates a new Middleware instance. A nil logger discards debug output.
func NewMiddleware(cfg *Config, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Middleware{
		cfg:        cfg,
		logger:     logger,
		ReqLog:     NewRequestLog(1000),
		Faults:     NewFaultRegistry(),
		Idempotent: NewIdempotencyTracker(),
		Metrics:    NewMetrics(),
	}
}

type runtimeSettings struct {
	latency  time.Duration
	failRate float64
	verbose  bool
}

func (m *Middleware) settings() runtimeSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return runtimeSettings{
		latency:  m.cfg.Latency,
		failRate: m.cfg.FailRate,
		verbose:  m.cfg.Verbose,
	}
}

// CORS allows browser clients such as GraphiQL hosted elsewhere to reach the API.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		MaxAge:         3600,
	})(next)
}

// RequestLog middleware captures request details into the ring buffer and
// records HTTP metrics.
func (m *Middleware) RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s := m.settings()

		entry := RequestLogEntry{
			Timestamp:  start,
			Method:     r.Method,
			Path:       r.URL.Path,
			StatusCode: status,
			Duration:   elapsed,
			RequestID:  chimw.GetReqID(r.Context()),
		}
		if s.verbose {
			entry.Headers = make(map[string]string)
			for k := range r.Header {
				entry.Headers[k] = r.Header.Get(k)
			}
		}
		m.ReqLog.Add(entry)
		m.Metrics.ObserveRequest(r.Method, routePattern(r), status, elapsed)

		if s.verbose {
			m.logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", elapsed,
				"request_id", entry.RequestID,
			)
		}
	})
}

// routePattern returns the matched chi pattern so metric labels stay bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// LatencyInjection adds configurable latency to every request.
func (m *Middleware) LatencyInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if latency := m.settings().latency; latency > 0 {
			// 80-120% of configured latency
			jitter := 0.8 + rand.Float64()*0.4
			time.Sleep(time.Duration(float64(latency) * jitter))
		}
		next.ServeHTTP(w, r)
	})
}

// RandomFailure randomly returns 500 errors based on the configured fail rate.
func (m *Middleware) RandomFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rate := m.settings().failRate; rate > 0 && rand.Float64() < rate {
			Error(w, http.StatusInternalServerError, "simulated random failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FaultInjection checks the fault registry and applies any matching faults.
// Mount it inside route groups, not globally, so admin endpoints stay reachable.
func (m *Middleware) FaultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fault := m.Faults.Check(r.URL.Path); fault != nil {
			if fault.Delay > 0 {
				time.Sleep(fault.Delay)
			}
			if fault.StatusCode > 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(fault.StatusCode)
				if fault.Body != "" {
					fmt.Fprint(w, fault.Body)
				} else {
					fmt.Fprintf(w, `{"errors":[{"message":"injected fault"}],"code":%d}`, fault.StatusCode)
				}
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Idempotency replays the cached response for a repeated Idempotency-Key on
// POST requests.
func (m *Middleware) Idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if status, body, ok := m.Idempotent.Acquire(key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(status)
			w.Write(body)
			return
		}
		stored := false
		defer func() {
			if !stored {
				m.Idempotent.Abandon(key)
			}
		}()
		rec := &bodyRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.Idempotent.Store(key, rec.statusCode, rec.body)
		stored = true
	})
}

// bodyRecorder captures status and body for idempotency caching.
type bodyRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (br *bodyRecorder) WriteHeader(code int) {
	br.statusCode = code
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	br.body = append(br.body, b...)
	return br.ResponseWriter.Write(b)
}
