// Package webhook provides an outbound webhook dispatcher with delivery,
// retry, and pluggable signing for record events.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Signer signs webhook payloads.
type Signer interface {
	// Sign returns headers to add to the webhook request for signature verification.
	Sign(payload []byte, secret string) map[string]string
}

// Event represents a webhook event to be dispatched.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Delivery records a webhook delivery attempt.
type Delivery struct {
	EventID    string    `json:"event_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	Timestamp  time.Time `json:"timestamp"`
}

// Dispatcher manages outbound webhook delivery.
type Dispatcher struct {
	mu          sync.RWMutex
	url         string
	secret      string
	signer      Signer
	logger      *slog.Logger
	queue       []Event // events awaiting Flush
	deliveries  []Delivery
	maxRetries  int
	retryDelay  time.Duration
	maxHistory  int
	client      *http.Client
	eventPrefix string
	autoDeliver bool
	inflight    sync.WaitGroup
}

// Config configures the webhook dispatcher.
type Config struct {
	URL         string
	Secret      string
	Signer      Signer
	Logger      *slog.Logger
	MaxRetries  int
	RetryDelay  time.Duration
	EventPrefix string
	MaxHistory  int  // cap on queued events and on delivery records
	AutoDeliver bool // deliver each event asynchronously instead of queueing it
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 1 * time.Second
	}
	if cfg.EventPrefix == "" {
		cfg.EventPrefix = "evt"
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Dispatcher{
		url:         cfg.URL,
		secret:      cfg.Secret,
		signer:      cfg.Signer,
		logger:      cfg.Logger,
		queue:       make([]Event, 0),
		deliveries:  make([]Delivery, 0),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		maxHistory:  cfg.MaxHistory,
		client:      &http.Client{Timeout: 30 * time.Second},
		eventPrefix: cfg.EventPrefix,
		autoDeliver: cfg.AutoDeliver,
	}
}

// Retarget points the dispatcher at url. A non-empty url turns on
// background delivery; an empty one sends new events back to the queue.
// Events already queued stay queued.
func (d *Dispatcher) Retarget(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	d.autoDeliver = url != ""
}

// Enqueue records an event. With AutoDeliver it is delivered in the
// background; otherwise it waits in the queue for Flush.
func (d *Dispatcher) Enqueue(eventType string, payload map[string]any) Event {
	evt := Event{
		ID:        d.eventPrefix + "_" + uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	d.mu.Lock()
	autoDeliver := d.autoDeliver
	if !autoDeliver {
		if len(d.queue) >= d.maxHistory {
			d.logger.Warn("webhook queue full, dropping oldest event", "event_id", d.queue[0].ID)
			d.queue = d.queue[1:]
		}
		d.queue = append(d.queue, evt)
	}
	d.mu.Unlock()

	if autoDeliver {
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			if err := d.deliverEvent(context.Background(), evt); err != nil {
				d.logger.Warn("webhook delivery failed", "event_id", evt.ID, "err", err)
			}
		}()
	}

	return evt
}

// Flush delivers all queued events synchronously. Events enqueued while the
// flush runs stay queued for the next call.
func (d *Dispatcher) Flush() error {
	d.mu.Lock()
	events := d.queue
	d.queue = make([]Event, 0)
	d.mu.Unlock()

	var lastErr error
	for _, evt := range events {
		if err := d.deliverEvent(context.Background(), evt); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// FlushWebhooks implements admin.Webhooks.
func (d *Dispatcher) FlushWebhooks() error {
	return d.Flush()
}

// Wait blocks until all background deliveries have finished.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) deliverEvent(ctx context.Context, evt Event) error {
	d.mu.RLock()
	url := d.url
	secret := d.secret
	signer := d.signer
	d.mu.RUnlock()

	if url == "" {
		d.logger.Debug("no webhook URL configured, skipping delivery", "event_id", evt.ID)
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		if signer != nil && secret != "" {
			for k, v := range signer.Sign(payload, secret) {
				req.Header.Set(k, v)
			}
		}

		resp, err := d.client.Do(req)
		delivery := Delivery{
			EventID:   evt.ID,
			URL:       url,
			Attempt:   attempt,
			Timestamp: time.Now(),
		}

		if err != nil {
			delivery.Error = err.Error()
			lastErr = err
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			delivery.StatusCode = resp.StatusCode
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				d.record(delivery)
				return nil
			}
			lastErr = fmt.Errorf("webhook delivery failed: status %d", resp.StatusCode)
		}
		d.record(delivery)

		if attempt < d.maxRetries {
			time.Sleep(d.retryDelay)
		}
	}

	return lastErr
}

func (d *Dispatcher) record(delivery Delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deliveries) >= d.maxHistory {
		d.deliveries = d.deliveries[1:]
	}
	d.deliveries = append(d.deliveries, delivery)
}

// Deliveries returns the most recent delivery records, oldest first.
func (d *Dispatcher) Deliveries() []Delivery {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Delivery, len(d.deliveries))
	copy(out, d.deliveries)
	return out
}

// QueuedEvents returns all queued but undelivered events.
func (d *Dispatcher) QueuedEvents() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.queue))
	copy(out, d.queue)
	return out
}

// Reset clears the queue and the delivery log.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = d.queue[:0]
	d.deliveries = d.deliveries[:0]
}
