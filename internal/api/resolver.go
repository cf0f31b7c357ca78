package api

import (
	"errors"

	"github.com/wondertwin-ai/srvgraph/internal/store"
	"github.com/wondertwin-ai/srvgraph/pkg/twincore"
	"github.com/wondertwin-ai/srvgraph/pkg/webhook"
)

// APIVersion is reported by the apiVersion query.
const APIVersion = "0.1.0"

// EventRecordCreated is the webhook event type enqueued by createRecord.
const EventRecordCreated = "record.created"

// ErrNotFound is returned by the record query for an unknown id.
var ErrNotFound = errors.New("not found")

// Resolver is the state shared by every operation: one per process,
// handed to all requests by reference.
type Resolver struct {
	store   *store.MemoryStore
	events  *webhook.Dispatcher
	metrics *twincore.Metrics
}

// NewResolver creates a Resolver. events and metrics may be nil.
func NewResolver(s *store.MemoryStore, events *webhook.Dispatcher, metrics *twincore.Metrics) *Resolver {
	return &Resolver{store: s, events: events, metrics: metrics}
}

// APIVersion returns the fixed API version string.
func (r *Resolver) APIVersion() string {
	r.observe("apiVersion", nil)
	return APIVersion
}

// Record looks up the record stored at id.
func (r *Resolver) Record(id int) (store.Entry, error) {
	rec, ok := r.store.Get(id)
	if !ok {
		r.observe("record", ErrNotFound)
		return store.Entry{}, ErrNotFound
	}
	r.observe("record", nil)
	return store.Entry{ID: id, Record: rec}, nil
}

// CreateRecord stores a new record and announces it to webhook subscribers.
func (r *Resolver) CreateRecord(in store.NewRecordInput) store.Entry {
	entry := r.store.Add(in)
	r.observe("createRecord", nil)
	if r.events != nil {
		r.events.Enqueue(EventRecordCreated, map[string]any{
			"id":   entry.ID,
			"name": entry.Name,
			"desc": entry.Desc,
		})
	}
	return entry
}

func (r *Resolver) observe(op string, err error) {
	if r.metrics != nil {
		r.metrics.ObserveOperation(op, err)
	}
}
