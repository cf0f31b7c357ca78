// Package api implements the GraphQL record API and its HTTP routes.
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/graphql-go/handler"
	"github.com/wondertwin-ai/srvgraph/internal/store"
	"github.com/wondertwin-ai/srvgraph/pkg/twincore"
	"github.com/wondertwin-ai/srvgraph/pkg/webhook"
)

// GraphQLPath is where queries and mutations are served.
const GraphQLPath = "/graphql"

// Handler holds all API handler state.
type Handler struct {
	gql      http.Handler
	graphiql []byte
	mw       *twincore.Middleware
}

// NewHandler creates a new API handler. dispatcher may be nil.
func NewHandler(s *store.MemoryStore, dispatcher *webhook.Dispatcher, mw *twincore.Middleware) (*Handler, error) {
	res := NewResolver(s, dispatcher, mw.Metrics)
	schema, err := NewSchema(res)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return &Handler{
		gql: handler.New(&handler.Config{
			Schema: &schema,
			Pretty: true,
		}),
		graphiql: renderGraphiQL(GraphQLPath),
		mw:       mw,
	}, nil
}

// Routes mounts the explorer page and the GraphQL endpoint. Every other
// method and path answers 404 with an empty body.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.GraphiQL)

	r.Group(func(r chi.Router) {
		r.Use(h.mw.FaultInjection)
		r.Use(h.mw.Idempotency)

		r.Method(http.MethodGet, GraphQLPath, h.gql)
		r.Method(http.MethodPost, GraphQLPath, h.gql)
	})

	r.NotFound(twincore.NotFound)
	r.MethodNotAllowed(twincore.NotFound)
}
