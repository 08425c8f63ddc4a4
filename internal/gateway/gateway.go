// Package gateway performs identity-scoped writes to the document store.
//
// Each call is a single attempt. createdAt and updatedAt are always set
// from the store clock; values supplied by callers are dropped.
package gateway

import (
	"context"
	"fmt"

	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/metrics"
	"yeardash/internal/store"
)

const (
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// Writer is the part of the store the gateway needs.
type Writer interface {
	Create(ctx context.Context, path store.Path, fields map[string]any) (string, error)
	Update(ctx context.Context, path store.Path, id string, fields map[string]any) error
	Delete(ctx context.Context, path store.Path, id string) error
}

type Gateway struct {
	w       Writer
	logger  *log.Logger
	slog    *log.StructuredLogger
	metrics *metrics.Metrics
}

func New(w Writer, logger *log.Logger, m *metrics.Metrics) *Gateway {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentGateway)
	return &Gateway{w: w, logger: logger, slog: log.NewStructuredLogger(logger), metrics: m}
}

// Create adds a document and returns its id.
func (g *Gateway) Create(ctx context.Context, id *core.Identity, collection string, fields map[string]any) (string, error) {
	if id == nil {
		return "", core.ErrUnauthenticated
	}
	out := stripTimestamps(fields)
	out[fieldCreatedAt] = store.ServerTimestamp()
	out[fieldUpdatedAt] = store.ServerTimestamp()

	docID, err := g.w.Create(ctx, store.Path{UserID: id.ID, Collection: collection}, out)
	g.metrics.Mutation(collection, log.OpCreate, err)
	if err != nil {
		g.fail(ctx, err, log.OpCreate, id.ID, collection, "")
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	g.slog.LogMutation(ctx, log.OpCreate, id.ID, collection, docID)
	return docID, nil
}

// Update merges fields into a document and refreshes updatedAt.
func (g *Gateway) Update(ctx context.Context, id *core.Identity, collection, docID string, fields map[string]any) error {
	if id == nil {
		return core.ErrUnauthenticated
	}
	out := stripTimestamps(fields)
	out[fieldUpdatedAt] = store.ServerTimestamp()

	err := g.w.Update(ctx, store.Path{UserID: id.ID, Collection: collection}, docID, out)
	g.metrics.Mutation(collection, log.OpUpdate, err)
	if err != nil {
		g.fail(ctx, err, log.OpUpdate, id.ID, collection, docID)
		return fmt.Errorf("update %s: %w", collection, err)
	}
	g.slog.LogMutation(ctx, log.OpUpdate, id.ID, collection, docID)
	return nil
}

// Delete removes a document unconditionally.
func (g *Gateway) Delete(ctx context.Context, id *core.Identity, collection, docID string) error {
	if id == nil {
		return core.ErrUnauthenticated
	}
	err := g.w.Delete(ctx, store.Path{UserID: id.ID, Collection: collection}, docID)
	g.metrics.Mutation(collection, log.OpDelete, err)
	if err != nil {
		g.fail(ctx, err, log.OpDelete, id.ID, collection, docID)
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	g.slog.LogMutation(ctx, log.OpDelete, id.ID, collection, docID)
	return nil
}

func (g *Gateway) fail(ctx context.Context, err error, op, userID, collection, docID string) {
	g.slog.LogError(ctx, "Mutation failed", err, log.ComponentGateway, op,
		log.NewFields().WithDocument(userID, collection, docID))
}

func stripTimestamps(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		if k == fieldCreatedAt || k == fieldUpdatedAt || k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// IdentitySource yields the current identity on demand.
type IdentitySource interface {
	Identity() *core.Identity
}

// Bound is a Gateway that reads the identity from a session at call time.
type Bound struct {
	g   *Gateway
	ids IdentitySource
}

func (g *Gateway) Bind(ids IdentitySource) *Bound {
	return &Bound{g: g, ids: ids}
}

func (b *Bound) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	return b.g.Create(ctx, b.ids.Identity(), collection, fields)
}

func (b *Bound) Update(ctx context.Context, collection, docID string, fields map[string]any) error {
	return b.g.Update(ctx, b.ids.Identity(), collection, docID, fields)
}

func (b *Bound) Delete(ctx context.Context, collection, docID string) error {
	return b.g.Delete(ctx, b.ids.Identity(), collection, docID)
}
