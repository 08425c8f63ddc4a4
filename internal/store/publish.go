package store

import (
	"context"

	"yeardash/internal/log"
)

// ChangeOp names the kind of write behind a Change.
type ChangeOp string

const (
	ChangeCreate ChangeOp = "create"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// Change describes a successful write, for other processes watching the same store.
type Change struct {
	Path  Path
	DocID string
	Op    ChangeOp
}

// ChangePublisher broadcasts changes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, c Change) error
}

// Publishing wraps a Store and announces every successful write. A failed
// announcement is logged and does not fail the write.
type Publishing struct {
	Store
	pub    ChangePublisher
	logger *log.Logger
}

func WithPublisher(s Store, pub ChangePublisher, logger *log.Logger) *Publishing {
	if logger == nil {
		logger = log.Discard()
	}
	return &Publishing{Store: s, pub: pub, logger: logger.WithComponent(log.ComponentStorage)}
}

func (p *Publishing) Create(ctx context.Context, path Path, fields map[string]any) (string, error) {
	id, err := p.Store.Create(ctx, path, fields)
	if err != nil {
		return "", err
	}
	p.announce(ctx, Change{Path: path, DocID: id, Op: ChangeCreate})
	return id, nil
}

func (p *Publishing) Update(ctx context.Context, path Path, id string, fields map[string]any) error {
	if err := p.Store.Update(ctx, path, id, fields); err != nil {
		return err
	}
	p.announce(ctx, Change{Path: path, DocID: id, Op: ChangeUpdate})
	return nil
}

func (p *Publishing) Delete(ctx context.Context, path Path, id string) error {
	if err := p.Store.Delete(ctx, path, id); err != nil {
		return err
	}
	p.announce(ctx, Change{Path: path, DocID: id, Op: ChangeDelete})
	return nil
}

// Refresh forwards to the wrapped store when it can refresh.
func (p *Publishing) Refresh(ctx context.Context, path Path) {
	if r, ok := p.Store.(Refresher); ok {
		r.Refresh(ctx, path)
	}
}

func (p *Publishing) announce(ctx context.Context, c Change) {
	if err := p.pub.PublishChange(ctx, c); err != nil {
		p.logger.WarnContext(ctx, "Failed to publish change",
			log.NewFields().
				WithDocument(c.Path.UserID, c.Path.Collection, c.DocID).
				WithOperation(log.OpPublish).
				WithError(err).
				ToSlice()...)
	}
}

var _ Store = (*Publishing)(nil)
