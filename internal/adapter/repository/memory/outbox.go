package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// Outbox keeps outbox events in the Store. Events created inside a Tx are
// visible only after Commit.
type Outbox struct {
	store *Store
}

var _ usecase.OutboxRepository = (*Outbox)(nil)

// NewOutbox creates an outbox backed by store.
func NewOutbox(store *Store) *Outbox {
	return &Outbox{store: store}
}

// Create stores an event.
func (o *Outbox) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	t, err := o.store.asTx(tx)
	if err != nil {
		return err
	}

	stored := *event
	if t != nil {
		t.events = append(t.events, &stored)
		return nil
	}

	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	o.store.events = append(o.store.events, &stored)

	return nil
}

// GetUnpublished returns up to limit unpublished events, oldest first.
func (o *Outbox) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	o.store.mu.RLock()
	defer o.store.mu.RUnlock()

	events := make([]*domain.OutboxEvent, 0)
	for _, e := range o.store.events {
		if len(events) >= limit {
			break
		}
		if !e.Published {
			copied := *e
			events = append(events, &copied)
		}
	}

	return events, nil
}

// MarkPublished flags an event as published.
func (o *Outbox) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()

	for _, e := range o.store.events {
		if e.ID == id {
			at := publishedAt
			e.Published = true
			e.PublishedAt = &at
			return nil
		}
	}

	return fmt.Errorf("outbox event %s not found", id)
}

// DeletePublished removes published events older than before.
func (o *Outbox) DeletePublished(ctx context.Context, before time.Time) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()

	kept := o.store.events[:0]
	for _, e := range o.store.events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	o.store.events = kept

	return nil
}
