package audit

import (
	"context"
	"fmt"
	"time"
)

// Publisher is a store-backed Emitter with synchronous writes.
type Publisher struct {
	store Store
}

// NewPublisher creates a publisher writing to the given store.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit validates and appends the event, stamping the timestamp if unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return fmt.Errorf("audit persistence failed: %w", err)
	}
	return nil
}
