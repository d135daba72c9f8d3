// Package audit captures key notification actions for operational
// visibility. Events are emitted from domain logic and kept
// transport-agnostic so sinks can vary: an in-process store for development
// and tests, or a Kafka topic in production.
//
// Notification audit events are operations-category: emission is fail-open,
// and callers log but do not abort on emit errors.
package audit

import (
	"context"
	"time"

	"famlink/pkg/domain"
)

// Action identifies what happened.
type Action string

const (
	ActionNoticeCreated Action = "notice_created"
	ActionNoticeRead    Action = "notice_read"
	ActionNoticesViewed Action = "notices_viewed"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	UserID    domain.UserID `json:"user_id"`
	Action    Action        `json:"action"`
	NoticeID  int64         `json:"notice_id,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// Emitter accepts audit events. Implementations must be safe for concurrent
// use.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events and supports per-user lookup. The memory
// implementation backs development and tests.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID domain.UserID) ([]Event, error)
}
