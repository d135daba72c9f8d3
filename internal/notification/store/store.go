// Package store persists notification records. Two implementations exist:
// an in-memory store for tests and single-node development, and a PostgreSQL
// store for production. Both return pkg/platform/sentinel errors for
// infrastructure facts; no business rules live here.
package store

import (
	"context"

	"famlink/internal/notification/models"
	"famlink/pkg/domain"
)

// Store is the narrow persistence contract for the notification log.
type Store interface {
	// Append persists a new notification and returns its assigned ID.
	Append(ctx context.Context, n *models.Notification) (int64, error)

	// FindByID returns the notification with the given ID or
	// sentinel.ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.Notification, error)

	// ListByOwnerDesc returns the owner's notifications newest first,
	// ordered by descending ID.
	ListByOwnerDesc(ctx context.Context, owner domain.UserID) ([]*models.Notification, error)

	// ExistsUnread reports whether the owner has at least one unread
	// notification.
	ExistsUnread(ctx context.Context, owner domain.UserID) (bool, error)

	// MarkRead flips IsRead to true for the given ID and returns the updated
	// record, or sentinel.ErrNotFound. Marking an already-read record is a
	// successful no-op.
	MarkRead(ctx context.Context, id int64) (*models.Notification, error)

	// MarkManyRead flips IsRead to true for every listed ID. Unknown IDs are
	// skipped; the listing path may race with a delete.
	MarkManyRead(ctx context.Context, ids []int64) error

	// ExistsDuplicate reports whether the owner already has a notification
	// with exactly this kind and content. Used by idempotent notice-creation
	// paths.
	ExistsDuplicate(ctx context.Context, owner domain.UserID, kind domain.NoticeKind, content string) (bool, error)

	// Delete removes a notification. Ops tooling only; not part of the
	// guaranteed contract.
	Delete(ctx context.Context, id int64) error
}
