package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"famlink/internal/notification/models"
	"famlink/pkg/domain"
	"famlink/pkg/platform/sentinel"
)

// Postgres persists notifications in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed notification store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the notifications table if it does not exist.
// Production deployments run migrations out of band; this keeps development
// and integration tests self-contained.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id          BIGSERIAL PRIMARY KEY,
	owner_id    UUID        NOT NULL,
	title       TEXT        NOT NULL,
	content     TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	is_read     BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_notifications_owner ON notifications (owner_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_owner_unread ON notifications (owner_id) WHERE NOT is_read;`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure notifications schema: %w", err)
	}
	return nil
}

func (s *Postgres) Append(ctx context.Context, n *models.Notification) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO notifications (owner_id, title, content, kind, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		uuid.UUID(n.Owner), n.Title, n.Content, string(n.Kind), n.IsRead, n.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append notification: %w", err)
	}
	return id, nil
}

func (s *Postgres) FindByID(ctx context.Context, id int64) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, content, kind, is_read, created_at
		 FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find notification by id: %w", err)
	}
	return n, nil
}

func (s *Postgres) ListByOwnerDesc(ctx context.Context, owner domain.UserID) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, content, kind, is_read, created_at
		 FROM notifications WHERE owner_id = $1 ORDER BY id DESC`,
		uuid.UUID(owner))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *Postgres) ExistsUnread(ctx context.Context, owner domain.UserID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE owner_id = $1 AND NOT is_read)`,
		uuid.UUID(owner)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check unread: %w", err)
	}
	return exists, nil
}

func (s *Postgres) MarkRead(ctx context.Context, id int64) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1
		 RETURNING id, owner_id, title, content, kind, is_read, created_at`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *Postgres) MarkManyRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

func (s *Postgres) ExistsDuplicate(ctx context.Context, owner domain.UserID, kind domain.NoticeKind, content string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE owner_id = $1 AND kind = $2 AND content = $3
		 )`,
		uuid.UUID(owner), string(kind), content).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate notice: %w", err)
	}
	return exists, nil
}

func (s *Postgres) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n       models.Notification
		ownerID uuid.UUID
		kind    string
	)
	if err := row.Scan(&n.ID, &ownerID, &n.Title, &n.Content, &kind, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Owner = domain.UserID(ownerID)
	n.Kind = domain.NoticeKind(kind)
	return &n, nil
}
