// Package service is the notification facade. External workflows (goal
// approval, feedback, family linking) create notices through it; clients
// read and acknowledge them through it. It owns the create → persist → push
// sequence; durability comes from the store, live delivery through the
// broker is best effort.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"famlink/internal/notification/metrics"
	"famlink/internal/notification/models"
	"famlink/internal/notification/store"
	"famlink/pkg/domain"
	dErrors "famlink/pkg/domain-errors"
	"famlink/pkg/platform/audit"
	"famlink/pkg/platform/sentinel"
	"famlink/pkg/requestcontext"
)

// PushEventName is the event name live notification payloads are sent under.
const PushEventName = "notification"

// Broker delivers payloads to an owner's live connections. Delivery is fire
// and forget; failures stay inside the broker.
type Broker interface {
	Send(ctx context.Context, owner domain.UserID, event string, payload any)
}

// Service orchestrates the notification log and the live broker.
type Service struct {
	store   store.Store
	broker  Broker
	cache   UnreadCache
	audit   audit.Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithUnreadCache installs a cache in front of the unread-existence query.
func WithUnreadCache(c UnreadCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithAuditEmitter installs an audit sink.
func WithAuditEmitter(e audit.Emitter) Option {
	return func(s *Service) { s.audit = e }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a notification service.
func New(st store.Store, broker Broker, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		broker: broker,
		cache:  noopCache{},
		logger: logger,
		tracer: otel.Tracer("famlink/internal/notification/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckUnread reports whether owner has at least one unread notification.
func (s *Service) CheckUnread(ctx context.Context, owner domain.UserID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "notification.CheckUnread")
	defer span.End()

	if has, ok := s.cache.Get(ctx, owner); ok {
		return has, nil
	}

	has, err := s.store.ExistsUnread(ctx, owner)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check unread notices")
	}
	s.cache.Set(ctx, owner, has)
	return has, nil
}

// ListAndMarkRead returns the owner's notifications newest first, each view
// labeled relative to the request time, and marks every returned record
// read. Viewing implies read: the next CheckUnread reports false. The
// returned views carry the read-state as it was when listed, so clients can
// still highlight what was new.
func (s *Service) ListAndMarkRead(ctx context.Context, owner domain.UserID) ([]models.View, error) {
	ctx, span := s.tracer.Start(ctx, "notification.ListAndMarkRead")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveList(start)
		}
	}()

	list, err := s.store.ListByOwnerDesc(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notices")
	}

	now := requestcontext.Now(ctx)
	views := make([]models.View, 0, len(list))
	var unread []int64
	for _, n := range list {
		views = append(views, models.NewView(n, now))
		if !n.IsRead {
			unread = append(unread, n.ID)
		}
	}

	if len(unread) > 0 {
		if err := s.store.MarkManyRead(ctx, unread); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notices read")
		}
		s.cache.Invalidate(ctx, owner)
		s.emitAudit(ctx, audit.Event{
			UserID: owner,
			Action: audit.ActionNoticesViewed,
		})
	}

	return views, nil
}

// MarkRead flips one notification to read on behalf of owner.
//
// Errors: CodeNotFound when the id is unknown, CodeForbidden when owner is
// not the notification's owner. Marking an already-read notification is a
// silent success; IsRead never transitions back to false.
func (s *Service) MarkRead(ctx context.Context, owner domain.UserID, id int64) error {
	ctx, span := s.tracer.Start(ctx, "notification.MarkRead")
	defer span.End()

	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notice not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notice")
	}
	if n.Owner != owner {
		return dErrors.New(dErrors.CodeForbidden, "notice belongs to another user")
	}
	if n.IsRead {
		return nil
	}

	if _, err := s.store.MarkRead(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notice not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notice read")
	}
	s.cache.Invalidate(ctx, owner)
	s.emitAudit(ctx, audit.Event{
		UserID:   owner,
		Action:   audit.ActionNoticeRead,
		NoticeID: id,
		Kind:     n.Kind.String(),
	})
	return nil
}

// Notify is the single create + persist + push primitive behind every notice
// kind. It appends the notification to the durable log, then attempts live
// delivery to any open connections for owner. Push failures never surface:
// an offline owner sees the notice on the next poll.
func (s *Service) Notify(ctx context.Context, owner domain.UserID, kind domain.NoticeKind, title, content string) (*models.Notification, error) {
	ctx, span := s.tracer.Start(ctx, "notification.Notify")
	defer span.End()

	n := &models.Notification{
		Owner:     owner,
		Title:     title,
		Content:   content,
		Kind:      kind,
		IsRead:    false,
		CreatedAt: requestcontext.Now(ctx),
	}

	id, err := s.store.Append(ctx, n)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create notice")
	}
	n.ID = id

	if s.metrics != nil {
		s.metrics.NoticeCreated(kind.String())
	}
	s.cache.Invalidate(ctx, owner)
	s.emitAudit(ctx, audit.Event{
		UserID:   owner,
		Action:   audit.ActionNoticeCreated,
		NoticeID: id,
		Kind:     kind.String(),
	})

	s.broker.Send(ctx, owner, PushEventName, models.NewView(n, n.CreatedAt))
	return n, nil
}

// Delete removes a notification on behalf of owner. Ops paths only; clients
// have no route to it.
func (s *Service) Delete(ctx context.Context, owner domain.UserID, id int64) error {
	ctx, span := s.tracer.Start(ctx, "notification.Delete")
	defer span.End()

	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notice not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notice")
	}
	if n.Owner != owner {
		return dErrors.New(dErrors.CodeForbidden, "notice belongs to another user")
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete notice")
	}
	s.cache.Invalidate(ctx, owner)
	return nil
}

// emitAudit reports the event fail-open: notification audit is operational,
// not compliance, so a sink failure is logged and swallowed.
func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(event.Action),
			"error", err,
		)
	}
}
