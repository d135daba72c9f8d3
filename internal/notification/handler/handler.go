// Package handler is the thin HTTP layer over the notification service and
// broker. It delegates to them without embedding business logic so transport
// concerns stay isolated.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"famlink/internal/notification/broker"
	"famlink/internal/notification/models"
	"famlink/internal/platform/middleware"
	"famlink/pkg/domain"
	dErrors "famlink/pkg/domain-errors"
	"famlink/pkg/platform/httputil"
	"famlink/pkg/requestcontext"
)

// Service defines the notification operations the HTTP layer needs.
type Service interface {
	CheckUnread(ctx context.Context, owner domain.UserID) (bool, error)
	ListAndMarkRead(ctx context.Context, owner domain.UserID) ([]models.View, error)
	MarkRead(ctx context.Context, owner domain.UserID, id int64) error
}

// Subscriber registers live connections. Satisfied by *broker.Registry.
type Subscriber interface {
	Subscribe(owner domain.UserID) (*broker.Connection, error)
	Complete(conn *broker.Connection)
	Fail(conn *broker.Connection)
}

// Handler handles notification endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	subscriber   Subscriber
	jwtValidator middleware.JWTValidator
}

// New creates a notification Handler.
func New(service Service, subscriber Subscriber, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		subscriber:   subscriber,
		jwtValidator: jwtValidator,
	}
}

// Register registers the notification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	noticeRouter := chi.NewRouter()
	noticeRouter.Use(middleware.Recovery(h.logger))
	noticeRouter.Use(middleware.RequestID)
	noticeRouter.Use(middleware.RequestTime)
	noticeRouter.Use(middleware.Logger(h.logger))
	noticeRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	noticeRouter.Get("/notice", h.handleCheckUnread)
	noticeRouter.Get("/notices", h.handleListNotices)
	noticeRouter.Patch("/notices/{id}/read", h.handleMarkRead)
	noticeRouter.Get("/notifications/subscribe", h.handleSubscribe)

	r.Mount("/", noticeRouter)
}

// handleCheckUnread reports whether the caller has unread notices.
func (h *Handler) handleCheckUnread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.owner(ctx, w)
	if !ok {
		return
	}

	has, err := h.service.CheckUnread(ctx, owner)
	if err != nil {
		h.logError(ctx, "failed to check unread notices", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"hasNotice": has})
}

// handleListNotices returns the caller's notices newest first, marking them
// read as a side effect of the listing.
func (h *Handler) handleListNotices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.owner(ctx, w)
	if !ok {
		return
	}

	views, err := h.service.ListAndMarkRead(ctx, owner)
	if err != nil {
		h.logError(ctx, "failed to list notices", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.owner(ctx, w)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid notice id"))
		return
	}

	if err := h.service.MarkRead(ctx, owner, id); err != nil {
		if dErrors.Is(err, dErrors.CodeInternal) {
			h.logError(ctx, "failed to mark notice read", err)
		}
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleSubscribe holds the response open as a server-sent event stream. The
// broker queues events; this goroutine writes them until the client goes
// away, the stream errors, or the connection's lifetime expires.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.owner(ctx, w)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	conn, err := h.subscriber.Subscribe(owner)
	if err != nil {
		h.logError(ctx, "failed to subscribe", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to open stream"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev := <-conn.Events():
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
				h.subscriber.Fail(conn)
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			h.subscriber.Complete(conn)
			return
		case <-conn.Done():
			// Timed out or removed by the broker; just stop writing.
			return
		}
	}
}

// owner pulls the authenticated user from context. Absence means the auth
// middleware was bypassed, which is a wiring bug, not a client error.
func (h *Handler) owner(ctx context.Context, w http.ResponseWriter) (domain.UserID, bool) {
	owner := requestcontext.UserID(ctx)
	if owner.IsNil() {
		h.logger.ErrorContext(ctx, "user id missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.UserID{}, false
	}
	return owner, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
