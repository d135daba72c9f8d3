package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famlink/internal/notification/broker"
	"famlink/internal/notification/models"
	"famlink/internal/notification/service"
	"famlink/internal/notification/store"
	"famlink/pkg/domain"
	"famlink/pkg/requestcontext"
	"famlink/pkg/testutil"
)

// stubValidator maps opaque tokens to user IDs so handler tests skip real
// JWT plumbing.
type stubValidator struct {
	users map[string]domain.UserID
}

func (v *stubValidator) ValidateToken(token string) (domain.UserID, error) {
	id, ok := v.users[token]
	if !ok {
		return domain.UserID{}, fmt.Errorf("unknown token")
	}
	return id, nil
}

type fixture struct {
	router   chi.Router
	svc      *service.Service
	registry *broker.Registry
	owner    domain.UserID
	stranger domain.UserID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewInMemory()
	registry := broker.NewRegistry(logger)
	svc := service.New(st, registry, logger)

	owner := domain.UserID(uuid.New())
	stranger := domain.UserID(uuid.New())
	validator := &stubValidator{users: map[string]domain.UserID{
		"owner-token":    owner,
		"stranger-token": stranger,
	}}

	h := New(svc, registry, validator, logger)
	router := chi.NewRouter()
	h.Register(router)

	return &fixture{router: router, svc: svc, registry: registry, owner: owner, stranger: stranger}
}

func (f *fixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewRequest(t, method, path)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(f.router, req)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/notice", "/notices"} {
		rec := f.do(t, http.MethodGet, path, "")
		testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
	}

	rec := f.do(t, http.MethodGet, "/notice", "bogus")
	testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
}

func TestCheckUnreadEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/notice", "owner-token")
	testutil.AssertStatus(t, rec, http.StatusOK)
	body := testutil.UnmarshalResponse[map[string]bool](t, rec)
	assert.False(t, (*body)["hasNotice"])

	_, err := f.svc.Notify(context.Background(), f.owner, domain.NoticeKindGoal, "New goal request", "Mina requested a new goal: Bike fund")
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/notice", "owner-token")
	testutil.AssertStatus(t, rec, http.StatusOK)
	body = testutil.UnmarshalResponse[map[string]bool](t, rec)
	assert.True(t, (*body)["hasNotice"])
}

func TestListNoticesEndpoint(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Notify(context.Background(), f.owner, domain.NoticeKindGoal, "New goal request", "Mina requested a new goal: Bike fund")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/notices", "owner-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []models.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.Equal(t, "New goal request", views[0].Title)
	assert.Equal(t, "GOAL", views[0].Type)
	assert.NotEmpty(t, views[0].Time)

	// Listing marked the notice read.
	recCheck := f.do(t, http.MethodGet, "/notice", "owner-token")
	var body map[string]bool
	require.NoError(t, json.NewDecoder(recCheck.Body).Decode(&body))
	assert.False(t, body["hasNotice"])

	// Other users see nothing, and an empty listing is an empty array.
	rec = f.do(t, http.MethodGet, "/notices", "stranger-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestMarkReadEndpoint(t *testing.T) {
	f := newFixture(t)

	n, err := f.svc.Notify(context.Background(), f.owner, domain.NoticeKindGoal, "New goal request", "x")
	require.NoError(t, err)

	t.Run("bad id", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/notices/abc/read", "owner-token")
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "bad_request")
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/notices/9999/read", "owner-token")
		testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
	})

	t.Run("wrong owner", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, fmt.Sprintf("/notices/%d/read", n.ID), "stranger-token")
		testutil.AssertStatusAndError(t, rec, http.StatusForbidden, "forbidden")
	})

	t.Run("owner succeeds with empty body", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, fmt.Sprintf("/notices/%d/read", n.ID), "owner-token")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

// readSSEEvent reads one "event:"/"data:" pair from the stream.
func readSSEEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestSubscribeStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/notifications/subscribe?token=owner-token", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// The synthetic connect event arrives before anything else.
	name, data := readSSEEvent(t, reader)
	assert.Equal(t, "connect", name)
	assert.JSONEq(t, `{"status":"connected"}`, data)

	// A notice created while subscribed is pushed live.
	_, err = f.svc.Notify(context.Background(), f.owner, domain.NoticeKindGoal, "Goal achieved", "Mina achieved the goal: Bike fund")
	require.NoError(t, err)

	name, data = readSSEEvent(t, reader)
	assert.Equal(t, "notification", name)

	var view models.View
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, "Goal achieved", view.Title)
	assert.False(t, view.IsRead)

	// Client disconnect triggers teardown; the registry must not leak the
	// handle.
	cancel()
	require.Eventually(t, func() bool {
		return f.registry.ConnCount(f.owner) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeStream_OtherOwnerNotDelivered(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/notifications/subscribe?token=owner-token", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	name, _ := readSSEEvent(t, reader)
	require.Equal(t, "connect", name)

	// A notice for someone else, then one for the subscriber. Only the
	// latter shows up on this stream.
	_, err = f.svc.Notify(context.Background(), f.stranger, domain.NoticeKindGoal, "Not yours", "other")
	require.NoError(t, err)
	_, err = f.svc.Notify(context.Background(), f.owner, domain.NoticeKindSystem, "Family link complete", "Your child Mina has joined your family.")
	require.NoError(t, err)

	name, data := readSSEEvent(t, reader)
	assert.Equal(t, "notification", name)
	var view models.View
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, "Family link complete", view.Title)
}

// Calling the list handler directly with a pre-seeded context pins the time
// labels without the middleware chain in the way.
func TestListNoticesTimeLabels(t *testing.T) {
	f := newFixture(t)
	h := New(f.svc, f.registry, &stubValidator{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	now := time.Date(2024, 5, 10, 15, 40, 0, 0, time.UTC)
	created := requestcontext.WithTime(context.Background(), now.Add(-10*time.Minute))
	_, err := f.svc.Notify(created, f.owner, domain.NoticeKindGoal, "New goal request", "x")
	require.NoError(t, err)

	req := testutil.NewRequest(t, http.MethodGet, "/notices")
	req = testutil.WithUserID(req, f.owner.String())
	req = testutil.WithTime(req, now)

	rec := httptest.NewRecorder()
	h.handleListNotices(rec, req)
	testutil.AssertStatus(t, rec, http.StatusOK)

	views := testutil.UnmarshalResponse[[]models.View](t, rec)
	require.Len(t, *views, 1)
	assert.Equal(t, "PM 3:30", (*views)[0].Time)
}

// Closing the registry must release every streaming handler so the server
// can drain within its shutdown budget even while a subscriber is connected.
func TestShutdownDrainsAfterCloseAll(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/notifications/subscribe?token=owner-token", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	name, _ := readSSEEvent(t, reader)
	require.Equal(t, "connect", name)

	// Teardown first, then drain: with the stream still open, Shutdown
	// alone would block until its deadline.
	f.registry.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	assert.NoError(t, srv.Config.Shutdown(shutdownCtx))

	// The client sees the stream end rather than hanging.
	_, err = reader.ReadString('\n')
	assert.Error(t, err)
}

func TestSubscribeRequiresAuth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/notifications/subscribe", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
