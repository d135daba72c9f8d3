package store

import (
	"context"
	"sort"
	"sync"

	"famlink/internal/notification/models"
	"famlink/pkg/domain"
	"famlink/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded map store. IDs are assigned from a process-local
// counter, so descending ID equals newest first just like the serial column
// in the PostgreSQL store.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[int64]*models.Notification)}
}

func (s *InMemory) Append(_ context.Context, n *models.Notification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	stored := *n
	stored.ID = s.nextID
	s.byID[stored.ID] = &stored
	return stored.ID, nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (s *InMemory) ListByOwnerDesc(_ context.Context, owner domain.UserID) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.byID {
		if n.Owner == owner {
			copied := *n
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *InMemory) ExistsUnread(_ context.Context, owner domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.byID {
		if n.Owner == owner && !n.IsRead {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) MarkRead(_ context.Context, id int64) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	n.IsRead = true
	copied := *n
	return &copied, nil
}

func (s *InMemory) MarkManyRead(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if n, ok := s.byID[id]; ok {
			n.IsRead = true
		}
	}
	return nil
}

func (s *InMemory) ExistsDuplicate(_ context.Context, owner domain.UserID, kind domain.NoticeKind, content string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.byID {
		if n.Owner == owner && n.Kind == kind && n.Content == content {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}
