package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"famlink/pkg/domain"
)

func TestTimeLabel(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		created time.Time
		want    string
	}{
		{"same day afternoon", time.Date(2025, 6, 15, 15, 40, 0, 0, time.UTC), "PM 3:40"},
		{"same day morning", time.Date(2025, 6, 15, 9, 5, 0, 0, time.UTC), "AM 9:05"},
		{"same day midnight", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), "AM 12:00"},
		{"yesterday", time.Date(2025, 6, 14, 23, 59, 0, 0, time.UTC), "yesterday 23:59"},
		{"yesterday morning", time.Date(2025, 6, 14, 8, 15, 0, 0, time.UTC), "yesterday 08:15"},
		{"two days ago", time.Date(2025, 6, 13, 14, 30, 0, 0, time.UTC), "2 days ago"},
		{"a month ago", time.Date(2025, 5, 16, 10, 0, 0, 0, time.UTC), "30 days ago"},
		{"slightly in the future", now.Add(2 * time.Minute), "PM 2:32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeLabel(tt.created, now))
		})
	}
}

func TestTimeLabel_CalendarBoundaryNotDuration(t *testing.T) {
	// 1 AM vs 11 PM the previous day is two hours apart but still "yesterday".
	now := time.Date(2025, 6, 15, 1, 0, 0, 0, time.UTC)
	created := time.Date(2025, 6, 14, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "yesterday 23:00", TimeLabel(created, now))
}

func TestNewView(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	n := &Notification{
		ID:        42,
		Owner:     domain.UserID(uuid.New()),
		Title:     "Goal achieved",
		Content:   "Mina achieved the goal: First savings",
		Kind:      domain.NoticeKindGoal,
		IsRead:    false,
		CreatedAt: now.Add(-26 * time.Hour),
	}

	v := NewView(n, now)
	assert.Equal(t, int64(42), v.ID)
	assert.Equal(t, "GOAL", v.Type)
	assert.Equal(t, "yesterday 12:30", v.Time)
	assert.False(t, v.IsRead)
}
