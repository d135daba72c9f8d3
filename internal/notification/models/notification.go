// Package models defines the notification aggregate and its client-facing
// view.
package models

import (
	"fmt"
	"time"

	"famlink/pkg/domain"
)

// Notification is a durable record addressed to exactly one owner.
//
// Invariants:
//   - Owner is immutable after creation
//   - IsRead is monotonic: false→true only, never back
//   - ID is assigned by the store and orders records (descending = newest)
//
// Notifications are created only by the notification service on behalf of a
// workflow, never by direct client request, and are not deleted in normal
// operation.
type Notification struct {
	ID        int64             `json:"id"`
	Owner     domain.UserID     `json:"owner"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Kind      domain.NoticeKind `json:"kind"`
	IsRead    bool              `json:"is_read"`
	CreatedAt time.Time         `json:"created_at"`
}

// View is the wire representation returned by the listing endpoint and
// pushed over live connections. Time carries a relative, human-readable
// label computed at read time.
type View struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type"`
	Time    string `json:"time"`
	IsRead  bool   `json:"isRead"`
}

// NewView builds the client view of n, labeling CreatedAt relative to now.
func NewView(n *Notification, now time.Time) View {
	return View{
		ID:      n.ID,
		Title:   n.Title,
		Content: n.Content,
		Type:    n.Kind.String(),
		Time:    TimeLabel(n.CreatedAt, now),
		IsRead:  n.IsRead,
	}
}

// TimeLabel renders created relative to now:
//   - same calendar day: "AM 9:05" / "PM 3:40"
//   - previous calendar day: "yesterday 15:04"
//   - otherwise: "N days ago"
//
// Calendar days are compared in now's location so the boundary follows the
// server's local midnight.
func TimeLabel(created, now time.Time) string {
	loc := now.Location()
	created = created.In(loc)

	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	startOfCreated := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, loc)
	days := int(startOfToday.Sub(startOfCreated).Hours() / 24)

	switch days {
	case 0:
		return created.Format("PM 3:04")
	case 1:
		return "yesterday " + created.Format("15:04")
	default:
		if days < 0 {
			// Clock skew can put a fresh record marginally in the future.
			return created.Format("PM 3:04")
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
