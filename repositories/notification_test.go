package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestNotificationRepository(t *testing.T) *NotificationRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewNotificationRepository(db, slog.Default())
}

func notification(target, title string, category domain.Category, at time.Time) domain.Notification {
	return domain.Notification{
		ID:           uuid.New(),
		Title:        title,
		Body:         "body",
		Category:     category,
		TargetUserID: target,
		CreatedAt:    at,
	}
}

func Test_ListUnread_Newest_First(t *testing.T) {
	req := require.New(t)
	repo := newTestNotificationRepository(t)

	at := time.Now().UTC()
	req.NoError(repo.Create(notification("bob", "oldest", domain.CategoryMessage, at)))
	req.NoError(repo.Create(notification("bob", "middle", domain.CategoryTask, at.Add(time.Second))))
	req.NoError(repo.Create(notification("bob", "newest", domain.CategoryTicket, at.Add(2*time.Second))))
	req.NoError(repo.Create(notification("alice", "not bob's", domain.CategoryPayroll, at.Add(3*time.Second))))

	unread, err := repo.ListUnread("bob")
	req.NoError(err)
	req.Len(unread, 3)
	req.Equal("newest", unread[0].Title)
	req.Equal("middle", unread[1].Title)
	req.Equal("oldest", unread[2].Title)
}

func Test_MarkRead_Single_Notification(t *testing.T) {
	req := require.New(t)
	repo := newTestNotificationRepository(t)

	n := notification("bob", "ping", domain.CategoryMessage, time.Now().UTC())
	req.NoError(repo.Create(n))

	req.NoError(repo.MarkRead(n.ID, "bob"))
	// Re-marking an already-read notification is a no-op.
	req.NoError(repo.MarkRead(n.ID, "bob"))

	unread, err := repo.ListUnread("bob")
	req.NoError(err)
	req.Empty(unread)
}

func Test_MarkRead_Checks_Ownership(t *testing.T) {
	req := require.New(t)
	repo := newTestNotificationRepository(t)

	n := notification("bob", "ping", domain.CategoryMessage, time.Now().UTC())
	req.NoError(repo.Create(n))

	err := repo.MarkRead(n.ID, "mallory")
	req.ErrorIs(err, errors.ErrNotFound)

	err = repo.MarkRead(uuid.New(), "bob")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_MarkAllRead_Reports_Changes(t *testing.T) {
	req := require.New(t)
	repo := newTestNotificationRepository(t)

	at := time.Now().UTC()
	req.NoError(repo.Create(notification("bob", "one", domain.CategoryMessage, at)))
	req.NoError(repo.Create(notification("bob", "two", domain.CategoryTask, at.Add(time.Second))))

	changed, err := repo.MarkAllRead("bob")
	req.NoError(err)
	req.Equal(2, changed)

	changed, err = repo.MarkAllRead("bob")
	req.NoError(err)
	req.Zero(changed)
}
