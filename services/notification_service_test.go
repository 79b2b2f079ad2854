package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain"
	apperrors "github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/RACOAI-Official/ems-realtime/repositories"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newNotificationService(t *testing.T) (*NotificationService, *repositories.NotificationRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repositories.NewNotificationRepository(db, slog.Default())
	return NewNotificationService(slog.Default(), repo), repo
}

func serviceNotification(target string, at time.Time) domain.Notification {
	return domain.Notification{
		ID:           uuid.New(),
		Title:        "Ticket assigned",
		Body:         "Laptop replacement",
		Category:     domain.CategoryTicket,
		TargetUserID: target,
		CreatedAt:    at,
	}
}

func Test_MarkRead_Single_Notification(t *testing.T) {
	req := require.New(t)
	service, repo := newNotificationService(t)
	ctx := context.Background()

	n := serviceNotification("alice", time.Now().UTC())
	req.NoError(repo.Create(n))

	changed, err := service.MarkRead(ctx, n.ID.String(), "alice")
	req.NoError(err)
	req.Equal(1, changed)

	unread, err := service.ListUnread(ctx, "alice")
	req.NoError(err)
	req.Empty(unread)
}

func Test_MarkRead_All_Notifications(t *testing.T) {
	req := require.New(t)
	service, repo := newNotificationService(t)
	ctx := context.Background()

	at := time.Now().UTC()
	req.NoError(repo.Create(serviceNotification("alice", at)))
	req.NoError(repo.Create(serviceNotification("alice", at.Add(1*time.Minute))))
	req.NoError(repo.Create(serviceNotification("bob", at)))

	changed, err := service.MarkRead(ctx, MarkAllTarget, "alice")
	req.NoError(err)
	req.Equal(2, changed)

	// Bob's notification is untouched.
	unread, err := service.ListUnread(ctx, "bob")
	req.NoError(err)
	req.Len(unread, 1)
}

func Test_MarkRead_Garbage_Target_Is_Validation(t *testing.T) {
	req := require.New(t)
	service, _ := newNotificationService(t)

	_, err := service.MarkRead(context.Background(), "not-a-uuid", "alice")
	req.ErrorIs(err, apperrors.ErrValidation)
}

func Test_MarkRead_Foreign_Notification_Is_NotFound(t *testing.T) {
	req := require.New(t)
	service, repo := newNotificationService(t)

	n := serviceNotification("alice", time.Now().UTC())
	req.NoError(repo.Create(n))

	_, err := service.MarkRead(context.Background(), n.ID.String(), "bob")
	req.ErrorIs(err, apperrors.ErrNotFound)
}
