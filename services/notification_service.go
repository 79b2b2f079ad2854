package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RACOAI-Official/ems-realtime/domain"
	apperrors "github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/RACOAI-Official/ems-realtime/repositories"
	"github.com/google/uuid"
)

// MarkAllTarget selects every unread notification of the caller instead
// of a single id.
const MarkAllTarget = "all"

type INotificationService interface {
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, target, userID string) (int, error)
}

type NotificationService struct {
	log           *slog.Logger
	notifications repositories.INotificationRepository
}

func NewNotificationService(log *slog.Logger, notifications repositories.INotificationRepository) *NotificationService {
	return &NotificationService{log: log, notifications: notifications}
}

func (s *NotificationService) ListUnread(_ context.Context, userID string) ([]domain.Notification, error) {
	return s.notifications.ListUnread(userID)
}

// MarkRead flips one notification, or every unread one when target is
// MarkAllTarget. It returns the number of notifications changed.
func (s *NotificationService) MarkRead(_ context.Context, target, userID string) (int, error) {
	if target == MarkAllTarget {
		return s.notifications.MarkAllRead(userID)
	}
	id, err := uuid.Parse(target)
	if err != nil {
		return 0, fmt.Errorf("%w: notification id %q", apperrors.ErrValidation, target)
	}
	if err := s.notifications.MarkRead(id, userID); err != nil {
		return 0, err
	}
	return 1, nil
}
