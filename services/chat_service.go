//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/RACOAI-Official/ems-realtime/contract"
	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/domain/event"
	apperrors "github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/RACOAI-Official/ems-realtime/moderation"
	"github.com/RACOAI-Official/ems-realtime/observability"
	"github.com/RACOAI-Official/ems-realtime/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const newMessageTitle = "New message from %s"

var validate = validator.New()

type SendMessageCommand struct {
	SenderID      string `validate:"required"`
	ReceiverID    string `validate:"required"`
	Body          string
	AttachmentRef string
}

type IChatService interface {
	SendMessage(ctx context.Context, cmd SendMessageCommand) (domain.Message, error)
	GetConversation(ctx context.Context, a, b string) ([]domain.Message, error)
	MarkRead(ctx context.Context, receiverID, senderID string) (int, error)
	DeleteMessage(ctx context.Context, id uuid.UUID, requesterID string) error
	DeleteConversationSide(ctx context.Context, requesterID, counterpartID string) (int, error)
	GetContacts(ctx context.Context, selfID string) ([]domain.Contact, error)
	SearchConversation(ctx context.Context, selfID, counterpartID, terms string) ([]domain.Message, error)
}

// ChatService orchestrates the durable stores and the live-push queue.
// The stores are the source of truth; pushes are queued after the writes
// land and never influence the response.
type ChatService struct {
	log           *slog.Logger
	messages      repositories.IMessageRepository
	notifications repositories.INotificationRepository
	directory     contract.IDirectory
	files         contract.IFileStore
	pusher        contract.IPusher
	filter        *moderation.Filter // nil disables moderation
	monitoring    *observability.MonitoringManager
	searchLimit   int
}

func NewChatService(log *slog.Logger,
	messages repositories.IMessageRepository,
	notifications repositories.INotificationRepository,
	directory contract.IDirectory,
	files contract.IFileStore,
	pusher contract.IPusher,
	filter *moderation.Filter,
	monitoring *observability.MonitoringManager,
	searchLimit int) *ChatService {
	return &ChatService{
		log:           log,
		messages:      messages,
		notifications: notifications,
		directory:     directory,
		files:         files,
		pusher:        pusher,
		filter:        filter,
		monitoring:    monitoring,
		searchLimit:   searchLimit,
	}
}

// SendMessage validates, persists the message and its notification, then
// queues the receiver's live pushes. The sender gets only the return
// value, never a push.
func (s *ChatService) SendMessage(ctx context.Context, cmd SendMessageCommand) (domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		if cmd.ReceiverID == "" {
			return domain.Message{}, fmt.Errorf("%w: %w", apperrors.ErrValidation, apperrors.ErrMissingReceiver)
		}
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if cmd.Body == "" && cmd.AttachmentRef == "" {
		return domain.Message{}, fmt.Errorf("%w: %w", apperrors.ErrValidation, apperrors.ErrEmptyMessage)
	}

	body, lang := cmd.Body, ""
	if s.filter != nil && body != "" {
		filtered := s.filter.Apply(body)
		body, lang = filtered.Body, filtered.Lang
		if filtered.Masked > 0 {
			s.log.Debug("Message body masked", "sender", cmd.SenderID, "spans", filtered.Masked)
		}
	}

	now := time.Now().UTC()
	message := domain.Message{
		ID:            uuid.New(),
		SenderID:      cmd.SenderID,
		ReceiverID:    cmd.ReceiverID,
		Body:          body,
		AttachmentRef: cmd.AttachmentRef,
		Lang:          lang,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.messages.Store(message); err != nil {
		return domain.Message{}, fmt.Errorf("storing message: %w", err)
	}
	if s.monitoring != nil {
		s.monitoring.IncrMessagesStored()
	}

	notification := domain.Notification{
		ID:           uuid.New(),
		Title:        fmt.Sprintf(newMessageTitle, s.senderName(ctx, cmd.SenderID)),
		Body:         preview(message),
		Category:     domain.CategoryMessage,
		Link:         "/chat/" + cmd.SenderID,
		TargetUserID: cmd.ReceiverID,
		CreatedAt:    now,
	}
	if err := s.notifications.Create(notification); err != nil {
		return domain.Message{}, fmt.Errorf("storing notification: %w", err)
	}

	s.pusher.Enqueue(cmd.ReceiverID,
		event.NewMessage(message),
		event.NewNotification(notification),
		event.NewUpdateContacts(),
	)
	return message, nil
}

func (s *ChatService) GetConversation(_ context.Context, a, b string) ([]domain.Message, error) {
	return s.messages.GetConversation(a, b)
}

func (s *ChatService) MarkRead(_ context.Context, receiverID, senderID string) (int, error) {
	return s.messages.MarkRead(receiverID, senderID)
}

// DeleteMessage removes a message and its attachment. Only the sender or
// an elevated role may delete.
func (s *ChatService) DeleteMessage(ctx context.Context, id uuid.UUID, requesterID string) error {
	message, err := s.messages.Get(id)
	if err != nil {
		return err
	}
	requester, err := s.directory.GetUser(ctx, requesterID)
	if err != nil {
		return err
	}
	if message.SenderID != requesterID && !requester.Role.Elevated() {
		return fmt.Errorf("delete of message %s by %s: %w", id, requesterID, apperrors.ErrForbidden)
	}

	deleted, err := s.messages.Delete(id)
	if err != nil {
		return err
	}
	if deleted.AttachmentRef != "" {
		if err := s.files.Remove(ctx, deleted.AttachmentRef); err != nil {
			// The record is already gone; an orphaned file is a cleanup
			// concern, not a failure of the delete.
			s.log.Warn("Removing attachment failed", "ref", deleted.AttachmentRef, "error", err)
		}
	}
	return nil
}

func (s *ChatService) DeleteConversationSide(_ context.Context, requesterID, counterpartID string) (int, error) {
	return s.messages.DeleteConversationSide(requesterID, counterpartID)
}

// GetContacts aggregates, for every other directory user, the unread
// count and the latest message in either direction. Contacts are sorted
// newest conversation first; contacts without history keep directory
// order after all the others.
func (s *ChatService) GetContacts(ctx context.Context, selfID string) ([]domain.Contact, error) {
	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing directory: %w", err)
	}
	others := lo.Filter(users, func(u domain.User, _ int) bool { return u.ID != selfID })

	contacts := make([]domain.Contact, 0, len(others))
	for _, u := range others {
		unread, err := s.messages.UnreadCount(u.ID, selfID)
		if err != nil {
			return nil, err
		}
		last, err := s.messages.LastMessage(selfID, u.ID)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, domain.Contact{User: u, UnreadCount: unread, LastMessage: last})
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].LastMessageTime().After(contacts[j].LastMessageTime())
	})
	return contacts, nil
}

func (s *ChatService) SearchConversation(ctx context.Context, selfID, counterpartID, terms string) ([]domain.Message, error) {
	return s.messages.Search(ctx, selfID, counterpartID, terms, s.searchLimit)
}

// senderName falls back to the raw id when the directory cannot resolve
// it; a broken notification title must not fail the send.
func (s *ChatService) senderName(ctx context.Context, senderID string) string {
	sender, err := s.directory.GetUser(ctx, senderID)
	if err != nil || sender.Name == "" {
		if err != nil {
			s.log.Debug("Sender lookup failed for notification title", "sender", senderID, "error", err)
		}
		return senderID
	}
	return sender.Name
}

func preview(m domain.Message) string {
	if m.Body == "" {
		return "Sent an attachment"
	}
	runes := []rune(m.Body)
	if len(runes) > 80 {
		return string(runes[:80]) + "…"
	}
	return m.Body
}
