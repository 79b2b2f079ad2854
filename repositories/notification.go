//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type INotificationRepository interface {
	Create(n domain.Notification) error
	ListUnread(userID string) ([]domain.Notification, error)
	MarkRead(id uuid.UUID, userID string) error
	MarkAllRead(userID string) (int, error)
}

// NotificationRepository is pure persistence: creating a notification
// deliberately does not push a live event, so a reconnecting client can
// always retrieve the full unread set via ListUnread regardless of
// whether it was online at creation time.
type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, log: log}
}

type DiskNotification struct {
	ID        string `cbor:"id"`
	Title     string `cbor:"title"`
	Body      string `cbor:"body"`
	Category  string `cbor:"category"`
	Link      string `cbor:"link,omitempty"`
	Target    string `cbor:"target"`
	Read      bool   `cbor:"read"`
	CreatedAt int64  `cbor:"created_at"`
}

func notificationKey(n domain.Notification) []byte {
	return []byte(fmt.Sprintf("ntf:%s:%019d:%s", n.TargetUserID, n.CreatedAt.UnixNano(), n.ID))
}

func notificationIndexKey(id uuid.UUID) []byte {
	return []byte("ntfid:" + id.String())
}

func notificationPrefix(userID string) []byte {
	return []byte("ntf:" + userID + ":")
}

func (r *NotificationRepository) Create(n domain.Notification) error {
	value, err := marshal(fromDomainNotification(n))
	if err != nil {
		return fmt.Errorf("encoding notification %s: %w", n.ID, err)
	}
	key := notificationKey(n)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(notificationIndexKey(n.ID), key)
	})
}

// ListUnread returns the user's unread notifications, newest first.
func (r *NotificationRepository) ListUnread(userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := notificationPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte(nil), prefix...), 0xff)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			var dn DiskNotification
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &dn) }); err != nil {
				return err
			}
			if dn.Read {
				continue
			}
			n, err := toDomainNotification(dn)
			if err != nil {
				return err
			}
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

// MarkRead marks one notification as read. Marking an already-read
// notification is a no-op; a notification owned by someone else is not
// found as far as the caller is concerned.
func (r *NotificationRepository) MarkRead(id uuid.UUID, userID string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		key, err := resolveIndex(txn, notificationIndexKey(id))
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var dn DiskNotification
		if err := item.Value(func(val []byte) error { return unmarshal(val, &dn) }); err != nil {
			return err
		}
		if dn.Target != userID {
			return badger.ErrKeyNotFound
		}
		if dn.Read {
			return nil
		}
		dn.Read = true
		value, err := marshal(dn)
		if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("notification %s: %w", id, errors.ErrNotFound)
	}
	return err
}

// MarkAllRead marks every unread notification of the user and reports
// how many changed.
func (r *NotificationRepository) MarkAllRead(userID string) (int, error) {
	changed := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		prefix := notificationPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var dn DiskNotification
			if err := item.Value(func(val []byte) error { return unmarshal(val, &dn) }); err != nil {
				return err
			}
			if dn.Read {
				continue
			}
			dn.Read = true
			value, err := marshal(dn)
			if err != nil {
				return err
			}
			if err := txn.Set(item.KeyCopy(nil), value); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func fromDomainNotification(n domain.Notification) DiskNotification {
	return DiskNotification{
		ID:        n.ID.String(),
		Title:     n.Title,
		Body:      n.Body,
		Category:  string(n.Category),
		Link:      n.Link,
		Target:    n.TargetUserID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UnixNano(),
	}
}

func toDomainNotification(dn DiskNotification) (domain.Notification, error) {
	id, err := uuid.Parse(dn.ID)
	if err != nil {
		return domain.Notification{}, err
	}
	return domain.Notification{
		ID:           id,
		Title:        dn.Title,
		Body:         dn.Body,
		Category:     domain.Category(dn.Category),
		Link:         dn.Link,
		TargetUserID: dn.Target,
		Read:         dn.Read,
		CreatedAt:    time.Unix(0, dn.CreatedAt).UTC(),
	}, nil
}
