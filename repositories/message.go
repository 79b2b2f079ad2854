//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Store(m domain.Message) error
	Get(id uuid.UUID) (domain.Message, error)
	GetConversation(a, b string) ([]domain.Message, error)
	MarkRead(receiverID, senderID string) (int, error)
	Delete(id uuid.UUID) (domain.Message, error)
	DeleteConversationSide(requesterID, counterpartID string) (int, error)
	UnreadCount(senderID, receiverID string) (int, error)
	LastMessage(a, b string) (*domain.Message, error)
	Search(ctx context.Context, a, b, terms string, limit int) ([]domain.Message, error)
}

// MessageRepository pairs BadgerDB (source of truth) with a Bluge index
// (full-text lookup). The Bluge document carries only the message id;
// hits are resolved back through Badger.
type MessageRepository struct {
	db    *badger.DB
	index *bluge.Writer
	log   *slog.Logger
}

func NewMessageRepository(db *badger.DB, index *bluge.Writer, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, index: index, log: log}
}

// DiskMessage is the stored shape of a message, decoupled from the
// domain struct so the value layout can evolve independently.
type DiskMessage struct {
	ID            string `cbor:"id"`
	Sender        string `cbor:"sender"`
	Receiver      string `cbor:"receiver"`
	Body          string `cbor:"body"`
	AttachmentRef string `cbor:"attachment,omitempty"`
	Lang          string `cbor:"lang,omitempty"`
	Read          bool   `cbor:"read"`
	CreatedAt     int64  `cbor:"created_at"`
	UpdatedAt     int64  `cbor:"updated_at"`
}

// conversationKey is the lexicographically ordered user pair, so both
// directions of a conversation share one key prefix.
func conversationKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// messageKey is "msg:{conv}:{timestamp_padded}:{uuid}":
//  1. The 19-digit zero padding makes lexicographic order chronological.
//  2. The UUID disambiguates two messages landing on the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		conversationKey(m.SenderID, m.ReceiverID),
		m.CreatedAt.UnixNano(),
		m.ID,
	))
}

func messageIndexKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

func conversationPrefix(a, b string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationKey(a, b)))
}

// Store persists the message and indexes its body. The secondary
// "msgid:" entry points at the primary key for O(1) lookup by id.
func (r *MessageRepository) Store(m domain.Message) error {
	value, err := marshal(fromDomainMessage(m))
	if err != nil {
		return fmt.Errorf("encoding message %s: %w", m.ID, err)
	}

	key := messageKey(m)
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(m.ID), key)
	})
	if err != nil {
		return err
	}

	doc := bluge.NewDocument(m.ID.String()).
		AddField(bluge.NewKeywordField("conv", conversationKey(m.SenderID, m.ReceiverID))).
		AddField(bluge.NewTextField("body", m.Body))
	if err := r.index.Update(doc.ID(), doc); err != nil {
		// Badger holds the truth; a missed index entry only degrades
		// search until the next write of this conversation.
		r.log.Warn("Indexing message failed", "id", m.ID, "error", err)
	}
	return nil
}

// Get resolves a message by id via the secondary index.
func (r *MessageRepository) Get(id uuid.UUID) (domain.Message, error) {
	var dm DiskMessage
	err := r.db.View(func(txn *badger.Txn) error {
		key, err := resolveIndex(txn, messageIndexKey(id))
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshal(val, &dm)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, err
	}
	return toDomainMessage(dm)
}

// GetConversation returns every message between the pair, oldest first.
// Re-issuing the query yields a consistent point-in-time snapshot.
func (r *MessageRepository) GetConversation(a, b string) ([]domain.Message, error) {
	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(a, b)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				raw = append(raw, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeMessages(raw)
}

// MarkRead flips the read flag on every unread message from sender to
// receiver. It returns how many messages changed; a repeated call
// changes nothing further.
func (r *MessageRepository) MarkRead(receiverID, senderID string) (int, error) {
	changed := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		prefix := conversationPrefix(receiverID, senderID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		now := time.Now().UTC().UnixNano()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var dm DiskMessage
			if err := item.Value(func(val []byte) error { return unmarshal(val, &dm) }); err != nil {
				return err
			}
			if dm.Read || dm.Sender != senderID || dm.Receiver != receiverID {
				continue
			}
			dm.Read = true
			dm.UpdatedAt = now
			value, err := marshal(dm)
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

// Delete removes a message by id and returns the removed record so the
// caller can clean up its attachment.
func (r *MessageRepository) Delete(id uuid.UUID) (domain.Message, error) {
	var dm DiskMessage
	err := r.db.Update(func(txn *badger.Txn) error {
		idxKey := messageIndexKey(id)
		key, err := resolveIndex(txn, idxKey)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error { return unmarshal(val, &dm) }); err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(idxKey)
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, err
	}

	if err := r.index.Delete(bluge.NewDocument(id.String()).ID()); err != nil {
		r.log.Warn("Removing message from index failed", "id", id, "error", err)
	}
	return toDomainMessage(dm)
}

// DeleteConversationSide deletes only the messages the requester sent to
// the counterpart. The counterpart's messages are untouched; this is
// "delete my sent messages", not delete-for-everyone.
func (r *MessageRepository) DeleteConversationSide(requesterID, counterpartID string) (int, error) {
	deleted := 0
	var droppedIDs []string
	err := r.db.Update(func(txn *badger.Txn) error {
		prefix := conversationPrefix(requesterID, counterpartID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var dm DiskMessage
			if err := item.Value(func(val []byte) error { return unmarshal(val, &dm) }); err != nil {
				return err
			}
			if dm.Sender != requesterID || dm.Receiver != counterpartID {
				continue
			}
			if err := txn.Delete(item.KeyCopy(nil)); err != nil {
				return err
			}
			id, err := uuid.Parse(dm.ID)
			if err != nil {
				return err
			}
			if err := txn.Delete(messageIndexKey(id)); err != nil {
				return err
			}
			droppedIDs = append(droppedIDs, dm.ID)
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range droppedIDs {
		if err := r.index.Delete(bluge.NewDocument(id).ID()); err != nil {
			r.log.Warn("Removing message from index failed", "id", id, "error", err)
		}
	}
	return deleted, nil
}

// UnreadCount counts messages from sender to receiver still unread.
func (r *MessageRepository) UnreadCount(senderID, receiverID string) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(senderID, receiverID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dm DiskMessage
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &dm) }); err != nil {
				return err
			}
			if !dm.Read && dm.Sender == senderID && dm.Receiver == receiverID {
				count++
			}
		}
		return nil
	})
	return count, err
}

// LastMessage returns the most recent message in either direction, or
// nil when the pair has no history.
func (r *MessageRepository) LastMessage(a, b string) (*domain.Message, error) {
	var raw []byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(a, b)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then step back within the
		// prefix.
		seekKey := append(append([]byte(nil), prefix...), 0xff)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil || raw == nil {
		return nil, err
	}

	var dm DiskMessage
	if err := unmarshal(raw, &dm); err != nil {
		return nil, err
	}
	m, err := toDomainMessage(dm)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Search runs a full-text match over the conversation's bodies and
// resolves hits back through Badger, newest-ranking first. Hits whose
// record was deleted after indexing are skipped.
func (r *MessageRepository) Search(ctx context.Context, a, b, terms string, limit int) ([]domain.Message, error) {
	reader, err := r.index.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("body")).
		AddMust(bluge.NewTermQuery(conversationKey(a, b)).SetField("conv"))

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var ids []string
	for match, err := iter.Next(); match != nil; match, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	var messages []domain.Message
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		m, err := r.Get(id)
		if err != nil {
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// resolveIndex follows a secondary-index entry to the primary key.
func resolveIndex(txn *badger.Txn, idxKey []byte) ([]byte, error) {
	item, err := txn.Get(idxKey)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func decodeMessages(raw [][]byte) ([]domain.Message, error) {
	var messages []domain.Message
	for _, b := range raw {
		var dm DiskMessage
		if err := unmarshal(b, &dm); err != nil {
			return nil, err
		}
		m, err := toDomainMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func fromDomainMessage(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:            m.ID.String(),
		Sender:        m.SenderID,
		Receiver:      m.ReceiverID,
		Body:          m.Body,
		AttachmentRef: m.AttachmentRef,
		Lang:          m.Lang,
		Read:          m.Read,
		CreatedAt:     m.CreatedAt.UnixNano(),
		UpdatedAt:     m.UpdatedAt.UnixNano(),
	}
}

func toDomainMessage(dm DiskMessage) (domain.Message, error) {
	id, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:            id,
		SenderID:      dm.Sender,
		ReceiverID:    dm.Receiver,
		Body:          dm.Body,
		AttachmentRef: dm.AttachmentRef,
		Lang:          dm.Lang,
		Read:          dm.Read,
		CreatedAt:     time.Unix(0, dm.CreatedAt).UTC(),
		UpdatedAt:     time.Unix(0, dm.UpdatedAt).UTC(),
	}, nil
}
