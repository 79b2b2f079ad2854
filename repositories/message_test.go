package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestMessageRepository(t *testing.T) *MessageRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	return NewMessageRepository(db, writer, slog.Default())
}

func message(sender, receiver, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func Test_Store_And_Get_Conversation_Oldest_First(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	at := time.Now().UTC()
	req.NoError(repo.Store(message("alice", "bob", "first", at)))
	req.NoError(repo.Store(message("bob", "alice", "second", at.Add(1*time.Minute))))
	req.NoError(repo.Store(message("alice", "bob", "hello", at.Add(2*time.Minute))))

	fetched, err := repo.GetConversation("alice", "bob")
	req.NoError(err)
	req.Len(fetched, 3)
	req.Equal("first", fetched[0].Body)
	req.Equal("second", fetched[1].Body)
	req.Equal("hello", fetched[2].Body, "most recent message must come last")

	// Both argument orders address the same conversation.
	reversed, err := repo.GetConversation("bob", "alice")
	req.NoError(err)
	req.Equal(fetched, reversed)
}

func Test_Get_Unknown_Message_Is_NotFound(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	_, err := repo.Get(uuid.New())
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	at := time.Now().UTC()
	req.NoError(repo.Store(message("alice", "bob", "one", at)))
	req.NoError(repo.Store(message("alice", "bob", "two", at.Add(time.Second))))
	req.NoError(repo.Store(message("bob", "alice", "reply", at.Add(2*time.Second))))

	changed, err := repo.MarkRead("bob", "alice")
	req.NoError(err)
	req.Equal(2, changed, "only alice→bob messages count")

	changed, err = repo.MarkRead("bob", "alice")
	req.NoError(err)
	req.Zero(changed, "second call must change nothing")

	unread, err := repo.UnreadCount("bob", "alice")
	req.NoError(err)
	req.Equal(1, unread, "bob's reply stays unread for alice")
}

func Test_Delete_Message_Returns_Record(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	m := message("alice", "bob", "bye", time.Now().UTC())
	m.AttachmentRef = "contracts/offer.pdf"
	req.NoError(repo.Store(m))

	deleted, err := repo.Delete(m.ID)
	req.NoError(err)
	req.Equal("contracts/offer.pdf", deleted.AttachmentRef)

	_, err = repo.Get(m.ID)
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = repo.Delete(m.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_DeleteConversationSide_Is_Asymmetric(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	at := time.Now().UTC()
	req.NoError(repo.Store(message("alice", "bob", "mine 1", at)))
	req.NoError(repo.Store(message("bob", "alice", "yours", at.Add(time.Second))))
	req.NoError(repo.Store(message("alice", "bob", "mine 2", at.Add(2*time.Second))))

	deleted, err := repo.DeleteConversationSide("alice", "bob")
	req.NoError(err)
	req.Equal(2, deleted)

	remaining, err := repo.GetConversation("alice", "bob")
	req.NoError(err)
	req.Len(remaining, 1)
	req.Equal("yours", remaining[0].Body, "counterpart's messages are untouched")
}

func Test_UnreadCount_And_LastMessage_Per_Pair(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)

	at := time.Now().UTC()
	req.NoError(repo.Store(message("alice", "bob", "a1", at)))
	req.NoError(repo.Store(message("alice", "bob", "a2", at.Add(time.Second))))
	req.NoError(repo.Store(message("alice", "bob", "a3", at.Add(2*time.Second))))
	req.NoError(repo.Store(message("bob", "alice", "b1", at.Add(3*time.Second))))

	unreadForAlice, err := repo.UnreadCount("bob", "alice")
	req.NoError(err)
	req.Equal(1, unreadForAlice, "only the bob→alice message is unread for alice")

	last, err := repo.LastMessage("alice", "bob")
	req.NoError(err)
	req.NotNil(last)
	req.Equal("b1", last.Body)

	none, err := repo.LastMessage("alice", "nobody")
	req.NoError(err)
	req.Nil(none)
}

func Test_Search_Finds_Body_Within_Conversation(t *testing.T) {
	req := require.New(t)
	repo := newTestMessageRepository(t)
	ctx := context.Background()

	at := time.Now().UTC()
	req.NoError(repo.Store(message("alice", "bob", "the payroll export is ready", at)))
	req.NoError(repo.Store(message("alice", "bob", "lunch?", at.Add(time.Second))))
	req.NoError(repo.Store(message("alice", "carol", "payroll question", at.Add(2*time.Second))))

	hits, err := repo.Search(ctx, "alice", "bob", "payroll", 10)
	req.NoError(err)
	req.Len(hits, 1, "the carol conversation must not leak in")
	req.Contains(hits[0].Body, "payroll export")
}
