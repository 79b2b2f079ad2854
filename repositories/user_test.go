package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) *UserDirectory {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserDirectory(db)
}

func Test_Directory_Round_Trip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := newTestDirectory(t)

	u := domain.User{ID: "u1", Name: "Alice", Role: domain.RoleEmployee, CreatedAt: time.Now().UTC()}
	req.NoError(dir.CreateUser(ctx, u))

	fetched, err := dir.GetUser(ctx, "u1")
	req.NoError(err)
	req.Equal(u, fetched)

	_, err = dir.GetUser(ctx, "ghost")
	req.ErrorIs(err, errors.ErrUnknownUser)
}

func Test_Directory_ListUsers_In_Key_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := newTestDirectory(t)

	req.NoError(dir.CreateUser(ctx, domain.User{ID: "carol", Role: domain.RoleEmployee}))
	req.NoError(dir.CreateUser(ctx, domain.User{ID: "alice", Role: domain.RoleAdmin}))
	req.NoError(dir.CreateUser(ctx, domain.User{ID: "bob", Role: domain.RoleHR}))

	users, err := dir.ListUsers(ctx)
	req.NoError(err)
	req.Len(users, 3)
	req.Equal("alice", users[0].ID)
	req.Equal("bob", users[1].ID)
	req.Equal("carol", users[2].ID)
}

func Test_Directory_UsersByRole(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := newTestDirectory(t)

	req.NoError(dir.CreateUser(ctx, domain.User{ID: "boss", Role: domain.RoleAdmin}))
	req.NoError(dir.CreateUser(ctx, domain.User{ID: "chief", Role: domain.RoleAdmin}))
	req.NoError(dir.CreateUser(ctx, domain.User{ID: "worker", Role: domain.RoleEmployee}))

	admins, err := dir.UsersByRole(ctx, domain.RoleAdmin)
	req.NoError(err)
	req.Equal([]string{"boss", "chief"}, admins)
}

func Test_Directory_SetOnline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := newTestDirectory(t)

	req.NoError(dir.CreateUser(ctx, domain.User{ID: "u1", Role: domain.RoleEmployee}))

	req.NoError(dir.SetOnline(ctx, "u1", true))
	u, err := dir.GetUser(ctx, "u1")
	req.NoError(err)
	req.True(u.Online)

	req.NoError(dir.SetOnline(ctx, "u1", false))
	u, err = dir.GetUser(ctx, "u1")
	req.NoError(err)
	req.False(u.Online)

	req.ErrorIs(dir.SetOnline(ctx, "ghost", true), errors.ErrUnknownUser)
}
