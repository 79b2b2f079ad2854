//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_directory.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/RACOAI-Official/ems-realtime/domain"
	"github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/dgraph-io/badger/v4"
)

// UserDirectory is the Badger-backed user directory. The realtime core
// treats users as an external entity: it reads identities and roles, and
// the presence tracker owns exactly one field, the online flag.
// "Directory order" is key order, i.e. ascending user id.
type UserDirectory struct {
	db *badger.DB
}

func NewUserDirectory(db *badger.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

type diskUser struct {
	ID        string `cbor:"id"`
	Name      string `cbor:"name"`
	Role      string `cbor:"role"`
	Online    bool   `cbor:"online"`
	CreatedAt int64  `cbor:"created_at"`
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

// CreateUser seeds a directory entry. Used by provisioning and tests;
// the realtime core itself never creates users.
func (d *UserDirectory) CreateUser(_ context.Context, u domain.User) error {
	value, err := marshal(diskUser{
		ID:        u.ID,
		Name:      u.Name,
		Role:      string(u.Role),
		Online:    u.Online,
		CreatedAt: u.CreatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encoding user %s: %w", u.ID, err)
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(u.ID), value)
	})
}

func (d *UserDirectory) GetUser(_ context.Context, id string) (domain.User, error) {
	var du diskUser
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return unmarshal(val, &du) })
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, fmt.Errorf("user %s: %w", id, errors.ErrUnknownUser)
	}
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(du), nil
}

func (d *UserDirectory) ListUsers(_ context.Context) ([]domain.User, error) {
	var users []domain.User
	err := d.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var du diskUser
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &du) }); err != nil {
				return err
			}
			users = append(users, toDomainUser(du))
		}
		return nil
	})
	return users, err
}

func (d *UserDirectory) UsersByRole(ctx context.Context, role domain.Role) ([]string, error) {
	users, err := d.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, u := range users {
		if u.Role == role {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// SetOnline rewrites the online flag in one transaction. Only the
// presence tracker calls this.
func (d *UserDirectory) SetOnline(_ context.Context, id string, online bool) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		var du diskUser
		if err := item.Value(func(val []byte) error { return unmarshal(val, &du) }); err != nil {
			return err
		}
		if du.Online == online {
			return nil
		}
		du.Online = online
		value, err := marshal(du)
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), value)
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("user %s: %w", id, errors.ErrUnknownUser)
	}
	return err
}

func toDomainUser(du diskUser) domain.User {
	return domain.User{
		ID:        du.ID,
		Name:      du.Name,
		Role:      domain.Role(du.Role),
		Online:    du.Online,
		CreatedAt: time.Unix(0, du.CreatedAt).UTC(),
	}
}
