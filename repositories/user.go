//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"bytes"
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	userKeyPrefix     = "account:"
	emailKeyPrefix    = "email:"
	usernameKeyPrefix = "username:"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	GetProfiles(ctx context.Context, ids []string) (map[string]domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, change func(profile *domain.Profile)) (User, error)
	AllProfiles(ctx context.Context) ([]domain.Profile, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// User is the domain-friendly representation of an account in the repository layer.
// Equivalent to DiskMessage for the account domain.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Username     string
	FirstName    string
	LastName     string
	Image        string
	Color        int
	Roles        []string
	CreatedAt    time.Time
}

func (u User) Profile() domain.Profile {
	return domain.Profile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Image:     u.Image,
		Color:     u.Color,
	}
}

// CreateUser persists the account and reserves its email and username.
// It returns the stored user with its generated ID.
func (u UserRepository) CreateUser(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if len(user.Roles) == 0 {
		user.Roles = []string{"user"}
	}

	data, err := codec.Marshal(fromUser(user))
	if err != nil {
		return User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := emailKey(user.Email)
		if _, err = txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err = txn.Set(key, []byte(user.ID)); err != nil {
			return err
		}
		if err = reserveUsername(txn, user.ID, user.Username); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByEmail resolves the email index then loads the account.
func (u UserRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, string(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, email)
	}
	return user, err
}

func (u UserRepository) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	profiles, err := u.GetProfiles(ctx, []string{id})
	if err != nil {
		return domain.Profile{}, err
	}
	profile, ok := profiles[id]
	if !ok {
		return domain.Profile{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, id)
	}
	return profile, nil
}

// GetProfiles fetches many profiles at once. Unknown ids are left out of the result.
func (u UserRepository) GetProfiles(ctx context.Context, ids []string) (map[string]domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profiles := make(map[string]domain.Profile, len(ids))
	err := u.db.View(func(txn *badger.Txn) error {
		for _, id := range lo.Uniq(ids) {
			user, err := getUser(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			profiles[id] = user.Profile()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateProfile applies change to the public fields of an account inside one transaction.
// ID and Email are not editable. A username held by another account is refused with
// ErrUserAlreadyExists, the previous username is released.
func (u UserRepository) UpdateProfile(ctx context.Context, id string, change func(profile *domain.Profile)) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	var user User
	err := u.db.Update(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		if err != nil {
			return err
		}
		profile := user.Profile()
		change(&profile)

		if previous, next := usernameKey(user.Username), usernameKey(profile.Username); !bytes.Equal(previous, next) {
			if err = reserveUsername(txn, user.ID, profile.Username); err != nil {
				return err
			}
			if previous != nil {
				if err = txn.Delete(previous); err != nil {
					return err
				}
			}
		}

		user.Username = profile.Username
		user.FirstName = profile.FirstName
		user.LastName = profile.LastName
		user.Image = profile.Image
		user.Color = profile.Color
		data, err := codec.Marshal(fromUser(user))
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(userKey(user.ID), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// AllProfiles walks every account. It feeds the contact index at startup.
func (u UserRepository) AllProfiles(ctx context.Context) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := u.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(userKeyPrefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record userRecord
			err := it.Item().Value(func(val []byte) error {
				return codec.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			profiles = append(profiles, toUser(record).Profile())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// reserveUsername binds a username to an account. Usernames are compared without case,
// an empty one reserves nothing.
func reserveUsername(txn *badger.Txn, id, username string) error {
	key := usernameKey(username)
	if key == nil {
		return nil
	}
	item, err := txn.Get(key)
	switch {
	case err == nil:
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(owner) != id {
			return fmt.Errorf("%w: username %s is taken", errors.ErrUserAlreadyExists, username)
		}
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return txn.Set(key, []byte(id))
	default:
		return err
	}
}

func getUser(txn *badger.Txn, id string) (User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return User{}, err
	}
	var record userRecord
	err = item.Value(func(val []byte) error {
		return codec.Unmarshal(val, &record)
	})
	if err != nil {
		return User{}, err
	}
	return toUser(record), nil
}

func userKey(id string) []byte {
	return []byte(userKeyPrefix + id)
}

func emailKey(email string) []byte {
	return []byte(emailKeyPrefix + strings.ToLower(strings.TrimSpace(email)))
}

func usernameKey(username string) []byte {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil
	}
	return []byte(usernameKeyPrefix + username)
}

type userRecord struct {
	ID           string   `cbor:"id"`
	Email        string   `cbor:"email"`
	PasswordHash string   `cbor:"password_hash"`
	Username     string   `cbor:"username,omitempty"`
	FirstName    string   `cbor:"first_name,omitempty"`
	LastName     string   `cbor:"last_name,omitempty"`
	Image        string   `cbor:"image,omitempty"`
	Color        int      `cbor:"color"`
	Roles        []string `cbor:"roles"`
	CreatedAt    int64    `cbor:"created_at"`
}

func fromUser(u User) userRecord {
	return userRecord{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Image:        u.Image,
		Color:        u.Color,
		Roles:        u.Roles,
		CreatedAt:    u.CreatedAt.Unix(),
	}
}

func toUser(r userRecord) User {
	return User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Username:     r.Username,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Image:        r.Image,
		Color:        r.Color,
		Roles:        r.Roles,
		CreatedAt:    time.Unix(r.CreatedAt, 0).UTC(),
	}
}
