package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newUserRepository(t *testing.T) *UserRepository {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db)
}

func TestUserRepository_Create_And_Get_By_Email(t *testing.T) {
	req := require.New(t)
	repository := newUserRepository(t)
	ctx := context.Background()

	created, err := repository.CreateUser(ctx, User{
		Email:        "alice@example.com",
		PasswordHash: "hash",
		FirstName:    "Alice",
		Color:        2,
	})
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Equal([]string{"user"}, created.Roles)

	fetched, err := repository.GetUserByEmail(ctx, "Alice@Example.com")
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)
	req.Equal("hash", fetched.PasswordHash)
	req.Equal("Alice", fetched.FirstName)
}

func TestUserRepository_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repository := newUserRepository(t)
	ctx := context.Background()

	_, err := repository.CreateUser(ctx, User{Email: "bob@example.com"})
	req.NoError(err)

	_, err = repository.CreateUser(ctx, User{Email: "bob@example.com"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_Unknown_Email(t *testing.T) {
	req := require.New(t)
	repository := newUserRepository(t)

	_, err := repository.GetUserByEmail(context.Background(), "nobody@example.com")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestUserRepository_GetProfiles_Skips_Unknown_Ids(t *testing.T) {
	req := require.New(t)
	repository := newUserRepository(t)
	ctx := context.Background()

	alice, err := repository.CreateUser(ctx, User{Email: "alice@example.com", Username: "alice"})
	req.NoError(err)
	bob, err := repository.CreateUser(ctx, User{Email: "bob@example.com", Username: "bob"})
	req.NoError(err)

	profiles, err := repository.GetProfiles(ctx, []string{alice.ID, bob.ID, "ghost", alice.ID})
	req.NoError(err)
	req.Len(profiles, 2)
	req.Equal("alice", profiles[alice.ID].Username)
	req.Equal(bob.Profile(), profiles[bob.ID])

	_, err = repository.GetProfile(ctx, "ghost")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestUserRepository_Username_Is_Unique_Without_Case(t *testing.T) {
	req := require.New(t)
	repository := newUserRepository(t)
	ctx := context.Background()

	_, err := repository.CreateUser(ctx, User{Email: "alice@example.com", Username: "Alice"})
	req.NoError(err)

	_, err = repository.CreateUser(ctx, User{Email: "other@example.com", Username: "alice"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	// The refused account left no email behind
	_, err = repository.GetUserByEmail(ctx, "other@example.com")
	req.ErrorIs(err, errors.ErrNotFound)

	// Accounts without a username never collide
	_, err = repository.CreateUser(ctx, User{Email: "first@example.com"})
	req.NoError(err)
	_, err = repository.CreateUser(ctx, User{Email: "second@example.com"})
	req.NoError(err)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("should update public fields and keep credentials", func(t *testing.T) {
		req := require.New(t)
		repository := newUserRepository(t)
		alice, err := repository.CreateUser(ctx, User{Email: "alice@example.com", PasswordHash: "hash", Username: "alice"})
		req.NoError(err)

		updated, err := repository.UpdateProfile(ctx, alice.ID, func(profile *domain.Profile) {
			profile.ID = "hijacked"
			profile.Email = "hijacked@example.com"
			profile.FirstName = "Alice"
			profile.LastName = "Liddell"
			profile.Color = 3
		})
		req.NoError(err)
		req.Equal(alice.ID, updated.ID)
		req.Equal("Liddell", updated.LastName)

		fetched, err := repository.GetUserByEmail(ctx, "alice@example.com")
		req.NoError(err)
		req.Equal("hash", fetched.PasswordHash)
		req.Equal("alice@example.com", fetched.Email)
		req.Equal(3, fetched.Color)
	})

	t.Run("should refuse a username held by someone else", func(t *testing.T) {
		req := require.New(t)
		repository := newUserRepository(t)
		alice, err := repository.CreateUser(ctx, User{Email: "alice@example.com", Username: "alice"})
		req.NoError(err)
		bob, err := repository.CreateUser(ctx, User{Email: "bob@example.com", Username: "bob"})
		req.NoError(err)

		_, err = repository.UpdateProfile(ctx, bob.ID, func(profile *domain.Profile) { profile.Username = "ALICE" })
		req.ErrorIs(err, errors.ErrUserAlreadyExists)

		profile, err := repository.GetProfile(ctx, bob.ID)
		req.NoError(err)
		req.Equal("bob", profile.Username)

		// Changing the case of one's own username is not a conflict
		_, err = repository.UpdateProfile(ctx, alice.ID, func(profile *domain.Profile) { profile.Username = "Alice" })
		req.NoError(err)
	})

	t.Run("should release the previous username", func(t *testing.T) {
		req := require.New(t)
		repository := newUserRepository(t)
		alice, err := repository.CreateUser(ctx, User{Email: "alice@example.com", Username: "alice"})
		req.NoError(err)

		_, err = repository.UpdateProfile(ctx, alice.ID, func(profile *domain.Profile) { profile.Username = "wonder" })
		req.NoError(err)

		_, err = repository.CreateUser(ctx, User{Email: "new@example.com", Username: "alice"})
		req.NoError(err)
		_, err = repository.CreateUser(ctx, User{Email: "late@example.com", Username: "wonder"})
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})

	t.Run("should report unknown accounts", func(t *testing.T) {
		req := require.New(t)
		repository := newUserRepository(t)

		_, err := repository.UpdateProfile(ctx, "ghost", func(*domain.Profile) {})
		req.ErrorIs(err, errors.ErrNotFound)
	})
}

func TestUserRepository_AllProfiles(t *testing.T) {
	req := require.New(t)
	repository := newUserRepository(t)
	ctx := context.Background()

	profiles, err := repository.AllProfiles(ctx)
	req.NoError(err)
	req.Empty(profiles)

	alice, err := repository.CreateUser(ctx, User{Email: "alice@example.com", Username: "alice"})
	req.NoError(err)
	bob, err := repository.CreateUser(ctx, User{Email: "bob@example.com", Username: "bob"})
	req.NoError(err)

	profiles, err = repository.AllProfiles(ctx)
	req.NoError(err)
	req.ElementsMatch([]domain.Profile{alice.Profile(), bob.Profile()}, profiles)
}
