package application

import (
	"context"
	"errors"
	"testing"
)

func plainHash(password string) (string, error) {
	return "hashed:" + password, nil
}

func adminPrincipal() Principal {
	return Principal{UserID: "admin-1", Role: RoleAdmin}
}

func validUserInput() UserInput {
	return UserInput{
		Email:       "Alice@Example.com",
		DisplayName: " Alice ",
		Role:        RoleMember,
		Password:    "supersecret",
	}
}

func TestUserService_CreateUser(t *testing.T) {
	t.Parallel()

	t.Run("persists a normalized user", func(t *testing.T) {
		t.Parallel()

		repo := newUserRepositoryStub()
		svc := NewUserService(repo, plainHash, sequentialIDs("user"), fixedNow)

		user, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: adminPrincipal(),
			Input:     validUserInput(),
		})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.Email != "alice@example.com" {
			t.Errorf("email = %q, want lowercased", user.Email)
		}
		if user.DisplayName != "Alice" {
			t.Errorf("display name = %q, want trimmed", user.DisplayName)
		}
		if repo.hashes[user.ID] != "hashed:supersecret" {
			t.Errorf("stored hash = %q", repo.hashes[user.ID])
		}
	})

	t.Run("requires admin", func(t *testing.T) {
		t.Parallel()

		svc := NewUserService(newUserRepositoryStub(), plainHash, nil, fixedNow)
		_, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: Principal{UserID: "user-1", Role: RoleOrganizer},
			Input:     validUserInput(),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		svc := NewUserService(newUserRepositoryStub(), plainHash, nil, fixedNow)
		input := UserInput{Email: "not-an-email", Role: Role("superuser"), Password: "short"}

		_, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: adminPrincipal(), Input: input})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "display_name", "role", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Errorf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) (*UserService, *userRepositoryStub, User) {
		t.Helper()
		repo := newUserRepositoryStub()
		svc := NewUserService(repo, plainHash, sequentialIDs("user"), fixedNow)
		user, err := svc.CreateUser(context.Background(), CreateUserParams{
			Principal: adminPrincipal(),
			Input:     validUserInput(),
		})
		if err != nil {
			t.Fatalf("seed CreateUser failed: %v", err)
		}
		return svc, repo, user
	}

	t.Run("admin updates role and disabled flag", func(t *testing.T) {
		t.Parallel()

		svc, _, user := seed(t)
		input := validUserInput()
		input.Role = RoleOrganizer
		input.Disabled = true
		input.Password = ""

		updated, err := svc.UpdateUser(context.Background(), UpdateUserParams{
			Principal: adminPrincipal(),
			UserID:    user.ID,
			Input:     input,
		})
		if err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if updated.Role != RoleOrganizer || !updated.Disabled {
			t.Fatalf("unexpected update result %+v", updated)
		}
	})

	t.Run("self-service cannot escalate role", func(t *testing.T) {
		t.Parallel()

		svc, repo, user := seed(t)
		input := validUserInput()
		input.Role = RoleAdmin
		input.DisplayName = "Alice Renamed"
		input.Password = "newpassword"

		updated, err := svc.UpdateUser(context.Background(), UpdateUserParams{
			Principal: Principal{UserID: user.ID, Role: RoleMember},
			UserID:    user.ID,
			Input:     input,
		})
		if err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if updated.Role != RoleMember {
			t.Fatalf("role = %q, want member preserved", updated.Role)
		}
		if updated.DisplayName != "Alice Renamed" {
			t.Fatalf("display name = %q", updated.DisplayName)
		}
		if repo.hashes[user.ID] != "hashed:newpassword" {
			t.Fatalf("hash not rotated: %q", repo.hashes[user.ID])
		}
	})

	t.Run("rejects updating another user without admin", func(t *testing.T) {
		t.Parallel()

		svc, _, user := seed(t)
		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{
			Principal: Principal{UserID: "someone-else", Role: RoleMember},
			UserID:    user.ID,
			Input:     validUserInput(),
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("empty password keeps stored hash", func(t *testing.T) {
		t.Parallel()

		svc, repo, user := seed(t)
		input := validUserInput()
		input.Password = ""

		if _, err := svc.UpdateUser(context.Background(), UpdateUserParams{
			Principal: adminPrincipal(),
			UserID:    user.ID,
			Input:     input,
		}); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if repo.hashes[user.ID] != "hashed:supersecret" {
			t.Fatalf("hash changed unexpectedly: %q", repo.hashes[user.ID])
		}
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Parallel()

	repo := newUserRepositoryStub()
	svc := NewUserService(repo, plainHash, sequentialIDs("user"), fixedNow)
	user, err := svc.CreateUser(context.Background(), CreateUserParams{
		Principal: adminPrincipal(),
		Input:     validUserInput(),
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := svc.DeleteUser(context.Background(), Principal{UserID: "user-1", Role: RoleMember}, user.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	var vErr *ValidationError
	if err := svc.DeleteUser(context.Background(), Principal{UserID: user.ID, Role: RoleAdmin}, user.ID); !errors.As(err, &vErr) {
		t.Fatalf("expected self-delete rejection, got %v", err)
	}

	if err := svc.DeleteUser(context.Background(), adminPrincipal(), user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if err := svc.DeleteUser(context.Background(), adminPrincipal(), user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_ListUsers(t *testing.T) {
	t.Parallel()

	repo := newUserRepositoryStub()
	svc := NewUserService(repo, plainHash, sequentialIDs("user"), fixedNow)

	for _, email := range []string{"zed@example.com", "amy@example.com"} {
		input := validUserInput()
		input.Email = email
		if _, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: adminPrincipal(), Input: input}); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	if _, err := svc.ListUsers(context.Background(), Principal{UserID: "user-1", Role: RoleMember}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	users, err := svc.ListUsers(context.Background(), adminPrincipal())
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users[0].Email != "amy@example.com" {
		t.Fatalf("expected email ordering, got %q first", users[0].Email)
	}
}

// userRepositoryStub provides an in-memory UserRepository for tests.
type userRepositoryStub struct {
	users  map[string]User
	hashes map[string]string
}

func newUserRepositoryStub() *userRepositoryStub {
	return &userRepositoryStub{users: make(map[string]User), hashes: make(map[string]string)}
}

func (s *userRepositoryStub) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	s.users[user.ID] = user
	s.hashes[user.ID] = passwordHash
	return user, nil
}

func (s *userRepositoryStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *userRepositoryStub) UpdateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	if _, ok := s.users[user.ID]; !ok {
		return User{}, ErrNotFound
	}
	s.users[user.ID] = user
	if passwordHash != "" {
		s.hashes[user.ID] = passwordHash
	}
	return user, nil
}

func (s *userRepositoryStub) DeleteUser(ctx context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	delete(s.hashes, id)
	return nil
}

func (s *userRepositoryStub) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}
