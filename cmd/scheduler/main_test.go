package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/availability-scheduler/internal/application"
	"github.com/example/availability-scheduler/internal/persistence"
	"github.com/example/availability-scheduler/internal/persistence/sqlite"
)

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range cases {
		if got := slogLevel(input); got != want {
			t.Errorf("slogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestRandomHex(t *testing.T) {
	token := randomHex(32)
	if len(token) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(token))
	}
	if token == randomHex(32) {
		t.Fatal("expected distinct tokens across calls")
	}
	if got := randomHex(0); len(got) != 32 {
		t.Fatalf("expected default 16 bytes, got %d characters", len(got))
	}
}

func TestMapStoreError(t *testing.T) {
	if got := mapStoreError(persistence.ErrNotFound); !errors.Is(got, application.ErrNotFound) {
		t.Fatalf("expected application.ErrNotFound, got %v", got)
	}
	sentinel := errors.New("database is locked")
	if got := mapStoreError(sentinel); !errors.Is(got, sentinel) {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func openTestPool(t *testing.T) *sqlite.ConnectionPool {
	t.Helper()
	pool, err := sqlite.Open(filepath.Join(t.TempDir(), "scheduler.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return pool
}

func TestUserRepositoryAdapter(t *testing.T) {
	pool := openTestPool(t)
	adapter := newUserRepositoryAdapter(sqlite.NewUserRepository(pool))
	credentials := newCredentialStoreAdapter(sqlite.NewUserRepository(pool))
	ctx := context.Background()

	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	user := application.User{
		ID:          "user-1",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		Role:        application.RoleOrganizer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := adapter.CreateUser(ctx, user, "hash-1")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if created.Role != application.RoleOrganizer {
		t.Fatalf("unexpected role: %q", created.Role)
	}

	// An empty password hash on update must keep the stored hash.
	created.DisplayName = "Alice Cooper"
	if _, err := adapter.UpdateUser(ctx, created, ""); err != nil {
		t.Fatalf("UpdateUser returned error: %v", err)
	}
	creds, err := credentials.GetUserCredentialsByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserCredentialsByEmail returned error: %v", err)
	}
	if creds.PasswordHash != "hash-1" {
		t.Fatalf("expected stored hash to survive, got %q", creds.PasswordHash)
	}
	if creds.User.DisplayName != "Alice Cooper" {
		t.Fatalf("expected updated display name, got %q", creds.User.DisplayName)
	}

	if _, err := adapter.UpdateUser(ctx, created, "hash-2"); err != nil {
		t.Fatalf("UpdateUser returned error: %v", err)
	}
	creds, err = credentials.GetUserCredentialsByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserCredentialsByEmail returned error: %v", err)
	}
	if creds.PasswordHash != "hash-2" {
		t.Fatalf("expected rotated hash, got %q", creds.PasswordHash)
	}

	if _, err := credentials.GetUserCredentialsByEmail(ctx, "nobody@example.com"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected application.ErrNotFound for unknown email, got %v", err)
	}
}

func TestUserDirectoryAdapter(t *testing.T) {
	pool := openTestPool(t)
	repo := sqlite.NewUserRepository(pool)
	directory := newUserDirectoryAdapter(repo)
	ctx := context.Background()

	exists, err := directory.UserExists(ctx, "user-1")
	if err != nil {
		t.Fatalf("UserExists returned error: %v", err)
	}
	if exists {
		t.Fatal("expected missing user")
	}

	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	if err := repo.CreateUser(ctx, persistence.User{
		ID:           "user-1",
		Email:        "bob@example.com",
		DisplayName:  "Bob",
		Role:         "member",
		PasswordHash: "hash-1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	exists, err = directory.UserExists(ctx, "user-1")
	if err != nil {
		t.Fatalf("UserExists returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected user to exist")
	}
}

func TestEventRepositoryAdapterRoundTrip(t *testing.T) {
	pool := openTestPool(t)
	users := sqlite.NewUserRepository(pool)
	adapter := newEventRepositoryAdapter(sqlite.NewEventRepository(pool))
	ctx := context.Background()

	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	if err := users.CreateUser(ctx, persistence.User{
		ID:           "user-1",
		Email:        "carol@example.com",
		DisplayName:  "Carol",
		Role:         "organizer",
		PasswordHash: "hash-1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	day := time.Monday
	until := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	event := application.Event{
		ID:            "event-1",
		OrganizerID:   "user-1",
		Title:         "Weekly sync",
		Start:         time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC),
		End:           time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC),
		Recurring:     true,
		DayOfWeek:     &day,
		RecurrenceEnd: &until,
		ExceptionDates: []time.Time{
			time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := adapter.CreateEvent(ctx, event)
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}
	if !created.Recurring || created.DayOfWeek == nil || *created.DayOfWeek != time.Monday {
		t.Fatalf("recurrence fields lost in round trip: %+v", created)
	}
	if len(created.ExceptionDates) != 1 {
		t.Fatalf("expected one exception date, got %d", len(created.ExceptionDates))
	}

	listed, err := adapter.ListEvents(ctx, application.EventRepositoryFilter{OrganizerID: "user-1"})
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "event-1" {
		t.Fatalf("unexpected listing: %+v", listed)
	}
}
