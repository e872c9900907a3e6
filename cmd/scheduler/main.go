package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/example/availability-scheduler/internal/application"
	"github.com/example/availability-scheduler/internal/config"
	httptransport "github.com/example/availability-scheduler/internal/http"
	"github.com/example/availability-scheduler/internal/logging"
	"github.com/example/availability-scheduler/internal/persistence"
	"github.com/example/availability-scheduler/internal/persistence/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, slogLevel(cfg.LogLevel))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	eventStore := sqlite.NewEventRepository(pool)
	availabilityStore := sqlite.NewAvailabilityRepository(pool)
	userStore := sqlite.NewUserRepository(pool)
	sessionStore := sqlite.NewSessionRepository(pool)

	eventRepo := newEventRepositoryAdapter(eventStore)
	availabilityRepo := newAvailabilityRepositoryAdapter(availabilityStore)
	userRepo := newUserRepositoryAdapter(userStore)
	userDirectory := newUserDirectoryAdapter(userStore)
	credentialStore := newCredentialStoreAdapter(userStore)
	sessionRepo := newSessionRepositoryAdapter(sessionStore)

	eventService := application.NewEventServiceWithLogger(eventRepo, userDirectory, idGenerator, now, logger)
	availabilityService := application.NewAvailabilityServiceWithLogger(availabilityRepo, userDirectory, idGenerator, now, logger)
	userService := application.NewUserServiceWithLogger(userRepo, nil, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(credentialStore, sessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	purger := cron.New()
	if _, err := purger.AddFunc(cfg.SessionPurgeCron, func() {
		if err := sessionRepo.DeleteExpiredSessions(context.Background(), time.Now().UTC()); err != nil {
			logger.Error("failed to purge expired sessions", "error", err)
		}
	}); err != nil {
		logger.Error("invalid session purge schedule", "schedule", cfg.SessionPurgeCron, "error", err)
		os.Exit(1)
	}
	purger.Start()
	defer purger.Stop()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Users:        httptransport.NewUserHandler(userService, logger),
		Events:       httptransport.NewEventHandler(eventService, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, logger),
		Calendar:     httptransport.NewCalendarHandler(eventService, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sessions" && r.Method == http.MethodPost {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	stored, err := a.repo.GetEvent(ctx, event.ID)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	stored, err := a.repo.GetEvent(ctx, event.ID)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventRepositoryFilter) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		OrganizerID: filter.OrganizerID,
		StartsAfter: filter.StartsAfter,
		EndsBefore:  filter.EndsBefore,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

type availabilityRepositoryAdapter struct {
	repo persistence.AvailabilityRepository
}

func newAvailabilityRepositoryAdapter(repo persistence.AvailabilityRepository) *availabilityRepositoryAdapter {
	return &availabilityRepositoryAdapter{repo: repo}
}

func (a *availabilityRepositoryAdapter) CreateSlot(ctx context.Context, slot application.AvailabilitySlot) (application.AvailabilitySlot, error) {
	if err := a.repo.CreateSlot(ctx, toPersistenceSlot(slot)); err != nil {
		return application.AvailabilitySlot{}, err
	}
	stored, err := a.repo.GetSlot(ctx, slot.ID)
	if err != nil {
		return application.AvailabilitySlot{}, err
	}
	return toApplicationSlot(stored), nil
}

func (a *availabilityRepositoryAdapter) GetSlot(ctx context.Context, id string) (application.AvailabilitySlot, error) {
	stored, err := a.repo.GetSlot(ctx, id)
	if err != nil {
		return application.AvailabilitySlot{}, err
	}
	return toApplicationSlot(stored), nil
}

func (a *availabilityRepositoryAdapter) UpdateSlot(ctx context.Context, slot application.AvailabilitySlot) (application.AvailabilitySlot, error) {
	if err := a.repo.UpdateSlot(ctx, toPersistenceSlot(slot)); err != nil {
		return application.AvailabilitySlot{}, err
	}
	stored, err := a.repo.GetSlot(ctx, slot.ID)
	if err != nil {
		return application.AvailabilitySlot{}, err
	}
	return toApplicationSlot(stored), nil
}

func (a *availabilityRepositoryAdapter) DeleteSlot(ctx context.Context, id string) error {
	return a.repo.DeleteSlot(ctx, id)
}

func (a *availabilityRepositoryAdapter) ListSlots(ctx context.Context, filter application.AvailabilityRepositoryFilter) ([]application.AvailabilitySlot, error) {
	models, err := a.repo.ListSlots(ctx, persistence.AvailabilityFilter{
		UserID:      filter.UserID,
		StartsAfter: filter.StartsAfter,
		EndsBefore:  filter.EndsBefore,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	slots := make([]application.AvailabilitySlot, 0, len(models))
	for _, model := range models {
		slots = append(slots, toApplicationSlot(model))
	}
	return slots, nil
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if passwordHash == "" {
		current, err := a.repo.GetUser(ctx, user.ID)
		if err != nil {
			return application.User{}, err
		}
		passwordHash = current.PasswordHash
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type userDirectoryAdapter struct {
	repo persistence.UserRepository
}

func newUserDirectoryAdapter(repo persistence.UserRepository) *userDirectoryAdapter {
	return &userDirectoryAdapter{repo: repo}
}

func (a *userDirectoryAdapter) UserExists(ctx context.Context, id string) (bool, error) {
	if _, err := a.repo.GetUser(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, mapStoreError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapStoreError(err)
	}
	return toApplicationUser(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, mapStoreError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

// mapStoreError translates persistence sentinels for the auth service, which
// matches application.ErrNotFound when deciding credential failures.
func mapStoreError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return application.ErrNotFound
	}
	return err
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:             model.ID,
		OrganizerID:    model.OrganizerID,
		Title:          model.Title,
		Description:    cloneString(model.Description),
		Venue:          cloneString(model.Venue),
		Start:          model.Start,
		End:            model.End,
		Recurring:      model.Recurring,
		DayOfWeek:      cloneWeekday(model.DayOfWeek),
		RecurrenceEnd:  cloneTime(model.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), model.ExceptionDates...),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:             event.ID,
		Title:          event.Title,
		Description:    cloneString(event.Description),
		OrganizerID:    event.OrganizerID,
		Venue:          cloneString(event.Venue),
		Start:          event.Start,
		End:            event.End,
		Recurring:      event.Recurring,
		DayOfWeek:      cloneWeekday(event.DayOfWeek),
		RecurrenceEnd:  cloneTime(event.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), event.ExceptionDates...),
		CreatedAt:      event.CreatedAt,
		UpdatedAt:      event.UpdatedAt,
	}
}

func toApplicationSlot(model persistence.AvailabilitySlot) application.AvailabilitySlot {
	return application.AvailabilitySlot{
		ID:             model.ID,
		UserID:         model.UserID,
		Note:           cloneString(model.Note),
		Start:          model.Start,
		End:            model.End,
		Recurring:      model.Recurring,
		DayOfWeek:      cloneWeekday(model.DayOfWeek),
		RecurrenceEnd:  cloneTime(model.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), model.ExceptionDates...),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func toPersistenceSlot(slot application.AvailabilitySlot) persistence.AvailabilitySlot {
	return persistence.AvailabilitySlot{
		ID:             slot.ID,
		UserID:         slot.UserID,
		Note:           cloneString(slot.Note),
		Start:          slot.Start,
		End:            slot.End,
		Recurring:      slot.Recurring,
		DayOfWeek:      cloneWeekday(slot.DayOfWeek),
		RecurrenceEnd:  cloneTime(slot.RecurrenceEnd),
		ExceptionDates: append([]time.Time(nil), slot.ExceptionDates...),
		CreatedAt:      slot.CreatedAt,
		UpdatedAt:      slot.UpdatedAt,
	}
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        application.Role(model.Role),
		Disabled:    model.Disabled,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         string(user.Role),
		PasswordHash: passwordHash,
		Disabled:     user.Disabled,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneWeekday(value *time.Weekday) *time.Weekday {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
