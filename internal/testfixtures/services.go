package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/availability-scheduler/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// EventServiceDeps captures dependencies for constructing an event service.
type EventServiceDeps struct {
	Events      application.EventRepository
	Users       application.UserDirectory
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewEventService builds an event service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewEventService(deps EventServiceDeps) *application.EventService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewEventServiceWithLogger(
		deps.Events,
		deps.Users,
		idGen,
		now,
		deps.Logger,
	)
}

// AvailabilityServiceDeps captures dependencies for constructing an
// availability service.
type AvailabilityServiceDeps struct {
	Slots       application.AvailabilityRepository
	Users       application.UserDirectory
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewAvailabilityService builds an availability service using the supplied
// dependencies.
func (f *ServiceFactory) NewAvailabilityService(deps AvailabilityServiceDeps) *application.AvailabilityService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAvailabilityServiceWithLogger(
		deps.Slots,
		deps.Users,
		idGen,
		now,
		deps.Logger,
	)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users        application.UserRepository
	HashPassword application.PasswordHasher
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	hash := deps.HashPassword
	if hash == nil {
		hash = func(password string) (string, error) {
			return "hashed:" + password, nil
		}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewUserServiceWithLogger(
		deps.Users,
		hash,
		idGen,
		now,
		deps.Logger,
	)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	token := deps.TokenGenerator
	if token == nil {
		token = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.PasswordVerify,
		token,
		now,
		deps.SessionTTL,
		deps.Logger,
	)
}
