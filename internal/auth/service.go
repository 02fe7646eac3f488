package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatehouse.dev/internal/ids"
	"gatehouse.dev/internal/obs"
)

const (
	defaultTokenTTL         = 60 * time.Minute
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 30 * time.Minute
	defaultRateLimitMax     = 5
	defaultRateLimitWindow  = 15 * time.Minute

	// Applied to failed login outcomes so "locked" is not distinguishable
	// from "wrong password" by response latency.
	defaultFailureDelay = 500 * time.Millisecond

	actionClassLogin = "login"
)

// AuditFunc receives login and authorization outcomes. The engine treats the
// audit log as an external collaborator; a nil hook drops events.
type AuditFunc func(ctx context.Context, event string, fields map[string]any)

// Service composes the hasher, token codec, rate limiter, lockout tracker and
// permission resolver into the register, login and authorize operations. It
// is the only component the surrounding CRUD handlers call directly.
type Service struct {
	store    Store
	codec    *TokenCodec
	limiter  *RateLimiter
	resolver *PermissionResolver
	lockouts *LockoutTracker

	tokenTTL         time.Duration
	lockoutThreshold int
	lockoutDuration  time.Duration
	failureDelay     time.Duration
	now              func() time.Time
	sleep            func(time.Duration)
	audit            AuditFunc
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithTokenTTL configures issued token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("token ttl must be positive")
		}
		s.tokenTTL = ttl
		return nil
	}
}

// WithLockoutPolicy configures the failed-attempt threshold and lock
// duration.
func WithLockoutPolicy(threshold int, duration time.Duration) ServiceOption {
	return func(s *Service) error {
		if threshold < 1 {
			return errors.New("lockout threshold must be at least 1")
		}
		if duration <= 0 {
			return errors.New("lockout duration must be positive")
		}
		s.lockoutThreshold = threshold
		s.lockoutDuration = duration
		return nil
	}
}

// WithRateLimiter replaces the default login rate limiter.
func WithRateLimiter(l *RateLimiter) ServiceOption {
	return func(s *Service) error {
		if l == nil {
			return errors.New("rate limiter is required")
		}
		s.limiter = l
		return nil
	}
}

// WithFailureDelay configures the constant delay applied to failed logins.
// Zero disables it (tests).
func WithFailureDelay(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d < 0 {
			return errors.New("failure delay must not be negative")
		}
		s.failureDelay = d
		return nil
	}
}

// WithAudit wires the audit collaborator.
func WithAudit(fn AuditFunc) ServiceOption {
	return func(s *Service) error {
		s.audit = fn
		return nil
	}
}

// withSleep overrides the delay primitive, for tests.
func withSleep(fn func(time.Duration)) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.sleep = fn
		}
		return nil
	}
}

// NewService constructs the authenticator.
func NewService(store Store, codec *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if codec == nil {
		return nil, errors.New("token codec is required")
	}
	s := &Service{
		store:            store,
		codec:            codec,
		tokenTTL:         defaultTokenTTL,
		lockoutThreshold: defaultLockoutThreshold,
		lockoutDuration:  defaultLockoutDuration,
		failureDelay:     defaultFailureDelay,
		now:              time.Now,
		sleep:            time.Sleep,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(defaultRateLimitMax, defaultRateLimitWindow, WithRateLimiterClock(s.now))
	}
	ctx := context.Background()
	s.lockouts = NewLockoutTracker(store.Principals(ctx), s.lockoutThreshold, s.lockoutDuration, WithLockoutClock(s.now))
	s.resolver = NewPermissionResolver(store.Permissions(ctx))
	return s, nil
}

// Resolver exposes the permission resolver for callers guarding their own
// operations.
func (s *Service) Resolver() *PermissionResolver {
	return s.resolver
}

// Limiter exposes the login rate limiter so the process can run its sweeper.
func (s *Service) Limiter() *RateLimiter {
	return s.limiter
}

// EnsureBuiltins seeds the builtin permission catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions(ctx).Ensure(ctx, BuiltinPermissions)
}

// Register creates a principal after checking username, email and phone
// uniqueness independently among non-deleted records. A collision yields a
// ConflictError naming the field.
func (s *Service) Register(ctx context.Context, kind Kind, c Candidate) (*Principal, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, kind)
	}
	c.Username = strings.TrimSpace(c.Username)
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if c.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if c.Email == "" || !strings.Contains(c.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if c.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	principals := s.store.Principals(ctx)
	if err := s.checkAvailable(ctx, principals, kind, "username", c.Username); err != nil {
		return nil, err
	}
	if err := s.checkAvailable(ctx, principals, kind, "email", c.Email); err != nil {
		return nil, err
	}
	if c.Phone != "" {
		if err := s.checkAvailable(ctx, principals, kind, "phone", c.Phone); err != nil {
			return nil, err
		}
	}

	hash, err := HashPassword(c.Password)
	if err != nil {
		return nil, err
	}
	p := &Principal{
		ID:           ids.New(),
		Kind:         kind,
		Username:     c.Username,
		Name:         c.Name,
		Email:        c.Email,
		PasswordHash: hash,
		Active:       true,
	}
	if c.Phone != "" {
		p.Phone = &c.Phone
	}
	if err := principals.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) checkAvailable(ctx context.Context, principals PrincipalStore, kind Kind, field, value string) error {
	var err error
	switch field {
	case "username":
		_, err = principals.FindByUsername(ctx, kind, value)
	case "email":
		_, err = principals.FindByEmail(ctx, kind, value)
	case "phone":
		_, err = principals.FindByPhone(ctx, kind, value)
	}
	if err == nil {
		return &ConflictError{Field: field}
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Login authenticates a principal by username-or-email identifier and returns
// a signed bearer token. Failures follow the admission → lookup → lock →
// password → active pipeline; absence and wrong password are intentionally
// indistinguishable.
func (s *Service) Login(ctx context.Context, kind Kind, identifier, password, sourceKey string) (string, time.Time, error) {
	if !kind.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, kind)
	}
	identifier = strings.TrimSpace(identifier)

	if !s.limiter.Admit(sourceKey, actionClassLogin) {
		obs.ObserveRateLimited()
		s.observeLogin(ctx, kind, "rate_limited", "", sourceKey)
		return "", time.Time{}, ErrTooManyAttempts
	}

	if identifier == "" || password == "" {
		s.observeLogin(ctx, kind, "invalid_credentials", "", sourceKey)
		return "", time.Time{}, s.failLogin(ErrInvalidCredentials)
	}

	p, err := s.store.Principals(ctx).FindByIdentifier(ctx, kind, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.observeLogin(ctx, kind, "invalid_credentials", "", sourceKey)
			return "", time.Time{}, s.failLogin(ErrInvalidCredentials)
		}
		return "", time.Time{}, err
	}

	now := s.now()
	if s.lockouts.IsLocked(p, now) {
		s.observeLogin(ctx, kind, "locked", p.ID, sourceKey)
		return "", time.Time{}, s.failLogin(ErrLocked)
	}
	// Attempting after the lock expiry starts from a clean counter.
	if err := s.lockouts.ClearExpiredLock(ctx, p, now); err != nil {
		return "", time.Time{}, err
	}

	if !VerifyPassword(password, p.PasswordHash) {
		if err := s.lockouts.RecordFailure(ctx, p); err != nil {
			return "", time.Time{}, err
		}
		s.observeLogin(ctx, kind, "invalid_credentials", p.ID, sourceKey)
		return "", time.Time{}, s.failLogin(ErrInvalidCredentials)
	}

	if err := s.lockouts.RecordSuccess(ctx, p); err != nil {
		return "", time.Time{}, err
	}

	if !p.Active {
		s.observeLogin(ctx, kind, "inactive", p.ID, sourceKey)
		return "", time.Time{}, ErrInactiveAccount
	}

	token, expiresAt, err := s.codec.Issue(p.ID, kind, s.tokenTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	s.observeLogin(ctx, kind, "success", p.ID, sourceKey)
	return token, expiresAt, nil
}

// Requirement is an optional (resource, action) demand attached to Authorize.
type Requirement struct {
	Resource string
	Action   string
}

// Authorize verifies the bearer token, re-loads the principal and optionally
// enforces a permission requirement. Token failures and missing or
// soft-deleted principals surface as ErrUnauthorized; a deactivated principal
// or an unmet requirement surfaces as ErrForbidden.
func (s *Service) Authorize(ctx context.Context, token string, req *Requirement) (*Principal, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	p, err := s.store.Principals(ctx).FindByID(ctx, claims.Kind, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !p.Active {
		return nil, ErrForbidden
	}

	if req != nil {
		if p.Kind != KindAdmin {
			return nil, ErrForbidden
		}
		if err := s.resolver.RequirePermission(ctx, p.ID, req.Resource, req.Action); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Service) failLogin(err error) error {
	if s.failureDelay > 0 {
		s.sleep(s.failureDelay)
	}
	return err
}

func (s *Service) observeLogin(ctx context.Context, kind Kind, outcome, principalID, sourceKey string) {
	obs.ObserveLogin(string(kind), outcome)
	if s.audit == nil {
		return
	}
	fields := map[string]any{
		"kind":    string(kind),
		"outcome": outcome,
		"source":  sourceKey,
	}
	if principalID != "" {
		fields["principal_id"] = principalID
	}
	s.audit(ctx, "auth.login", fields)
}
