package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SamiTelo/API-Football/internal/config"
	"github.com/SamiTelo/API-Football/internal/mail"
	"github.com/SamiTelo/API-Football/internal/metrics"
	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/repository"
	"github.com/SamiTelo/API-Football/internal/security"
)

// AuthConfig is the part of the security configuration the flows depend on.
type AuthConfig struct {
	TwoFactorTTL         time.Duration
	TwoFactorMaxAttempts int
	SignupLimit          int
	SignupWindow         time.Duration
	RevealUnknownEmail   bool
}

func NewAuthConfig(cfg config.SecurityConfig) AuthConfig {
	return AuthConfig{
		TwoFactorTTL:         cfg.TwoFactorTTL,
		TwoFactorMaxAttempts: cfg.TwoFactorMaxAttempts,
		SignupLimit:          cfg.SignupLimit,
		SignupWindow:         cfg.SignupWindow,
		RevealUnknownEmail:   cfg.RevealUnknownEmail,
	}
}

type AuthService struct {
	users    UserStore
	roles    RoleStore
	attempts SignupAttemptStore
	hasher   PasswordHasher
	tokens   *security.TokenSigner
	notifier Notifier
	metrics  *metrics.Metrics
	cfg      AuthConfig
	log      zerolog.Logger
	now      func() time.Time
	newCode  func() (string, error)

	dummyOnce sync.Once
	dummyHash []byte
}

type AuthOption func(*AuthService)

func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		s.now = now
	}
}

// WithCodeGenerator replaces the random 2FA code source.
func WithCodeGenerator(gen func() (string, error)) AuthOption {
	return func(s *AuthService) {
		s.newCode = gen
	}
}

func WithMetrics(m *metrics.Metrics) AuthOption {
	return func(s *AuthService) {
		s.metrics = m
	}
}

func NewAuthService(
	users UserStore,
	roles RoleStore,
	attempts SignupAttemptStore,
	hasher PasswordHasher,
	tokens *security.TokenSigner,
	notifier Notifier,
	cfg AuthConfig,
	log zerolog.Logger,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		users:    users,
		roles:    roles,
		attempts: attempts,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		newCode:  security.GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	IP        string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type LoginResult struct {
	TwoFactorRequired bool
	UserID            int64
	User              models.User
	Tokens            TokenPair
}

// Register records a signup attempt for the caller's address, then creates an unverified USER
// and mails the verification link. A mail failure leaves the account in place.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (user models.User, err error) {
	defer func() { s.metrics.AuthEvent("register", err) }()

	input.Email = strings.TrimSpace(input.Email)
	if !security.StrongPassword(input.Password) {
		return models.User{}, ErrWeakPassword
	}

	now := s.now()
	allowed, err := s.attempts.RecordIfBelow(ctx, input.IP, now.Add(-s.cfg.SignupWindow), now, s.cfg.SignupLimit)
	if err != nil {
		return models.User{}, fmt.Errorf("record signup attempt: %w", err)
	}
	if !allowed {
		s.log.Warn().Str("ip", input.IP).Msg("signup limit reached")
		return models.User{}, ErrTooManyAttempts
	}

	if err := s.ensureEmailFree(ctx, input.Email); err != nil {
		return models.User{}, err
	}

	role, err := s.roles.Ensure(ctx, models.RoleUser)
	if err != nil {
		return models.User{}, fmt.Errorf("resolve role: %w", err)
	}

	user, err = s.createUser(ctx, input.FirstName, input.LastName, input.Email, input.Password, &role, false)
	if err != nil {
		return models.User{}, err
	}

	token, err := s.issue(security.PurposeVerify, security.Payload{UserID: user.ID})
	if err != nil {
		return user, err
	}

	if err := s.notifier.SendVerification(ctx, user, token); err != nil {
		return user, s.mailFailed(mail.KindVerification, user, err)
	}

	s.log.Info().Int64("user_id", user.ID).Str("ip", input.IP).Msg("user registered")
	return user, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (err error) {
	defer func() { s.metrics.AuthEvent("verify_email", err) }()

	payload, err := s.verify(security.PurposeVerify, token, ErrInvalidToken)
	if err != nil {
		return err
	}

	if err := s.users.MarkVerified(ctx, payload.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("mark verified: %w", err)
	}

	s.log.Info().Int64("user_id", payload.UserID).Msg("email verified")
	return nil
}

type LoginInput struct {
	Email    string
	Password string
	IP       string
}

// Login authenticates the credentials. Roles that require a second factor get a mailed code
// and no tokens; everyone else gets an access and refresh token pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (result LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.verifyDummy(input.Password)
			s.log.Warn().Str("ip", input.IP).Msg("login rejected")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	// Verified or not, every rejection pays for one hash verification.
	passwordOK := s.hasher.Verify(input.Password, user.PasswordHash)
	if !user.IsVerified || !passwordOK {
		s.log.Warn().Str("ip", input.IP).Msg("login rejected")
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.RequiresTwoFactor() {
		if err := s.startTwoFactor(ctx, user); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{TwoFactorRequired: true, UserID: user.ID}, nil
	}

	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	s.log.Info().Int64("user_id", user.ID).Str("ip", input.IP).Msg("user logged in")
	return LoginResult{UserID: user.ID, User: user, Tokens: tokens}, nil
}

// verifyDummy spends one password verification against a fixed hash for unknown emails.
func (s *AuthService) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("unknown-account-placeholder")
		if err != nil {
			s.log.Error().Err(err).Msg("hash placeholder password")
			return
		}
		s.dummyHash = hash
	})
	s.hasher.Verify(password, s.dummyHash)
}

func (s *AuthService) startTwoFactor(ctx context.Context, user models.User) error {
	code, err := s.newCode()
	if err != nil {
		return err
	}
	codeHash, err := security.HashCode(code)
	if err != nil {
		return err
	}

	expiresAt := s.now().Add(s.cfg.TwoFactorTTL)
	if err := s.users.SetTwoFactorChallenge(ctx, user.ID, codeHash, expiresAt); err != nil {
		return fmt.Errorf("store two factor challenge: %w", err)
	}

	if err := s.notifier.SendTwoFactorCode(ctx, user, code); err != nil {
		return s.mailFailed(mail.KindTwoFactor, user, err)
	}

	s.log.Info().Int64("user_id", user.ID).Str("role", string(user.RoleName())).Msg("two factor challenge sent")
	return nil
}

// VerifyTwoFactor consumes the pending code of userID. Wrong codes count towards the attempt
// limit and expired codes are cleared.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, userID int64, code string) (result LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("two_factor", err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, ErrUnauthorized
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if !user.HasPendingTwoFactor() {
		return LoginResult{}, ErrUnauthorized
	}

	if !s.now().Before(*user.TwoFactorExpiry) {
		if err := s.users.ClearTwoFactorChallenge(ctx, user.ID, user.TwoFactorCodeHash); err != nil &&
			!errors.Is(err, repository.ErrChallengeNotFound) {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("clear expired two factor challenge")
		}
		return LoginResult{}, ErrCodeExpired
	}

	if !security.VerifyCode(code, user.TwoFactorCodeHash) {
		cleared, err := s.users.RecordTwoFactorFailure(ctx, user.ID, user.TwoFactorCodeHash, s.cfg.TwoFactorMaxAttempts)
		if err != nil && !errors.Is(err, repository.ErrChallengeNotFound) {
			return LoginResult{}, fmt.Errorf("record two factor failure: %w", err)
		}
		if cleared {
			s.log.Warn().Int64("user_id", user.ID).Msg("two factor attempts exhausted")
		}
		return LoginResult{}, ErrInvalidCode
	}

	if err := s.users.ConsumeTwoFactorChallenge(ctx, user.ID, user.TwoFactorCodeHash); err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return LoginResult{}, ErrUnauthorized
		}
		return LoginResult{}, fmt.Errorf("consume two factor challenge: %w", err)
	}

	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	s.log.Info().Int64("user_id", user.ID).Msg("two factor verified")
	return LoginResult{UserID: user.ID, User: user, Tokens: tokens}, nil
}

// Refresh exchanges the current refresh token for a new pair. The stored hash is swapped
// atomically so a token can be exchanged at most once. Every rejection is ErrInvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (result LoginResult, err error) {
	defer func() { s.metrics.AuthEvent("refresh", err) }()

	if refreshToken == "" {
		return LoginResult{}, ErrInvalidRefreshToken
	}

	payload, err := s.verify(security.PurposeRefresh, refreshToken, ErrInvalidRefreshToken)
	if err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidRefreshToken
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if user.RefreshTokenHash == nil {
		s.log.Warn().Int64("user_id", user.ID).Msg("refresh token presented after revocation")
		return LoginResult{}, ErrInvalidRefreshToken
	}

	presented := security.HashToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(*user.RefreshTokenHash)) != 1 {
		s.log.Warn().Int64("user_id", user.ID).Msg("superseded refresh token presented")
		return LoginResult{}, ErrInvalidRefreshToken
	}

	tokens, err := s.issuePair(user)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.users.RotateRefreshHash(ctx, user.ID, presented, security.HashToken(tokens.RefreshToken)); err != nil {
		if errors.Is(err, repository.ErrRefreshHashMismatch) {
			s.log.Warn().Int64("user_id", user.ID).Msg("concurrent refresh rejected")
			return LoginResult{}, ErrInvalidRefreshToken
		}
		return LoginResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return LoginResult{UserID: user.ID, User: user, Tokens: tokens}, nil
}

// Logout revokes refreshToken if it is still the current one. Invalid tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { s.metrics.AuthEvent("logout", err) }()

	if refreshToken == "" {
		return nil
	}
	payload, verr := s.tokens.Verify(security.PurposeRefresh, refreshToken)
	if verr != nil {
		return nil
	}

	err = s.users.ClearRefreshHash(ctx, payload.UserID, security.HashToken(refreshToken))
	if err != nil && !errors.Is(err, repository.ErrRefreshHashMismatch) {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// ForgotPassword mails a reset link. Unknown addresses succeed silently unless
// RevealUnknownEmail is set.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.AuthEvent("forgot_password", err) }()

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if s.cfg.RevealUnknownEmail {
				return ErrNotFound
			}
			s.log.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	token, err := s.issue(security.PurposeReset, security.Payload{UserID: user.ID})
	if err != nil {
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, user, token); err != nil {
		return s.mailFailed(mail.KindPasswordReset, user, err)
	}

	s.log.Info().Int64("user_id", user.ID).Msg("password reset requested")
	return nil
}

// ResetPassword sets a new password and revokes the refresh token and any pending 2FA code.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.metrics.AuthEvent("reset_password", err) }()

	payload, err := s.verify(security.PurposeReset, token, ErrInvalidToken)
	if err != nil {
		return err
	}
	if !security.StrongPassword(newPassword) {
		return ErrWeakPassword
	}

	if _, err := s.users.GetByID(ctx, payload.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, payload.UserID, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.log.Info().Int64("user_id", payload.UserID).Msg("password reset")
	return nil
}

type CreateAdminInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	IP        string
	CreatorID int64
}

// CreateAdmin provisions a verified ADMIN. It skips signup throttling and email verification.
func (s *AuthService) CreateAdmin(ctx context.Context, input CreateAdminInput) (user models.User, err error) {
	defer func() { s.metrics.AuthEvent("create_admin", err) }()

	input.Email = strings.TrimSpace(input.Email)
	audit := s.log.With().
		Str("email", input.Email).
		Str("ip", input.IP).
		Int64("creator_id", input.CreatorID).
		Logger()
	audit.Warn().Msg("admin creation attempt")

	if !security.StrongPassword(input.Password) {
		return models.User{}, ErrWeakPassword
	}

	if err := s.ensureEmailFree(ctx, input.Email); err != nil {
		audit.Warn().Err(err).Msg("admin creation failed")
		return models.User{}, err
	}

	role, err := s.roles.FindByName(ctx, models.RoleAdmin)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			audit.Error().Msg("ADMIN role missing")
			return models.User{}, fmt.Errorf("%w: ADMIN role missing", ErrConfiguration)
		}
		return models.User{}, fmt.Errorf("resolve role: %w", err)
	}

	user, err = s.createUser(ctx, input.FirstName, input.LastName, input.Email, input.Password, &role, true)
	if err != nil {
		audit.Warn().Err(err).Msg("admin creation failed")
		return models.User{}, err
	}

	audit.Info().Int64("user_id", user.ID).Msg("admin created")
	return user, nil
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

type BootstrapInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// EnsureSuperAdmin creates the initial SUPERADMIN once. It reports whether an account was created.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, input BootstrapInput) (bool, error) {
	if input.Email == "" || input.Password == "" {
		return false, nil
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return false, fmt.Errorf("find user: %w", err)
	}

	role, err := s.roles.Ensure(ctx, models.RoleSuperAdmin)
	if err != nil {
		return false, fmt.Errorf("resolve role: %w", err)
	}

	user, err := s.createUser(ctx, input.FirstName, input.LastName, input.Email, input.Password, &role, true)
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return false, nil
		}
		return false, err
	}

	s.log.Warn().Int64("user_id", user.ID).Str("email", user.Email).Msg("superadmin bootstrapped")
	return true, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return ErrDuplicateAccount
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	return fmt.Errorf("find user: %w", err)
}

func (s *AuthService) createUser(ctx context.Context, firstName, lastName, email, password string, role *models.Role, verified bool) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: hash,
		IsVerified:   verified,
		Role:         role,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.User{}, ErrDuplicateAccount
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// openSession issues a token pair and makes its refresh token the only valid one for user.
func (s *AuthService) openSession(ctx context.Context, user models.User) (TokenPair, error) {
	tokens, err := s.issuePair(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.SetRefreshHash(ctx, user.ID, security.HashToken(tokens.RefreshToken)); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return tokens, nil
}

func (s *AuthService) issuePair(user models.User) (TokenPair, error) {
	access, err := s.issue(security.PurposeAccess, security.Payload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.RoleName()),
	})
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issue(security.PurposeRefresh, security.Payload{UserID: user.ID})
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) issue(purpose security.Purpose, payload security.Payload) (string, error) {
	token, err := s.tokens.Issue(purpose, payload)
	if err != nil {
		if errors.Is(err, security.ErrSecretMissing) {
			return "", fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return "", fmt.Errorf("issue %s token: %w", purpose, err)
	}
	return token, nil
}

func (s *AuthService) verify(purpose security.Purpose, token string, invalid error) (security.Payload, error) {
	payload, err := s.tokens.Verify(purpose, token)
	if err != nil {
		if errors.Is(err, security.ErrSecretMissing) {
			return security.Payload{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return security.Payload{}, invalid
	}
	return payload, nil
}

func (s *AuthService) mailFailed(kind string, user models.User, err error) error {
	s.metrics.MailFailed(kind)
	s.log.Error().
		Err(err).
		Bool("alert", true).
		Str("kind", kind).
		Int64("user_id", user.ID).
		Msg("mail dispatch failed")
	return fmt.Errorf("%w: %v", ErrMailDispatch, err)
}
