// Package servicetest provides in-memory stores with the same conditional update
// semantics as the Postgres repositories, for tests of the auth and upload flows.
package servicetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/repository"
)

type Users struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]models.User
}

func NewUsers() *Users {
	return &Users{byID: make(map[int64]models.User)}
}

func (s *Users) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrEmailTaken
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	s.byID[user.ID] = clone(*user)
	return nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.byID {
		if user.Email == email {
			return clone(user), nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *Users) GetByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return clone(user), nil
}

func (s *Users) MarkVerified(_ context.Context, id int64) error {
	return s.update(id, repository.ErrUserNotFound, func(u *models.User) bool {
		u.IsVerified = true
		return true
	})
}

func (s *Users) UpdatePassword(_ context.Context, id int64, passwordHash []byte) error {
	return s.update(id, repository.ErrUserNotFound, func(u *models.User) bool {
		u.PasswordHash = passwordHash
		u.RefreshTokenHash = nil
		clearChallenge(u)
		return true
	})
}

func (s *Users) SetRefreshHash(_ context.Context, id int64, hash string) error {
	return s.update(id, repository.ErrUserNotFound, func(u *models.User) bool {
		u.RefreshTokenHash = &hash
		return true
	})
}

// RotateRefreshHash mirrors UPDATE ... WHERE id = $1 AND refresh_token_hash = $expected.
func (s *Users) RotateRefreshHash(_ context.Context, id int64, expected, next string) error {
	return s.update(id, repository.ErrRefreshHashMismatch, func(u *models.User) bool {
		if u.RefreshTokenHash == nil || *u.RefreshTokenHash != expected {
			return false
		}
		u.RefreshTokenHash = &next
		return true
	})
}

// ClearRefreshHash mirrors the same guarded UPDATE, setting the hash to NULL.
func (s *Users) ClearRefreshHash(_ context.Context, id int64, expected string) error {
	return s.update(id, repository.ErrRefreshHashMismatch, func(u *models.User) bool {
		if u.RefreshTokenHash == nil || *u.RefreshTokenHash != expected {
			return false
		}
		u.RefreshTokenHash = nil
		return true
	})
}

func (s *Users) SetTwoFactorChallenge(_ context.Context, id int64, codeHash []byte, expiresAt time.Time) error {
	return s.update(id, repository.ErrUserNotFound, func(u *models.User) bool {
		u.TwoFactorCodeHash = codeHash
		u.TwoFactorExpiry = &expiresAt
		u.TwoFactorAttempts = 0
		return true
	})
}

// ConsumeTwoFactorChallenge mirrors UPDATE ... WHERE two_factor_code_hash = $codeHash.
func (s *Users) ConsumeTwoFactorChallenge(_ context.Context, id int64, codeHash []byte) error {
	return s.update(id, repository.ErrChallengeNotFound, func(u *models.User) bool {
		if len(u.TwoFactorCodeHash) == 0 || !bytes.Equal(u.TwoFactorCodeHash, codeHash) {
			return false
		}
		clearChallenge(u)
		return true
	})
}

// RecordTwoFactorFailure mirrors the CASE that nulls the challenge once attempts reach maxAttempts.
func (s *Users) RecordTwoFactorFailure(_ context.Context, id int64, codeHash []byte, maxAttempts int) (bool, error) {
	cleared := false
	err := s.update(id, repository.ErrChallengeNotFound, func(u *models.User) bool {
		if len(u.TwoFactorCodeHash) == 0 || !bytes.Equal(u.TwoFactorCodeHash, codeHash) {
			return false
		}
		u.TwoFactorAttempts++
		if u.TwoFactorAttempts >= maxAttempts {
			u.TwoFactorCodeHash = nil
			u.TwoFactorExpiry = nil
			cleared = true
		}
		return true
	})
	return cleared, err
}

func (s *Users) ClearTwoFactorChallenge(ctx context.Context, id int64, codeHash []byte) error {
	return s.ConsumeTwoFactorChallenge(ctx, id, codeHash)
}

func (s *Users) update(id int64, notFound error, apply func(*models.User) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return notFound
	}
	if !apply(&user) {
		return notFound
	}
	user.UpdatedAt = time.Now().UTC()
	s.byID[id] = user
	return nil
}

func clearChallenge(u *models.User) {
	u.TwoFactorCodeHash = nil
	u.TwoFactorExpiry = nil
	u.TwoFactorAttempts = 0
}

func clone(u models.User) models.User {
	if u.RefreshTokenHash != nil {
		hash := *u.RefreshTokenHash
		u.RefreshTokenHash = &hash
	}
	if u.TwoFactorExpiry != nil {
		expiry := *u.TwoFactorExpiry
		u.TwoFactorExpiry = &expiry
	}
	if u.Role != nil {
		role := *u.Role
		u.Role = &role
	}
	return u
}

type Roles struct {
	mu     sync.Mutex
	nextID int64
	byName map[models.RoleName]models.Role
}

// NewRoles seeds the given roles. ADMIN and SUPERADMIN require a second factor.
func NewRoles(names ...models.RoleName) *Roles {
	r := &Roles{byName: make(map[models.RoleName]models.Role)}
	for _, name := range names {
		_, _ = r.Ensure(context.Background(), name)
	}
	return r
}

func (r *Roles) FindByName(_ context.Context, name models.RoleName) (models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.byName[name]
	if !ok {
		return models.Role{}, repository.ErrRoleNotFound
	}
	return role, nil
}

func (r *Roles) Ensure(_ context.Context, name models.RoleName) (models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if role, ok := r.byName[name]; ok {
		return role, nil
	}
	r.nextID++
	role := models.Role{
		ID:                r.nextID,
		Name:              name,
		RequiresTwoFactor: name == models.RoleAdmin || name == models.RoleSuperAdmin,
	}
	if name == models.RoleSuperAdmin {
		role.Permissions = []models.Permission{
			models.PermissionCreateUser,
			models.PermissionEditUser,
			models.PermissionDeleteUser,
		}
	}
	r.byName[name] = role
	return role, nil
}

type SignupAttempts struct {
	mu   sync.Mutex
	byIP map[string][]time.Time
}

func NewSignupAttempts() *SignupAttempts {
	return &SignupAttempts{byIP: make(map[string][]time.Time)}
}

// RecordIfBelow mirrors the advisory-locked count-then-insert; the mutex plays the lock.
func (s *SignupAttempts) RecordIfBelow(_ context.Context, ip string, since, now time.Time, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, at := range s.byIP[ip] {
		if !at.Before(since) {
			count++
		}
	}
	if count >= limit {
		return false, nil
	}
	s.byIP[ip] = append(s.byIP[ip], now)
	return true, nil
}

// Hasher is a reversible stand-in for argon2 that keeps tests fast.
type Hasher struct{}

func (Hasher) Hash(password string) ([]byte, error) {
	return []byte("plain:" + password), nil
}

func (Hasher) Verify(password string, encodedHash []byte) bool {
	return string(encodedHash) == "plain:"+password
}

// Notifier records the last token or code sent to each address.
type Notifier struct {
	mu            sync.Mutex
	Err           error
	Verifications map[string]string
	Codes         map[string]string
	Resets        map[string]string
}

func NewNotifier() *Notifier {
	return &Notifier{
		Verifications: make(map[string]string),
		Codes:         make(map[string]string),
		Resets:        make(map[string]string),
	}
}

func (n *Notifier) SendVerification(_ context.Context, user models.User, token string) error {
	return n.record(n.Verifications, user.Email, token)
}

func (n *Notifier) SendTwoFactorCode(_ context.Context, user models.User, code string) error {
	return n.record(n.Codes, user.Email, code)
}

func (n *Notifier) SendPasswordReset(_ context.Context, user models.User, token string) error {
	return n.record(n.Resets, user.Email, token)
}

func (n *Notifier) Sent(kind map[string]string, email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return kind[email]
}

func (n *Notifier) record(into map[string]string, email, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	into[email] = value
	return nil
}

type Images struct {
	mu      sync.Mutex
	Err     error
	byOwner map[string]models.Image
}

func NewImages() *Images {
	return &Images{byOwner: make(map[string]models.Image)}
}

// Replace mirrors the SELECT FOR UPDATE plus upsert on (owner_kind, owner_id).
func (s *Images) Replace(_ context.Context, image models.Image) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	key := ownerKey(image.OwnerKind, image.OwnerID)
	var previous *models.Image
	if old, ok := s.byOwner[key]; ok {
		previous = &old
	}
	s.byOwner[key] = image
	return previous, nil
}

func (s *Images) GetByOwner(_ context.Context, kind models.ImageOwner, ownerID int64) (models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	image, ok := s.byOwner[ownerKey(kind, ownerID)]
	if !ok {
		return models.Image{}, repository.ErrImageNotFound
	}
	return image, nil
}

func ownerKey(kind models.ImageOwner, id int64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

// Objects is an in-memory bucket.
type Objects struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
}

func NewObjects() *Objects {
	return &Objects{Objects: make(map[string][]byte), Types: make(map[string]string)}
}

func (o *Objects) Bucket() string { return "football-images" }

func (o *Objects) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) (int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Objects[key] = data
	o.Types[key] = contentType
	return int64(len(data)), nil
}

func (o *Objects) Remove(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.Objects[key]; !ok {
		return errors.New("object not found")
	}
	delete(o.Objects, key)
	delete(o.Types, key)
	return nil
}

func (o *Objects) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/%s/%s?ttl=%d", o.Bucket(), key, int(ttl.Seconds())), nil
}

func (o *Objects) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Objects)
}
