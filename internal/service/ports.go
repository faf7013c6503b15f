package service

import (
	"context"
	"time"

	"github.com/SamiTelo/API-Football/internal/models"
)

// UserStore is the account persistence used by the auth flows.
// Rotate, Clear and Consume are conditional updates that fail when the expected value is gone.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	MarkVerified(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash []byte) error
	SetRefreshHash(ctx context.Context, id int64, hash string) error
	RotateRefreshHash(ctx context.Context, id int64, expected, next string) error
	ClearRefreshHash(ctx context.Context, id int64, expected string) error
	SetTwoFactorChallenge(ctx context.Context, id int64, codeHash []byte, expiresAt time.Time) error
	ConsumeTwoFactorChallenge(ctx context.Context, id int64, codeHash []byte) error
	RecordTwoFactorFailure(ctx context.Context, id int64, codeHash []byte, maxAttempts int) (bool, error)
	ClearTwoFactorChallenge(ctx context.Context, id int64, codeHash []byte) error
}

type RoleStore interface {
	FindByName(ctx context.Context, name models.RoleName) (models.Role, error)
	Ensure(ctx context.Context, name models.RoleName) (models.Role, error)
}

type SignupAttemptStore interface {
	RecordIfBelow(ctx context.Context, ip string, since, now time.Time, limit int) (bool, error)
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, encodedHash []byte) bool
}

type Notifier interface {
	SendVerification(ctx context.Context, user models.User, token string) error
	SendTwoFactorCode(ctx context.Context, user models.User, code string) error
	SendPasswordReset(ctx context.Context, user models.User, token string) error
}
