package models

import "time"

// OTPState состояние сессии подтверждения email.
type OTPState string

// Состояния сессии. Expired, Locked и TokenExpired вычисляются по времени и счётчику.
const (
	OTPStatePending      OTPState = "PENDING"
	OTPStateVerified     OTPState = "VERIFIED"
	OTPStateConsumed     OTPState = "CONSUMED"
	OTPStateExpired      OTPState = "EXPIRED"
	OTPStateLocked       OTPState = "LOCKED"
	OTPStateTokenExpired OTPState = "TOKEN_EXPIRED"
)

// OTPSession одна попытка подтвердить email одноразовым кодом.
type OTPSession struct {
	ID                int64      `db:"id" json:"id"`
	ChallengeID       string     `db:"challenge_id" json:"challenge_id"`
	Email             string     `db:"email" json:"email"`
	OTPHash           string     `db:"otp_hash" json:"-"`
	Attempts          int        `db:"attempts" json:"attempts"`
	MaxAttempts       int        `db:"max_attempts" json:"max_attempts"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	CooldownUntil     time.Time  `db:"cooldown_until" json:"cooldown_until"`
	VerifiedAt        *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	VerificationToken *string    `db:"verification_token" json:"-"`
	TokenExpiresAt    *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	UsedAt            *time.Time `db:"used_at" json:"used_at,omitempty"`
	OrderID           *int64     `db:"order_id" json:"order_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	// DBNow время базы в момент чтения строки. Все сравнения сроков идут по нему.
	DBNow time.Time `db:"db_now" json:"-"`
}

// State вычисляет состояние сессии на момент now.
func (s *OTPSession) State(now time.Time) OTPState {
	switch {
	case s.UsedAt != nil:
		return OTPStateConsumed
	case s.VerifiedAt != nil:
		if s.TokenExpiresAt != nil && !now.Before(*s.TokenExpiresAt) {
			return OTPStateTokenExpired
		}
		return OTPStateVerified
	case !now.Before(s.ExpiresAt):
		return OTPStateExpired
	case s.Attempts >= s.MaxAttempts:
		return OTPStateLocked
	default:
		return OTPStatePending
	}
}

// AttemptsLeft сколько неверных попыток ещё допустимо.
func (s *OTPSession) AttemptsLeft() int {
	if left := s.MaxAttempts - s.Attempts; left > 0 {
		return left
	}
	return 0
}
