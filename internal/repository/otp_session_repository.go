package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/repository/common"
)

var (
	ErrOTPSessionNotFound = errors.New("otp session not found")
	// ErrOTPSessionStale условное обновление не затронуло строку: состояние изменилось.
	ErrOTPSessionStale = errors.New("otp session state changed")
	// ErrVerificationNotRedeemable токен не найден, истёк или уже использован.
	ErrVerificationNotRedeemable = errors.New("verification token not redeemable")
)

// CooldownError новая отправка запрещена до истечения паузы.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otp cooldown active, retry after %s", e.RetryAfter)
}

// Сроки хранения завершённых сессий.
const (
	retentionUsed            = "7 days"
	retentionExpiredPending  = "1 day"
	retentionExpiredVerified = "1 day"
)

const otpSessionColumns = `id, challenge_id, email, otp_hash, attempts, max_attempts, expires_at, cooldown_until,
	verified_at, verification_token, token_expires_at, used_at, order_id, created_at, updated_at, NOW() AS db_now`

// NewOTPSession параметры новой сессии. Сроки отсчитываются от времени базы.
type NewOTPSession struct {
	ChallengeID string
	Email       string
	OTPHash     string
	MaxAttempts int
	TTL         time.Duration
	Cooldown    time.Duration
}

// RedeemFunc выполняется в транзакции погашения и возвращает ID созданного заказа.
type RedeemFunc func(tx *sqlx.Tx, session *models.OTPSession) (int64, error)

// OTPSessionRepository хранит сессии подтверждения email в email_otp_sessions.
type OTPSessionRepository struct {
	db *sqlx.DB
}

func NewOTPSessionRepository(db *sqlx.DB) *OTPSessionRepository {
	return &OTPSessionRepository{db: db}
}

// Create создаёт сессию, если для email нет активной паузы повторной отправки.
// Проверка и вставка выполняются под advisory lock по email.
func (r *OTPSessionRepository) Create(ctx context.Context, p NewOTPSession) (*models.OTPSession, error) {
	var created models.OTPSession

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.Email); err != nil {
			return fmt.Errorf("lock otp email: %w", err)
		}

		var retryAfterSec float64
		err := tx.GetContext(ctx, &retryAfterSec, `
			SELECT CEIL(EXTRACT(EPOCH FROM (cooldown_until - NOW())))
			FROM email_otp_sessions
			WHERE email = $1 AND verified_at IS NULL AND used_at IS NULL AND cooldown_until > NOW()
			ORDER BY cooldown_until DESC
			LIMIT 1
		`, p.Email)
		switch {
		case err == nil:
			if retryAfterSec < 1 {
				retryAfterSec = 1
			}
			return &CooldownError{RetryAfter: time.Duration(retryAfterSec) * time.Second}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check otp cooldown: %w", err)
		}

		err = tx.GetContext(ctx, &created, `
			INSERT INTO email_otp_sessions (challenge_id, email, otp_hash, attempts, max_attempts, expires_at, cooldown_until)
			VALUES ($1, $2, $3, 0, $4, NOW() + make_interval(secs => $5), NOW() + make_interval(secs => $6))
			RETURNING `+otpSessionColumns,
			p.ChallengeID, p.Email, p.OTPHash, p.MaxAttempts, p.TTL.Seconds(), p.Cooldown.Seconds())
		if err != nil {
			return fmt.Errorf("insert otp session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// FindByChallenge ищет сессию по паре (challenge_id, email).
func (r *OTPSessionRepository) FindByChallenge(ctx context.Context, challengeID, email string) (*models.OTPSession, error) {
	var s models.OTPSession
	err := r.db.GetContext(ctx, &s, `
		SELECT `+otpSessionColumns+`
		FROM email_otp_sessions
		WHERE challenge_id = $1 AND email = $2
	`, challengeID, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOTPSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find otp session: %w", err)
	}
	return &s, nil
}

// RecordFailedAttempt увеличивает счётчик попыток, пока сессия не подтверждена и не исчерпана.
func (r *OTPSessionRepository) RecordFailedAttempt(ctx context.Context, id int64) (*models.OTPSession, error) {
	var s models.OTPSession
	err := r.db.GetContext(ctx, &s, `
		UPDATE email_otp_sessions
		SET attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1 AND verified_at IS NULL AND used_at IS NULL AND attempts < max_attempts
		RETURNING `+otpSessionColumns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOTPSessionStale
	}
	if err != nil {
		return nil, fmt.Errorf("record otp attempt: %w", err)
	}
	return &s, nil
}

// MarkVerified переводит сессию в VERIFIED и выдаёт токен. Срабатывает ровно один раз.
func (r *OTPSessionRepository) MarkVerified(ctx context.Context, id int64, token string, tokenTTL time.Duration) (*models.OTPSession, error) {
	var s models.OTPSession
	err := r.db.GetContext(ctx, &s, `
		UPDATE email_otp_sessions
		SET verified_at = NOW(),
		    verification_token = $2,
		    token_expires_at = NOW() + make_interval(secs => $3),
		    updated_at = NOW()
		WHERE id = $1
		  AND verified_at IS NULL
		  AND used_at IS NULL
		  AND expires_at > NOW()
		  AND attempts < max_attempts
		RETURNING `+otpSessionColumns, id, token, tokenTTL.Seconds())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOTPSessionStale
	}
	if err != nil {
		return nil, fmt.Errorf("mark otp verified: %w", err)
	}
	return &s, nil
}

// Redeem погашает токен подтверждения в одной транзакции с fn.
// Ошибка fn откатывает всё, и токен остаётся действительным.
func (r *OTPSessionRepository) Redeem(ctx context.Context, email, token string, fn RedeemFunc) (int64, error) {
	var orderID int64

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var s models.OTPSession
		err := tx.GetContext(ctx, &s, `
			SELECT `+otpSessionColumns+`
			FROM email_otp_sessions
			WHERE email = $1
			  AND verification_token = $2
			  AND verified_at IS NOT NULL
			  AND used_at IS NULL
			  AND token_expires_at > NOW()
			FOR UPDATE
		`, email, token)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVerificationNotRedeemable
		}
		if err != nil {
			return fmt.Errorf("lock otp session: %w", err)
		}

		id, err := fn(tx, &s)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE email_otp_sessions
			SET used_at = NOW(), order_id = $2, updated_at = NOW()
			WHERE id = $1 AND used_at IS NULL
		`, s.ID, id)
		if err != nil {
			return fmt.Errorf("consume otp session: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return ErrVerificationNotRedeemable
		}

		orderID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

// Purge удаляет завершённые сессии по срокам хранения. Повторный вызов безопасен.
func (r *OTPSessionRepository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM email_otp_sessions
		WHERE (used_at IS NOT NULL AND used_at < NOW() - INTERVAL '`+retentionUsed+`')
		   OR (verified_at IS NULL AND expires_at < NOW() - INTERVAL '`+retentionExpiredPending+`')
		   OR (verified_at IS NOT NULL AND used_at IS NULL AND token_expires_at < NOW() - INTERVAL '`+retentionExpiredVerified+`')
	`)
	if err != nil {
		return 0, fmt.Errorf("purge otp sessions: %w", err)
	}
	return res.RowsAffected()
}
