package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/mailer"
	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/otpcode"
	"github.com/ignatzorin/chemsus-backend/internal/repository"
	"github.com/ignatzorin/chemsus-backend/internal/validation"
)

const (
	// opportunisticPurgeEvery минимальный интервал между очистками, запускаемыми из Send.
	opportunisticPurgeEvery = time.Minute
	defaultDeliveryTimeout  = 10 * time.Second
)

// OTPSessionStore хранилище сессий. Все сроки считаются по часам хранилища.
type OTPSessionStore interface {
	Create(ctx context.Context, p repository.NewOTPSession) (*models.OTPSession, error)
	FindByChallenge(ctx context.Context, challengeID, email string) (*models.OTPSession, error)
	RecordFailedAttempt(ctx context.Context, id int64) (*models.OTPSession, error)
	MarkVerified(ctx context.Context, id int64, token string, tokenTTL time.Duration) (*models.OTPSession, error)
	Redeem(ctx context.Context, email, token string, fn repository.RedeemFunc) (int64, error)
	Purge(ctx context.Context) (int64, error)
}

// Clock источник текущего времени.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// OTPConfig параметры кодов.
type OTPConfig struct {
	TTL             time.Duration
	ResendCooldown  time.Duration
	MaxAttempts     int
	TokenTTL        time.Duration
	ExposeDebugCode bool
	// DeliveryTimeout ограничивает ожидание почты в Send. Ноль означает defaultDeliveryTimeout.
	DeliveryTimeout time.Duration
}

// SendResult ответ на запрос кода.
type SendResult struct {
	ChallengeID  string
	ExpiresInSec int
	ResendInSec  int
	Delivered    bool
	DebugCode    string
}

// VerifyResult ответ на успешную проверку кода.
type VerifyResult struct {
	VerificationToken string
	TokenExpiresInSec int
}

// OTPService выдаёт, проверяет и погашает одноразовые коды подтверждения email.
type OTPService struct {
	store    OTPSessionStore
	gen      otpcode.Generator
	hasher   *otpcode.Hasher
	delivery mailer.Mailer
	fallback mailer.Mailer
	cfg      OTPConfig
	clock    Clock

	lastPurge atomic.Int64
}

// NewOTPService создаёт сервис. delivery может быть nil: тогда коды только пишутся в лог.
func NewOTPService(store OTPSessionStore, gen otpcode.Generator, hasher *otpcode.Hasher, delivery mailer.Mailer, cfg OTPConfig) *OTPService {
	return &OTPService{
		store:    store,
		gen:      gen,
		hasher:   hasher,
		delivery: delivery,
		fallback: mailer.LogMailer{},
		cfg:      cfg,
		clock:    systemClock{},
	}
}

// SetClock подменяет часы. Используется в тестах.
func (s *OTPService) SetClock(c Clock) {
	s.clock = c
}

// Send выпускает новый код для email, если не действует пауза повторной отправки.
func (s *OTPService) Send(ctx context.Context, rawEmail string) (*SendResult, error) {
	email := validation.NormalizeEmail(rawEmail)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.ErrInvalidEmail
	}

	s.maybePurge(ctx)

	code, err := s.gen.Code()
	if err != nil {
		return nil, apperror.Internal(err)
	}
	challengeID, err := s.gen.ChallengeID()
	if err != nil {
		return nil, apperror.Internal(err)
	}

	session, err := s.store.Create(ctx, repository.NewOTPSession{
		ChallengeID: challengeID,
		Email:       email,
		OTPHash:     s.hasher.Hash(challengeID, email, code),
		MaxAttempts: s.cfg.MaxAttempts,
		TTL:         s.cfg.TTL,
		Cooldown:    s.cfg.ResendCooldown,
	})
	if err != nil {
		var cooldown *repository.CooldownError
		if errors.As(err, &cooldown) {
			return nil, apperror.ErrOTPCooldown.WithMeta(apperror.MetaRetryAfterSec, ceilSeconds(cooldown.RetryAfter))
		}
		return nil, apperror.Internal(err)
	}

	result := &SendResult{
		ChallengeID:  session.ChallengeID,
		ExpiresInSec: ceilSeconds(session.ExpiresAt.Sub(session.DBNow)),
		ResendInSec:  ceilSeconds(session.CooldownUntil.Sub(session.DBNow)),
	}

	msg := mailer.OTPMessage(email, code, s.cfg.TTL)
	if s.delivery != nil {
		err := s.deliver(ctx, msg)
		if err == nil {
			result.Delivered = true
			return result, nil
		}
		logger.Log.WithError(err).WithField("challenge_id", challengeID).Warn("otp: доставка не удалась, используем запасной канал")
	}

	// Запасной канал: код уходит в лог, сессия остаётся действительной.
	_ = s.fallback.Send(ctx, msg)
	if s.cfg.ExposeDebugCode {
		result.DebugCode = code
	}
	return result, nil
}

// deliver отправляет письмо, но ждёт не дольше DeliveryTimeout.
// Почтовый клиент, игнорирующий ctx, дорабатывает в фоне, Send его не ждёт.
func (s *OTPService) deliver(ctx context.Context, msg mailer.Message) error {
	timeout := s.cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("otp: panic в почтовом клиенте: %v", r)
			}
		}()
		done <- s.delivery.Send(dctx, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-dctx.Done():
		return fmt.Errorf("otp: доставка прервана: %w", dctx.Err())
	}
}

// Verify проверяет код и при успехе выдаёт одноразовый токен подтверждения.
func (s *OTPService) Verify(ctx context.Context, rawEmail, challengeID, code string) (*VerifyResult, error) {
	email := validation.NormalizeEmail(rawEmail)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.ErrInvalidEmail
	}
	challengeID = validation.NormalizeHexID(challengeID)
	if !validation.IsHexID(challengeID) {
		return nil, apperror.ErrInvalidChallenge
	}
	if !validation.IsOTPCode(code) {
		return nil, apperror.ErrInvalidCodeFormat
	}

	session, err := s.store.FindByChallenge(ctx, challengeID, email)
	if errors.Is(err, repository.ErrOTPSessionNotFound) {
		return nil, apperror.ErrOTPNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	if err := classify(session); err != nil {
		return nil, err
	}

	if !s.hasher.Verify(session.OTPHash, challengeID, email, code) {
		updated, err := s.store.RecordFailedAttempt(ctx, session.ID)
		if errors.Is(err, repository.ErrOTPSessionStale) {
			return nil, s.reclassify(ctx, challengeID, email, apperror.ErrOTPLocked)
		}
		if err != nil {
			return nil, apperror.Internal(err)
		}
		s.logAttempt(updated)
		return nil, apperror.ErrOTPInvalidCode.WithMeta(apperror.MetaAttemptsLeft, updated.AttemptsLeft())
	}

	token, err := s.gen.Token()
	if err != nil {
		return nil, apperror.Internal(err)
	}

	verified, err := s.store.MarkVerified(ctx, session.ID, token, s.cfg.TokenTTL)
	if errors.Is(err, repository.ErrOTPSessionStale) {
		return nil, s.reclassify(ctx, challengeID, email, apperror.ErrOTPExpired)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	expiresIn := ceilSeconds(s.cfg.TokenTTL)
	if verified.TokenExpiresAt != nil {
		expiresIn = ceilSeconds(verified.TokenExpiresAt.Sub(verified.DBNow))
	}

	return &VerifyResult{VerificationToken: token, TokenExpiresInSec: expiresIn}, nil
}

// Consume погашает токен подтверждения и вызывает fn в той же транзакции.
// Ровно один вызов Consume для токена может завершиться успехом.
func (s *OTPService) Consume(ctx context.Context, rawEmail, token string, fn repository.RedeemFunc) (int64, error) {
	email := validation.NormalizeEmail(rawEmail)
	token = validation.NormalizeHexID(token)
	if validation.ValidateEmail(email) != nil || !validation.IsHexID(token) {
		return 0, apperror.ErrInvalidVerification
	}

	orderID, err := s.store.Redeem(ctx, email, token, fn)
	if errors.Is(err, repository.ErrVerificationNotRedeemable) {
		return 0, apperror.ErrInvalidVerification
	}
	if err != nil {
		return 0, err
	}
	return orderID, nil
}

// Purge удаляет отработавшие сессии.
func (s *OTPService) Purge(ctx context.Context) (int64, error) {
	n, err := s.store.Purge(ctx)
	if err != nil {
		return 0, err
	}
	s.lastPurge.Store(s.clock.Now().UnixNano())
	if n > 0 {
		logger.Log.WithField("deleted", n).Info("otp: удалены устаревшие сессии")
	}
	return n, nil
}

// maybePurge запускает очистку не чаще opportunisticPurgeEvery. Ошибки только логируются.
func (s *OTPService) maybePurge(ctx context.Context) {
	now := s.clock.Now().UnixNano()
	last := s.lastPurge.Load()
	if now-last < int64(opportunisticPurgeEvery) {
		return
	}
	if !s.lastPurge.CompareAndSwap(last, now) {
		return
	}
	if _, err := s.Purge(ctx); err != nil {
		logger.Log.WithError(err).Warn("otp: очистка сессий не удалась")
	}
}

// reclassify перечитывает сессию после неудачного условного обновления.
func (s *OTPService) reclassify(ctx context.Context, challengeID, email string, fallback *apperror.AppError) error {
	session, err := s.store.FindByChallenge(ctx, challengeID, email)
	if errors.Is(err, repository.ErrOTPSessionNotFound) {
		return apperror.ErrOTPNotFound
	}
	if err != nil {
		return apperror.Internal(err)
	}
	if err := classify(session); err != nil {
		return err
	}
	return fallback
}

// classify возвращает ошибку, если сессия не в состоянии PENDING.
func classify(s *models.OTPSession) error {
	switch s.State(s.DBNow) {
	case models.OTPStateConsumed:
		return apperror.ErrOTPAlreadyUsed
	case models.OTPStateVerified, models.OTPStateTokenExpired:
		return apperror.ErrOTPAlreadyVerified
	case models.OTPStateExpired:
		return apperror.ErrOTPExpired
	case models.OTPStateLocked:
		return apperror.ErrOTPLocked
	default:
		return nil
	}
}

func (s *OTPService) logAttempt(session *models.OTPSession) {
	logger.Log.WithFields(logrus.Fields{
		"challenge_id": session.ChallengeID,
		"attempts":     session.Attempts,
		"max_attempts": session.MaxAttempts,
	}).Info("otp: неверный код")
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
