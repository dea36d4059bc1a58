package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/mailer"
	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/otpcode"
	"github.com/ignatzorin/chemsus-backend/internal/repository"
)

const testEmail = "buyer@example.com"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeOTPStore повторяет условные обновления OTPSessionRepository в памяти.
type fakeOTPStore struct {
	mu       sync.Mutex
	clock    *fakeClock
	sessions []*models.OTPSession
	nextID   int64
	purges   int
}

func newFakeOTPStore(clock *fakeClock) *fakeOTPStore {
	return &fakeOTPStore{clock: clock}
}

func (f *fakeOTPStore) snapshot(s *models.OTPSession) *models.OTPSession {
	cp := *s
	cp.DBNow = f.clock.Now()
	return &cp
}

func (f *fakeOTPStore) Create(_ context.Context, p repository.NewOTPSession) (*models.OTPSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()
	for _, s := range f.sessions {
		if s.Email == p.Email && s.VerifiedAt == nil && s.UsedAt == nil && s.CooldownUntil.After(now) {
			return nil, &repository.CooldownError{RetryAfter: s.CooldownUntil.Sub(now).Round(time.Second)}
		}
	}

	f.nextID++
	s := &models.OTPSession{
		ID:            f.nextID,
		ChallengeID:   p.ChallengeID,
		Email:         p.Email,
		OTPHash:       p.OTPHash,
		MaxAttempts:   p.MaxAttempts,
		ExpiresAt:     now.Add(p.TTL),
		CooldownUntil: now.Add(p.Cooldown),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.sessions = append(f.sessions, s)
	return f.snapshot(s), nil
}

func (f *fakeOTPStore) find(challengeID, email string) *models.OTPSession {
	for _, s := range f.sessions {
		if s.ChallengeID == challengeID && s.Email == email {
			return s
		}
	}
	return nil
}

func (f *fakeOTPStore) byID(id int64) *models.OTPSession {
	for _, s := range f.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (f *fakeOTPStore) FindByChallenge(_ context.Context, challengeID, email string) (*models.OTPSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.find(challengeID, email)
	if s == nil {
		return nil, repository.ErrOTPSessionNotFound
	}
	return f.snapshot(s), nil
}

func (f *fakeOTPStore) RecordFailedAttempt(_ context.Context, id int64) (*models.OTPSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.byID(id)
	if s == nil || s.VerifiedAt != nil || s.UsedAt != nil || s.Attempts >= s.MaxAttempts {
		return nil, repository.ErrOTPSessionStale
	}
	s.Attempts++
	return f.snapshot(s), nil
}

func (f *fakeOTPStore) MarkVerified(_ context.Context, id int64, token string, tokenTTL time.Duration) (*models.OTPSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	s := f.byID(id)
	if s == nil || s.VerifiedAt != nil || s.UsedAt != nil || !s.ExpiresAt.After(now) || s.Attempts >= s.MaxAttempts {
		return nil, repository.ErrOTPSessionStale
	}
	exp := now.Add(tokenTTL)
	s.VerifiedAt = &now
	s.VerificationToken = &token
	s.TokenExpiresAt = &exp
	return f.snapshot(s), nil
}

func (f *fakeOTPStore) Redeem(_ context.Context, email, token string, fn repository.RedeemFunc) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	for _, s := range f.sessions {
		if s.Email != email || s.VerificationToken == nil || *s.VerificationToken != token {
			continue
		}
		if s.VerifiedAt == nil || s.UsedAt != nil || !s.TokenExpiresAt.After(now) {
			return 0, repository.ErrVerificationNotRedeemable
		}
		id, err := fn(nil, f.snapshot(s))
		if err != nil {
			return 0, err
		}
		s.UsedAt = &now
		s.OrderID = &id
		return id, nil
	}
	return 0, repository.ErrVerificationNotRedeemable
}

func (f *fakeOTPStore) Purge(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
	now := f.clock.Now()
	day := 24 * time.Hour

	kept := f.sessions[:0]
	var deleted int64
	for _, s := range f.sessions {
		drop := (s.UsedAt != nil && s.UsedAt.Before(now.Add(-7*day))) ||
			(s.VerifiedAt == nil && s.ExpiresAt.Before(now.Add(-day))) ||
			(s.VerifiedAt != nil && s.UsedAt == nil && s.TokenExpiresAt.Before(now.Add(-day)))
		if drop {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	f.sessions = kept
	return deleted, nil
}

func (f *fakeOTPStore) get(challengeID string) models.OTPSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.find(challengeID, testEmail)
}

// fixedGenerator выдаёт известный код и последовательные идентификаторы.
type fixedGenerator struct {
	code string
	seq  atomic.Int64
}

func (g *fixedGenerator) Code() (string, error) { return g.code, nil }

func (g *fixedGenerator) ChallengeID() (string, error) {
	return fmt.Sprintf("%032x", g.seq.Add(1)), nil
}

func (g *fixedGenerator) Token() (string, error) {
	return fmt.Sprintf("%064x", g.seq.Add(1)), nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// stuckMailer не возвращается, пока тест его не отпустит, и не смотрит на ctx.
type stuckMailer struct {
	release chan struct{}
}

func (m *stuckMailer) Send(context.Context, mailer.Message) error {
	<-m.release
	return nil
}

type otpFixture struct {
	svc   *OTPService
	store *fakeOTPStore
	clock *fakeClock
	mail  *recordingMailer
}

func newOTPFixture(t *testing.T, expose bool) *otpFixture {
	t.Helper()
	logger.Discard()

	clock := newFakeClock()
	store := newFakeOTPStore(clock)
	mail := &recordingMailer{}
	svc := NewOTPService(store, &fixedGenerator{code: "482915"}, otpcode.NewHasher("test-secret-test-secret-test-secret"), mail, OTPConfig{
		TTL:             10 * time.Minute,
		ResendCooldown:  time.Minute,
		MaxAttempts:     5,
		TokenTTL:        15 * time.Minute,
		ExposeDebugCode: expose,
	})
	svc.SetClock(clock)

	return &otpFixture{svc: svc, store: store, clock: clock, mail: mail}
}

func createOrder(id int64) repository.RedeemFunc {
	return func(_ *sqlx.Tx, _ *models.OTPSession) (int64, error) { return id, nil }
}

func TestOTPService_SendDeliversCode(t *testing.T) {
	f := newOTPFixture(t, true)

	res, err := f.svc.Send(context.Background(), "  Buyer@Example.COM ")
	require.NoError(t, err)

	assert.True(t, res.Delivered)
	assert.Empty(t, res.DebugCode)
	assert.Equal(t, 600, res.ExpiresInSec)
	assert.Equal(t, 60, res.ResendInSec)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, testEmail, f.mail.sent[0].To)
	assert.Contains(t, f.mail.sent[0].TextBody, "482915")

	stored := f.store.get(res.ChallengeID)
	assert.NotContains(t, stored.OTPHash, "482915")
}

func TestOTPService_SendInvalidEmail(t *testing.T) {
	f := newOTPFixture(t, false)

	_, err := f.svc.Send(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, apperror.ErrInvalidEmail)
	assert.Empty(t, f.store.sessions)
}

func TestOTPService_SendCooldownKeepsFirstSession(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	first, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)
	before := f.store.get(first.ChallengeID)

	f.clock.Advance(20 * time.Second)
	_, err = f.svc.Send(ctx, testEmail)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrOTPCooldown)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 40, appErr.Meta[apperror.MetaRetryAfterSec])

	after := f.store.get(first.ChallengeID)
	assert.Equal(t, before.OTPHash, after.OTPHash)
	assert.Equal(t, before.ExpiresAt, after.ExpiresAt)
	assert.Len(t, f.store.sessions, 1)

	f.clock.Advance(41 * time.Second)
	second, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)
	assert.NotEqual(t, first.ChallengeID, second.ChallengeID)
}

func TestOTPService_SendFallbackExposesDebugCode(t *testing.T) {
	f := newOTPFixture(t, true)
	f.mail.err = errors.New("smtp down")

	res, err := f.svc.Send(context.Background(), testEmail)
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, "482915", res.DebugCode)

	// Сессия действительна и после неудачной доставки.
	_, err = f.svc.Verify(context.Background(), testEmail, res.ChallengeID, "482915")
	assert.NoError(t, err)
}

func TestOTPService_SendDeliveryTimeoutFallsBack(t *testing.T) {
	f := newOTPFixture(t, true)
	stuck := &stuckMailer{release: make(chan struct{})}
	t.Cleanup(func() { close(stuck.release) })
	f.svc.delivery = stuck
	f.svc.cfg.DeliveryTimeout = 50 * time.Millisecond

	start := time.Now()
	res, err := f.svc.Send(context.Background(), testEmail)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second)
	assert.False(t, res.Delivered)
	assert.Equal(t, "482915", res.DebugCode)

	_, err = f.svc.Verify(context.Background(), testEmail, res.ChallengeID, "482915")
	assert.NoError(t, err)
}

func TestOTPService_SendFallbackHidesDebugCode(t *testing.T) {
	f := newOTPFixture(t, false)
	f.svc.delivery = nil

	res, err := f.svc.Send(context.Background(), testEmail)
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Empty(t, res.DebugCode)
}

func TestOTPService_VerifyOnce(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)

	res, err := f.svc.Verify(ctx, testEmail, sent.ChallengeID, "482915")
	require.NoError(t, err)
	assert.Len(t, res.VerificationToken, 64)
	assert.Equal(t, 900, res.TokenExpiresInSec)

	_, err = f.svc.Verify(ctx, testEmail, sent.ChallengeID, "482915")
	assert.ErrorIs(t, err, apperror.ErrOTPAlreadyVerified)
}

func TestOTPService_VerifyFormatErrors(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()
	validChallenge := fmt.Sprintf("%032x", 1)

	tests := []struct {
		name      string
		email     string
		challenge string
		code      string
		want      error
	}{
		{"плохой email", "nope", validChallenge, "123456", apperror.ErrInvalidEmail},
		{"плохой challenge", testEmail, "XYZ", "123456", apperror.ErrInvalidChallenge},
		{"короткий код", testEmail, validChallenge, "12345", apperror.ErrInvalidCodeFormat},
		{"буквы в коде", testEmail, validChallenge, "12a456", apperror.ErrInvalidCodeFormat},
		{"нет сессии", testEmail, validChallenge, "123456", apperror.ErrOTPNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Verify(ctx, tt.email, tt.challenge, tt.code)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOTPService_VerifyAcceptsUppercaseChallenge(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)

	res, err := f.svc.Verify(ctx, testEmail, " "+strings.ToUpper(sent.ChallengeID)+" ", "482915")
	require.NoError(t, err)

	_, err = f.svc.Consume(ctx, testEmail, strings.ToUpper(res.VerificationToken), createOrder(7))
	assert.NoError(t, err)
}

func TestOTPService_VerifyOtherEmailNotFound(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, "other@example.com", sent.ChallengeID, "482915")
	assert.ErrorIs(t, err, apperror.ErrOTPNotFound)
}

func TestOTPService_VerifyLocksAfterMaxAttempts(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := f.svc.Verify(ctx, testEmail, sent.ChallengeID, "000000")
		require.ErrorIs(t, err, apperror.ErrOTPInvalidCode)

		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, 5-i, appErr.Meta[apperror.MetaAttemptsLeft])
	}

	_, err = f.svc.Verify(ctx, testEmail, sent.ChallengeID, "482915")
	assert.ErrorIs(t, err, apperror.ErrOTPLocked)
	assert.Equal(t, 5, f.store.get(sent.ChallengeID).Attempts)
}

func TestOTPService_VerifyExpiredAtBoundary(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)

	f.clock.Advance(10*time.Minute + time.Millisecond)
	_, err = f.svc.Verify(ctx, testEmail, sent.ChallengeID, "482915")
	assert.ErrorIs(t, err, apperror.ErrOTPExpired)
}

func TestOTPService_ConsumeExactlyOnce(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)
	verified, err := f.svc.Verify(ctx, testEmail, sent.ChallengeID, "482915")
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			_, err := f.svc.Consume(ctx, testEmail, verified.VerificationToken, createOrder(orderID))
			if err == nil {
				successes.Add(1)
			} else if errors.Is(err, apperror.ErrInvalidVerification) {
				rejected.Add(1)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
	assert.EqualValues(t, workers-1, rejected.Load())

	_, err = f.svc.Verify(ctx, testEmail, sent.ChallengeID, "482915")
	assert.ErrorIs(t, err, apperror.ErrOTPAlreadyUsed)
}

func TestOTPService_ConsumeRollbackKeepsToken(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)
	verified, err := f.svc.Verify(ctx, testEmail, sent.ChallengeID, "482915")
	require.NoError(t, err)

	boom := errors.New("insert failed")
	_, err = f.svc.Consume(ctx, testEmail, verified.VerificationToken, func(*sqlx.Tx, *models.OTPSession) (int64, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)

	orderID, err := f.svc.Consume(ctx, testEmail, verified.VerificationToken, createOrder(42))
	require.NoError(t, err)
	assert.EqualValues(t, 42, orderID)
}

func TestOTPService_ConsumeRejects(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)
	verified, err := f.svc.Verify(ctx, testEmail, sent.ChallengeID, "482915")
	require.NoError(t, err)

	_, err = f.svc.Consume(ctx, "other@example.com", verified.VerificationToken, createOrder(1))
	assert.ErrorIs(t, err, apperror.ErrInvalidVerification)

	_, err = f.svc.Consume(ctx, testEmail, "not-hex", createOrder(1))
	assert.ErrorIs(t, err, apperror.ErrInvalidVerification)

	f.clock.Advance(15*time.Minute + time.Second)
	_, err = f.svc.Consume(ctx, testEmail, verified.VerificationToken, createOrder(1))
	assert.ErrorIs(t, err, apperror.ErrInvalidVerification)
}

func TestOTPService_EndToEnd(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, "Buyer@Example.com")
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, testEmail, sent.ChallengeID, "111111")
	require.ErrorIs(t, err, apperror.ErrOTPInvalidCode)

	verified, err := f.svc.Verify(ctx, "BUYER@example.com", sent.ChallengeID, "482915")
	require.NoError(t, err)

	orderID, err := f.svc.Consume(ctx, testEmail, verified.VerificationToken, func(_ *sqlx.Tx, s *models.OTPSession) (int64, error) {
		assert.Equal(t, testEmail, s.Email)
		return 7, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, orderID)

	stored := f.store.get(sent.ChallengeID)
	require.NotNil(t, stored.OrderID)
	assert.EqualValues(t, 7, *stored.OrderID)
	assert.Equal(t, models.OTPStateConsumed, stored.State(f.clock.Now()))
}

func TestOTPService_PurgeRetention(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	old, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)

	// Первая сессия истекла двое суток назад, вторая час назад.
	f.clock.Advance(48*time.Hour + 10*time.Minute)
	recent, err := f.store.Create(ctx, repository.NewOTPSession{
		ChallengeID: fmt.Sprintf("%032x", 999),
		Email:       testEmail,
		OTPHash:     "x",
		MaxAttempts: 5,
		TTL:         10 * time.Minute,
		Cooldown:    time.Minute,
	})
	require.NoError(t, err)
	f.clock.Advance(time.Hour + 10*time.Minute)
	hook := logtest.NewLocal(logger.Log)

	n, err := f.svc.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Purge сам сообщает количество удалённых сессий, ровно одной записью.
	purgeLogs := 0
	for _, e := range hook.AllEntries() {
		if _, ok := e.Data["deleted"]; ok {
			purgeLogs++
		}
	}
	assert.Equal(t, 1, purgeLogs)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Nil(t, f.store.find(old.ChallengeID, testEmail))
	assert.NotNil(t, f.store.find(recent.ChallengeID, testEmail))
}

func TestOTPService_SendPurgesOpportunistically(t *testing.T) {
	f := newOTPFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, testEmail)
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, "second@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.purges)

	f.clock.Advance(opportunisticPurgeEvery + time.Second)
	_, err = f.svc.Send(ctx, "third@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.purges)
}
