package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/chemsus-backend/internal/config"
	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/validation"
)

const (
	// localIssuer iss токенов, выпущенных входом по паролю.
	localIssuer    = "chemsus-backend"
	adminRole      = "admin"
	jwksMinRefresh = 15 * time.Minute
	tokenLeeway    = 30 * time.Second
)

// Источник токена администратора.
const (
	AdminSourceLocal = "local"
	AdminSourceJWKS  = "jwks"
)

// AdminIdentity проверенный администратор.
type AdminIdentity struct {
	Subject string
	Email   string
	Source  string
}

// AdminToken выпущенный токен администратора.
type AdminToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// HashAdminPassword проверяет пароль и возвращает bcrypt хеш для ADMIN_PASSWORD_HASH.
func HashAdminPassword(password string) (string, error) {
	if err := validation.ValidatePassword(password); err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("admin auth: хеширование пароля: %w", err)
	}
	return string(hash), nil
}

// AdminAuthService вход администратора и проверка его токенов.
type AdminAuthService struct {
	secret       []byte
	ttl          time.Duration
	issuer       string
	audience     string
	loginEmail   string
	passwordHash []byte
	allowlist    map[string]bool
	keys         jwk.Set
	now          func() time.Time
}

// NewJWKSKeySet регистрирует JWKS эмитента в кеше с фоновым обновлением.
// Недоступность JWKS на старте не фатальна: ключи подтянутся при первой проверке.
func NewJWKSKeySet(ctx context.Context, url string) (jwk.Set, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(url, jwk.WithMinRefreshInterval(jwksMinRefresh)); err != nil {
		return nil, fmt.Errorf("admin auth: register jwks: %w", err)
	}
	if _, err := cache.Refresh(ctx, url); err != nil {
		logger.Log.WithError(err).WithField("url", url).Warn("admin auth: JWKS недоступен при старте")
	}
	return jwk.NewCachedSet(cache, url), nil
}

// NewAdminAuthService создаёт сервис. keys может быть nil, тогда принимаются только локальные токены.
func NewAdminAuthService(cfg config.AdminConfig, keys jwk.Set) *AdminAuthService {
	allowlist := make(map[string]bool, len(cfg.Emails))
	for _, e := range cfg.Emails {
		allowlist[validation.NormalizeEmail(e)] = true
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &AdminAuthService{
		secret:       []byte(cfg.JWTSecret),
		ttl:          ttl,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		loginEmail:   validation.NormalizeEmail(cfg.LoginEmail),
		passwordHash: []byte(cfg.PasswordHash),
		allowlist:    allowlist,
		keys:         keys,
		now:          time.Now,
	}
}

// Login проверяет пароль администратора и выпускает HS256 токен.
func (s *AdminAuthService) Login(_ context.Context, email, password string) (*AdminToken, error) {
	if s.loginEmail == "" || len(s.passwordHash) == 0 || len(s.secret) == 0 {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "вход по паролю отключён")
	}

	email = validation.NormalizeEmail(email)
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.loginEmail)) == 1
	// bcrypt выполняется всегда, чтобы время ответа не выдавало email.
	passwordOK := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	if !emailOK || !passwordOK {
		logger.Log.WithField("email", email).Warn("admin auth: неудачный вход")
		return nil, apperror.ErrInvalidCredentials
	}

	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":   email,
		"email": email,
		"role":  adminRole,
		"iss":   localIssuer,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &AdminToken{AccessToken: signed, ExpiresAt: exp}, nil
}

// Authenticate проверяет подпись токена и права администратора.
func (s *AdminAuthService) Authenticate(ctx context.Context, raw string) (*AdminIdentity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperror.ErrUnauthorized
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "токен невалиден")
	}

	var (
		id   *AdminIdentity
		role string
	)
	if alg, _ := unverified.Header["alg"].(string); alg == jwt.SigningMethodHS256.Alg() {
		id, role, err = s.verifyLocal(raw)
	} else {
		id, role, err = s.verifyJWKS(ctx, raw)
	}
	if err != nil {
		logger.Log.WithError(err).Debug("admin auth: токен отклонён")
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "токен невалиден")
	}

	if role != adminRole && !s.allowlist[id.Email] {
		return nil, apperror.ErrForbidden
	}
	return id, nil
}

func (s *AdminAuthService) verifyLocal(raw string) (*AdminIdentity, string, error) {
	if len(s.secret) == 0 {
		return nil, "", fmt.Errorf("local tokens disabled")
	}
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, "", fmt.Errorf("parse local token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", jwt.ErrTokenInvalidClaims
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &AdminIdentity{Subject: sub, Email: validation.NormalizeEmail(email), Source: AdminSourceLocal}, role, nil
}

func (s *AdminAuthService) verifyJWKS(_ context.Context, raw string) (*AdminIdentity, string, error) {
	if s.keys == nil {
		return nil, "", fmt.Errorf("jwks not configured")
	}

	opts := []jwxjwt.ParseOption{
		jwxjwt.WithKeySet(s.keys, jws.WithInferAlgorithmFromKey(true)),
		jwxjwt.WithValidate(true),
		jwxjwt.WithAcceptableSkew(tokenLeeway),
		jwxjwt.WithClock(jwxjwt.ClockFunc(s.now)),
	}
	if s.issuer != "" {
		opts = append(opts, jwxjwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwxjwt.WithAudience(s.audience))
	}

	tok, err := jwxjwt.ParseString(raw, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("parse jwks token: %w", err)
	}

	claims := tok.PrivateClaims()
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if r, ok := meta["role"].(string); ok && r != "" {
			role = r
		}
	}

	return &AdminIdentity{Subject: tok.Subject(), Email: validation.NormalizeEmail(email), Source: AdminSourceJWKS}, role, nil
}
