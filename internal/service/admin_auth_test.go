package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/chemsus-backend/internal/config"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
)

const testAdminSecret = "0123456789abcdef0123456789abcdef"

func testAdminConfig(t *testing.T) config.AdminConfig {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	return config.AdminConfig{
		JWTSecret:    testAdminSecret,
		TokenTTL:     time.Hour,
		Issuer:       "https://auth.example.com",
		Audience:     "authenticated",
		Emails:       []string{"Ops@Chemsus.example"},
		LoginEmail:   "admin@chemsus.example",
		PasswordHash: string(hash),
	}
}

// rsaKeySet ключ для подписи и JWKS с его публичной частью.
func rsaKeySet(t *testing.T) (jwk.Key, jwk.Set) {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	priv, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, priv.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.PublicKeyOf(priv)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return priv, set
}

func signIssuerToken(t *testing.T, key jwk.Key, claims map[string]interface{}) string {
	t.Helper()
	tok := jwxjwt.New()
	require.NoError(t, tok.Set(jwxjwt.IssuerKey, "https://auth.example.com"))
	require.NoError(t, tok.Set(jwxjwt.AudienceKey, "authenticated"))
	require.NoError(t, tok.Set(jwxjwt.ExpirationKey, time.Now().Add(time.Hour)))
	for k, v := range claims {
		require.NoError(t, tok.Set(k, v))
	}
	signed, err := jwxjwt.Sign(tok, jwxjwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)
	return string(signed)
}

func TestAdminAuth_LoginAndAuthenticate(t *testing.T) {
	svc := NewAdminAuthService(testAdminConfig(t), nil)
	ctx := context.Background()

	tok, err := svc.Login(ctx, " Admin@Chemsus.example ", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	id, err := svc.Authenticate(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@chemsus.example", id.Email)
	assert.Equal(t, AdminSourceLocal, id.Source)
}

func TestAdminAuth_LoginRejected(t *testing.T) {
	svc := NewAdminAuthService(testAdminConfig(t), nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin@chemsus.example", "wrong")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "other@chemsus.example", "s3cret-pass")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)

	disabled := NewAdminAuthService(config.AdminConfig{JWTSecret: testAdminSecret}, nil)
	_, err = disabled.Login(ctx, "admin@chemsus.example", "s3cret-pass")
	assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
}

func TestAdminAuth_RejectsBadLocalTokens(t *testing.T) {
	svc := NewAdminAuthService(testAdminConfig(t), nil)
	ctx := context.Background()

	cases := map[string]jwt.MapClaims{
		"истёк": {
			"sub": "admin@chemsus.example", "email": "admin@chemsus.example", "role": "admin",
			"iss": localIssuer, "exp": time.Now().Add(-time.Hour).Unix(),
		},
		"чужой издатель": {
			"sub": "admin@chemsus.example", "email": "admin@chemsus.example", "role": "admin",
			"iss": "someone-else", "exp": time.Now().Add(time.Hour).Unix(),
		},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAdminSecret))
			require.NoError(t, err)
			_, err = svc.Authenticate(ctx, raw)
			assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
		})
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "x", "role": "admin", "iss": localIssuer, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("another-secret-another-secret-32"))
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, forged)
	assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "not-a-jwt")
	assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
}

func TestAdminAuth_JWKS(t *testing.T) {
	key, set := rsaKeySet(t)
	svc := NewAdminAuthService(testAdminConfig(t), set)
	ctx := context.Background()

	t.Run("роль в app_metadata", func(t *testing.T) {
		raw := signIssuerToken(t, key, map[string]interface{}{
			"sub":          "uuid-1",
			"email":        "someone@chemsus.example",
			"app_metadata": map[string]interface{}{"role": "admin"},
		})
		id, err := svc.Authenticate(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, "uuid-1", id.Subject)
		assert.Equal(t, AdminSourceJWKS, id.Source)
	})

	t.Run("email из списка администраторов", func(t *testing.T) {
		raw := signIssuerToken(t, key, map[string]interface{}{"sub": "uuid-2", "email": "ops@chemsus.example"})
		id, err := svc.Authenticate(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, "ops@chemsus.example", id.Email)
	})

	t.Run("обычный пользователь", func(t *testing.T) {
		raw := signIssuerToken(t, key, map[string]interface{}{"sub": "uuid-3", "email": "buyer@example.com", "role": "authenticated"})
		_, err := svc.Authenticate(ctx, raw)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("чужой ключ", func(t *testing.T) {
		otherKey, _ := rsaKeySet(t)
		raw := signIssuerToken(t, otherKey, map[string]interface{}{"sub": "uuid-4", "role": "admin"})
		_, err := svc.Authenticate(ctx, raw)
		assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
	})

	t.Run("без JWKS", func(t *testing.T) {
		local := NewAdminAuthService(testAdminConfig(t), nil)
		raw := signIssuerToken(t, key, map[string]interface{}{"sub": "uuid-5", "role": "admin"})
		_, err := local.Authenticate(ctx, raw)
		assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
	})
}

func TestHashAdminPassword(t *testing.T) {
	hash, err := HashAdminPassword("Chemsus2026Admin")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("Chemsus2026Admin")))

	_, err = HashAdminPassword("weak")
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}
