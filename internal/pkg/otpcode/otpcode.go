// Package otpcode генерирует одноразовые коды и идентификаторы и хеширует коды HMAC-SHA256.
package otpcode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// CodeLength длина кода в цифрах.
	CodeLength = 6

	codeMin = 100000
	codeMax = 999999

	challengeBytes = 16
	tokenBytes     = 32
)

// Generator выдаёт коды и непредсказуемые идентификаторы.
type Generator interface {
	Code() (string, error)
	ChallengeID() (string, error)
	Token() (string, error)
}

// RandomGenerator использует crypto/rand.
type RandomGenerator struct{}

// NewGenerator возвращает генератор на crypto/rand.
func NewGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// Code возвращает равномерно распределённое число из [100000, 999999].
func (RandomGenerator) Code() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("otpcode: не удалось сгенерировать код: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// ChallengeID возвращает 32 hex-символа.
func (RandomGenerator) ChallengeID() (string, error) {
	return randomHex(challengeBytes)
}

// Token возвращает 64 hex-символа.
func (RandomGenerator) Token() (string, error) {
	return randomHex(tokenBytes)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("otpcode: не удалось получить случайные байты: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hasher хеширует код, привязывая его к запросу и email.
type Hasher struct {
	secret []byte
}

// NewHasher создаёт хешер с серверным секретом.
func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash возвращает hex HMAC-SHA256 от challengeID|email|code.
func (h *Hasher) Hash(challengeID, email, code string) string {
	return string(h.gen(challengeID, email, code))
}

// Verify сравнивает за постоянное время.
func (h *Hasher) Verify(hashed, challengeID, email, code string) bool {
	expected := h.gen(challengeID, email, code)
	return subtle.ConstantTimeCompare([]byte(hashed), expected) == 1
}

func (h *Hasher) gen(challengeID, email, code string) []byte {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(challengeID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(email))
	mac.Write([]byte{'|'})
	mac.Write([]byte(code))
	sum := mac.Sum(nil)
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out
}
