// Package auth содержит выпуск и проверку токенов доступа,
// а также модель вызывающей стороны запроса.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL — срок действия токена доступа.
const TokenTTL = 48 * time.Hour

// ErrInvalidToken возвращается, если токен повреждён или не прошёл проверку подписи.
var (
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken возвращается, если срок действия токена истёк.
	ErrExpiredToken = errors.New("token has expired")
)

// Claims описывает полезную нагрузку токена доступа.
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService выпускает и проверяет подписанные токены доступа.
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
}

// NewTokenService создаёт сервис токенов с указанным секретным ключом.
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		ttl:       TokenTTL,
	}
}

// Generate выпускает токен доступа для указанного пользователя.
func (s *TokenService) Generate(userID int64, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Parse проверяет подпись и срок действия токена и возвращает личность пользователя.
func (s *TokenService) Parse(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}
