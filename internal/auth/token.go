// Package auth отвечает за выпуск и проверку токенов доступа и хэширование паролей.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ndemidov/smmpanel-system/internal/model"
)

// ErrInvalidToken возвращается при любой ошибке разбора или проверки токена.
// Причина (истёк, битая подпись, мусор) наружу не раскрывается.
var ErrInvalidToken = errors.New("invalid token")

// ErrTamperedToken возвращается, если подпись верна, но в клеймах нет
// ни идентификатора, ни email. Такой токен считается подделанным,
// а не просто истёкшим.
var ErrTamperedToken = errors.New("tampered token")

const tokenTTL = 24 * time.Hour

// Claims содержит идентификацию, извлечённую из токена.
type Claims struct {
	UserID int64
	Email  string
	Role   model.Role
}

type jwtClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager выпускает и проверяет подписанные JWT-токены (HS256).
type TokenManager struct {
	secret []byte
}

// NewTokenManager создаёт менеджер токенов с указанным секретом подписи.
func NewTokenManager(secret string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("empty JWT secret")
	}
	return &TokenManager{secret: []byte(secret)}, nil
}

// Issue выпускает токен для пользователя сроком на 24 часа.
func (m *TokenManager) Issue(u *model.User) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		Email: u.Email,
		Role:  string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись и срок действия токена и возвращает клеймы.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, _ := strconv.ParseInt(claims.Subject, 10, 64)
	if userID == 0 && claims.Email == "" {
		return nil, ErrTamperedToken
	}

	return &Claims{
		UserID: userID,
		Email:  claims.Email,
		Role:   model.Role(claims.Role),
	}, nil
}

// HashPassword хэширует пароль с помощью bcrypt.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// CheckPassword сверяет пароль с хэшем.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
