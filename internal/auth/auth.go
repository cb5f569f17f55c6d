package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"profilevault/internal/domain"
)

var secret []byte

// Init задает ключ проверки токенов. Вызывается один раз из main.
func Init(cfg *Config) {
	secret = []byte(cfg.JWTSecret)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verify проверяет bearer-токен запроса и возвращает аутентифицированного
// субъекта. Всё, что дальше по коду, этой границе полностью доверяет.
func Verify(r *http.Request) (domain.Principal, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return domain.Principal{}, fmt.Errorf("no authorization header")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return domain.Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || c.Subject == "" {
		return domain.Principal{}, fmt.Errorf("invalid token")
	}

	role := c.Role
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}

	return domain.Principal{
		UserID: c.Subject,
		Role:   role,
	}, nil
}
