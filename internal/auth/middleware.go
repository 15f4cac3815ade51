// Package auth закрывает realtime-эндпоинт JWT-токеном, выданным внешним сервисом авторизации.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"barber_queue/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserID: ключ, под которым в gin.Context лежит id пользователя из токена.
const ContextUserID = "userID"

var ErrNoToken = errors.New("токен не передан")

// tokenFrom берёт токен из заголовка Authorization или из query-параметра token.
// Браузерный WebSocket не умеет ставить заголовки, поэтому нужен второй вариант.
func tokenFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// ParseUserID проверяет подпись HS256 и срок действия, возвращает user_id (или sub).
func ParseUserID(tokenString string, secret []byte) (string, error) {
	if tokenString == "" {
		return "", ErrNoToken
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		return userID, nil
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("в токене нет user_id")
	}
	return sub, nil
}

// Middleware проверяет валидность access токена
func Middleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ParseUserID(tokenFrom(c), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    response.CodeUnauthorized,
				Message: "Неверный или просроченный токен",
				Details: err.Error(),
			})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}
