package serverutils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const UserIDLocal = "user_id"

var ErrMissingToken = errors.New("missing token")

// IssueToken signs an HS256 token carrying user_id.
func IssueToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates raw and returns the user id it was issued for.
func ParseToken(secret, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, ErrMissingToken
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}
	idStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, errors.New("invalid user_id claim")
	}
	return userID, nil
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := BearerToken(ctx.Get("Authorization"))
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		userID, err := ParseToken(secret, tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals(UserIDLocal, userID)
		return ctx.Next()
	}
}

// UserID reads the id JwtMiddleware stored in Locals.
func UserID(ctx *fiber.Ctx) (uuid.UUID, bool) {
	userID, ok := ctx.Locals(UserIDLocal).(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}
