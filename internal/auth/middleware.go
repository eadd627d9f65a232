package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// OptionalMiddleware lets anonymous requests through. When an Authorization
// header is present it must carry a valid bearer token, whose subject is
// stored as the user id.
func OptionalMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return next(c)
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
		}

		userID, err := parseUserID(parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set(string(UserIDKey), userID)
		return next(c)
	}
}

// UserIDFromContext returns the caller's id when the request was
// authenticated.
func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(string(UserIDKey)).(uuid.UUID)
	return id, ok
}
