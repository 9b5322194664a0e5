package middleware

// identity.go defines helpers shared across middleware and handlers for
// extracting the authenticated user from the Echo context.  JWT numeric
// claims decode as float64; string subjects are parsed as a fallback.

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

// CurrentUserID returns the authenticated user's ID from the context,
// or 0 when no valid subject claim is present.
func CurrentUserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// currentUserKey returns a string identity for rate-limit keys,
// "anon" when the request is unauthenticated.
func currentUserKey(c echo.Context) string {
	if id := CurrentUserID(c); id != 0 {
		return fmt.Sprintf("%d", id)
	}
	return "anon"
}
