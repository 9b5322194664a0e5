package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-access-control/internal/interlock"
	"github.com/iliyamo/lab-access-control/internal/middleware"
	"github.com/iliyamo/lab-access-control/internal/policy"
	"github.com/iliyamo/lab-access-control/internal/repository"
)

// getUserID extracts the authenticated user's ID from the context as
// stored by the JWT middleware.  Returns an error when missing so
// handlers can respond 401.
func getUserID(c echo.Context) (uint64, error) {
	if id := middleware.CurrentUserID(c); id != 0 {
		return id, nil
	}
	return 0, errors.New("no user in context")
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// writeDomainError maps domain errors onto HTTP responses.  Policy
// denials are 403 with a machine-readable reason; hardware faults are
// 502 so clients can distinguish "you may not" from "the relay did not
// answer"; state conflicts and lookups map onto the usual 4xx codes.
func writeDomainError(c echo.Context, err error) error {
	var denial *policy.Denial
	if errors.As(err, &denial) {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":   "denied",
			"reason":  string(denial.Reason),
			"message": denial.Error(),
		})
	}
	var hw *interlock.HardwareError
	if errors.As(err, &hw) {
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":   "hardware_fault",
			"message": hw.Error(),
		})
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrNotCurrentlyIn):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "not currently logged in"})
	case errors.Is(err, repository.ErrOpenRecordExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already logged in elsewhere"})
	case errors.Is(err, repository.ErrToolInUse):
		return c.JSON(http.StatusConflict, echo.Map{"error": "tool already in use"})
	case errors.Is(err, repository.ErrToolNotInUse):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tool not in use"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
