package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-access-control/internal/admission"
	"github.com/iliyamo/lab-access-control/internal/model"
)

// InterlockHandler exposes maintenance actions on interlock hardware.
// Routes using it are staff-only.
type InterlockHandler struct {
	Svc *admission.Service
}

func NewInterlockHandler(svc *admission.Service) *InterlockHandler {
	return &InterlockHandler{Svc: svc}
}

func interlockResponse(c echo.Context, il model.Interlock) error {
	return c.JSON(http.StatusOK, echo.Map{
		"interlock_id":      il.ID,
		"state":             il.State.String(),
		"most_recent_reply": il.MostRecentReply,
	})
}

// Lock handles POST /v1/interlocks/:id/lock.
func (h *InterlockHandler) Lock(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid interlock id"})
	}
	il, err := h.Svc.SetInterlock(c.Request().Context(), id, true)
	if err != nil {
		return writeDomainError(c, err)
	}
	return interlockResponse(c, il)
}

// Unlock handles POST /v1/interlocks/:id/unlock.
func (h *InterlockHandler) Unlock(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid interlock id"})
	}
	il, err := h.Svc.SetInterlock(c.Request().Context(), id, false)
	if err != nil {
		return writeDomainError(c, err)
	}
	return interlockResponse(c, il)
}

// Synchronize handles POST /v1/interlocks/synchronize: drive every
// tool-attached interlock to the state its tool's usage implies.
func (h *InterlockHandler) Synchronize(c echo.Context) error {
	report, err := h.Svc.SynchronizeInterlocks(c.Request().Context())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
