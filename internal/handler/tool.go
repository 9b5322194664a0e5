package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-access-control/internal/admission"
	"github.com/iliyamo/lab-access-control/internal/model"
)

// ToolHandler exposes tool enable/disable and reservation cancellation.
type ToolHandler struct {
	Svc *admission.Service
}

func NewToolHandler(svc *admission.Service) *ToolHandler {
	return &ToolHandler{Svc: svc}
}

type enableReq struct {
	UserID    uint64 `json:"user_id"` // optional; defaults to the operator
	ProjectID uint64 `json:"project_id"`
}

type disableReq struct {
	DowntimeMinutes int    `json:"downtime_minutes"`
	RunData         string `json:"run_data"`
}

type eventPart struct {
	ID         uint64  `json:"id"`
	ToolID     uint64  `json:"tool_id"`
	OperatorID uint64  `json:"operator_id"`
	UserID     uint64  `json:"user_id"`
	ProjectID  uint64  `json:"project_id"`
	Start      string  `json:"start"`
	End        *string `json:"end,omitempty"`
}

func toEventPart(ev model.UsageEvent) eventPart {
	p := eventPart{
		ID:         ev.ID,
		ToolID:     ev.ToolID,
		OperatorID: ev.OperatorID,
		UserID:     ev.UserID,
		ProjectID:  ev.ProjectID,
		Start:      ev.Start.Format(time.RFC3339),
	}
	if ev.End != nil {
		e := ev.End.Format(time.RFC3339)
		p.End = &e
	}
	return p
}

// Enable handles POST /v1/tools/:id/enable.  The interlock is energized
// before the usage event opens; a hardware fault surfaces as 502 with
// no event created.
func (h *ToolHandler) Enable(c echo.Context) error {
	operatorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	toolID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tool id"})
	}
	var req enableReq
	if err := c.Bind(&req); err != nil || req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "project_id required"})
	}
	userID := req.UserID
	if userID == 0 {
		userID = operatorID
	}
	result, err := h.Svc.EnableTool(c.Request().Context(), toolID, operatorID, userID, req.ProjectID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"outcome": "enabled",
		"event":   toEventPart(result.Event),
	})
}

// Disable handles POST /v1/tools/:id/disable.  Disabling an idle tool
// is benign and reported through the outcome field rather than an
// error status.
func (h *ToolHandler) Disable(c echo.Context) error {
	operatorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	toolID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tool id"})
	}
	var req disableReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	downtime := time.Duration(req.DowntimeMinutes) * time.Minute
	result, err := h.Svc.DisableTool(c.Request().Context(), toolID, operatorID, downtime, req.RunData)
	if err != nil {
		return writeDomainError(c, err)
	}
	if result.AlreadyIdle {
		return c.JSON(http.StatusOK, echo.Map{"outcome": "already_idle"})
	}
	resp := echo.Map{
		"outcome": "disabled",
		"event":   toEventPart(result.Event),
	}
	if result.Shortened != nil {
		resp["reservation_shortened"] = echo.Map{
			"reservation_id": result.Shortened.ID,
			"new_end":        result.Shortened.End.Format(time.RFC3339),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// CancelReservation handles DELETE /v1/reservations/:id.  Only the
// holder or staff may cancel a live reservation.
func (h *ToolHandler) CancelReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Svc.CancelReservation(c.Request().Context(), reservationID, userID)
	if err != nil {
		return writeDomainError(c, err)
	}
	cancelledAt := ""
	if res.CancellationTime != nil {
		cancelledAt = res.CancellationTime.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"outcome":        "cancelled",
		"reservation_id": res.ID,
		"cancelled_at":   cancelledAt,
	})
}
