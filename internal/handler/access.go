package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-access-control/internal/admission"
	"github.com/iliyamo/lab-access-control/internal/model"
)

// AccessHandler exposes the area entry/exit operations.  All decision
// logic lives in the admission service; handlers translate between
// HTTP and domain types.
type AccessHandler struct {
	Svc *admission.Service
}

func NewAccessHandler(svc *admission.Service) *AccessHandler {
	return &AccessHandler{Svc: svc}
}

type badgeInReq struct {
	BadgeNumber uint64 `json:"badge_number"`
	ProjectID   uint64 `json:"project_id"`
}

type enterReq struct {
	ProjectID uint64 `json:"project_id"`
}

type recordPart struct {
	ID        uint64  `json:"id"`
	AreaID    uint64  `json:"area_id"`
	ProjectID uint64  `json:"project_id"`
	Start     string  `json:"start"`
	End       *string `json:"end,omitempty"`
}

func toRecordPart(r model.AreaAccessRecord) recordPart {
	p := recordPart{
		ID:        r.ID,
		AreaID:    r.AreaID,
		ProjectID: r.ProjectID,
		Start:     r.Start.Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.End != nil {
		e := r.End.Format("2006-01-02T15:04:05Z07:00")
		p.End = &e
	}
	return p
}

func enterResponse(c echo.Context, result admission.EnterResult) error {
	resp := echo.Map{"record": toRecordPart(result.Record)}
	if result.AlreadyLoggedIn {
		resp["outcome"] = "already_logged_in"
	} else {
		resp["outcome"] = "logged_in"
	}
	if result.PreviousAreaID != nil {
		resp["previous_area_id"] = *result.PreviousAreaID
	}
	return c.JSON(http.StatusOK, resp)
}

func exitResponse(c echo.Context, result admission.ExitResult) error {
	if result.AlreadyLoggedOut {
		return c.JSON(http.StatusOK, echo.Map{"outcome": "already_logged_out"})
	}
	resp := echo.Map{"outcome": "logged_out", "record": toRecordPart(result.Record)}
	if len(result.BusyTools) > 0 {
		toolIDs := make([]uint64, 0, len(result.BusyTools))
		for _, ev := range result.BusyTools {
			toolIDs = append(toolIDs, ev.ToolID)
		}
		resp["warning"] = "tools still in use"
		resp["busy_tool_ids"] = toolIDs
	}
	return c.JSON(http.StatusOK, resp)
}

// BadgeIn handles POST /v1/doors/:id/badge-in.  Badge readers call this
// on every swipe; on success the door strike releases briefly.
func (h *AccessHandler) BadgeIn(c echo.Context) error {
	doorID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid door id"})
	}
	var req badgeInReq
	if err := c.Bind(&req); err != nil || req.BadgeNumber == 0 || req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "badge_number and project_id required"})
	}
	result, err := h.Svc.EnterThroughDoor(c.Request().Context(), req.BadgeNumber, doorID, req.ProjectID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return enterResponse(c, result)
}

// SelfLogIn handles POST /v1/areas/:id/login, the kiosk self-service
// entry for the authenticated user.
func (h *AccessHandler) SelfLogIn(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	areaID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid area id"})
	}
	var req enterReq
	if err := c.Bind(&req); err != nil || req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "project_id required"})
	}
	result, err := h.Svc.SelfLogIn(c.Request().Context(), userID, areaID, req.ProjectID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return enterResponse(c, result)
}

// SelfLogOut handles POST /v1/areas/logout for the authenticated user.
func (h *AccessHandler) SelfLogOut(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	result, err := h.Svc.SelfLogOut(c.Request().Context(), userID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return exitResponse(c, result)
}

// ChangeProject handles POST /v1/areas/project: switch the billing
// project of the caller's open access record.
func (h *AccessHandler) ChangeProject(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req enterReq
	if err := c.Bind(&req); err != nil || req.ProjectID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "project_id required"})
	}
	record, err := h.Svc.ChangeProject(c.Request().Context(), userID, req.ProjectID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"record": toRecordPart(record)})
}

// Occupancy handles GET /v1/areas/:id/occupancy (staff).
func (h *AccessHandler) Occupancy(c echo.Context) error {
	areaID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid area id"})
	}
	status, err := h.Svc.Occupancy(c.Request().Context(), areaID)
	if err != nil {
		return writeDomainError(c, err)
	}
	occupants := make([]recordPart, 0, len(status.Occupants))
	for _, r := range status.Occupants {
		occupants = append(occupants, toRecordPart(r))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"area_id":          status.Area.ID,
		"area":             status.Area.Name,
		"maximum_capacity": status.Area.MaximumCapacity,
		"count":            len(occupants),
		"occupants":        occupants,
	})
}

// ForceExit handles POST /v1/users/:id/force-logout (staff): close
// another user's open record after a missed badge-out.
func (h *AccessHandler) ForceExit(c echo.Context) error {
	staffID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	userID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	result, err := h.Svc.ForceExit(c.Request().Context(), staffID, userID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return exitResponse(c, result)
}
