package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-access-control/internal/customization"
)

// CustomizationHandler lets staff read and flip runtime settings such
// as the self-service login toggles.
type CustomizationHandler struct {
	Store *customization.Store
}

func NewCustomizationHandler(store *customization.Store) *CustomizationHandler {
	return &CustomizationHandler{Store: store}
}

// Get handles GET /v1/customizations: the current toggle values.
func (h *CustomizationHandler) Get(c echo.Context) error {
	toggles := h.Store.Toggles(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{
		customization.KeySelfLogIn:  toggles.SelfLogIn,
		customization.KeySelfLogOut: toggles.SelfLogOut,
	})
}

// Set handles PUT /v1/customizations/:key.
func (h *CustomizationHandler) Set(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if key != customization.KeySelfLogIn && key != customization.KeySelfLogOut {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown customization key"})
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := c.Bind(&body); err != nil || body.Value == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "value required"})
	}
	if err := h.Store.Set(c.Request().Context(), key, body.Value); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "customization store unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"key": key, "value": body.Value})
}
