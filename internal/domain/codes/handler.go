package codes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/codes", h.ListCodes)
	api.GET("/codes/:key", h.GetCode)
}

func (h *Handler) ListCodes(c echo.Context) error {
	codeType := c.QueryParam("type")
	if codeType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type query parameter is required")
	}
	switch codeType {
	case TypeRole, TypeTime, TypeStatus:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown code type")
	}

	items, err := h.repo.ListByType(c.Request().Context(), codeType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list codes")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

func (h *Handler) GetCode(c echo.Context) error {
	code, err := h.repo.Get(c.Request().Context(), c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load code")
	}
	if code == nil {
		return echo.NewHTTPError(http.StatusNotFound, "code not found")
	}
	return c.JSON(http.StatusOK, code)
}
