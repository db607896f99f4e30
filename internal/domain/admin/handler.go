package admin

import (
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/admin/dashboard", h.GetDashboard, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) GetDashboard(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return response.OK(c, d)
}
