package diagnostics

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/mediconnect/internal/platform/apperr"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/validation"
	"github.com/mediconnect/mediconnect/pkg/pagination"
	"github.com/mediconnect/mediconnect/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/labs", h.CreateLabResult, auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	api.GET("/labs", h.ListLabResults)
	api.GET("/labs/:id", h.GetLabResult)
	api.PUT("/labs/:id", h.UpdateLabResult, auth.RequireRole(auth.RoleDoctor))

	api.GET("/patients/lab-results", h.ListPatientLabResults, auth.RequireRole(auth.RolePatient))
}

func labResultID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("invalid lab result id")
	}
	return id, nil
}

func (h *Handler) CreateLabResult(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	l, err := h.svc.CreateLabResult(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return response.Created(c, "Lab result created successfully", echo.Map{"lab_result": l})
}

func (h *Handler) ListLabResults(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	f := Filter{Status: c.QueryParam("status"), TestType: c.QueryParam("test_type")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.InvalidInput("invalid patient_id")
		}
		f.PatientID = &id
	}
	page, err := h.svc.ListLabResults(c.Request().Context(), p, f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"lab_results": page})
}

func (h *Handler) GetLabResult(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := labResultID(c)
	if err != nil {
		return err
	}
	l, err := h.svc.GetLabResult(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"lab_result": l})
}

func (h *Handler) UpdateLabResult(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := labResultID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	l, err := h.svc.UpdateLabResult(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Lab result updated successfully", echo.Map{"lab_result": l})
}

func (h *Handler) ListPatientLabResults(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListPatientLabResults(c.Request().Context(), p, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"lab_results": page})
}
