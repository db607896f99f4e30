package medication

import (
	"strconv"

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
	prescribers := auth.RequireRole(auth.RoleDoctor)
	api.POST("/prescriptions", h.CreatePrescription, prescribers)
	api.GET("/prescriptions", h.ListPrescriptions)
	api.GET("/prescriptions/:id", h.GetPrescription)
	api.PUT("/prescriptions/:id", h.UpdatePrescription, prescribers)

	api.GET("/patients/prescriptions", h.ListPatientPrescriptions, auth.RequireRole(auth.RolePatient))
}

func prescriptionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("invalid prescription id")
	}
	return id, nil
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	rx, err := h.svc.CreatePrescription(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return response.Created(c, "Prescription created successfully", echo.Map{"prescription": rx})
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var f Filter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.InvalidInput("invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.InvalidInput("is_active must be true or false")
		}
		f.IsActive = &active
	}
	page, err := h.svc.ListPrescriptions(c.Request().Context(), p, f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"prescriptions": page})
}

func (h *Handler) GetPrescription(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := prescriptionID(c)
	if err != nil {
		return err
	}
	rx, err := h.svc.GetPrescription(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"prescription": rx})
}

func (h *Handler) UpdatePrescription(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := prescriptionID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	rx, err := h.svc.UpdatePrescription(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Prescription updated successfully", echo.Map{"prescription": rx})
}

func (h *Handler) ListPatientPrescriptions(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListPatientPrescriptions(c.Request().Context(), p, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"prescriptions": page})
}
