package records

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
	authors := auth.RequireRole(auth.RoleDoctor)
	api.POST("/medical-records", h.CreateRecord, authors)
	api.GET("/medical-records", h.ListRecords)
	api.GET("/medical-records/:id", h.GetRecord)
	api.PUT("/medical-records/:id", h.UpdateRecord, authors)

	api.GET("/patients/medical-records", h.ListPatientRecords, auth.RequireRole(auth.RolePatient))
}

func recordID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("invalid medical record id")
	}
	return id, nil
}

func (h *Handler) CreateRecord(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	m, err := h.svc.CreateRecord(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return response.Created(c, "Medical record created successfully", echo.Map{"medical_record": m})
}

func (h *Handler) ListRecords(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	f := Filter{RecordType: c.QueryParam("record_type")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.InvalidInput("invalid patient_id")
		}
		f.PatientID = &id
	}
	page, err := h.svc.ListRecords(c.Request().Context(), p, f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"medical_records": page})
}

func (h *Handler) GetRecord(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := recordID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetRecord(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"medical_record": m})
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := recordID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	m, err := h.svc.UpdateRecord(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Medical record updated successfully", echo.Map{"medical_record": m})
}

func (h *Handler) ListPatientRecords(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListPatientRecords(c.Request().Context(), p, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"medical_records": page})
}
