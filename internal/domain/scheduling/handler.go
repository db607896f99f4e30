package scheduling

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
	booking := auth.RequireRole(auth.RolePatient, auth.RoleDoctor)
	api.POST("/appointments", h.CreateAppointment, booking)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment, booking)
	api.PUT("/appointments/:id/cancel", h.CancelAppointment, booking)

	api.GET("/patients/appointments", h.ListPatientAppointments, auth.RequireRole(auth.RolePatient))

	doctorOnly := auth.RequireRole(auth.RoleDoctor)
	api.GET("/doctors/appointments", h.ListDoctorAppointments, doctorOnly)
	api.PUT("/doctors/appointments/:id/status", h.UpdateStatus, doctorOnly)
}

func appointmentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("invalid appointment id")
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperr.InvalidInput("invalid %s", name)
	}
	return &id, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return response.Created(c, "Appointment created successfully", echo.Map{"appointment": a})
}

func (h *Handler) ListAppointments(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	f := Filter{Status: c.QueryParam("status"), Date: c.QueryParam("date")}
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.DoctorID, err = optionalUUID(c, "doctor_id"); err != nil {
		return err
	}
	page, err := h.svc.ListAppointments(c.Request().Context(), p, f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"appointments": page})
}

func (h *Handler) GetAppointment(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"appointment": a})
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Appointment updated successfully", echo.Map{"appointment": a})
}

type cancelInput struct {
	Reason string `json:"cancellation_reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var in cancelInput
	if c.Request().ContentLength != 0 {
		if err := validation.Bind(c, &in); err != nil {
			return err
		}
	}
	a, err := h.svc.CancelAppointment(c.Request().Context(), p, id, in.Reason)
	if err != nil {
		return err
	}
	return response.Message(c, "Appointment cancelled successfully", echo.Map{"appointment": a})
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListPatientAppointments(c.Request().Context(), p, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"appointments": page})
}

func (h *Handler) ListDoctorAppointments(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListDoctorAppointments(c.Request().Context(), p,
		c.QueryParam("status"), c.QueryParam("date"), pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"appointments": page})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var in StatusInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Appointment status updated successfully", echo.Map{"appointment": a})
}
