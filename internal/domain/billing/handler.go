package billing

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
	adminOnly := auth.RequireRole(auth.RoleAdmin)
	api.POST("/bills", h.CreateBill, adminOnly)
	api.PUT("/bills/:id", h.UpdateBill, adminOnly)
	api.POST("/bills/:id/payments", h.RecordPayment, adminOnly)
	api.GET("/admin/financial-reports", h.FinancialReport, adminOnly)

	patients := auth.RequireRole(auth.RolePatient)
	api.GET("/bills", h.ListBills, patients)
	api.GET("/bills/:id", h.GetBill, patients)
	api.GET("/patients/bills", h.PatientStatement, patients)
}

func billID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("invalid bill id")
	}
	return id, nil
}

func (h *Handler) CreateBill(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	b, err := h.svc.CreateBill(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return response.Created(c, "Bill created successfully", echo.Map{"bill": b})
}

func (h *Handler) ListBills(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	f := Filter{Status: c.QueryParam("status")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.InvalidInput("invalid patient_id")
		}
		f.PatientID = &id
	}
	page, err := h.svc.ListBills(c.Request().Context(), p, f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"bills": page})
}

func (h *Handler) GetBill(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := billID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBill(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"bill": b})
}

func (h *Handler) UpdateBill(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := billID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	b, err := h.svc.UpdateBill(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Bill updated successfully", echo.Map{"bill": b})
}

func (h *Handler) RecordPayment(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := billID(c)
	if err != nil {
		return err
	}
	var in PaymentInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	b, err := h.svc.RecordPayment(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Payment recorded successfully", echo.Map{"bill": b})
}

func (h *Handler) PatientStatement(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	st, err := h.svc.PatientStatement(c.Request().Context(), p, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, st)
}

func (h *Handler) FinancialReport(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	f := Filter{
		Status: c.QueryParam("status"),
		From:   c.QueryParam("start_date"),
		To:     c.QueryParam("end_date"),
	}
	st, err := h.svc.FinancialReport(c.Request().Context(), p, f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"report": st})
}
