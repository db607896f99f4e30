package identity

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
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/auth/profile", h.GetProfile)
	api.PUT("/auth/profile", h.UpdateProfile)

	patientOnly := auth.RequireRole(auth.RolePatient)
	api.GET("/patients/profile", h.GetPatientProfile, patientOnly)
	api.PUT("/patients/medical-history", h.UpdateMedicalHistory, patientOnly)

	doctorOnly := auth.RequireRole(auth.RoleDoctor)
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/profile", h.GetDoctorProfile, doctorOnly)
	api.PUT("/doctors/profile", h.UpdateDoctorProfile, doctorOnly)
	api.GET("/doctors/patients", h.ListDoctorPatients, doctorOnly)
	api.GET("/doctors/:id", h.GetDoctor)

	adminOnly := auth.RequireRole(auth.RoleAdmin)
	api.GET("/admin/users", h.ListUsers, adminOnly)
	api.PUT("/admin/users/:id/status", h.UpdateUserStatus, adminOnly)
}

// -- Auth --

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	sess, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.Created(c, "User registered successfully", sess)
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	sess, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.Message(c, "Login successful", sess)
}

func (h *Handler) GetProfile(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	acct, err := h.svc.GetAccount(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return response.OK(c, acct)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in AccountUpdate
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	acct, err := h.svc.UpdateAccount(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Profile updated successfully", acct)
}

// -- Patient --

func (h *Handler) GetPatientProfile(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	pt, err := h.svc.GetPatientProfile(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"patient": pt})
}

func (h *Handler) UpdateMedicalHistory(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in MedicalHistoryInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	pt, err := h.svc.UpdateMedicalHistory(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Medical history updated successfully", echo.Map{"patient": pt})
}

// -- Doctor --

func (h *Handler) GetDoctorProfile(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.GetDoctorProfile(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"doctor": doc})
}

func (h *Handler) UpdateDoctorProfile(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in ProfileInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	doc, err := h.svc.UpdateDoctorProfile(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return response.Message(c, "Doctor profile updated successfully", echo.Map{"doctor": doc})
}

func (h *Handler) GetDoctor(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.InvalidInput("invalid doctor id")
	}
	doc, err := h.svc.GetDoctor(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"doctor": doc})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	f := DoctorFilter{
		Specialization: c.QueryParam("specialization"),
		AvailableOnly:  c.QueryParam("available") == "true",
	}
	page, err := h.svc.ListDoctors(c.Request().Context(), p, f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"doctors": page})
}

func (h *Handler) ListDoctorPatients(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListDoctorPatients(c.Request().Context(), p, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"patients": page})
}

// -- Admin --

func (h *Handler) ListUsers(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var f UserFilter
	if v := c.QueryParam("role"); v != "" {
		role := auth.Role(v)
		f.Role = &role
	}
	if v := c.QueryParam("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.InvalidInput("is_active must be true or false")
		}
		f.IsActive = &active
	}
	page, err := h.svc.ListUsers(c.Request().Context(), p, f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return response.OK(c, echo.Map{"users": page})
}

type userStatusInput struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (h *Handler) UpdateUserStatus(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.InvalidInput("invalid user id")
	}
	var in userStatusInput
	if err := validation.Bind(c, &in); err != nil {
		return err
	}
	if err := validation.Struct(&in); err != nil {
		return err
	}
	u, err := h.svc.SetUserActive(c.Request().Context(), p, id, *in.IsActive)
	if err != nil {
		return err
	}
	return response.Message(c, "User status updated successfully", echo.Map{"user": u})
}
