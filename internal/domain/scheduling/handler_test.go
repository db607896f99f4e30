package scheduling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/pkg/response"
)

func serve(f *fixture, p auth.Principal, method, path, body string) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = response.ErrorHandler(zerolog.Nop())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	})
	NewHandler(f.svc).RegisterRoutes(e.Group("/api"))

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_CreateAndConflict(t *testing.T) {
	f := newFixture(t)
	body := `{"doctor_id":"` + f.doctor.DoctorID.String() + `","appointment_date":"2026-03-02","appointment_time":"09:30","reason":"checkup"}`

	rec := serve(f, f.patient, http.MethodPost, "/api/appointments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := envelope(t, rec)
	assert.Equal(t, "Appointment created successfully", env["message"])
	appt := env["data"].(map[string]interface{})["appointment"].(map[string]interface{})
	assert.Equal(t, "scheduled", appt["status"])
	assert.Equal(t, f.patient.PatientID.String(), appt["patient_id"])

	rec = serve(f, f.otherPatient, http.MethodPost, "/api/appointments", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	env = envelope(t, rec)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "conflict", env["kind"])
	assert.Equal(t, "doctor already has an appointment at this time", env["message"])

	rec = serve(f, f.nurse, http.MethodPost, "/api/appointments", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_GetAndCancel(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.patient, f.patient, f.doctor, "2026-03-02", "10:00")

	rec := serve(f, f.otherPatient, http.MethodGet, "/api/appointments/"+a.ID.String(), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(f, f.patient, http.MethodGet, "/api/appointments/nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f, f.patient, http.MethodPut, "/api/appointments/"+a.ID.String()+"/cancel", `{"cancellation_reason":"travel"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Appointment cancelled successfully", envelope(t, rec)["message"])

	rec = serve(f, f.patient, http.MethodPut, "/api/appointments/"+a.ID.String()+"/cancel", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandler_DoctorStatus(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.patient, f.patient, f.doctor, "2026-03-02", "10:00")
	path := "/api/doctors/appointments/" + a.ID.String() + "/status"

	rec := serve(f, f.patient, http.MethodPut, path, `{"status":"completed"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(f, f.doctor, http.MethodPut, path, `{"status":"confirmed","notes":"see you"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	appt := envelope(t, rec)["data"].(map[string]interface{})["appointment"].(map[string]interface{})
	assert.Equal(t, "confirmed", appt["status"])

	rec = serve(f, f.doctor, http.MethodGet, "/api/doctors/appointments?status=confirmed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := envelope(t, rec)["data"].(map[string]interface{})["appointments"].(map[string]interface{})
	assert.Equal(t, float64(1), page["total"])
}

func TestHandler_ListFilters(t *testing.T) {
	f := newFixture(t)
	rec := serve(f, f.admin, http.MethodGet, "/api/appointments?patient_id=xyz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f, f.patient, http.MethodGet, "/api/patients/appointments", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(newFixture(t).svc).RegisterRoutes(e.Group("/api"))

	routes := make(map[string]bool)
	for _, r := range e.Routes() {
		routes[r.Method+":"+r.Path] = true
	}
	for _, route := range []string{
		"POST:/api/appointments",
		"GET:/api/appointments",
		"GET:/api/appointments/:id",
		"PUT:/api/appointments/:id",
		"PUT:/api/appointments/:id/cancel",
		"GET:/api/patients/appointments",
		"GET:/api/doctors/appointments",
		"PUT:/api/doctors/appointments/:id/status",
	} {
		assert.True(t, routes[route], "missing route %s", route)
	}
}
