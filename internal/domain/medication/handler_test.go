package medication

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

func TestHandler_CreatePrescription(t *testing.T) {
	f := newFixture(t)
	body := `{"patient_id":"` + f.patient.PatientID.String() + `","medication_name":"Amoxicillin","dosage":"500mg","frequency":"3x daily","duration":"7 days","refills":2}`

	rec := serve(f, f.doctor, http.MethodPost, "/api/prescriptions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := envelope(t, rec)
	assert.Equal(t, "Prescription created successfully", env["message"])
	rx := env["data"].(map[string]interface{})["prescription"].(map[string]interface{})
	assert.Equal(t, 2.0, rx["refills"])
	assert.Equal(t, true, rx["is_active"])

	rec = serve(f, f.patient, http.MethodPost, "/api/prescriptions", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = serve(f, f.nurse, http.MethodPost, "/api/prescriptions", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_UpdateNegativeRefills(t *testing.T) {
	f := newFixture(t)
	rx := f.prescribe(t, f.doctor, f.patient)

	rec := serve(f, f.doctor, http.MethodPut, "/api/prescriptions/"+rx.ID.String(), `{"refills":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := envelope(t, rec)
	assert.Equal(t, false, env["success"])
	assert.Contains(t, env["message"], "refills")
	assert.Equal(t, 1, f.repo.rows[rx.ID].Refills)

	rec = serve(f, f.doctor, http.MethodPut, "/api/prescriptions/"+rx.ID.String(), `{"refills":4}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Prescription updated successfully", envelope(t, rec)["message"])
	assert.Equal(t, 4, f.repo.rows[rx.ID].Refills)
}

func TestHandler_ListPrescriptions(t *testing.T) {
	f := newFixture(t)
	f.prescribe(t, f.doctor, f.patient)
	f.prescribe(t, f.doctor, f.otherPatient)

	rec := serve(f, f.doctor, http.MethodGet, "/api/prescriptions?is_active=true&patient_id="+f.patient.PatientID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := envelope(t, rec)["data"].(map[string]interface{})["prescriptions"].(map[string]interface{})
	assert.Equal(t, 1.0, page["total"])

	rec = serve(f, f.doctor, http.MethodGet, "/api/prescriptions?is_active=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f, f.otherPatient, http.MethodGet, "/api/patients/prescriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = envelope(t, rec)["data"].(map[string]interface{})["prescriptions"].(map[string]interface{})
	assert.Equal(t, 1.0, page["total"])

	rec = serve(f, f.doctor, http.MethodGet, "/api/patients/prescriptions", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_GetPrescription(t *testing.T) {
	f := newFixture(t)
	rx := f.prescribe(t, f.doctor, f.patient)

	rec := serve(f, f.patient, http.MethodGet, "/api/prescriptions/"+rx.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(f, f.otherPatient, http.MethodGet, "/api/prescriptions/"+rx.ID.String(), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = serve(f, f.patient, http.MethodGet, "/api/prescriptions/xyz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
