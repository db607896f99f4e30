package identity

import (
	"context"
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

func newTestEcho(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	e := echo.New()
	e.HTTPErrorHandler = response.ErrorHandler(zerolog.Nop())
	NewHandler(svc).RegisterRoutes(e.Group("/api"))
	return e, svc
}

// asPrincipal injects the principal JWTMiddleware would have resolved.
func asPrincipal(p auth.Principal) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	e, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodPost, "/api/auth/register",
		`{"email":"p@example.com","password":"secret1","name":"Pat","role":"patient","blood_type":"A+"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeEnvelope(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "User registered successfully", body["message"])
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])
	user := data["user"].(map[string]interface{})
	assert.NotContains(t, user, "password_hash")
	assert.Equal(t, "A+", data["profile"].(map[string]interface{})["blood_type"])

	rec = doJSON(e, http.MethodPost, "/api/auth/login", `{"email":"p@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", decodeEnvelope(t, rec)["message"])

	rec = doJSON(e, http.MethodPost, "/api/auth/login", `{"email":"p@example.com","password":"nope!!"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body = decodeEnvelope(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "invalid email or password", body["message"])
}

func TestHandler_RegisterErrors(t *testing.T) {
	e, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodPost, "/api/auth/register", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/auth/register",
		`{"email":"d@example.com","password":"secret1","name":"Doc","role":"doctor"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec)["message"], "license_number")

	body := `{"email":"dup@example.com","password":"secret1","name":"Dup","role":"patient"}`
	require.Equal(t, http.StatusCreated, doJSON(e, http.MethodPost, "/api/auth/register", body).Code)
	rec = doJSON(e, http.MethodPost, "/api/auth/register", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", decodeEnvelope(t, rec)["kind"])
}

func TestHandler_RoleGuards(t *testing.T) {
	svc, _ := newTestService(t)
	sess := registerPatient(t, svc, "p@example.com")
	p, err := svc.ResolvePrincipal(context.Background(), sess.User.ID)
	require.NoError(t, err)

	e := echo.New()
	e.HTTPErrorHandler = response.ErrorHandler(zerolog.Nop())
	e.Use(asPrincipal(p))
	NewHandler(svc).RegisterRoutes(e.Group("/api"))

	rec := doJSON(e, http.MethodGet, "/api/doctors/profile", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/admin/users", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/patients/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	patient := decodeEnvelope(t, rec)["data"].(map[string]interface{})["patient"].(map[string]interface{})
	assert.Equal(t, p.PatientID.String(), patient["id"])

	rec = doJSON(e, http.MethodPut, "/api/patients/medical-history", `{"allergies":"latex"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Medical history updated successfully", decodeEnvelope(t, rec)["message"])

	rec = doJSON(e, http.MethodPut, "/api/auth/profile", `{"insurance_provider":"Acme"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/doctors/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UpdateUserStatus(t *testing.T) {
	svc, _ := newTestService(t)
	admin, err := svc.CreateAdmin(context.Background(), "root@example.com", "Root", "secret1")
	require.NoError(t, err)
	sess := registerPatient(t, svc, "p@example.com")

	e := echo.New()
	e.HTTPErrorHandler = response.ErrorHandler(zerolog.Nop())
	e.Use(asPrincipal(auth.Principal{UserID: admin.ID, Role: auth.RoleAdmin}))
	NewHandler(svc).RegisterRoutes(e.Group("/api"))

	rec := doJSON(e, http.MethodPut, "/api/admin/users/"+sess.User.ID.String()+"/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPut, "/api/admin/users/"+sess.User.ID.String()+"/status", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeEnvelope(t, rec)["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, false, user["is_active"])

	rec = doJSON(e, http.MethodPut, "/api/admin/users/"+admin.ID.String()+"/status", `{"is_active":false}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/admin/users?is_active=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e, _ := newTestEcho(t)

	routes := make(map[string]bool)
	for _, r := range e.Routes() {
		routes[r.Method+":"+r.Path] = true
	}

	expected := []string{
		"POST:/api/auth/register",
		"POST:/api/auth/login",
		"GET:/api/auth/profile",
		"PUT:/api/auth/profile",
		"GET:/api/patients/profile",
		"PUT:/api/patients/medical-history",
		"GET:/api/doctors",
		"GET:/api/doctors/profile",
		"PUT:/api/doctors/profile",
		"GET:/api/doctors/patients",
		"GET:/api/doctors/:id",
		"GET:/api/admin/users",
		"PUT:/api/admin/users/:id/status",
	}
	for _, route := range expected {
		assert.True(t, routes[route], "missing route %s", route)
	}
}
