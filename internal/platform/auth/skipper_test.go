package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func skipperContext(path string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	return c
}

func TestAuthSkipper_PublicPaths(t *testing.T) {
	for _, path := range []string{"/health", "/health/db"} {
		if !AuthSkipper(skipperContext(path)) {
			t.Errorf("expected AuthSkipper to return true for %s", path)
		}
	}
}

func TestAuthSkipper_ProtectedPaths(t *testing.T) {
	for _, path := range []string{"/api/v1/bookings", "/api/v1/schedules/:id", "/"} {
		if AuthSkipper(skipperContext(path)) {
			t.Errorf("expected AuthSkipper to return false for %s", path)
		}
	}
}
