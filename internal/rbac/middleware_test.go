package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"workshop-booking/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveAs(userID, role string, chain ...gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, "", role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })

	r := gin.New()
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveAs("u", RoleSuperAdmin, RequireUser(), RequireAnyRole(RoleAdmin)); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_MemberDenied(t *testing.T) {
	if code := serveAs("u", RoleMember, RequireUser(), RequireAnyRole(RoleAdmin)); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_MissingRole(t *testing.T) {
	if code := serveAs("u", "", RequireAnyRole(RoleAdmin)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireUser_MissingUser(t *testing.T) {
	if code := serveAs("", RoleAdmin, RequireUser()); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
