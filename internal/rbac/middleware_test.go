package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"crm-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveAs(role string, guard gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if role != "" {
			ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: "u", Role: role})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}, guard, func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serveAs(RoleAdmin, RequireAnyRole(RoleSupervisor)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireWrite_AuditorDenied(t *testing.T) {
	if code := serveAs(RoleAuditor, RequireWrite()); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs(RoleAuditor, RequireRead()); code != 200 {
		t.Fatalf("expected auditor to read, got %d", code)
	}
	if code := serveAs(RoleAgent, RequireWrite()); code != 200 {
		t.Fatalf("expected agent to write, got %d", code)
	}
}

func TestRequireAnyRole_UnknownRoleDenied(t *testing.T) {
	if code := serveAs("owner", RequireAnyRole("owner")); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_RoleRequired(t *testing.T) {
	if code := serveAs("", RequireRead()); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireOversight(t *testing.T) {
	cases := map[string]int{
		RoleAgent:      http.StatusForbidden,
		RoleSupervisor: http.StatusOK,
		RoleAuditor:    http.StatusOK,
		RoleAdmin:      http.StatusOK,
	}
	for role, want := range cases {
		if code := serveAs(role, RequireOversight()); code != want {
			t.Fatalf("%s: expected %d, got %d", role, want, code)
		}
	}
}
