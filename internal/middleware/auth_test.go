package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/models"
	"medibook-server/internal/utils"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

type fakeAccounts map[string]*models.Account

func (f fakeAccounts) AccountByID(_ context.Context, id string) (*models.Account, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, errors.New("not found")
}

func accountWithRoles(id string, status models.AccountStatus, roles ...models.RoleName) *models.Account {
	a := &models.Account{Username: id, Status: status}
	a.ID = id
	for _, r := range roles {
		a.Roles = append(a.Roles, models.AccountRole{AccountID: id, Role: models.Role{Name: r}})
	}
	return a
}

func newTestRouter(tokens *utils.TokenService, accounts fakeAccounts) *gin.Engine {
	gin.SetMode(gin.TestMode)
	policy := DefaultPolicy("/api/v1")
	r := gin.New()
	r.Use(Authenticate(tokens, accounts, policy, zerolog.Nop()))
	r.Use(Authorize(policy))

	ok := func(c *gin.Context) {
		id, _ := GetIdentity(c)
		c.String(http.StatusOK, id.AccountID)
	}
	r.POST("/api/v1/auth/login", ok)
	r.GET("/api/v1/public/doctors/search", ok)
	r.POST("/api/v1/upload/image", ok)
	r.GET("/api/v1/admin/users", ok)
	r.GET("/api/v1/appointments/patient", ok)
	r.GET("/api/v1/doctors/profile", RequireRole(models.RoleDoctor), ok)
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_PublicPathsNeedNoHeader(t *testing.T) {
	r := newTestRouter(utils.NewTokenService(testSigningKey, 0), fakeAccounts{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/auth/login"},
		{http.MethodGet, "/api/v1/public/doctors/search"},
		{http.MethodPost, "/api/v1/upload/image"},
	} {
		rec := do(r, tc.method, tc.path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s %s: expected 200, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestAuthenticate_MissingOrMalformedHeader(t *testing.T) {
	r := newTestRouter(utils.NewTokenService(testSigningKey, 0), fakeAccounts{})

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/patient", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	tokens := utils.NewTokenService(testSigningKey, 0)
	accounts := fakeAccounts{"u1": accountWithRoles("u1", models.StatusActive, models.RoleUser)}
	r := newTestRouter(tokens, accounts)

	token, _ := tokens.Issue("u1", "u1", []string{"USER"})
	rec := do(r, http.MethodGet, "/api/v1/appointments/patient", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "u1" {
		t.Errorf("expected identity u1, got %q", rec.Body.String())
	}
}

func TestAuthenticate_UnknownAccount(t *testing.T) {
	tokens := utils.NewTokenService(testSigningKey, 0)
	r := newTestRouter(tokens, fakeAccounts{})

	token, _ := tokens.Issue("ghost", "ghost", []string{"USER"})
	if rec := do(r, http.MethodGet, "/api/v1/appointments/patient", token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthenticate_SuspendedAccount(t *testing.T) {
	tokens := utils.NewTokenService(testSigningKey, 0)
	accounts := fakeAccounts{"u2": accountWithRoles("u2", models.StatusSuspended, models.RoleUser)}
	r := newTestRouter(tokens, accounts)

	token, _ := tokens.Issue("u2", "u2", []string{"USER"})
	if rec := do(r, http.MethodGet, "/api/v1/appointments/patient", token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuer := utils.NewTokenService(testSigningKey, 0).WithClock(func() time.Time { return past })
	accounts := fakeAccounts{"u1": accountWithRoles("u1", models.StatusActive, models.RoleUser)}
	r := newTestRouter(utils.NewTokenService(testSigningKey, 0), accounts)

	token, _ := issuer.Issue("u1", "u1", []string{"USER"})
	if rec := do(r, http.MethodGet, "/api/v1/appointments/patient", token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthorize_AdminRoutes(t *testing.T) {
	tokens := utils.NewTokenService(testSigningKey, 0)
	accounts := fakeAccounts{
		"user":  accountWithRoles("user", models.StatusActive, models.RoleUser),
		"admin": accountWithRoles("admin", models.StatusActive, models.RoleAdmin),
		"root":  accountWithRoles("root", models.StatusActive, models.RoleSuperAdmin),
	}
	r := newTestRouter(tokens, accounts)

	// Claims say ADMIN but the stored account does not hold it.
	forged, _ := tokens.Issue("user", "user", []string{"ADMIN"})
	if rec := do(r, http.MethodGet, "/api/v1/admin/users", forged); rec.Code != http.StatusForbidden {
		t.Errorf("user: expected 403, got %d", rec.Code)
	}

	adminToken, _ := tokens.Issue("admin", "admin", []string{"ADMIN"})
	if rec := do(r, http.MethodGet, "/api/v1/admin/users", adminToken); rec.Code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", rec.Code)
	}

	rootToken, _ := tokens.Issue("root", "root", []string{"SUPER_ADMIN"})
	if rec := do(r, http.MethodGet, "/api/v1/admin/users", rootToken); rec.Code != http.StatusOK {
		t.Errorf("super admin: expected 200, got %d", rec.Code)
	}

	if rec := do(r, http.MethodGet, "/api/v1/admin/users", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	tokens := utils.NewTokenService(testSigningKey, 0)
	accounts := fakeAccounts{
		"pat": accountWithRoles("pat", models.StatusActive, models.RoleUser),
		"doc": accountWithRoles("doc", models.StatusActive, models.RoleUser, models.RoleDoctor),
	}
	r := newTestRouter(tokens, accounts)

	patToken, _ := tokens.Issue("pat", "pat", nil)
	if rec := do(r, http.MethodGet, "/api/v1/doctors/profile", patToken); rec.Code != http.StatusForbidden {
		t.Errorf("patient: expected 403, got %d", rec.Code)
	}
	docToken, _ := tokens.Issue("doc", "doc", nil)
	if rec := do(r, http.MethodGet, "/api/v1/doctors/profile", docToken); rec.Code != http.StatusOK {
		t.Errorf("doctor: expected 200, got %d", rec.Code)
	}
}

func TestPolicy_Match(t *testing.T) {
	p := DefaultPolicy("/api/v1")
	tests := []struct {
		path string
		want Access
	}{
		{"/api/v1/auth/login", AccessPublic},
		{"/api/v1/auth", AccessPublic},
		{"/api/v1/authority", AccessAuthenticated},
		{"/api/v1/public/doctors/top-rated", AccessPublic},
		{"/api/v1/upload/prescription", AccessPublic},
		{"/api/v1/admin/users/1", AccessAuthority},
		{"/api/v1/appointments", AccessAuthenticated},
		{"/health", AccessPublic},
	}
	for _, tt := range tests {
		if got := p.Match(tt.path).Access; got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestAuthorities(t *testing.T) {
	got := Authorities([]models.RoleName{models.RoleSuperAdmin, models.RoleAdmin})
	if len(got) != 2 || got[0] != models.RoleSuperAdmin || got[1] != models.RoleAdmin {
		t.Fatalf("unexpected authorities %v", got)
	}
}
