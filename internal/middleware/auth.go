package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/models"
	"medibook-server/internal/utils"
)

const identityKey = "identity"

// Identity is the authenticated caller of the current request.
type Identity struct {
	AccountID   string
	Username    string
	Roles       []models.RoleName
	Authorities []models.RoleName
}

// HasAuthority reports whether the identity carries authority a.
func (id Identity) HasAuthority(a models.RoleName) bool {
	for _, have := range id.Authorities {
		if have == a {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasAuthority(ADMIN).
func (id Identity) IsAdmin() bool {
	return id.HasAuthority(models.RoleAdmin)
}

// Authorities derives the granted authorities from roles.
// SUPER_ADMIN also grants ADMIN.
func Authorities(roles []models.RoleName) []models.RoleName {
	out := make([]models.RoleName, 0, len(roles)+1)
	seen := make(map[models.RoleName]bool, len(roles)+1)
	add := func(r models.RoleName) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, r := range roles {
		add(r)
		if r == models.RoleSuperAdmin {
			add(models.RoleAdmin)
		}
	}
	return out
}

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*utils.Claims, error)
}

// AccountResolver loads the account named by a token, roles preloaded.
type AccountResolver interface {
	AccountByID(ctx context.Context, id string) (*models.Account, error)
}

// Authenticate creates the authentication gate. Requests on public paths pass
// through untouched; every other request must carry a valid bearer token for an
// existing, enabled account.
func Authenticate(tokens TokenVerifier, accounts AccountResolver, policy *Policy, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || policy.IsPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			utils.AbortWithError(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, utils.ErrTokenExpired) {
				msg = "Token has expired"
			}
			logger.Debug().Err(err).Str("request_id", GetRequestID(c)).Msg("token rejected")
			utils.AbortWithError(c, http.StatusUnauthorized, msg)
			return
		}

		account, err := accounts.AccountByID(c.Request.Context(), claims.AccountID)
		if err != nil {
			logger.Debug().Err(err).Str("account_id", claims.AccountID).Msg("token account unresolvable")
			utils.AbortWithError(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		if account.Status == models.StatusSuspended || account.Status == models.StatusInactive {
			utils.AbortWithError(c, http.StatusUnauthorized, "Account is disabled")
			return
		}

		roles := account.RoleNames()
		c.Set(identityKey, Identity{
			AccountID:   account.ID,
			Username:    account.Username,
			Roles:       roles,
			Authorities: Authorities(roles),
		})

		c.Next()
	}
}

// RequireRole creates a middleware for role-based authorization.
// It should be used *after* Authenticate.
func RequireRole(allowedRoles ...models.RoleName) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			utils.AbortWithError(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		for _, allowed := range allowedRoles {
			if id.HasAuthority(allowed) {
				c.Next()
				return
			}
		}

		utils.AbortWithError(c, http.StatusForbidden, "You do not have permission to access this resource.")
	}
}

// GetIdentity returns the authenticated identity, if any.
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
