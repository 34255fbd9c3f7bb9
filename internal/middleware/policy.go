package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medibook-server/internal/models"
	"medibook-server/internal/utils"
)

// Access is the requirement a route rule places on the caller.
type Access int

const (
	// AccessAuthenticated needs any identity.
	AccessAuthenticated Access = iota
	// AccessPublic needs nothing.
	AccessPublic
	// AccessAuthority needs a specific authority.
	AccessAuthority
)

// Rule applies to every path equal to Prefix or below it.
type Rule struct {
	Prefix    string
	Access    Access
	Authority models.RoleName
}

func (r Rule) matches(path string) bool {
	p := strings.TrimSuffix(r.Prefix, "/")
	return path == p || strings.HasPrefix(path, p+"/")
}

// Policy is an ordered route table; the first matching rule wins and paths
// without a rule require authentication.
type Policy struct {
	rules []Rule
}

// NewPolicy creates a Policy from rules in priority order.
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{rules: rules}
}

// DefaultPolicy is the route table for the API mounted at base.
func DefaultPolicy(base string) *Policy {
	base = strings.TrimSuffix(base, "/")
	return NewPolicy(
		Rule{Prefix: "/health", Access: AccessPublic},
		Rule{Prefix: base + "/auth", Access: AccessPublic},
		Rule{Prefix: base + "/public", Access: AccessPublic},
		Rule{Prefix: base + "/upload", Access: AccessPublic},
		Rule{Prefix: base + "/admin", Access: AccessAuthority, Authority: models.RoleAdmin},
	)
}

// Match returns the rule governing path.
func (p *Policy) Match(path string) Rule {
	for _, r := range p.rules {
		if r.matches(path) {
			return r
		}
	}
	return Rule{Prefix: "/", Access: AccessAuthenticated}
}

// IsPublic reports whether path needs no identity.
func (p *Policy) IsPublic(path string) bool {
	return p.Match(path).Access == AccessPublic
}

// Authorize enforces the policy. It runs after Authenticate.
func Authorize(p *Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		rule := p.Match(c.Request.URL.Path)
		if rule.Access == AccessPublic {
			c.Next()
			return
		}

		id, ok := GetIdentity(c)
		if !ok {
			utils.AbortWithError(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if rule.Access == AccessAuthority && !id.HasAuthority(rule.Authority) {
			utils.AbortWithError(c, http.StatusForbidden, "You do not have permission to access this resource.")
			return
		}
		c.Next()
	}
}
