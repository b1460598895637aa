package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Identity headers injected by the upstream tenant-resolution proxy after
// it has authenticated the session.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"

	tenantKey = "tenant_id"
	userKey   = "user_id"
)

// RequireTenant rejects requests without a valid tenant header.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !bindHeader(c, HeaderTenantID, tenantKey) {
			return
		}
		c.Next()
	}
}

// RequireIdentity rejects requests without valid tenant and user headers.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !bindHeader(c, HeaderTenantID, tenantKey) || !bindHeader(c, HeaderUserID, userKey) {
			return
		}
		c.Next()
	}
}

func bindHeader(c *gin.Context, header, key string) bool {
	raw := c.GetHeader(header)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		log.WithFields(log.Fields{
			"component": "identity",
			"header":    header,
			"path":      c.Request.URL.Path,
		}).Warn("missing or malformed identity header")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	c.Set(key, id)
	return true
}

// TenantID returns the tenant bound by RequireTenant/RequireIdentity.
func TenantID(c *gin.Context) (uuid.UUID, bool) {
	return idFromContext(c, tenantKey)
}

// UserID returns the user bound by RequireIdentity.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	return idFromContext(c, userKey)
}

func idFromContext(c *gin.Context, key string) (uuid.UUID, bool) {
	v, ok := c.Get(key)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
