// Package admin: handlers.go serves staff login/logout and manual grants.
// Flow: login with staff id and password → bearer token → grants until the
// session expires or the staff member logs out.
package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/plaza-rewards/internal/api/middleware"
	"serotonyl.ru/plaza-rewards/internal/api/reply"
	"serotonyl.ru/plaza-rewards/internal/common"
	"serotonyl.ru/plaza-rewards/internal/features/rewards"
)

// Granter awards tokens from a non-daily source. rewards.Service implements it.
type Granter interface {
	Grant(ctx context.Context, tenantID, userID uuid.UUID, kind rewards.Kind, amount int64, description string) (*rewards.GrantResult, error)
}

// Handler serves the admin endpoints.
type Handler struct {
	service       *Service
	granter       Granter
	grantsEnabled bool
}

// NewHandler creates the admin handler.
func NewHandler(service *Service, granter Granter, grantsEnabled bool) *Handler {
	return &Handler{service: service, granter: granter, grantsEnabled: grantsEnabled}
}

// Register mounts the routes. rg must already run RequireTenant.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/login", h.HandleLogin)
	rg.POST("/logout", h.HandleLogout)
	rg.POST("/grant", h.HandleGrant)
}

type loginRequest struct {
	StaffID  uuid.UUID `json:"staff_id"`
	Password string    `json:"password"`
}

// HandleLogin checks the password and returns a session token.
func (h *Handler) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StaffID == uuid.Nil || req.Password == "" {
		reply.BadRequest(c, "staff_id and password are required")
		return
	}

	tenantID, _ := middleware.TenantID(c)
	session, err := h.service.Login(c.Request.Context(), tenantID, req.StaffID, req.Password)
	if err != nil {
		reply.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": session.Token, "expires_at": session.ExpiresAt})
}

// HandleLogout ends the bearer session.
func (h *Handler) HandleLogout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		reply.Error(c, common.ErrSessionExpired)
		return
	}
	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		reply.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type grantRequest struct {
	UserID      uuid.UUID    `json:"user_id"`
	Kind        rewards.Kind `json:"kind"`
	Amount      int64        `json:"amount"`
	Description string       `json:"description"`
}

type grantResponse struct {
	*rewards.GrantResult
	Message string `json:"message"`
}

// HandleGrant awards tokens to a user of the session's tenant.
// The amount is clamped to what is left of the user's daily cap.
func (h *Handler) HandleGrant(c *gin.Context) {
	if !h.grantsEnabled {
		reply.Error(c, common.ErrGrantsDisabled)
		return
	}

	session, ok := h.authorize(c)
	if !ok {
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == uuid.Nil {
		reply.BadRequest(c, "user_id, kind and amount are required")
		return
	}

	res, err := h.granter.Grant(c.Request.Context(), session.TenantID, req.UserID, req.Kind, req.Amount, req.Description)
	if err != nil {
		reply.Error(c, err)
		return
	}

	log.WithFields(log.Fields{
		"tenant_id": session.TenantID,
		"staff_id":  session.StaffID,
		"user_id":   req.UserID,
		"kind":      req.Kind,
		"granted":   res.Granted,
	}).Info("Admin grant")

	c.JSON(http.StatusOK, grantResponse{
		GrantResult: res,
		Message:     "granted " + common.FormatTokensAmount(res.Granted),
	})
}

// authorize resolves the bearer session. A session opened in another
// tenant is treated as missing.
func (h *Handler) authorize(c *gin.Context) (*Session, bool) {
	session, err := h.service.Authorize(c.Request.Context(), bearerToken(c))
	if err != nil {
		reply.Error(c, err)
		return nil, false
	}
	tenantID, _ := middleware.TenantID(c)
	if session.TenantID != tenantID {
		log.WithFields(log.Fields{
			"session_tenant": session.TenantID,
			"header_tenant":  tenantID,
			"staff_id":       session.StaffID,
		}).Warn("Admin session used in another tenant")
		reply.Error(c, common.ErrSessionExpired)
		return nil, false
	}
	return session, true
}

func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
