// Package rewards: handlers.go exposes the plaza endpoints:
// account provisioning, balance, the daily login reward, history and
// shop purchases.
package rewards

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"serotonyl.ru/plaza-rewards/internal/api/middleware"
	"serotonyl.ru/plaza-rewards/internal/api/reply"
	"serotonyl.ru/plaza-rewards/internal/common"
)

// Handler serves the user-facing reward endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates the reward handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes. rg must already run RequireIdentity.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/account", h.HandleProvision)
	rg.GET("/account", h.HandleAccount)
	rg.POST("/daily-login", h.HandleDailyLogin)
	rg.GET("/transactions", h.HandleTransactions)
	rg.POST("/spend", h.HandleSpend)
}

// HandleProvision creates the account on the first visit. Repeats return
// the existing account.
func (h *Handler) HandleProvision(c *gin.Context) {
	tenantID, userID := identity(c)
	acc, err := h.service.ProvisionAccount(c.Request.Context(), tenantID, userID)
	if err != nil {
		reply.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// HandleAccount returns the balance and streak.
func (h *Handler) HandleAccount(c *gin.Context) {
	tenantID, userID := identity(c)
	acc, err := h.service.GetAccount(c.Request.Context(), tenantID, userID)
	if err != nil {
		reply.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

type dailyLoginResponse struct {
	*DailyResult
	Message string `json:"message"`
}

// HandleDailyLogin records the daily engagement. Safe to call on every
// page load: only the first call of the day pays.
//
// Response message:
//
//	awarded 25 tokens, streak now 7 days
//	no reward today
func (h *Handler) HandleDailyLogin(c *gin.Context) {
	tenantID, userID := identity(c)
	res, err := h.service.RecordDailyEngagement(c.Request.Context(), tenantID, userID)
	if err != nil {
		reply.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dailyLoginResponse{DailyResult: res, Message: dailyMessage(res)})
}

func dailyMessage(res *DailyResult) string {
	if !res.IsNewDay {
		return "no reward today"
	}
	return fmt.Sprintf("awarded %s, streak now %d %s",
		common.FormatTokens(res.Awarded), res.Streak, common.PluralizeDays(res.Streak))
}

// HandleTransactions returns the newest ledger entries. ?limit=1..100.
func (h *Handler) HandleTransactions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			reply.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	tenantID, userID := identity(c)
	txs, err := h.service.History(c.Request.Context(), tenantID, userID, limit)
	if err != nil {
		reply.Error(c, err)
		return
	}
	if txs == nil {
		txs = []*Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

type spendRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// HandleSpend takes tokens for a plaza shop purchase.
func (h *Handler) HandleSpend(c *gin.Context) {
	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reply.BadRequest(c, "invalid request body")
		return
	}

	tenantID, userID := identity(c)
	acc, err := h.service.Spend(c.Request.Context(), tenantID, userID, req.Amount, req.Description)
	if err != nil {
		reply.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// identity reads the ids bound by the middleware. The group guarantees both.
func identity(c *gin.Context) (tenantID, userID uuid.UUID) {
	tenantID, _ = middleware.TenantID(c)
	userID, _ = middleware.UserID(c)
	return tenantID, userID
}
