// Package reply maps domain errors onto HTTP responses with one JSON shape:
// {"error": "..."}.
package reply

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/plaza-rewards/internal/common"
)

// RetryLater is shown for infrastructure failures.
const RetryLater = "something went wrong, please retry later"

// Status returns the HTTP status and the public message for err.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrAccountNotFound):
		return http.StatusNotFound, common.ErrAccountNotFound.Error()
	case errors.Is(err, common.ErrInvalidAmount):
		return http.StatusBadRequest, common.ErrInvalidAmount.Error()
	case errors.Is(err, common.ErrInvalidKind):
		return http.StatusBadRequest, common.ErrInvalidKind.Error()
	case errors.Is(err, common.ErrInsufficientBalance):
		return http.StatusPaymentRequired, common.ErrInsufficientBalance.Error()
	case errors.Is(err, common.ErrWrongPassword):
		return http.StatusUnauthorized, common.ErrWrongPassword.Error()
	case errors.Is(err, common.ErrSessionExpired):
		return http.StatusUnauthorized, common.ErrSessionExpired.Error()
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, common.ErrTooManyAttempts.Error()
	case errors.Is(err, common.ErrGrantsDisabled):
		return http.StatusForbidden, common.ErrGrantsDisabled.Error()
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, RetryLater
	default:
		return http.StatusInternalServerError, RetryLater
	}
}

// Error aborts the request with the response for err.
func Error(c *gin.Context, err error) {
	status, msg := Status(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Request error")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BadRequest aborts with 400 and msg.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
