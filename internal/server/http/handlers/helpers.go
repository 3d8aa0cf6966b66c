package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/withdrawgate/internal/domain/errors"
	pkgAuth "github.com/polkiloo/withdrawgate/internal/pkg/auth"
	"github.com/polkiloo/withdrawgate/internal/server/http/dto"
	"github.com/polkiloo/withdrawgate/internal/server/http/middleware"
)

// CurrentPrincipal extracts the authenticated caller from context.
func CurrentPrincipal(c *gin.Context) pkgAuth.Principal {
	val, ok := c.Get(middleware.PrincipalContextKey)
	if !ok {
		return pkgAuth.Principal{}
	}
	p, _ := val.(pkgAuth.Principal)
	return p
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "bad_request", Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter. An absent parameter
// yields zero; a value below minimum is rejected with 400.
func queryInt(c *gin.Context, name string, minimum int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minimum {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "bad_request", Error: "invalid " + name})
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "bad_request", Error: "malformed request body"})
}

var errorStatuses = []struct {
	target error
	status int
	code   string
}{
	{domainErrors.ErrValidation, http.StatusUnprocessableEntity, "validation"},
	{domainErrors.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	{domainErrors.ErrSecurityBlocked, http.StatusForbidden, "security_blocked"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domainErrors.ErrDailyLimitExceeded, http.StatusTooManyRequests, "daily_limit_exceeded"},
	{domainErrors.ErrMaintenanceMode, http.StatusServiceUnavailable, "maintenance"},
	{domainErrors.ErrPaymentExecution, http.StatusBadGateway, "payment_failed"},
	{domainErrors.ErrEscrowConflict, http.StatusConflict, "escrow_conflict"},
	{domainErrors.ErrSelfApproval, http.StatusConflict, "self_approval"},
	{domainErrors.ErrConcurrentStateChange, http.StatusConflict, "state_changed"},
	{domainErrors.ErrEscrowExpired, http.StatusGone, "escrow_expired"},
	{domainErrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrUnknownDecision, http.StatusBadRequest, "unknown_decision"},
}

// writeError maps a domain error to its status code and JSON body.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	for _, e := range errorStatuses {
		if !errors.Is(err, e.target) {
			continue
		}
		resp := dto.ErrorResponse{Code: e.code, Error: err.Error()}
		var limit *domainErrors.DailyLimitExceededError
		if errors.As(err, &limit) {
			remaining := limit.Check.Remaining
			resp.Remaining = &remaining
		}
		var blocked *domainErrors.SecurityBlockedError
		if errors.As(err, &blocked) {
			resp.Error = blocked.Reason
		}
		c.JSON(e.status, resp)
		return
	}
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Code: "internal", Error: "internal error"})
}
