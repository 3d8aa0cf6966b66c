package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/withdrawgate/internal/server/http/dto"
)

// WithdrawalHandler manages account holder endpoints.
type WithdrawalHandler struct {
	facade WithdrawalFacade
}

// NewWithdrawalHandler constructs WithdrawalHandler.
func NewWithdrawalHandler(facade WithdrawalFacade) *WithdrawalHandler {
	return &WithdrawalHandler{facade: facade}
}

// Create handles POST /api/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	w, err := h.facade.RequestWithdrawal(c.Request.Context(), CurrentPrincipal(c).ID, req.Amount, req.ToAddress)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewWithdrawalResponse(w))
}

// List handles GET /api/withdrawals?limit=&offset=.
func (h *WithdrawalHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 1)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	items, err := h.facade.UserWithdrawals(c.Request.Context(), CurrentPrincipal(c).ID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWithdrawalList(items))
}

// Get handles GET /api/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	w, err := h.facade.UserWithdrawal(c.Request.Context(), CurrentPrincipal(c).ID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWithdrawalResponse(w))
}

// Cancel handles POST /api/withdrawals/:id/cancel.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	w, err := h.facade.CancelWithdrawal(c.Request.Context(), CurrentPrincipal(c).ID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWithdrawalResponse(w))
}

// Balance handles GET /api/balance.
func (h *WithdrawalHandler) Balance(c *gin.Context) {
	available, err := h.facade.Balance(c.Request.Context(), CurrentPrincipal(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{Available: available})
}
