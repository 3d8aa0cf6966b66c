package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
	"github.com/polkiloo/withdrawgate/internal/server/http/dto"
)

// AdminHandler manages operator endpoints.
type AdminHandler struct {
	facade AdminFacade
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(facade AdminFacade) *AdminHandler {
	return &AdminHandler{facade: facade}
}

// List handles GET /api/admin/withdrawals.
func (h *AdminHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 1)
	if !ok {
		return
	}

	items, err := h.facade.PendingWithdrawals(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWithdrawalList(items))
}

// Stats handles GET /api/admin/withdrawals/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.facade.WithdrawalStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWithdrawalStatsResponse(stats))
}

// Get handles GET /api/admin/withdrawals/:id.
func (h *AdminHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	w, err := h.facade.Withdrawal(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWithdrawalResponse(w))
}

// GetEscrow handles GET /api/admin/escrows/:id.
func (h *AdminHandler) GetEscrow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	e, err := h.facade.Escrow(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewEscrowResponse(e))
}

// Approve handles POST /api/admin/withdrawals/:id/approve.
func (h *AdminHandler) Approve(c *gin.Context) {
	h.decideWithdrawal(c, model.DecisionApprove, false)
}

// Reject handles POST /api/admin/withdrawals/:id/reject.
func (h *AdminHandler) Reject(c *gin.Context) {
	h.decideWithdrawal(c, model.DecisionReject, true)
}

// InitiateEscrow handles POST /api/admin/withdrawals/:id/escrow.
func (h *AdminHandler) InitiateEscrow(c *gin.Context) {
	h.decideWithdrawal(c, model.DecisionInitiateEscrow, false)
}

// ApproveEscrow handles POST /api/admin/escrows/:id/approve.
func (h *AdminHandler) ApproveEscrow(c *gin.Context) {
	h.decideEscrow(c, model.DecisionApproveEscrow, false)
}

// RejectEscrow handles POST /api/admin/escrows/:id/reject.
func (h *AdminHandler) RejectEscrow(c *gin.Context) {
	h.decideEscrow(c, model.DecisionRejectEscrow, true)
}

func (h *AdminHandler) decideWithdrawal(c *gin.Context, kind model.DecisionKind, withReason bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.decide(c, model.Decision{Kind: kind, WithdrawalID: id}, withReason)
}

func (h *AdminHandler) decideEscrow(c *gin.Context, kind model.DecisionKind, withReason bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.decide(c, model.Decision{Kind: kind, EscrowID: id}, withReason)
}

func (h *AdminHandler) decide(c *gin.Context, d model.Decision, withReason bool) {
	if withReason && c.Request.ContentLength != 0 {
		var req dto.RejectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		d.Reason = req.Reason
	}
	d.AdminID = CurrentPrincipal(c).ID

	outcome, err := h.facade.Decide(c.Request.Context(), d)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewDecisionResponse(outcome))
}

// Switches handles GET /api/admin/switches.
func (h *AdminHandler) Switches(c *gin.Context) {
	c.JSON(http.StatusOK, switchesResponse(h.facade.Switches()))
}

// Maintenance handles PUT /api/admin/maintenance.
func (h *AdminHandler) Maintenance(c *gin.Context) {
	h.toggle(c, h.facade.SetMaintenance)
}

// EmergencyStop handles PUT /api/admin/emergency-stop.
func (h *AdminHandler) EmergencyStop(c *gin.Context) {
	h.toggle(c, h.facade.SetEmergencyStop)
}

func (h *AdminHandler) toggle(c *gin.Context, set func(context.Context, int64, bool) error) {
	var req dto.SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := set(c.Request.Context(), CurrentPrincipal(c).ID, *req.Enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, switchesResponse(h.facade.Switches()))
}

func switchesResponse(s model.RuntimeSwitches) dto.SwitchesResponse {
	return dto.SwitchesResponse{Maintenance: s.Maintenance, EmergencyStop: s.EmergencyStop}
}
