package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// CreateWithdrawalRequest describes withdrawal request payload.
type CreateWithdrawalRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	ToAddress string          `json:"to_address"`
}

// RejectRequest carries an optional reason shown to the user.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// WithdrawalResponse describes a withdrawal request.
type WithdrawalResponse struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"net_amount"`
	ToAddress string          `json:"to_address"`
	Status    string          `json:"status"`
	TxHash    *string         `json:"tx_hash,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	DecidedAt *time.Time      `json:"decided_at,omitempty"`
	DecidedBy *int64          `json:"decided_by,omitempty"`
}

// EscrowResponse describes a dual-control escrow.
type EscrowResponse struct {
	ID           int64           `json:"id"`
	WithdrawalID int64           `json:"withdrawal_id"`
	Amount       decimal.Decimal `json:"amount"`
	Fee          decimal.Decimal `json:"fee"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	ToAddress    string          `json:"to_address"`
	InitiatorID  int64           `json:"initiator_id"`
	ApproverID   *int64          `json:"approver_id,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// DecisionResponse reports the state after an admin decision.
type DecisionResponse struct {
	Withdrawal *WithdrawalResponse `json:"withdrawal,omitempty"`
	Escrow     *EscrowResponse     `json:"escrow,omitempty"`
}

func NewWithdrawalResponse(w *model.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Amount:    w.Amount,
		Fee:       w.Fee,
		NetAmount: w.NetAmount(),
		ToAddress: w.ToAddress,
		Status:    string(w.Status),
		TxHash:    w.TxHash,
		CreatedAt: w.CreatedAt,
		DecidedAt: w.DecidedAt,
		DecidedBy: w.DecidedByID,
	}
}

func NewWithdrawalList(items []model.Withdrawal) []WithdrawalResponse {
	resp := make([]WithdrawalResponse, 0, len(items))
	for i := range items {
		resp = append(resp, NewWithdrawalResponse(&items[i]))
	}
	return resp
}

func NewEscrowResponse(e *model.Escrow) EscrowResponse {
	return EscrowResponse{
		ID:           e.ID,
		WithdrawalID: e.TargetID,
		Amount:       e.Snapshot.Amount,
		Fee:          e.Snapshot.Fee,
		NetAmount:    e.Snapshot.NetAmount(),
		ToAddress:    e.Snapshot.ToAddress,
		InitiatorID:  e.InitiatorID,
		ApproverID:   e.ApproverID,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
		ExpiresAt:    e.ExpiresAt,
	}
}

func NewDecisionResponse(o *model.DecisionOutcome) DecisionResponse {
	var resp DecisionResponse
	if o == nil {
		return resp
	}
	if o.Withdrawal != nil {
		w := NewWithdrawalResponse(o.Withdrawal)
		resp.Withdrawal = &w
	}
	if o.Escrow != nil {
		e := NewEscrowResponse(o.Escrow)
		resp.Escrow = &e
	}
	return resp
}

// StatusTotalResponse aggregates withdrawals in one status.
type StatusTotalResponse struct {
	Status string          `json:"status"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// UserTotalResponse aggregates approved withdrawals of one user.
type UserTotalResponse struct {
	UserID int64           `json:"user_id"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// WithdrawalStatsResponse is the platform withdrawal report.
type WithdrawalStatsResponse struct {
	ByStatus []StatusTotalResponse `json:"by_status"`
	TopUsers []UserTotalResponse   `json:"top_users"`
}

func NewWithdrawalStatsResponse(s model.WithdrawalStats) WithdrawalStatsResponse {
	resp := WithdrawalStatsResponse{
		ByStatus: make([]StatusTotalResponse, 0, len(s.ByStatus)),
		TopUsers: make([]UserTotalResponse, 0, len(s.TopUsers)),
	}
	for _, t := range s.ByStatus {
		resp.ByStatus = append(resp.ByStatus, StatusTotalResponse{Status: string(t.Status), Count: t.Count, Amount: t.Amount})
	}
	for _, t := range s.TopUsers {
		resp.TopUsers = append(resp.TopUsers, UserTotalResponse{UserID: t.UserID, Count: t.Count, Amount: t.Amount})
	}
	return resp
}
