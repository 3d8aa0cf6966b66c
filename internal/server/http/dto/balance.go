package dto

import "github.com/shopspring/decimal"

// BalanceResponse reports the spendable balance.
type BalanceResponse struct {
	Available decimal.Decimal `json:"available"`
}

// SwitchRequest turns an operator switch on or off.
type SwitchRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SwitchesResponse reports the operator switches.
type SwitchesResponse struct {
	Maintenance   bool `json:"maintenance"`
	EmergencyStop bool `json:"emergency_stop"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Code      string           `json:"code"`
	Error     string           `json:"error"`
	Remaining *decimal.Decimal `json:"remaining,omitempty"`
}
