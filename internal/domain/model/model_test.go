package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestWithdrawalStatusValues(t *testing.T) {
	cases := []struct {
		name  string
		got   WithdrawalStatus
		value string
	}{
		{"pending", WithdrawalStatusPending, "PENDING"},
		{"escrow pending", WithdrawalStatusEscrowPending, "ESCROW_PENDING"},
		{"approved", WithdrawalStatusApproved, "APPROVED"},
		{"rejected", WithdrawalStatusRejected, "REJECTED"},
		{"cancelled", WithdrawalStatusCancelled, "CANCELLED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if string(tc.got) != tc.value {
				t.Fatalf("expected %s, got %s", tc.value, tc.got)
			}
		})
	}
}

func TestWithdrawalTransitions(t *testing.T) {
	cases := []struct {
		from, to WithdrawalStatus
		allowed  bool
	}{
		{WithdrawalStatusPending, WithdrawalStatusEscrowPending, true},
		{WithdrawalStatusPending, WithdrawalStatusApproved, true},
		{WithdrawalStatusPending, WithdrawalStatusRejected, true},
		{WithdrawalStatusPending, WithdrawalStatusCancelled, true},
		{WithdrawalStatusEscrowPending, WithdrawalStatusApproved, true},
		{WithdrawalStatusEscrowPending, WithdrawalStatusRejected, true},
		{WithdrawalStatusEscrowPending, WithdrawalStatusPending, true},
		{WithdrawalStatusEscrowPending, WithdrawalStatusCancelled, false},
		{WithdrawalStatusApproved, WithdrawalStatusRejected, false},
		{WithdrawalStatusRejected, WithdrawalStatusPending, false},
		{WithdrawalStatusCancelled, WithdrawalStatusApproved, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}

	for _, terminal := range []WithdrawalStatus{WithdrawalStatusApproved, WithdrawalStatusRejected, WithdrawalStatusCancelled} {
		if !terminal.IsTerminal() || terminal.IsOpen() {
			t.Errorf("expected %s to be terminal", terminal)
		}
	}
	if WithdrawalStatusPending.IsTerminal() || !WithdrawalStatusEscrowPending.IsOpen() {
		t.Error("expected pending statuses to be open")
	}
}

func TestNetAmount(t *testing.T) {
	w := Withdrawal{Amount: decimal.RequireFromString("200"), Fee: decimal.RequireFromString("2")}
	if !w.NetAmount().Equal(decimal.RequireFromString("198")) {
		t.Fatalf("expected net 198, got %s", w.NetAmount())
	}

	snap := EscrowSnapshot{Amount: decimal.RequireFromString("1500"), Fee: decimal.RequireFromString("15")}
	if !snap.NetAmount().Equal(decimal.RequireFromString("1485")) {
		t.Fatalf("expected net 1485, got %s", snap.NetAmount())
	}
}

func TestEscrowExpiredAt(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := Escrow{ExpiresAt: deadline}
	if e.ExpiredAt(deadline) {
		t.Fatal("escrow must still be valid exactly at its deadline")
	}
	if !e.ExpiredAt(deadline.Add(time.Second)) {
		t.Fatal("expected escrow to be expired after deadline")
	}
}

func TestDecisionKindsHaveNames(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range DecisionKinds() {
		name := k.String()
		if name == "unknown" || seen[name] {
			t.Fatalf("decision kind %d has bad name %q", k, name)
		}
		seen[name] = true
	}
	if DecisionKind(0).String() != "unknown" {
		t.Fatal("expected zero kind to be unknown")
	}
}
