package repository

// Factory describes access to different domain repositories.
type Factory interface {
	Withdrawals() WithdrawalRepository
	Escrows() EscrowRepository
	PaymentAttempts() PaymentAttemptRepository
	AdminActions() AdminActionLog
	Admins() AdminVerifier
	Users() UserDirectory
	Security() SecurityRepository
	Earnings() EarningsProvider
}

// SecurityRepository groups the security-gate collaborators backed by storage.
type SecurityRepository interface {
	AccountChecker
	RecoveryChecker
	FraudChecker
}
