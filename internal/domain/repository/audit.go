package repository

import (
	"context"

	"github.com/polkiloo/withdrawgate/internal/domain/model"
)

// AdminActionLog appends audit entries.
type AdminActionLog interface {
	Record(ctx context.Context, entry model.AdminActionEntry) error
}

// AdminVerifier confirms the caller is an active administrator.
type AdminVerifier interface {
	VerifyAdmin(ctx context.Context, adminID int64) error
}

// UserDirectory resolves notification addresses.
type UserDirectory interface {
	TelegramID(ctx context.Context, userID int64) (int64, error)
}
