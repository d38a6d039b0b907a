package repository

import (
	"context"

	"github.com/Gift-Esethu/Ussd-Server/internal/audit/domain"
)

// Collection is the store collection holding audit entries.
const Collection = "audit"

// Repository defines persistence for audit logs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	// ListByCaller returns up to limit entries for callerID, oldest first.
	ListByCaller(ctx context.Context, callerID string, limit int) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
