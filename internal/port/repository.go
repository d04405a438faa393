package port

import (
	"context"

	"github.com/google/uuid"

	"docfields/internal/domain"
)

// ExtractionRepository defines the contract for extraction record persistence.
type ExtractionRepository interface {
	Create(ctx context.Context, rec *domain.ExtractionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExtractionRecord, error)
	List(ctx context.Context, offset, limit int) ([]domain.ExtractionRecord, int, error)
	UpdateFields(ctx context.Context, rec *domain.ExtractionRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}
