package sample

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Sample) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sample, error)
	GetByUUID(ctx context.Context, uid string) (*Sample, error)
	Update(ctx context.Context, s *Sample) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*Sample, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Sample, error)
	ListByLab(ctx context.Context, labID uuid.UUID, limit, offset int) ([]*Sample, int, error)
}
