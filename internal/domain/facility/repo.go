package facility

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, f *Facility) error
	GetByID(ctx context.Context, id uuid.UUID) (*Facility, error)
	Update(ctx context.Context, f *Facility) error
	List(ctx context.Context, facilityType string, limit, offset int) ([]*Facility, int, error)
	DistrictOfFacility(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error)
}
