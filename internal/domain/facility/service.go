package facility

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateFacility(ctx context.Context, f *Facility) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.Type == "" {
		f.Type = TypeHealthFacility
	}
	if !validTypes[f.Type] {
		return fmt.Errorf("invalid facility type: %s", f.Type)
	}
	// A health facility sits inside a district; a laboratory may serve
	// several districts and carries no geographic binding of its own.
	if f.Type == TypeHealthFacility && f.DistrictID == nil {
		return fmt.Errorf("district_id is required for a health facility")
	}
	return s.repo.Create(ctx, f)
}

func (s *Service) GetFacility(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateFacility(ctx context.Context, f *Facility) error {
	existing, err := s.repo.GetByID(ctx, f.ID)
	if err != nil {
		return err
	}
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.Type == "" {
		f.Type = existing.Type
	}
	if !validTypes[f.Type] {
		return fmt.Errorf("invalid facility type: %s", f.Type)
	}
	if f.Type == TypeHealthFacility && f.DistrictID == nil {
		return fmt.Errorf("district_id is required for a health facility")
	}
	f.UUID = existing.UUID
	return s.repo.Update(ctx, f)
}

func (s *Service) ListFacilities(ctx context.Context, facilityType string, limit, offset int) ([]*Facility, int, error) {
	if facilityType != "" && !validTypes[facilityType] {
		return nil, 0, fmt.Errorf("invalid facility type: %s", facilityType)
	}
	return s.repo.List(ctx, facilityType, limit, offset)
}

// DistrictOfFacility satisfies the lookup the visibility filter needs when a
// facility user's data is widened to their facility's whole district.
func (s *Service) DistrictOfFacility(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error) {
	return s.repo.DistrictOfFacility(ctx, facilityID)
}
