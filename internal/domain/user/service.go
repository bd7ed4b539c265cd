package user

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

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if u.UserName == "" {
		return fmt.Errorf("user_name is required")
	}
	if u.Level == "" {
		u.Level = LevelNone
	}
	if !ValidLevels[u.Level] {
		return fmt.Errorf("invalid jurisdiction level: %s", u.Level)
	}
	if err := validateBindings(u); err != nil {
		return err
	}
	u.Active = true
	return s.repo.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetUserByUserName(ctx context.Context, userName string) (*User, error) {
	return s.repo.GetByUserName(ctx, userName)
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	if u.Level != "" && !ValidLevels[u.Level] {
		return fmt.Errorf("invalid jurisdiction level: %s", u.Level)
	}
	if err := validateBindings(u); err != nil {
		return err
	}
	return s.repo.Update(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// validateBindings rejects bindings below the user's own level. A user may
// lack the binding for their level, which simply narrows what they can see,
// but a community user with a facility binding is a configuration mistake.
func validateBindings(u *User) error {
	switch u.Level {
	case LevelNation, LevelNone:
		if u.RegionID != nil || u.DistrictID != nil || u.CommunityID != nil || u.FacilityID != nil || u.LabID != nil {
			return fmt.Errorf("level %s takes no jurisdiction bindings", u.Level)
		}
	case LevelRegion:
		if u.DistrictID != nil || u.CommunityID != nil || u.FacilityID != nil || u.LabID != nil {
			return fmt.Errorf("level REGION allows only a region binding")
		}
	case LevelDistrict:
		if u.CommunityID != nil || u.FacilityID != nil || u.LabID != nil {
			return fmt.Errorf("level DISTRICT allows only region and district bindings")
		}
	case LevelCommunity:
		if u.FacilityID != nil || u.LabID != nil {
			return fmt.Errorf("level COMMUNITY allows only region, district and community bindings")
		}
	case LevelHealthFacility:
		if u.LabID != nil {
			return fmt.Errorf("level HEALTH_FACILITY does not allow a lab binding")
		}
	}
	return nil
}
