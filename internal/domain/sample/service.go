package sample

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// OwnershipChecker reports whether a record tied to the given origin info
// may be edited locally.
type OwnershipChecker interface {
	Editable(ctx context.Context, originInfoID uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repository
	ownership OwnershipChecker
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) SetOwnershipChecker(oc OwnershipChecker) {
	s.ownership = oc
}

func (s *Service) CreateSample(ctx context.Context, sm *Sample) error {
	if (sm.CaseID == nil) == (sm.EventID == nil) {
		return fmt.Errorf("exactly one of case_id and event_id is required")
	}
	if sm.LabID == uuid.Nil {
		return fmt.Errorf("lab_id is required")
	}
	if sm.ReportingUserID == uuid.Nil {
		return fmt.Errorf("reporting_user_id is required")
	}
	if sm.Purpose == "" {
		sm.Purpose = PurposeExternal
	}
	if sm.Purpose != PurposeExternal && sm.Purpose != PurposeInternal {
		return fmt.Errorf("invalid purpose: %s", sm.Purpose)
	}
	if sm.PathogenTestResult == "" {
		sm.PathogenTestResult = ResultPending
	}
	if !validResults[sm.PathogenTestResult] {
		return fmt.Errorf("invalid pathogen test result: %s", sm.PathogenTestResult)
	}
	return s.repo.Create(ctx, sm)
}

func (s *Service) GetSample(ctx context.Context, id uuid.UUID) (*Sample, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateSample(ctx context.Context, sm *Sample) error {
	if sm.PathogenTestResult != "" && !validResults[sm.PathogenTestResult] {
		return fmt.Errorf("invalid pathogen test result: %s", sm.PathogenTestResult)
	}
	if err := s.checkEditable(ctx, sm); err != nil {
		return err
	}
	return s.repo.Update(ctx, sm)
}

func (s *Service) DeleteSample(ctx context.Context, id uuid.UUID) error {
	sm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkEditable(ctx, sm); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*Sample, error) {
	return s.repo.ListByCase(ctx, caseID)
}

func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Sample, error) {
	return s.repo.ListByEvent(ctx, eventID)
}

func (s *Service) ListByLab(ctx context.Context, labID uuid.UUID, limit, offset int) ([]*Sample, int, error) {
	return s.repo.ListByLab(ctx, labID, limit, offset)
}

func (s *Service) checkEditable(ctx context.Context, sm *Sample) error {
	if sm.OriginInfoID == nil || s.ownership == nil {
		return nil
	}
	editable, err := s.ownership.Editable(ctx, *sm.OriginInfoID)
	if err != nil {
		return err
	}
	if !editable {
		return fmt.Errorf("sample %s is owned by another instance", sm.UUID)
	}
	return nil
}
