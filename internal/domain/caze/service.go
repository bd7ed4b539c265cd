package caze

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/user"
	"github.com/epishare/epishare/internal/jurisdiction"
)

// OwnershipChecker reports whether a record tied to the given origin info
// may be edited locally. Records received from another instance stay
// read-only until that instance hands ownership over.
type OwnershipChecker interface {
	Editable(ctx context.Context, originInfoID uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repository
	filters   *jurisdiction.Builder
	ownership OwnershipChecker
}

func NewService(repo Repository, filters *jurisdiction.Builder) *Service {
	return &Service{repo: repo, filters: filters}
}

// SetOwnershipChecker attaches the cross-instance ownership check.
func (s *Service) SetOwnershipChecker(oc OwnershipChecker) {
	s.ownership = oc
}

func (s *Service) CreateCase(ctx context.Context, cs *Case) error {
	if cs.Disease == "" {
		return fmt.Errorf("disease is required")
	}
	if cs.PersonName == "" {
		return fmt.Errorf("person_name is required")
	}
	if cs.ReportingUserID == uuid.Nil {
		return fmt.Errorf("reporting_user_id is required")
	}
	if cs.Classification == "" {
		cs.Classification = ClassificationNotClassified
	}
	if !validClassifications[cs.Classification] {
		return fmt.Errorf("invalid classification: %s", cs.Classification)
	}
	return s.repo.Create(ctx, cs)
}

// GetCase loads one case and enforces the caller's visibility filter.
func (s *Service) GetCase(ctx context.Context, u *user.User, id uuid.UUID) (*Case, error) {
	cs, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := s.visible(ctx, u, cs)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, fmt.Errorf("case %s is outside the user's jurisdiction", id)
	}
	return cs, nil
}

func (s *Service) UpdateCase(ctx context.Context, u *user.User, cs *Case) error {
	if cs.Classification != "" && !validClassifications[cs.Classification] {
		return fmt.Errorf("invalid classification: %s", cs.Classification)
	}
	visible, err := s.visible(ctx, u, cs)
	if err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("case %s is outside the user's jurisdiction", cs.ID)
	}
	if err := s.checkEditable(ctx, cs); err != nil {
		return err
	}
	return s.repo.Update(ctx, cs)
}

func (s *Service) DeleteCase(ctx context.Context, id uuid.UUID) error {
	cs, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkEditable(ctx, cs); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListCases(ctx context.Context, u *user.User, limit, offset int) ([]*Case, int, error) {
	filter, err := s.filters.UserFilter(ctx, u, jurisdiction.Options{})
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) AddContact(ctx context.Context, ct *Contact) error {
	if ct.CaseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}
	if ct.PersonName == "" {
		return fmt.Errorf("person_name is required")
	}
	return s.repo.AddContact(ctx, ct)
}

func (s *Service) GetContacts(ctx context.Context, caseID uuid.UUID) ([]*Contact, error) {
	return s.repo.GetContacts(ctx, caseID)
}

func (s *Service) RemoveContact(ctx context.Context, id uuid.UUID) error {
	return s.repo.RemoveContact(ctx, id)
}

func (s *Service) checkEditable(ctx context.Context, cs *Case) error {
	if cs.OriginInfoID == nil || s.ownership == nil {
		return nil
	}
	editable, err := s.ownership.Editable(ctx, *cs.OriginInfoID)
	if err != nil {
		return err
	}
	if !editable {
		return fmt.Errorf("case %s is owned by another instance", cs.UUID)
	}
	return nil
}

// visible evaluates the caller's filter against one case, resolving
// association predicates through targeted repo probes.
func (s *Service) visible(ctx context.Context, u *user.User, cs *Case) (bool, error) {
	filter, err := s.filters.UserFilter(ctx, u, jurisdiction.Options{})
	if err != nil {
		return false, err
	}

	var probeErr error
	links := func(name, value string) bool {
		var ok bool
		var err error
		if name == jurisdiction.AssocSampleLab {
			ok, err = s.repo.HasSampleForLab(ctx, cs.ID, value)
		}
		if err != nil && probeErr == nil {
			probeErr = err
		}
		return ok
	}

	visible := jurisdiction.Eval(filter, fieldsOf(cs), links)
	if probeErr != nil {
		return false, probeErr
	}
	return visible, nil
}

func fieldsOf(cs *Case) jurisdiction.Fields {
	f := jurisdiction.Fields{
		jurisdiction.FieldReportingUser: cs.ReportingUserID.String(),
		jurisdiction.FieldDisease:       cs.Disease,
	}
	if cs.ResponsibleUserID != nil {
		f[jurisdiction.FieldResponsibleUser] = cs.ResponsibleUserID.String()
	}
	if cs.RegionID != nil {
		f[jurisdiction.FieldRegion] = cs.RegionID.String()
	}
	if cs.DistrictID != nil {
		f[jurisdiction.FieldDistrict] = cs.DistrictID.String()
	}
	if cs.CommunityID != nil {
		f[jurisdiction.FieldCommunity] = cs.CommunityID.String()
	}
	return f
}
