package event

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/user"
	"github.com/epishare/epishare/internal/jurisdiction"
)

var validStatuses = map[string]bool{
	StatusSignal:    true,
	StatusEvent:     true,
	StatusScreening: true,
	StatusCluster:   true,
	StatusDropped:   true,
}

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

func (s *Service) CreateEvent(ctx context.Context, ev *Event) error {
	if ev.Title == "" {
		return fmt.Errorf("title is required")
	}
	if ev.ReportingUserID == uuid.Nil {
		return fmt.Errorf("reporting_user_id is required")
	}
	if ev.Status == "" {
		ev.Status = StatusSignal
	}
	if !validStatuses[ev.Status] {
		return fmt.Errorf("invalid status: %s", ev.Status)
	}
	return s.repo.Create(ctx, ev)
}

// GetEvent loads one event and enforces the caller's visibility filter.
func (s *Service) GetEvent(ctx context.Context, u *user.User, id uuid.UUID) (*Event, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := s.visible(ctx, u, ev)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, fmt.Errorf("event %s is outside the user's jurisdiction", id)
	}
	return ev, nil
}

func (s *Service) UpdateEvent(ctx context.Context, u *user.User, ev *Event) error {
	if ev.Status != "" && !validStatuses[ev.Status] {
		return fmt.Errorf("invalid status: %s", ev.Status)
	}
	visible, err := s.visible(ctx, u, ev)
	if err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("event %s is outside the user's jurisdiction", ev.ID)
	}
	if err := s.checkEditable(ctx, ev); err != nil {
		return err
	}
	return s.repo.Update(ctx, ev)
}

func (s *Service) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkEditable(ctx, ev); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListEvents(ctx context.Context, u *user.User, opts jurisdiction.Options, limit, offset int) ([]*Event, int, error) {
	filter, err := s.filters.UserFilter(ctx, u, opts)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *Service) AddParticipant(ctx context.Context, p *Participant) error {
	if p.EventID == uuid.Nil {
		return fmt.Errorf("event_id is required")
	}
	if p.PersonName == "" {
		return fmt.Errorf("person_name is required")
	}
	return s.repo.AddParticipant(ctx, p)
}

func (s *Service) GetParticipants(ctx context.Context, eventID uuid.UUID) ([]*Participant, error) {
	return s.repo.GetParticipants(ctx, eventID)
}

func (s *Service) RemoveParticipant(ctx context.Context, id uuid.UUID) error {
	return s.repo.RemoveParticipant(ctx, id)
}

func (s *Service) checkEditable(ctx context.Context, ev *Event) error {
	if ev.OriginInfoID == nil || s.ownership == nil {
		return nil
	}
	editable, err := s.ownership.Editable(ctx, *ev.OriginInfoID)
	if err != nil {
		return err
	}
	if !editable {
		return fmt.Errorf("event %s is owned by another instance", ev.UUID)
	}
	return nil
}

// visible evaluates the caller's filter against one event, resolving
// association predicates through targeted repo probes.
func (s *Service) visible(ctx context.Context, u *user.User, ev *Event) (bool, error) {
	filter, err := s.filters.UserFilter(ctx, u, jurisdiction.Options{})
	if err != nil {
		return false, err
	}

	var probeErr error
	links := func(name, value string) bool {
		var ok bool
		var err error
		switch name {
		case jurisdiction.AssocSampleLab:
			ok, err = s.repo.HasSampleForLab(ctx, ev.ID, value)
		case jurisdiction.AssocCaseOrParticipantRegion:
			ok, err = s.repo.HasCaseOrParticipantIn(ctx, ev.ID, jurisdiction.FieldRegion, value)
		case jurisdiction.AssocCaseOrParticipantDistrict:
			ok, err = s.repo.HasCaseOrParticipantIn(ctx, ev.ID, jurisdiction.FieldDistrict, value)
		}
		if err != nil && probeErr == nil {
			probeErr = err
		}
		return ok
	}

	visible := jurisdiction.Eval(filter, fieldsOf(ev), links)
	if probeErr != nil {
		return false, probeErr
	}
	return visible, nil
}

func fieldsOf(ev *Event) jurisdiction.Fields {
	f := jurisdiction.Fields{
		jurisdiction.FieldReportingUser: ev.ReportingUserID.String(),
	}
	if ev.ResponsibleUserID != nil {
		f[jurisdiction.FieldResponsibleUser] = ev.ResponsibleUserID.String()
	}
	if ev.RegionID != nil {
		f[jurisdiction.FieldRegion] = ev.RegionID.String()
	}
	if ev.DistrictID != nil {
		f[jurisdiction.FieldDistrict] = ev.DistrictID.String()
	}
	if ev.CommunityID != nil {
		f[jurisdiction.FieldCommunity] = ev.CommunityID.String()
	}
	if ev.Disease != nil {
		f[jurisdiction.FieldDisease] = *ev.Disease
	}
	return f
}
