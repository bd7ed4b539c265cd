package event

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/user"
	"github.com/epishare/epishare/internal/jurisdiction"
)

type mockRepo struct {
	events       map[uuid.UUID]*Event
	participants map[uuid.UUID]*Participant
	samplesByLab map[uuid.UUID][]string // event id -> lab ids with samples
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		events:       make(map[uuid.UUID]*Event),
		participants: make(map[uuid.UUID]*Participant),
		samplesByLab: make(map[uuid.UUID][]string),
	}
}

func (m *mockRepo) Create(ctx context.Context, ev *Event) error {
	ev.ID = uuid.New()
	if ev.UUID == "" {
		ev.UUID = ev.ID.String()
	}
	m.events[ev.ID] = ev
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("event not found")
	}
	return ev, nil
}

func (m *mockRepo) GetByUUID(ctx context.Context, uid string) (*Event, error) {
	for _, ev := range m.events {
		if ev.UUID == uid {
			return ev, nil
		}
	}
	return nil, fmt.Errorf("event not found")
}

func (m *mockRepo) GetByUUIDs(ctx context.Context, uuids []string) ([]*Event, error) {
	var out []*Event
	for _, uid := range uuids {
		if ev, err := m.GetByUUID(ctx, uid); err == nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(ctx context.Context, ev *Event) error {
	if _, ok := m.events[ev.ID]; !ok {
		return fmt.Errorf("event not found")
	}
	m.events[ev.ID] = ev
	return nil
}

func (m *mockRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	ev, ok := m.events[id]
	if !ok {
		return fmt.Errorf("event not found")
	}
	ev.Deleted = true
	return nil
}

func (m *mockRepo) List(ctx context.Context, visibility jurisdiction.Expr, limit, offset int) ([]*Event, int, error) {
	var out []*Event
	for _, ev := range m.events {
		if ev.Deleted {
			continue
		}
		links := m.linkResolver(ev.ID)
		if jurisdiction.Eval(visibility, fieldsOf(ev), links) {
			out = append(out, ev)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) linkResolver(eventID uuid.UUID) jurisdiction.LinkResolver {
	return func(name, value string) bool {
		switch name {
		case jurisdiction.AssocSampleLab:
			for _, lab := range m.samplesByLab[eventID] {
				if lab == value {
					return true
				}
			}
		case jurisdiction.AssocCaseOrParticipantRegion, jurisdiction.AssocCaseOrParticipantDistrict:
			for _, p := range m.participants {
				if p.EventID != eventID {
					continue
				}
				if name == jurisdiction.AssocCaseOrParticipantRegion && p.RegionID != nil && p.RegionID.String() == value {
					return true
				}
				if name == jurisdiction.AssocCaseOrParticipantDistrict && p.DistrictID != nil && p.DistrictID.String() == value {
					return true
				}
			}
		}
		return false
	}
}

func (m *mockRepo) AddParticipant(ctx context.Context, p *Participant) error {
	p.ID = uuid.New()
	m.participants[p.ID] = p
	return nil
}

func (m *mockRepo) GetParticipants(ctx context.Context, eventID uuid.UUID) ([]*Participant, error) {
	var out []*Participant
	for _, p := range m.participants {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) RemoveParticipant(ctx context.Context, id uuid.UUID) error {
	delete(m.participants, id)
	return nil
}

func (m *mockRepo) HasSampleForLab(ctx context.Context, eventID uuid.UUID, labID string) (bool, error) {
	return m.linkResolver(eventID)(jurisdiction.AssocSampleLab, labID), nil
}

func (m *mockRepo) HasCaseOrParticipantIn(ctx context.Context, eventID uuid.UUID, orgField, orgID string) (bool, error) {
	name := jurisdiction.AssocCaseOrParticipantDistrict
	if orgField == jurisdiction.FieldRegion {
		name = jurisdiction.AssocCaseOrParticipantRegion
	}
	return m.linkResolver(eventID)(name, orgID), nil
}

type mockFacilities struct{}

func (mockFacilities) DistrictOfFacility(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error) {
	return nil, nil
}

type mockOwnership struct {
	editable map[uuid.UUID]bool
}

func (m *mockOwnership) Editable(ctx context.Context, originInfoID uuid.UUID) (bool, error) {
	return m.editable[originInfoID], nil
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, jurisdiction.NewBuilder(mockFacilities{}))
}

func nationUser() *user.User {
	return &user.User{ID: uuid.New(), Level: user.LevelNation}
}

func TestCreateEvent(t *testing.T) {
	svc := newTestService(newMockRepo())
	ev := &Event{Title: "Measles cluster at school", ReportingUserID: uuid.New()}
	if err := svc.CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Status != StatusSignal {
		t.Errorf("expected default status SIGNAL, got %s", ev.Status)
	}
	if ev.UUID == "" {
		t.Error("expected uuid to be assigned")
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	svc := newTestService(newMockRepo())

	if err := svc.CreateEvent(context.Background(), &Event{ReportingUserID: uuid.New()}); err == nil {
		t.Error("expected error for missing title")
	}
	if err := svc.CreateEvent(context.Background(), &Event{Title: "x"}); err == nil {
		t.Error("expected error for missing reporting user")
	}
	ev := &Event{Title: "x", ReportingUserID: uuid.New(), Status: "BOGUS"}
	if err := svc.CreateEvent(context.Background(), ev); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestListEvents_AppliesJurisdictionFilter(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	did := uuid.New()
	otherDistrict := uuid.New()
	reporter := uuid.New()

	inDistrict := &Event{Title: "in", ReportingUserID: reporter, DistrictID: &did}
	outside := &Event{Title: "out", ReportingUserID: reporter, DistrictID: &otherDistrict}
	repo.Create(context.Background(), inDistrict)
	repo.Create(context.Background(), outside)

	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, DistrictID: &did}
	events, total, err := svc.ListEvents(context.Background(), u, jurisdiction.Options{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(events) != 1 {
		t.Fatalf("expected 1 visible event, got %d", len(events))
	}
	if events[0].Title != "in" {
		t.Errorf("expected in-district event, got %s", events[0].Title)
	}
}

func TestListEvents_NationSeesAll(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	d1, d2 := uuid.New(), uuid.New()
	repo.Create(context.Background(), &Event{Title: "a", ReportingUserID: uuid.New(), DistrictID: &d1})
	repo.Create(context.Background(), &Event{Title: "b", ReportingUserID: uuid.New(), DistrictID: &d2})

	_, total, err := svc.ListEvents(context.Background(), nationUser(), jurisdiction.Options{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 events for nation user, got %d", total)
	}
}

func TestGetEvent_OutsideJurisdiction(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	otherDistrict := uuid.New()
	ev := &Event{Title: "x", ReportingUserID: uuid.New(), DistrictID: &otherDistrict}
	repo.Create(context.Background(), ev)

	did := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, DistrictID: &did}
	if _, err := svc.GetEvent(context.Background(), u, ev.ID); err == nil {
		t.Fatal("expected jurisdiction error")
	}
}

func TestGetEvent_LabUserViaSample(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	ev := &Event{Title: "x", ReportingUserID: uuid.New()}
	repo.Create(context.Background(), ev)
	lab := uuid.New()
	repo.samplesByLab[ev.ID] = []string{lab.String()}

	u := &user.User{ID: uuid.New(), Level: user.LevelLaboratory, LabID: &lab}
	got, err := svc.GetEvent(context.Background(), u, ev.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != ev.ID {
		t.Error("expected the event back")
	}
}

func TestUpdateEvent_ForeignOwnedRejected(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	originID := uuid.New()
	svc.SetOwnershipChecker(&mockOwnership{editable: map[uuid.UUID]bool{}})

	ev := &Event{Title: "x", ReportingUserID: uuid.New(), OriginInfoID: &originID}
	repo.Create(context.Background(), ev)

	if err := svc.UpdateEvent(context.Background(), nationUser(), ev); err == nil {
		t.Fatal("expected error for foreign-owned event")
	}
}

func TestUpdateEvent_HandedOverEditable(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	originID := uuid.New()
	svc.SetOwnershipChecker(&mockOwnership{editable: map[uuid.UUID]bool{originID: true}})

	ev := &Event{Title: "x", ReportingUserID: uuid.New(), OriginInfoID: &originID}
	repo.Create(context.Background(), ev)

	if err := svc.UpdateEvent(context.Background(), nationUser(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteEvent_SoftDeletes(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	ev := &Event{Title: "x", ReportingUserID: uuid.New()}
	repo.Create(context.Background(), ev)
	if err := svc.DeleteEvent(context.Background(), ev.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.events[ev.ID].Deleted {
		t.Error("expected event to be soft-deleted")
	}

	_, total, _ := svc.ListEvents(context.Background(), nationUser(), jurisdiction.Options{}, 20, 0)
	if total != 0 {
		t.Errorf("expected deleted event excluded from lists, got %d", total)
	}
}

func TestAddParticipant_Validation(t *testing.T) {
	svc := newTestService(newMockRepo())
	if err := svc.AddParticipant(context.Background(), &Participant{PersonName: "x"}); err == nil {
		t.Error("expected error for missing event id")
	}
	if err := svc.AddParticipant(context.Background(), &Participant{EventID: uuid.New()}); err == nil {
		t.Error("expected error for missing person name")
	}
}
