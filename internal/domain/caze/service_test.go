package caze

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/user"
	"github.com/epishare/epishare/internal/jurisdiction"
)

type mockRepo struct {
	cases        map[uuid.UUID]*Case
	contacts     map[uuid.UUID]*Contact
	samplesByLab map[uuid.UUID][]string // case id -> lab ids with samples
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		cases:        make(map[uuid.UUID]*Case),
		contacts:     make(map[uuid.UUID]*Contact),
		samplesByLab: make(map[uuid.UUID][]string),
	}
}

func (m *mockRepo) Create(ctx context.Context, cs *Case) error {
	cs.ID = uuid.New()
	if cs.UUID == "" {
		cs.UUID = cs.ID.String()
	}
	m.cases[cs.ID] = cs
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	cs, ok := m.cases[id]
	if !ok {
		return nil, fmt.Errorf("case not found")
	}
	return cs, nil
}

func (m *mockRepo) GetByUUID(ctx context.Context, uid string) (*Case, error) {
	for _, cs := range m.cases {
		if cs.UUID == uid {
			return cs, nil
		}
	}
	return nil, fmt.Errorf("case not found")
}

func (m *mockRepo) GetByUUIDs(ctx context.Context, uuids []string) ([]*Case, error) {
	var out []*Case
	for _, uid := range uuids {
		if cs, err := m.GetByUUID(ctx, uid); err == nil {
			out = append(out, cs)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(ctx context.Context, cs *Case) error {
	if _, ok := m.cases[cs.ID]; !ok {
		return fmt.Errorf("case not found")
	}
	m.cases[cs.ID] = cs
	return nil
}

func (m *mockRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	cs, ok := m.cases[id]
	if !ok {
		return fmt.Errorf("case not found")
	}
	cs.Deleted = true
	return nil
}

func (m *mockRepo) List(ctx context.Context, visibility jurisdiction.Expr, limit, offset int) ([]*Case, int, error) {
	var out []*Case
	for _, cs := range m.cases {
		if cs.Deleted {
			continue
		}
		if jurisdiction.Eval(visibility, fieldsOf(cs), m.linkResolver(cs.ID)) {
			out = append(out, cs)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) linkResolver(caseID uuid.UUID) jurisdiction.LinkResolver {
	return func(name, value string) bool {
		if name != jurisdiction.AssocSampleLab {
			return false
		}
		for _, lab := range m.samplesByLab[caseID] {
			if lab == value {
				return true
			}
		}
		return false
	}
}

func (m *mockRepo) AddContact(ctx context.Context, ct *Contact) error {
	ct.ID = uuid.New()
	m.contacts[ct.ID] = ct
	return nil
}

func (m *mockRepo) GetContacts(ctx context.Context, caseID uuid.UUID) ([]*Contact, error) {
	var out []*Contact
	for _, ct := range m.contacts {
		if ct.CaseID == caseID {
			out = append(out, ct)
		}
	}
	return out, nil
}

func (m *mockRepo) GetContactByUUID(ctx context.Context, uid string) (*Contact, error) {
	for _, ct := range m.contacts {
		if ct.UUID == uid {
			return ct, nil
		}
	}
	return nil, fmt.Errorf("contact not found")
}

func (m *mockRepo) UpdateContact(ctx context.Context, ct *Contact) error {
	if _, ok := m.contacts[ct.ID]; !ok {
		return fmt.Errorf("contact not found")
	}
	m.contacts[ct.ID] = ct
	return nil
}

func (m *mockRepo) RemoveContact(ctx context.Context, id uuid.UUID) error {
	delete(m.contacts, id)
	return nil
}

func (m *mockRepo) HasSampleForLab(ctx context.Context, caseID uuid.UUID, labID string) (bool, error) {
	return m.linkResolver(caseID)(jurisdiction.AssocSampleLab, labID), nil
}

type mockFacilities struct {
	districts map[uuid.UUID]uuid.UUID
}

func (m mockFacilities) DistrictOfFacility(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error) {
	if d, ok := m.districts[facilityID]; ok {
		return &d, nil
	}
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

func mustCreate(t *testing.T, svc *Service, cs *Case) *Case {
	t.Helper()
	if err := svc.CreateCase(context.Background(), cs); err != nil {
		t.Fatalf("create case: %v", err)
	}
	return cs
}

func TestCreateCase(t *testing.T) {
	svc := newTestService(newMockRepo())
	cs := &Case{Disease: "CHOLERA", PersonName: "Adaeze Obi", ReportingUserID: uuid.New()}
	if err := svc.CreateCase(context.Background(), cs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.Classification != ClassificationNotClassified {
		t.Errorf("expected default classification, got %s", cs.Classification)
	}
	if cs.UUID == "" {
		t.Error("expected generated uuid")
	}
}

func TestCreateCase_Validation(t *testing.T) {
	svc := newTestService(newMockRepo())
	tests := []struct {
		name string
		cs   *Case
	}{
		{"missing disease", &Case{PersonName: "A", ReportingUserID: uuid.New()}},
		{"missing person name", &Case{Disease: "CHOLERA", ReportingUserID: uuid.New()}},
		{"missing reporting user", &Case{Disease: "CHOLERA", PersonName: "A"}},
		{"bad classification", &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New(), Classification: "GUESSED"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateCase(context.Background(), tt.cs); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestListCases_DistrictFilter(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	region := uuid.New()
	inside := uuid.New()
	outside := uuid.New()

	mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New(), RegionID: &region, DistrictID: &inside})
	mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "B", ReportingUserID: uuid.New(), RegionID: &region, DistrictID: &outside})

	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, RegionID: &region, DistrictID: &inside}
	cases, total, err := svc.ListCases(context.Background(), u, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(cases) != 1 {
		t.Fatalf("expected 1 visible case, got %d", total)
	}
	if *cases[0].DistrictID != inside {
		t.Error("wrong case visible")
	}
}

func TestListCases_NationSeesAll(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	d1, d2 := uuid.New(), uuid.New()
	mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New(), DistrictID: &d1})
	mustCreate(t, svc, &Case{Disease: "MEASLES", PersonName: "B", ReportingUserID: uuid.New(), DistrictID: &d2})

	u := &user.User{ID: uuid.New(), Level: user.LevelNation}
	_, total, err := svc.ListCases(context.Background(), u, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 visible cases, got %d", total)
	}
}

func TestListCases_LimitedDisease(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	district := uuid.New()
	mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New(), DistrictID: &district})
	mustCreate(t, svc, &Case{Disease: "MEASLES", PersonName: "B", ReportingUserID: uuid.New(), DistrictID: &district})

	cholera := "CHOLERA"
	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, RegionID: nil, DistrictID: &district, LimitedDisease: &cholera}
	cases, total, err := svc.ListCases(context.Background(), u, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 visible case, got %d", total)
	}
	if cases[0].Disease != "CHOLERA" {
		t.Errorf("expected CHOLERA case, got %s", cases[0].Disease)
	}
}

func TestGetCase_OutsideJurisdiction(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	other := uuid.New()
	cs := mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New(), DistrictID: &other})

	mine := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, DistrictID: &mine}
	if _, err := svc.GetCase(context.Background(), u, cs.ID); err == nil {
		t.Error("expected jurisdiction error")
	}
}

func TestGetCase_LabUserViaSample(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	lab := uuid.New()
	cs := mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New()})
	repo.samplesByLab[cs.ID] = []string{lab.String()}

	u := &user.User{ID: uuid.New(), Level: user.LevelLaboratory, LabID: &lab}
	got, err := svc.GetCase(context.Background(), u, cs.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != cs.ID {
		t.Error("wrong case returned")
	}
}

func TestUpdateCase_ForeignOwned(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	origin := uuid.New()
	svc.SetOwnershipChecker(&mockOwnership{editable: map[uuid.UUID]bool{}})

	cs := mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New(), OriginInfoID: &origin})

	u := &user.User{ID: uuid.New(), Level: user.LevelNation}
	cs.Classification = ClassificationConfirmed
	if err := svc.UpdateCase(context.Background(), u, cs); err == nil {
		t.Error("expected ownership error")
	}
}

func TestUpdateCase_HandedOver(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	origin := uuid.New()
	svc.SetOwnershipChecker(&mockOwnership{editable: map[uuid.UUID]bool{origin: true}})

	cs := mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New(), OriginInfoID: &origin})

	u := &user.User{ID: uuid.New(), Level: user.LevelNation}
	cs.Classification = ClassificationConfirmed
	if err := svc.UpdateCase(context.Background(), u, cs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteCase_ExcludedFromList(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	cs := mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New()})
	if err := svc.DeleteCase(context.Background(), cs.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := &user.User{ID: uuid.New(), Level: user.LevelNation}
	_, total, err := svc.ListCases(context.Background(), u, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 {
		t.Errorf("expected deleted case excluded, got %d", total)
	}
}

func TestAddContact_Validation(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	if err := svc.AddContact(context.Background(), &Contact{PersonName: "A"}); err == nil {
		t.Error("expected error for missing case id")
	}
	if err := svc.AddContact(context.Background(), &Contact{CaseID: uuid.New()}); err == nil {
		t.Error("expected error for missing person name")
	}

	cs := mustCreate(t, svc, &Case{Disease: "CHOLERA", PersonName: "A", ReportingUserID: uuid.New()})
	ct := &Contact{CaseID: cs.ID, PersonName: "Ngozi Eze"}
	if err := svc.AddContact(context.Background(), ct); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.GetContacts(context.Background(), cs.ID)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 contact, got %d (err %v)", len(got), err)
	}
}
