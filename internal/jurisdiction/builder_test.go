package jurisdiction

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/user"
)

type mockFacilities struct {
	districts map[uuid.UUID]*uuid.UUID
}

func (m *mockFacilities) DistrictOfFacility(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error) {
	return m.districts[facilityID], nil
}

func testBuilder() *Builder {
	return NewBuilder(&mockFacilities{districts: make(map[uuid.UUID]*uuid.UUID)})
}

func mustFilter(t *testing.T, b *Builder, u *user.User, opts Options) Expr {
	t.Helper()
	f, err := b.UserFilter(context.Background(), u, opts)
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	return f
}

func TestUserFilter_NationUnrestricted(t *testing.T) {
	b := testBuilder()
	u := &user.User{ID: uuid.New(), Level: user.LevelNation}

	f := mustFilter(t, b, u, Options{})
	if f != nil {
		t.Fatalf("expected nil filter for nation user, got %#v", f)
	}
	if !Eval(f, Fields{}, nil) {
		t.Error("nil filter must grant access")
	}
}

func TestUserFilter_RESTUserUnrestricted(t *testing.T) {
	b := testBuilder()
	rid := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelRegion, RegionID: &rid, Roles: []user.Role{user.RoleRESTUser}}

	if f := mustFilter(t, b, u, Options{}); f != nil {
		t.Fatalf("expected nil filter for rest_user, got %#v", f)
	}
}

func TestUserFilter_RegionLevel(t *testing.T) {
	b := testBuilder()
	rid := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelRegion, RegionID: &rid}
	f := mustFilter(t, b, u, Options{})

	if !Eval(f, Fields{FieldRegion: rid.String()}, nil) {
		t.Error("expected record in user's region to be visible")
	}
	if Eval(f, Fields{FieldRegion: uuid.New().String()}, nil) {
		t.Error("expected record in other region to be hidden")
	}
}

func TestUserFilter_DistrictLevel(t *testing.T) {
	b := testBuilder()
	did := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, DistrictID: &did}
	f := mustFilter(t, b, u, Options{})

	if !Eval(f, Fields{FieldDistrict: did.String()}, nil) {
		t.Error("expected record in user's district to be visible")
	}
	if Eval(f, Fields{FieldDistrict: uuid.New().String()}, nil) {
		t.Error("expected record in other district to be hidden")
	}
}

func TestUserFilter_CommunityLevel(t *testing.T) {
	b := testBuilder()
	cid := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelCommunity, CommunityID: &cid}
	f := mustFilter(t, b, u, Options{})

	if !Eval(f, Fields{FieldCommunity: cid.String()}, nil) {
		t.Error("expected record in user's community to be visible")
	}
	if Eval(f, Fields{FieldCommunity: uuid.New().String()}, nil) {
		t.Error("expected record in other community to be hidden")
	}
}

func TestUserFilter_HealthFacilityUsesFacilityDistrict(t *testing.T) {
	fid := uuid.New()
	did := uuid.New()
	b := NewBuilder(&mockFacilities{districts: map[uuid.UUID]*uuid.UUID{fid: &did}})
	u := &user.User{ID: uuid.New(), Level: user.LevelHealthFacility, FacilityID: &fid}
	f := mustFilter(t, b, u, Options{})

	if !Eval(f, Fields{FieldDistrict: did.String()}, nil) {
		t.Error("expected record in facility's district to be visible")
	}
	if Eval(f, Fields{FieldDistrict: uuid.New().String()}, nil) {
		t.Error("expected record in other district to be hidden")
	}
}

func TestUserFilter_HealthFacilityWithLabSeesSampleLink(t *testing.T) {
	// A facility user who also carries a lab binding gets the lab's sample
	// clause in addition to the facility district clause.
	fid := uuid.New()
	did := uuid.New()
	lid := uuid.New()
	b := NewBuilder(&mockFacilities{districts: map[uuid.UUID]*uuid.UUID{fid: &did}})
	u := &user.User{ID: uuid.New(), Level: user.LevelHealthFacility, FacilityID: &fid, LabID: &lid}
	f := mustFilter(t, b, u, Options{})

	links := func(name, value string) bool {
		return name == AssocSampleLab && value == lid.String()
	}
	if !Eval(f, Fields{FieldDistrict: uuid.New().String()}, links) {
		t.Error("expected record linked through lab sample to be visible")
	}
}

func TestUserFilter_LaboratoryLevel(t *testing.T) {
	b := testBuilder()
	lid := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelLaboratory, LabID: &lid}
	f := mustFilter(t, b, u, Options{})

	sampleInLab := func(name, value string) bool {
		return name == AssocSampleLab && value == lid.String()
	}
	noLink := func(name, value string) bool { return false }

	if !Eval(f, Fields{}, sampleInLab) {
		t.Error("expected record with sample in user's lab to be visible")
	}
	if Eval(f, Fields{}, noLink) {
		t.Error("expected record without lab sample to be hidden")
	}
}

func TestUserFilter_MissingBindingSeesOnlyOwnRecords(t *testing.T) {
	// A level binding that is absent contributes no org-unit clause. The
	// user neither sees everything nor nothing: the ownership clause still
	// applies.
	b := testBuilder()
	uid := uuid.New()
	u := &user.User{ID: uid, Level: user.LevelDistrict}
	f := mustFilter(t, b, u, Options{})

	if f == nil {
		t.Fatal("expected non-nil filter")
	}
	if Eval(f, Fields{FieldDistrict: uuid.New().String()}, nil) {
		t.Error("expected foreign record to be hidden")
	}
	if !Eval(f, Fields{FieldReportingUser: uid.String()}, nil) {
		t.Error("expected user's own report to be visible")
	}
}

func TestUserFilter_OwnershipOverridesJurisdiction(t *testing.T) {
	b := testBuilder()
	did := uuid.New()
	uid := uuid.New()
	u := &user.User{ID: uid, Level: user.LevelDistrict, DistrictID: &did}
	f := mustFilter(t, b, u, Options{})

	outside := Fields{
		FieldDistrict:      uuid.New().String(),
		FieldReportingUser: uid.String(),
	}
	if !Eval(f, outside, nil) {
		t.Error("expected reported record outside jurisdiction to be visible")
	}

	responsible := Fields{
		FieldDistrict:        uuid.New().String(),
		FieldResponsibleUser: uid.String(),
	}
	if !Eval(f, responsible, nil) {
		t.Error("expected responsible record outside jurisdiction to be visible")
	}
}

func TestUserFilter_LimitedDisease(t *testing.T) {
	b := testBuilder()
	did := uuid.New()
	disease := "CHOLERA"
	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, DistrictID: &did, LimitedDisease: &disease}
	f := mustFilter(t, b, u, Options{})

	inDistrict := did.String()
	if !Eval(f, Fields{FieldDistrict: inDistrict, FieldDisease: "CHOLERA"}, nil) {
		t.Error("expected matching disease in district to be visible")
	}
	if Eval(f, Fields{FieldDistrict: inDistrict, FieldDisease: "MEASLES"}, nil) {
		t.Error("expected other disease to be hidden")
	}
	if !Eval(f, Fields{FieldDistrict: inDistrict}, nil) {
		t.Error("expected record without disease to stay visible")
	}
}

func TestUserFilter_LimitedDiseaseDoesNotNarrowOwnership(t *testing.T) {
	// The ownership clause is ORed in after the disease restriction, so
	// users keep seeing their own reports for any disease.
	b := testBuilder()
	did := uuid.New()
	uid := uuid.New()
	disease := "CHOLERA"
	u := &user.User{ID: uid, Level: user.LevelDistrict, DistrictID: &did, LimitedDisease: &disease}
	f := mustFilter(t, b, u, Options{})

	own := Fields{
		FieldDistrict:      uuid.New().String(),
		FieldDisease:       "MEASLES",
		FieldReportingUser: uid.String(),
	}
	if !Eval(f, own, nil) {
		t.Error("expected own report with other disease to be visible")
	}
}

func TestUserFilter_CaseAndParticipantOption(t *testing.T) {
	b := testBuilder()
	did := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, DistrictID: &did}

	without := mustFilter(t, b, u, Options{})
	with := mustFilter(t, b, u, Options{IncludeCaseAndParticipantFilter: true})

	links := func(name, value string) bool {
		return name == AssocCaseOrParticipantDistrict && value == did.String()
	}
	outside := Fields{FieldDistrict: uuid.New().String()}

	if Eval(without, outside, links) {
		t.Error("expected participant link to be ignored without the option")
	}
	if !Eval(with, outside, links) {
		t.Error("expected participant link to grant visibility with the option")
	}
}

func TestUserFilter_LimitedDiseaseDoesNotNarrowParticipantLink(t *testing.T) {
	// The case/participant clause widens the filter after the disease
	// restriction. An event in another district with a different disease
	// stays visible when one of its participants lives in the user's
	// district.
	b := testBuilder()
	did := uuid.New()
	disease := "CHOLERA"
	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, DistrictID: &did, LimitedDisease: &disease}
	f := mustFilter(t, b, u, Options{IncludeCaseAndParticipantFilter: true})

	links := func(name, value string) bool {
		return name == AssocCaseOrParticipantDistrict && value == did.String()
	}
	otherDisease := Fields{
		FieldDistrict: uuid.New().String(),
		FieldDisease:  "MEASLES",
	}
	if !Eval(f, otherDisease, links) {
		t.Error("expected participant-linked record with other disease to stay visible")
	}

	// Inside the district the disease restriction still applies.
	noLink := func(name, value string) bool { return false }
	inDistrict := Fields{
		FieldDistrict: did.String(),
		FieldDisease:  "MEASLES",
	}
	if Eval(f, inDistrict, noLink) {
		t.Error("expected unlinked record with other disease to stay hidden")
	}
}

func TestUserFilter_ForceRegionJurisdiction(t *testing.T) {
	b := testBuilder()
	rid := uuid.New()
	did := uuid.New()
	u := &user.User{ID: uuid.New(), Level: user.LevelDistrict, DistrictID: &did, RegionID: &rid}

	f := mustFilter(t, b, u, Options{ForceRegionJurisdiction: true})

	elsewhereInRegion := Fields{
		FieldRegion:   rid.String(),
		FieldDistrict: uuid.New().String(),
	}
	if !Eval(f, elsewhereInRegion, nil) {
		t.Error("expected region-wide visibility when forced")
	}

	outsideRegion := Fields{
		FieldRegion:   uuid.New().String(),
		FieldDistrict: uuid.New().String(),
	}
	if Eval(f, outsideRegion, nil) {
		t.Error("expected record outside region to stay hidden")
	}
}

func TestUserFilter_NilUser(t *testing.T) {
	b := testBuilder()
	if _, err := b.UserFilter(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil user")
	}
}
