package jurisdiction

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/user"
)

// Field names understood by entity SQL contexts.
const (
	FieldRegion          = "region"
	FieldDistrict        = "district"
	FieldCommunity       = "community"
	FieldDisease         = "disease"
	FieldReportingUser   = "reportingUser"
	FieldResponsibleUser = "responsibleUser"
)

// Association names for Linked predicates.
const (
	AssocSampleLab                 = "sampleLab"
	AssocCaseOrParticipantRegion   = "caseOrParticipantRegion"
	AssocCaseOrParticipantDistrict = "caseOrParticipantDistrict"
)

// Options tune the generated filter.
type Options struct {
	// IncludeCaseAndParticipantFilter additionally grants visibility of
	// records reachable through a resulting case or a participant living
	// in the user's org unit.
	IncludeCaseAndParticipantFilter bool
	// ForceRegionJurisdiction widens any user with a region binding to
	// region scope, regardless of their actual level.
	ForceRegionJurisdiction bool
}

// FacilityLookup resolves the district a health facility belongs to.
type FacilityLookup interface {
	DistrictOfFacility(ctx context.Context, facilityID uuid.UUID) (*uuid.UUID, error)
}

// Builder assembles visibility predicates for users.
type Builder struct {
	facilities FacilityLookup
}

func NewBuilder(facilities FacilityLookup) *Builder {
	return &Builder{facilities: facilities}
}

// UserFilter builds the visibility predicate for one user. A nil result
// means the user sees everything.
//
// The shape of the filter is: org-unit clauses for the user's level, ORed
// together, then optionally narrowed to the user's limited disease, then
// widened by the case/participant links and the ownership clause, neither
// of which the disease restriction touches. A user whose binding for
// their own level is missing gets no org-unit clause at that level; they
// keep only the ownership clause.
func (b *Builder) UserFilter(ctx context.Context, u *user.User, opts Options) (Expr, error) {
	if u == nil {
		return nil, fmt.Errorf("user is required")
	}
	if u.Level == user.LevelNation || u.HasRole(user.RoleRESTUser) {
		return nil, nil
	}

	var filter Expr

	switch u.Level {
	case user.LevelRegion:
		if u.RegionID != nil {
			filter = NewOr(filter, FieldEq{Field: FieldRegion, Value: u.RegionID.String()})
		}

	case user.LevelDistrict:
		if u.DistrictID != nil {
			filter = NewOr(filter, FieldEq{Field: FieldDistrict, Value: u.DistrictID.String()})
		}

	case user.LevelCommunity:
		if u.CommunityID != nil {
			filter = NewOr(filter, FieldEq{Field: FieldCommunity, Value: u.CommunityID.String()})
		}

	case user.LevelHealthFacility:
		if u.FacilityID != nil {
			district, err := b.facilities.DistrictOfFacility(ctx, *u.FacilityID)
			if err != nil {
				return nil, fmt.Errorf("resolve facility district: %w", err)
			}
			if district != nil {
				filter = NewOr(filter, FieldEq{Field: FieldDistrict, Value: district.String()})
			}
		}
		// Facility users also see records their lab touched, matching the
		// historical behavior of the laboratory level below.
		fallthrough

	case user.LevelLaboratory:
		if u.LabID != nil {
			filter = NewOr(filter, Linked{Name: AssocSampleLab, Value: u.LabID.String()})
		}
	}

	// The disease restriction narrows only the org-unit scope. Records
	// without a disease stay visible.
	if filter != nil && u.LimitedDisease != nil {
		filter = NewAnd(filter, NewOr(
			FieldEq{Field: FieldDisease, Value: *u.LimitedDisease},
			FieldIsNull{Field: FieldDisease},
		))
	}

	// Records reachable through a resulting case or participant are ORed in
	// after the disease restriction, so the user keeps them even when the
	// record's own disease differs.
	if opts.IncludeCaseAndParticipantFilter {
		switch u.Level {
		case user.LevelRegion:
			if u.RegionID != nil {
				filter = NewOr(filter, Linked{Name: AssocCaseOrParticipantRegion, Value: u.RegionID.String()})
			}
		case user.LevelDistrict:
			if u.DistrictID != nil {
				filter = NewOr(filter, Linked{Name: AssocCaseOrParticipantDistrict, Value: u.DistrictID.String()})
			}
		}
	}

	filter = NewOr(filter,
		FieldEq{Field: FieldReportingUser, Value: u.ID.String()},
		FieldEq{Field: FieldResponsibleUser, Value: u.ID.String()},
	)

	if opts.ForceRegionJurisdiction && u.RegionID != nil {
		filter = NewOr(filter, FieldEq{Field: FieldRegion, Value: u.RegionID.String()})
	}

	return filter, nil
}
