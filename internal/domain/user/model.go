package user

import (
	"time"

	"github.com/google/uuid"
)

// JurisdictionLevel is the organizational level a user works at. It decides
// which slice of the surveillance data the user can see.
type JurisdictionLevel string

const (
	LevelNone           JurisdictionLevel = "NONE"
	LevelNation         JurisdictionLevel = "NATION"
	LevelRegion         JurisdictionLevel = "REGION"
	LevelDistrict       JurisdictionLevel = "DISTRICT"
	LevelCommunity      JurisdictionLevel = "COMMUNITY"
	LevelHealthFacility JurisdictionLevel = "HEALTH_FACILITY"
	LevelLaboratory     JurisdictionLevel = "LABORATORY"
)

// ValidLevels enumerates the accepted jurisdiction levels.
var ValidLevels = map[JurisdictionLevel]bool{
	LevelNone:           true,
	LevelNation:         true,
	LevelRegion:         true,
	LevelDistrict:       true,
	LevelCommunity:      true,
	LevelHealthFacility: true,
	LevelLaboratory:     true,
}

type Role string

const (
	RoleAdmin               Role = "admin"
	RoleSurveillanceOfficer Role = "surveillance_officer"
	RoleContactOfficer      Role = "contact_officer"
	RoleLabUser             Role = "lab_user"
	// RoleRESTUser marks machine accounts used by integrations. They bypass
	// jurisdiction filtering entirely.
	RoleRESTUser Role = "rest_user"
)

// User maps to the app_user table.
type User struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	UserName       string            `db:"user_name" json:"user_name"`
	FirstName      string            `db:"first_name" json:"first_name"`
	LastName       string            `db:"last_name" json:"last_name"`
	Level          JurisdictionLevel `db:"jurisdiction_level" json:"jurisdiction_level"`
	RegionID       *uuid.UUID        `db:"region_id" json:"region_id,omitempty"`
	DistrictID     *uuid.UUID        `db:"district_id" json:"district_id,omitempty"`
	CommunityID    *uuid.UUID        `db:"community_id" json:"community_id,omitempty"`
	FacilityID     *uuid.UUID        `db:"facility_id" json:"facility_id,omitempty"`
	LabID          *uuid.UUID        `db:"lab_id" json:"lab_id,omitempty"`
	LimitedDisease *string           `db:"limited_disease" json:"limited_disease,omitempty"`
	Roles          []Role            `db:"roles" json:"roles"`
	Active         bool              `db:"active" json:"active"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(r Role) bool {
	for _, role := range u.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// RoleStrings returns the roles as plain strings for token claims.
func (u *User) RoleStrings() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = string(r)
	}
	return out
}
