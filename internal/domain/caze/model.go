package caze

import (
	"time"

	"github.com/google/uuid"
)

// Case classification values.
const (
	ClassificationNotClassified = "NOT_CLASSIFIED"
	ClassificationSuspect       = "SUSPECT"
	ClassificationProbable      = "PROBABLE"
	ClassificationConfirmed     = "CONFIRMED"
	ClassificationNoCase        = "NO_CASE"
)

// Case maps to the surveillance_case table.
type Case struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	UUID              string     `db:"uuid" json:"uuid"`
	Disease           string     `db:"disease" json:"disease"`
	Classification    string     `db:"classification" json:"classification"`
	PersonName        string     `db:"person_name" json:"person_name"`
	RegionID          *uuid.UUID `db:"region_id" json:"region_id,omitempty"`
	DistrictID        *uuid.UUID `db:"district_id" json:"district_id,omitempty"`
	CommunityID       *uuid.UUID `db:"community_id" json:"community_id,omitempty"`
	FacilityID        *uuid.UUID `db:"facility_id" json:"facility_id,omitempty"`
	ReportingUserID   uuid.UUID  `db:"reporting_user_id" json:"reporting_user_id"`
	ResponsibleUserID *uuid.UUID `db:"responsible_user_id" json:"responsible_user_id,omitempty"`
	Archived          bool       `db:"archived" json:"archived"`
	Deleted           bool       `db:"deleted" json:"deleted"`
	OriginInfoID      *uuid.UUID `db:"origin_info_id" json:"origin_info_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Contact maps to the contact table. Contacts always hang off a case and
// travel with it when the case is shared with associated contacts enabled.
type Contact struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	UUID       string     `db:"uuid" json:"uuid"`
	CaseID     uuid.UUID  `db:"case_id" json:"case_id"`
	PersonName string     `db:"person_name" json:"person_name"`
	RegionID   *uuid.UUID `db:"region_id" json:"region_id,omitempty"`
	DistrictID *uuid.UUID `db:"district_id" json:"district_id,omitempty"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

var validClassifications = map[string]bool{
	ClassificationNotClassified: true,
	ClassificationSuspect:       true,
	ClassificationProbable:      true,
	ClassificationConfirmed:     true,
	ClassificationNoCase:        true,
}
