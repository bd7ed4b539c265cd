package event

import (
	"time"

	"github.com/google/uuid"
)

// Event statuses follow the surveillance workflow from first signal to
// confirmed cluster.
const (
	StatusSignal    = "SIGNAL"
	StatusEvent     = "EVENT"
	StatusScreening = "SCREENING"
	StatusCluster   = "CLUSTER"
	StatusDropped   = "DROPPED"
)

// Event maps to the event table.
type Event struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	UUID              string     `db:"uuid" json:"uuid"`
	Status            string     `db:"status" json:"status"`
	Title             string     `db:"title" json:"title"`
	Disease           *string    `db:"disease" json:"disease,omitempty"`
	RegionID          *uuid.UUID `db:"region_id" json:"region_id,omitempty"`
	DistrictID        *uuid.UUID `db:"district_id" json:"district_id,omitempty"`
	CommunityID       *uuid.UUID `db:"community_id" json:"community_id,omitempty"`
	ReportingUserID   uuid.UUID  `db:"reporting_user_id" json:"reporting_user_id"`
	ResponsibleUserID *uuid.UUID `db:"responsible_user_id" json:"responsible_user_id,omitempty"`
	Archived          bool       `db:"archived" json:"archived"`
	Deleted           bool       `db:"deleted" json:"deleted"`
	OriginInfoID      *uuid.UUID `db:"origin_info_id" json:"origin_info_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Participant maps to the event_participant table.
type Participant struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UUID            string     `db:"uuid" json:"uuid"`
	EventID         uuid.UUID  `db:"event_id" json:"event_id"`
	PersonName      string     `db:"person_name" json:"person_name"`
	RegionID        *uuid.UUID `db:"region_id" json:"region_id,omitempty"`
	DistrictID      *uuid.UUID `db:"district_id" json:"district_id,omitempty"`
	ResultingCaseID *uuid.UUID `db:"resulting_case_id" json:"resulting_case_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
