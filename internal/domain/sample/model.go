package sample

import (
	"time"

	"github.com/google/uuid"
)

const (
	PurposeExternal = "EXTERNAL"
	PurposeInternal = "INTERNAL"
)

const (
	ResultPending       = "PENDING"
	ResultPositive      = "POSITIVE"
	ResultNegative      = "NEGATIVE"
	ResultIndeterminate = "INDETERMINATE"
)

var validResults = map[string]bool{
	ResultPending:       true,
	ResultPositive:      true,
	ResultNegative:      true,
	ResultIndeterminate: true,
}

// Sample is a lab sample taken for a case or an event. Exactly one of
// CaseID and EventID is set.
type Sample struct {
	ID                 uuid.UUID  `json:"id"`
	UUID               string     `json:"uuid"`
	CaseID             *uuid.UUID `json:"case_id,omitempty"`
	EventID            *uuid.UUID `json:"event_id,omitempty"`
	LabID              uuid.UUID  `json:"lab_id"`
	Purpose            string     `json:"purpose"`
	PathogenTestResult string     `json:"pathogen_test_result"`
	ReportingUserID    uuid.UUID  `json:"reporting_user_id"`
	Deleted            bool       `json:"deleted"`
	OriginInfoID       *uuid.UUID `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
