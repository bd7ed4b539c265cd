package facility

import (
	"time"

	"github.com/google/uuid"
)

// Facility types. Laboratories are facilities too; lab users are scoped to
// one of them instead of a geographic area.
const (
	TypeHealthFacility = "HEALTH_FACILITY"
	TypeLaboratory     = "LABORATORY"
)

// Facility maps to the facility table.
type Facility struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UUID        string     `db:"uuid" json:"uuid"`
	Name        string     `db:"name" json:"name"`
	Type        string     `db:"type" json:"type"`
	RegionID    *uuid.UUID `db:"region_id" json:"region_id,omitempty"`
	DistrictID  *uuid.UUID `db:"district_id" json:"district_id,omitempty"`
	CommunityID *uuid.UUID `db:"community_id" json:"community_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

var validTypes = map[string]bool{
	TypeHealthFacility: true,
	TypeLaboratory:     true,
}
