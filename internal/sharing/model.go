// Package sharing implements the cross-instance share and handshake
// protocol: outgoing share requests, incoming request review, entity
// payload transfer, ownership handover, return and sync.
package sharing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusAccepted RequestStatus = "ACCEPTED"
	StatusRejected RequestStatus = "REJECTED"
)

// Entity kinds known to the share protocol.
const (
	KindCase    = "case"
	KindContact = "contact"
	KindEvent   = "event"
	KindSample  = "sample"
)

// Options drive one share operation towards one partner.
type Options struct {
	OrganizationID            string `json:"organization_id"`
	HandOverOwnership         bool   `json:"hand_over_ownership"`
	WithAssociatedContacts    bool   `json:"with_associated_contacts"`
	WithSamples               bool   `json:"with_samples"`
	WithEventParticipants     bool   `json:"with_event_participants"`
	PseudonymizePersonalData  bool   `json:"pseudonymize_personal_data"`
	PseudonymizeSensitiveData bool   `json:"pseudonymize_sensitive_data"`
	Comment                   string `json:"comment"`
}

// ShareInfo is the sender-side audit row for one entity shared with one
// partner. Rows are never deleted, only updated as the handshake moves.
type ShareInfo struct {
	ID                  uuid.UUID     `json:"id"`
	RequestUUID         string        `json:"request_uuid"`
	Kind                string        `json:"kind"`
	EntityUUID          string        `json:"entity_uuid"`
	TargetID            string        `json:"target_id"`
	Status              RequestStatus `json:"status"`
	OwnershipHandedOver bool          `json:"ownership_handed_over"`
	Options             Options       `json:"options"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// OriginInfo records, on the receiving side, which instance an entity
// came from and under which conditions.
type OriginInfo struct {
	ID                     uuid.UUID `json:"id"`
	SenderID               string    `json:"sender_id"`
	SenderName             string    `json:"sender_name"`
	OwnershipHandedOver    bool      `json:"ownership_handed_over"`
	WithAssociatedContacts bool      `json:"with_associated_contacts"`
	WithSamples            bool      `json:"with_samples"`
	WithEventParticipants  bool      `json:"with_event_participants"`
	Comment                string    `json:"comment"`
	CreatedAt              time.Time `json:"created_at"`
}

// Preview is the reviewable summary of one entity inside a share
// request, shown before any full data crosses the wire.
type Preview struct {
	Kind    string `json:"kind"`
	UUID    string `json:"uuid"`
	Caption string `json:"caption"`
	Disease string `json:"disease,omitempty"`
}

// ShareRequest is the receiver-side handshake row.
type ShareRequest struct {
	ID              uuid.UUID     `json:"id"`
	UUID            string        `json:"uuid"`
	Kind            string        `json:"kind"`
	Status          RequestStatus `json:"status"`
	OriginInfoID    uuid.UUID     `json:"origin_info_id"`
	Previews        []Preview     `json:"previews"`
	ResponseComment string        `json:"response_comment,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	RespondedAt     *time.Time    `json:"responded_at,omitempty"`
}

// Payload carries one full entity plus its shared associations. The
// entity body stays opaque to the protocol layer; the per-kind adapters
// marshal and unmarshal it.
type Payload struct {
	Kind         string            `json:"kind"`
	EntityUUID   string            `json:"entity_uuid"`
	Entity       json.RawMessage   `json:"entity"`
	Contacts     []json.RawMessage `json:"contacts,omitempty"`
	Samples      []json.RawMessage `json:"samples,omitempty"`
	Participants []json.RawMessage `json:"participants,omitempty"`
}

// RequestEnvelope is the wire body of an outgoing share request.
type RequestEnvelope struct {
	RequestUUID string     `json:"request_uuid"`
	Kind        string     `json:"kind"`
	Previews    []Preview  `json:"previews"`
	OriginInfo  OriginInfo `json:"origin_info"`
}

// PayloadEnvelope is the wire body of an entity transfer (share, accept
// data pull, return, sync).
type PayloadEnvelope struct {
	RequestUUID string     `json:"request_uuid,omitempty"`
	OriginInfo  OriginInfo `json:"origin_info"`
	Payloads    []Payload  `json:"payloads"`
}

// RequestReference names a request in notification bodies.
type RequestReference struct {
	RequestUUID string `json:"request_uuid"`
	Comment     string `json:"comment,omitempty"`
}
