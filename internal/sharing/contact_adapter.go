package sharing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/caze"
)

// ContactAdapter wires standalone contact shares into the protocol.
// Contacts always hang off a case, so the parent case must already
// exist on the receiving instance; it is matched by uuid and the local
// row id is substituted. A contact carries no origin row of its own,
// ownership follows the parent case.
type ContactAdapter struct {
	cases caze.Repository
}

func NewContactAdapter(cases caze.Repository) *ContactAdapter {
	return &ContactAdapter{cases: cases}
}

func (a *ContactAdapter) Capabilities() Capabilities {
	return Capabilities{Gateway: a, Builder: a, Processor: a, Persister: a}
}

func (a *ContactAdapter) Exists(ctx context.Context, entityUUID string) (bool, error) {
	_, err := a.cases.GetContactByUUID(ctx, entityUUID)
	if err != nil {
		if notFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *ContactAdapter) OriginInfoOf(ctx context.Context, entityUUID string) (*uuid.UUID, error) {
	ct, err := a.cases.GetContactByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	cs, err := a.cases.GetByID(ctx, ct.CaseID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent case: %w", err)
	}
	return cs.OriginInfoID, nil
}

func (a *ContactAdapter) BuildPreview(ctx context.Context, entityUUID string) (*Preview, error) {
	ct, err := a.cases.GetContactByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	cs, err := a.cases.GetByID(ctx, ct.CaseID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent case: %w", err)
	}
	return &Preview{
		Kind:    KindContact,
		UUID:    ct.UUID,
		Caption: ct.PersonName,
		Disease: cs.Disease,
	}, nil
}

func (a *ContactAdapter) BuildPayload(ctx context.Context, entityUUID string, opts Options) (*Payload, error) {
	ct, err := a.cases.GetContactByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	cs, err := a.cases.GetByID(ctx, ct.CaseID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent case: %w", err)
	}
	// The parent travels by uuid, not by local row id.
	wc := wireContact{Contact: *ct, CaseUUID: cs.UUID}
	wc.Contact.CaseID = uuid.Nil
	if opts.PseudonymizePersonalData {
		wc.Contact.PersonName = ""
	}
	entity, err := json.Marshal(&wc)
	if err != nil {
		return nil, err
	}
	return &Payload{Kind: KindContact, EntityUUID: ct.UUID, Entity: entity}, nil
}

// wireContact is Contact plus the parent case uuid used on the wire.
type wireContact struct {
	caze.Contact
	CaseUUID string `json:"case_uuid"`
}

func (a *ContactAdapter) ValidatePreview(ctx context.Context, p Preview) []string {
	var msgs []string
	if p.UUID == "" {
		msgs = append(msgs, "uuid is missing")
	}
	if p.UUID != "" {
		if exists, err := a.Exists(ctx, p.UUID); err == nil && exists {
			msgs = append(msgs, "a contact with this uuid already exists")
		}
	}
	return msgs
}

func (a *ContactAdapter) ValidatePayload(ctx context.Context, pl Payload) []string {
	var msgs []string
	var wc wireContact
	if err := json.Unmarshal(pl.Entity, &wc); err != nil {
		return []string{fmt.Sprintf("malformed contact body: %v", err)}
	}
	if wc.UUID == "" || wc.UUID != pl.EntityUUID {
		msgs = append(msgs, "contact uuid does not match the payload")
	}
	if wc.CaseUUID == "" {
		msgs = append(msgs, "contact names no parent case")
	} else if _, err := a.cases.GetByUUID(ctx, wc.CaseUUID); err != nil {
		msgs = append(msgs, fmt.Sprintf("parent case %s is not known here", wc.CaseUUID))
	}
	return msgs
}

func (a *ContactAdapter) PersistShared(ctx context.Context, pl Payload, originInfoID uuid.UUID) error {
	return a.persist(ctx, pl)
}

func (a *ContactAdapter) PersistReturned(ctx context.Context, pl Payload) error {
	return a.persist(ctx, pl)
}

func (a *ContactAdapter) PersistSynced(ctx context.Context, pl Payload) error {
	return a.persist(ctx, pl)
}

func (a *ContactAdapter) persist(ctx context.Context, pl Payload) error {
	var wc wireContact
	if err := json.Unmarshal(pl.Entity, &wc); err != nil {
		return err
	}
	parent, err := a.cases.GetByUUID(ctx, wc.CaseUUID)
	if err != nil {
		return fmt.Errorf("resolve parent case %s: %w", wc.CaseUUID, err)
	}
	incoming := wc.Contact
	incoming.CaseID = parent.ID

	existing, err := a.cases.GetContactByUUID(ctx, incoming.UUID)
	switch {
	case err == nil:
		incoming.ID = existing.ID
		return a.cases.UpdateContact(ctx, &incoming)
	case notFound(err):
		incoming.ID = uuid.Nil
		return a.cases.AddContact(ctx, &incoming)
	default:
		return err
	}
}
