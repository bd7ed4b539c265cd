package sharing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/epishare/epishare/internal/domain/caze"
	"github.com/epishare/epishare/internal/domain/sample"
)

// CaseAdapter wires surveillance cases into the share protocol.
type CaseAdapter struct {
	cases   caze.Repository
	samples sample.Repository
}

func NewCaseAdapter(cases caze.Repository, samples sample.Repository) *CaseAdapter {
	return &CaseAdapter{cases: cases, samples: samples}
}

// Capabilities returns the adapter in all four protocol roles.
func (a *CaseAdapter) Capabilities() Capabilities {
	return Capabilities{Gateway: a, Builder: a, Processor: a, Persister: a}
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (a *CaseAdapter) Exists(ctx context.Context, entityUUID string) (bool, error) {
	_, err := a.cases.GetByUUID(ctx, entityUUID)
	if err != nil {
		if notFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *CaseAdapter) OriginInfoOf(ctx context.Context, entityUUID string) (*uuid.UUID, error) {
	cs, err := a.cases.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	return cs.OriginInfoID, nil
}

func (a *CaseAdapter) BuildPreview(ctx context.Context, entityUUID string) (*Preview, error) {
	cs, err := a.cases.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Kind:    KindCase,
		UUID:    cs.UUID,
		Caption: cs.PersonName,
		Disease: cs.Disease,
	}, nil
}

func (a *CaseAdapter) BuildPayload(ctx context.Context, entityUUID string, opts Options) (*Payload, error) {
	cs, err := a.cases.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}

	out := *cs
	if opts.PseudonymizePersonalData {
		out.PersonName = ""
	}
	entity, err := json.Marshal(&out)
	if err != nil {
		return nil, err
	}
	pl := &Payload{Kind: KindCase, EntityUUID: cs.UUID, Entity: entity}

	if opts.WithAssociatedContacts {
		contacts, err := a.cases.GetContacts(ctx, cs.ID)
		if err != nil {
			return nil, err
		}
		for _, ct := range contacts {
			c := *ct
			if opts.PseudonymizePersonalData {
				c.PersonName = ""
			}
			raw, err := json.Marshal(&c)
			if err != nil {
				return nil, err
			}
			pl.Contacts = append(pl.Contacts, raw)
		}
	}

	if opts.WithSamples {
		samples, err := a.samples.ListByCase(ctx, cs.ID)
		if err != nil {
			return nil, err
		}
		for _, sm := range samples {
			raw, err := json.Marshal(sm)
			if err != nil {
				return nil, err
			}
			pl.Samples = append(pl.Samples, raw)
		}
	}
	return pl, nil
}

func (a *CaseAdapter) ValidatePreview(ctx context.Context, p Preview) []string {
	var msgs []string
	if p.UUID == "" {
		msgs = append(msgs, "uuid is missing")
	}
	if p.Disease == "" {
		msgs = append(msgs, "disease is missing")
	}
	if p.UUID != "" {
		if exists, err := a.Exists(ctx, p.UUID); err == nil && exists {
			msgs = append(msgs, "a case with this uuid already exists")
		}
	}
	return msgs
}

func (a *CaseAdapter) ValidatePayload(ctx context.Context, pl Payload) []string {
	var msgs []string
	var cs caze.Case
	if err := json.Unmarshal(pl.Entity, &cs); err != nil {
		return []string{fmt.Sprintf("malformed case body: %v", err)}
	}
	if cs.UUID == "" || cs.UUID != pl.EntityUUID {
		msgs = append(msgs, "case uuid does not match the payload")
	}
	if cs.Disease == "" {
		msgs = append(msgs, "disease is missing")
	}
	for i, raw := range pl.Contacts {
		var ct caze.Contact
		if err := json.Unmarshal(raw, &ct); err != nil {
			msgs = append(msgs, fmt.Sprintf("malformed contact %d: %v", i, err))
		}
	}
	for i, raw := range pl.Samples {
		var sm sample.Sample
		if err := json.Unmarshal(raw, &sm); err != nil {
			msgs = append(msgs, fmt.Sprintf("malformed sample %d: %v", i, err))
		}
	}
	return msgs
}

func (a *CaseAdapter) PersistShared(ctx context.Context, pl Payload, originInfoID uuid.UUID) error {
	return a.persist(ctx, pl, &originInfoID)
}

func (a *CaseAdapter) PersistReturned(ctx context.Context, pl Payload) error {
	return a.persist(ctx, pl, nil)
}

func (a *CaseAdapter) PersistSynced(ctx context.Context, pl Payload) error {
	return a.persist(ctx, pl, nil)
}

// persist inserts or merges the case by uuid. A non-nil originInfoID
// marks the stored case as received from that origin; nil keeps
// whatever the local row already has.
func (a *CaseAdapter) persist(ctx context.Context, pl Payload, originInfoID *uuid.UUID) error {
	var incoming caze.Case
	if err := json.Unmarshal(pl.Entity, &incoming); err != nil {
		return err
	}

	existing, err := a.cases.GetByUUID(ctx, incoming.UUID)
	switch {
	case err == nil:
		incoming.ID = existing.ID
		if originInfoID != nil {
			incoming.OriginInfoID = originInfoID
		} else {
			incoming.OriginInfoID = existing.OriginInfoID
		}
		if err := a.cases.Update(ctx, &incoming); err != nil {
			return err
		}
	case notFound(err):
		incoming.ID = uuid.Nil
		incoming.OriginInfoID = originInfoID
		if err := a.cases.Create(ctx, &incoming); err != nil {
			return err
		}
	default:
		return err
	}

	if err := a.persistContacts(ctx, incoming.ID, pl.Contacts); err != nil {
		return err
	}
	return a.persistSamples(ctx, incoming.ID, pl.Samples, originInfoID)
}

func (a *CaseAdapter) persistContacts(ctx context.Context, caseID uuid.UUID, raws []json.RawMessage) error {
	if len(raws) == 0 {
		return nil
	}
	existing, err := a.cases.GetContacts(ctx, caseID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, ct := range existing {
		known[ct.UUID] = true
	}
	for _, raw := range raws {
		var ct caze.Contact
		if err := json.Unmarshal(raw, &ct); err != nil {
			return err
		}
		if known[ct.UUID] {
			continue
		}
		ct.ID = uuid.Nil
		ct.CaseID = caseID
		if err := a.cases.AddContact(ctx, &ct); err != nil {
			return err
		}
	}
	return nil
}

func (a *CaseAdapter) persistSamples(ctx context.Context, caseID uuid.UUID, raws []json.RawMessage, originInfoID *uuid.UUID) error {
	if len(raws) == 0 {
		return nil
	}
	existing, err := a.samples.ListByCase(ctx, caseID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, sm := range existing {
		known[sm.UUID] = true
	}
	for _, raw := range raws {
		var sm sample.Sample
		if err := json.Unmarshal(raw, &sm); err != nil {
			return err
		}
		if known[sm.UUID] {
			continue
		}
		sm.ID = uuid.Nil
		sm.CaseID = &caseID
		sm.EventID = nil
		if originInfoID != nil {
			sm.OriginInfoID = originInfoID
		}
		if err := a.samples.Create(ctx, &sm); err != nil {
			return err
		}
	}
	return nil
}
