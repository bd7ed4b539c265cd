package sharing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/caze"
	"github.com/epishare/epishare/internal/domain/event"
	"github.com/epishare/epishare/internal/domain/sample"
)

// SampleAdapter wires standalone sample shares into the protocol. The
// parent case or event must already exist on the receiving instance;
// parents are matched by uuid and the local row id is substituted.
type SampleAdapter struct {
	samples sample.Repository
	cases   caze.Repository
	events  event.Repository
}

func NewSampleAdapter(samples sample.Repository, cases caze.Repository, events event.Repository) *SampleAdapter {
	return &SampleAdapter{samples: samples, cases: cases, events: events}
}

func (a *SampleAdapter) Capabilities() Capabilities {
	return Capabilities{Gateway: a, Builder: a, Processor: a, Persister: a}
}

func (a *SampleAdapter) Exists(ctx context.Context, entityUUID string) (bool, error) {
	_, err := a.samples.GetByUUID(ctx, entityUUID)
	if err != nil {
		if notFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *SampleAdapter) OriginInfoOf(ctx context.Context, entityUUID string) (*uuid.UUID, error) {
	sm, err := a.samples.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	return sm.OriginInfoID, nil
}

func (a *SampleAdapter) BuildPreview(ctx context.Context, entityUUID string) (*Preview, error) {
	sm, err := a.samples.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Kind:    KindSample,
		UUID:    sm.UUID,
		Caption: fmt.Sprintf("%s sample (%s)", sm.Purpose, sm.PathogenTestResult),
	}, nil
}

func (a *SampleAdapter) BuildPayload(ctx context.Context, entityUUID string, opts Options) (*Payload, error) {
	sm, err := a.samples.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	// Parents travel by uuid, not by local row id.
	ws := wireSample{Sample: *sm}
	ws.Sample.CaseID = nil
	ws.Sample.EventID = nil
	if sm.CaseID != nil {
		cs, err := a.cases.GetByID(ctx, *sm.CaseID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent case: %w", err)
		}
		ws.CaseUUID = cs.UUID
	} else if sm.EventID != nil {
		ev, err := a.events.GetByID(ctx, *sm.EventID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent event: %w", err)
		}
		ws.EventUUID = ev.UUID
	}
	entity, err := json.Marshal(&ws)
	if err != nil {
		return nil, err
	}
	return &Payload{Kind: KindSample, EntityUUID: sm.UUID, Entity: entity}, nil
}

// wireSample is Sample plus the parent uuids used on the wire.
type wireSample struct {
	sample.Sample
	CaseUUID  string `json:"case_uuid,omitempty"`
	EventUUID string `json:"event_uuid,omitempty"`
}

func (a *SampleAdapter) ValidatePreview(ctx context.Context, p Preview) []string {
	var msgs []string
	if p.UUID == "" {
		msgs = append(msgs, "uuid is missing")
	}
	if p.UUID != "" {
		if exists, err := a.Exists(ctx, p.UUID); err == nil && exists {
			msgs = append(msgs, "a sample with this uuid already exists")
		}
	}
	return msgs
}

func (a *SampleAdapter) ValidatePayload(ctx context.Context, pl Payload) []string {
	var msgs []string
	var ws wireSample
	if err := json.Unmarshal(pl.Entity, &ws); err != nil {
		return []string{fmt.Sprintf("malformed sample body: %v", err)}
	}
	if ws.UUID == "" || ws.UUID != pl.EntityUUID {
		msgs = append(msgs, "sample uuid does not match the payload")
	}
	if ws.CaseUUID == "" && ws.EventUUID == "" {
		msgs = append(msgs, "sample names no parent case or event")
	}
	if ws.CaseUUID != "" {
		if _, err := a.cases.GetByUUID(ctx, ws.CaseUUID); err != nil {
			msgs = append(msgs, fmt.Sprintf("parent case %s is not known here", ws.CaseUUID))
		}
	}
	if ws.EventUUID != "" {
		if _, err := a.events.GetByUUID(ctx, ws.EventUUID); err != nil {
			msgs = append(msgs, fmt.Sprintf("parent event %s is not known here", ws.EventUUID))
		}
	}
	return msgs
}

func (a *SampleAdapter) PersistShared(ctx context.Context, pl Payload, originInfoID uuid.UUID) error {
	return a.persist(ctx, pl, &originInfoID)
}

func (a *SampleAdapter) PersistReturned(ctx context.Context, pl Payload) error {
	return a.persist(ctx, pl, nil)
}

func (a *SampleAdapter) PersistSynced(ctx context.Context, pl Payload) error {
	return a.persist(ctx, pl, nil)
}

func (a *SampleAdapter) persist(ctx context.Context, pl Payload, originInfoID *uuid.UUID) error {
	var ws wireSample
	if err := json.Unmarshal(pl.Entity, &ws); err != nil {
		return err
	}
	incoming := ws.Sample
	incoming.CaseID = nil
	incoming.EventID = nil

	if ws.CaseUUID != "" {
		cs, err := a.cases.GetByUUID(ctx, ws.CaseUUID)
		if err != nil {
			return fmt.Errorf("resolve parent case %s: %w", ws.CaseUUID, err)
		}
		incoming.CaseID = &cs.ID
	} else if ws.EventUUID != "" {
		ev, err := a.events.GetByUUID(ctx, ws.EventUUID)
		if err != nil {
			return fmt.Errorf("resolve parent event %s: %w", ws.EventUUID, err)
		}
		incoming.EventID = &ev.ID
	}

	existing, err := a.samples.GetByUUID(ctx, incoming.UUID)
	switch {
	case err == nil:
		incoming.ID = existing.ID
		if originInfoID != nil {
			incoming.OriginInfoID = originInfoID
		} else {
			incoming.OriginInfoID = existing.OriginInfoID
		}
		return a.samples.Update(ctx, &incoming)
	case notFound(err):
		incoming.ID = uuid.Nil
		incoming.OriginInfoID = originInfoID
		return a.samples.Create(ctx, &incoming)
	default:
		return err
	}
}
