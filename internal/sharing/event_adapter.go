package sharing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/domain/event"
	"github.com/epishare/epishare/internal/domain/sample"
)

// EventAdapter wires events into the share protocol.
type EventAdapter struct {
	events  event.Repository
	samples sample.Repository
}

func NewEventAdapter(events event.Repository, samples sample.Repository) *EventAdapter {
	return &EventAdapter{events: events, samples: samples}
}

func (a *EventAdapter) Capabilities() Capabilities {
	return Capabilities{Gateway: a, Builder: a, Processor: a, Persister: a}
}

func (a *EventAdapter) Exists(ctx context.Context, entityUUID string) (bool, error) {
	_, err := a.events.GetByUUID(ctx, entityUUID)
	if err != nil {
		if notFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *EventAdapter) OriginInfoOf(ctx context.Context, entityUUID string) (*uuid.UUID, error) {
	ev, err := a.events.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	return ev.OriginInfoID, nil
}

func (a *EventAdapter) BuildPreview(ctx context.Context, entityUUID string) (*Preview, error) {
	ev, err := a.events.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}
	p := &Preview{
		Kind:    KindEvent,
		UUID:    ev.UUID,
		Caption: ev.Title,
	}
	if ev.Disease != nil {
		p.Disease = *ev.Disease
	}
	return p, nil
}

func (a *EventAdapter) BuildPayload(ctx context.Context, entityUUID string, opts Options) (*Payload, error) {
	ev, err := a.events.GetByUUID(ctx, entityUUID)
	if err != nil {
		return nil, err
	}

	entity, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	pl := &Payload{Kind: KindEvent, EntityUUID: ev.UUID, Entity: entity}

	if opts.WithEventParticipants {
		parts, err := a.events.GetParticipants(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			pp := *p
			if opts.PseudonymizePersonalData {
				pp.PersonName = ""
			}
			raw, err := json.Marshal(&pp)
			if err != nil {
				return nil, err
			}
			pl.Participants = append(pl.Participants, raw)
		}
	}

	if opts.WithSamples {
		samples, err := a.samples.ListByEvent(ctx, ev.ID)
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

func (a *EventAdapter) ValidatePreview(ctx context.Context, p Preview) []string {
	var msgs []string
	if p.UUID == "" {
		msgs = append(msgs, "uuid is missing")
	}
	if p.Caption == "" {
		msgs = append(msgs, "title is missing")
	}
	if p.UUID != "" {
		if exists, err := a.Exists(ctx, p.UUID); err == nil && exists {
			msgs = append(msgs, "an event with this uuid already exists")
		}
	}
	return msgs
}

func (a *EventAdapter) ValidatePayload(ctx context.Context, pl Payload) []string {
	var msgs []string
	var ev event.Event
	if err := json.Unmarshal(pl.Entity, &ev); err != nil {
		return []string{fmt.Sprintf("malformed event body: %v", err)}
	}
	if ev.UUID == "" || ev.UUID != pl.EntityUUID {
		msgs = append(msgs, "event uuid does not match the payload")
	}
	if ev.Title == "" {
		msgs = append(msgs, "title is missing")
	}
	for i, raw := range pl.Participants {
		var p event.Participant
		if err := json.Unmarshal(raw, &p); err != nil {
			msgs = append(msgs, fmt.Sprintf("malformed participant %d: %v", i, err))
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

func (a *EventAdapter) PersistShared(ctx context.Context, pl Payload, originInfoID uuid.UUID) error {
	return a.persist(ctx, pl, &originInfoID)
}

func (a *EventAdapter) PersistReturned(ctx context.Context, pl Payload) error {
	return a.persist(ctx, pl, nil)
}

func (a *EventAdapter) PersistSynced(ctx context.Context, pl Payload) error {
	return a.persist(ctx, pl, nil)
}

func (a *EventAdapter) persist(ctx context.Context, pl Payload, originInfoID *uuid.UUID) error {
	var incoming event.Event
	if err := json.Unmarshal(pl.Entity, &incoming); err != nil {
		return err
	}

	existing, err := a.events.GetByUUID(ctx, incoming.UUID)
	switch {
	case err == nil:
		incoming.ID = existing.ID
		if originInfoID != nil {
			incoming.OriginInfoID = originInfoID
		} else {
			incoming.OriginInfoID = existing.OriginInfoID
		}
		if err := a.events.Update(ctx, &incoming); err != nil {
			return err
		}
	case notFound(err):
		incoming.ID = uuid.Nil
		incoming.OriginInfoID = originInfoID
		if err := a.events.Create(ctx, &incoming); err != nil {
			return err
		}
	default:
		return err
	}

	if err := a.persistParticipants(ctx, incoming.ID, pl.Participants); err != nil {
		return err
	}
	return a.persistSamples(ctx, incoming.ID, pl.Samples, originInfoID)
}

func (a *EventAdapter) persistParticipants(ctx context.Context, eventID uuid.UUID, raws []json.RawMessage) error {
	if len(raws) == 0 {
		return nil
	}
	existing, err := a.events.GetParticipants(ctx, eventID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.UUID] = true
	}
	for _, raw := range raws {
		var p event.Participant
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if known[p.UUID] {
			continue
		}
		p.ID = uuid.Nil
		p.EventID = eventID
		if err := a.events.AddParticipant(ctx, &p); err != nil {
			return err
		}
	}
	return nil
}

func (a *EventAdapter) persistSamples(ctx context.Context, eventID uuid.UUID, raws []json.RawMessage, originInfoID *uuid.UUID) error {
	if len(raws) == 0 {
		return nil
	}
	existing, err := a.samples.ListByEvent(ctx, eventID)
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
		sm.EventID = &eventID
		sm.CaseID = nil
		if originInfoID != nil {
			sm.OriginInfoID = originInfoID
		}
		if err := a.samples.Create(ctx, &sm); err != nil {
			return err
		}
	}
	return nil
}
