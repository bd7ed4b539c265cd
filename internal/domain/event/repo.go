package event

import (
	"context"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/jurisdiction"
)

type Repository interface {
	Create(ctx context.Context, ev *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	GetByUUID(ctx context.Context, uid string) (*Event, error)
	GetByUUIDs(ctx context.Context, uuids []string) ([]*Event, error)
	Update(ctx context.Context, ev *Event) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, visibility jurisdiction.Expr, limit, offset int) ([]*Event, int, error)

	// Participants
	AddParticipant(ctx context.Context, p *Participant) error
	GetParticipants(ctx context.Context, eventID uuid.UUID) ([]*Participant, error)
	RemoveParticipant(ctx context.Context, id uuid.UUID) error

	// Visibility probes for single-record checks. They answer the same
	// questions the list query answers with EXISTS subqueries.
	HasSampleForLab(ctx context.Context, eventID uuid.UUID, labID string) (bool, error)
	HasCaseOrParticipantIn(ctx context.Context, eventID uuid.UUID, orgField, orgID string) (bool, error)
}
