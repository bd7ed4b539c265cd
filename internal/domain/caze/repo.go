package caze

import (
	"context"

	"github.com/google/uuid"

	"github.com/epishare/epishare/internal/jurisdiction"
)

type Repository interface {
	Create(ctx context.Context, cs *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	GetByUUID(ctx context.Context, uid string) (*Case, error)
	GetByUUIDs(ctx context.Context, uuids []string) ([]*Case, error)
	Update(ctx context.Context, cs *Case) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, visibility jurisdiction.Expr, limit, offset int) ([]*Case, int, error)

	// Contacts
	AddContact(ctx context.Context, ct *Contact) error
	GetContacts(ctx context.Context, caseID uuid.UUID) ([]*Contact, error)
	GetContactByUUID(ctx context.Context, uid string) (*Contact, error)
	UpdateContact(ctx context.Context, ct *Contact) error
	RemoveContact(ctx context.Context, id uuid.UUID) error

	HasSampleForLab(ctx context.Context, caseID uuid.UUID, labID string) (bool, error)
}
