package sharing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// EntityGateway answers questions about local entities of one kind
// without the protocol layer knowing the entity type.
type EntityGateway interface {
	// Exists reports whether an entity with the given uuid exists locally.
	Exists(ctx context.Context, entityUUID string) (bool, error)
	// OriginInfoOf returns the origin info id of an entity received from
	// another instance, or nil for locally created entities.
	OriginInfoOf(ctx context.Context, entityUUID string) (*uuid.UUID, error)
}

// ShareDataBuilder turns local entities into wire previews and payloads.
type ShareDataBuilder interface {
	BuildPreview(ctx context.Context, entityUUID string) (*Preview, error)
	BuildPayload(ctx context.Context, entityUUID string, opts Options) (*Payload, error)
}

// ReceivedProcessor validates incoming data before anything is persisted.
// Both methods return every problem found, never just the first.
type ReceivedProcessor interface {
	ValidatePreview(ctx context.Context, p Preview) []string
	ValidatePayload(ctx context.Context, pl Payload) []string
}

// Persister writes accepted incoming data. PersistShared performs an
// insert-or-merge by entity uuid.
type Persister interface {
	PersistShared(ctx context.Context, pl Payload, originInfoID uuid.UUID) error
	PersistReturned(ctx context.Context, pl Payload) error
	PersistSynced(ctx context.Context, pl Payload) error
}

// Capabilities bundles the four per-kind protocol roles.
type Capabilities struct {
	Gateway   EntityGateway
	Builder   ShareDataBuilder
	Processor ReceivedProcessor
	Persister Persister
}

// Coordinator maps entity kinds to their protocol capabilities.
type Coordinator struct {
	kinds map[string]Capabilities
}

func NewCoordinator() *Coordinator {
	return &Coordinator{kinds: make(map[string]Capabilities)}
}

func (c *Coordinator) Register(kind string, caps Capabilities) {
	c.kinds[kind] = caps
}

func (c *Coordinator) For(kind string) (Capabilities, error) {
	caps, ok := c.kinds[kind]
	if !ok {
		return Capabilities{}, fmt.Errorf("no share support registered for kind %q", kind)
	}
	return caps, nil
}
