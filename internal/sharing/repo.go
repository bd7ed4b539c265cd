package sharing

import (
	"context"

	"github.com/google/uuid"
)

type ShareInfoRepo interface {
	Create(ctx context.Context, si *ShareInfo) error
	Update(ctx context.Context, si *ShareInfo) error
	GetByRequestUUID(ctx context.Context, requestUUID string) ([]*ShareInfo, error)
	ListByEntity(ctx context.Context, kind, entityUUID string) ([]*ShareInfo, error)
	// HasPendingHandover reports whether an ownership handover for the
	// entity is already underway with any partner.
	HasPendingHandover(ctx context.Context, kind, entityUUID string) (bool, error)
}

type ShareRequestRepo interface {
	Create(ctx context.Context, sr *ShareRequest) error
	Update(ctx context.Context, sr *ShareRequest) error
	GetByUUID(ctx context.Context, requestUUID string) (*ShareRequest, error)
	GetByOriginInfo(ctx context.Context, originInfoID uuid.UUID) (*ShareRequest, error)
	List(ctx context.Context, status RequestStatus, limit, offset int) ([]*ShareRequest, int, error)
}

type OriginInfoRepo interface {
	Create(ctx context.Context, oi *OriginInfo) error
	Update(ctx context.Context, oi *OriginInfo) error
	GetByID(ctx context.Context, id uuid.UUID) (*OriginInfo, error)
}
