package sharing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Guard implements the domain services' OwnershipChecker against the
// origin info store. An entity received from another instance becomes
// editable once that instance hands ownership over.
type Guard struct {
	origins OriginInfoRepo
}

func NewGuard(origins OriginInfoRepo) *Guard {
	return &Guard{origins: origins}
}

func (g *Guard) Editable(ctx context.Context, originInfoID uuid.UUID) (bool, error) {
	oi, err := g.origins.GetByID(ctx, originInfoID)
	if err != nil {
		return false, fmt.Errorf("load origin info: %w", err)
	}
	return oi.OwnershipHandedOver, nil
}
