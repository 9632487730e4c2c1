package database

import (
	"context"

	"arbwatch/internal/model"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	LogCrossOpportunity(ctx context.Context, opp model.CrossOpportunity) error
	LogTriangleOpportunity(ctx context.Context, opp model.TriangleOpportunity) error
	LogTestOrder(ctx context.Context, entry model.TestOrderLogEntry) error
}
