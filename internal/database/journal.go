package database

import (
	"context"
	"log/slog"

	"arbwatch/internal/arbitrage"
	"arbwatch/internal/events"
	"arbwatch/internal/model"
)

// Journal persists detected opportunities and simulated executions.
// It is meant to sit behind an events.Async so inserts never slow the engine.
type Journal struct {
	repo   Repository
	logger *slog.Logger
}

// NewJournal creates a Journal writing to repo.
func NewJournal(repo Repository, logger *slog.Logger) *Journal {
	return &Journal{repo: repo, logger: logger}
}

// Handle implements events.Handler. Events it does not persist are ignored.
func (j *Journal) Handle(ctx context.Context, ev events.Event) {
	var err error
	switch p := ev.Payload.(type) {
	case model.CrossOpportunity:
		err = j.repo.LogCrossOpportunity(ctx, p)
	case model.TriangleOpportunity:
		err = j.repo.LogTriangleOpportunity(ctx, p)
	case arbitrage.LogBatch:
		err = j.repo.LogTestOrder(ctx, p.Entry)
	default:
		return
	}
	if err != nil {
		j.logger.Error("Failed to journal event", "kind", ev.Kind, "error", err)
	}
}
