package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"arbwatch/internal/arbitrage"
	"arbwatch/internal/config"
	"arbwatch/internal/events"
	"arbwatch/internal/model"

	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock implementation of the Repository interface.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) LogCrossOpportunity(ctx context.Context, opp model.CrossOpportunity) error {
	args := m.Called(ctx, opp)
	return args.Error(0)
}

func (m *MockRepository) LogTriangleOpportunity(ctx context.Context, opp model.TriangleOpportunity) error {
	args := m.Called(ctx, opp)
	return args.Error(0)
}

func (m *MockRepository) LogTestOrder(ctx context.Context, entry model.TestOrderLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func configFor(user, password, host string, port int, name string) config.DatabaseConfig {
	return config.DatabaseConfig{User: user, Password: password, Host: host, Port: port, DBName: name}
}

func TestJournal_Handle(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("persists opportunities and test orders", func(t *testing.T) {
		repo := new(MockRepository)
		journal := NewJournal(repo, logger)

		cross := model.CrossOpportunity{ID: "arb_1", Instrument: "BTC/USDT"}
		tri := model.TriangleOpportunity{ID: "tri_1", Path: "BTC→ETH→USDT→BTC"}
		entry := model.NewTestOrderLogEntry("test_1", tri, time.Now())

		repo.On("LogCrossOpportunity", ctx, cross).Return(nil).Once()
		repo.On("LogTriangleOpportunity", ctx, tri).Return(nil).Once()
		repo.On("LogTestOrder", ctx, entry).Return(nil).Once()

		journal.Handle(ctx, events.Event{Kind: events.CrossOpportunity, Payload: cross})
		journal.Handle(ctx, events.Event{Kind: events.TriangleOpp, Payload: tri})
		journal.Handle(ctx, events.Event{Kind: events.TestOrderLog, Payload: arbitrage.LogBatch{Entry: entry, Logs: []string{entry.Text}}})

		repo.AssertExpectations(t)
	})

	t.Run("ignores other events", func(t *testing.T) {
		repo := new(MockRepository)
		journal := NewJournal(repo, logger)

		journal.Handle(ctx, events.Event{Kind: events.PriceUpdate, Payload: model.PriceQuote{Exchange: "binance"}})
		journal.Handle(ctx, events.Event{Kind: events.TriangleRemoved, Payload: "btc-eth-usdt-binance"})

		repo.AssertNotCalled(t, "LogCrossOpportunity", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "LogTriangleOpportunity", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "LogTestOrder", mock.Anything, mock.Anything)
	})

	t.Run("repository errors are swallowed", func(t *testing.T) {
		repo := new(MockRepository)
		journal := NewJournal(repo, logger)
		cross := model.CrossOpportunity{ID: "arb_2"}
		repo.On("LogCrossOpportunity", ctx, cross).Return(errors.New("connection refused")).Once()

		journal.Handle(ctx, events.Event{Kind: events.CrossOpportunity, Payload: cross})

		repo.AssertExpectations(t)
	})
}
