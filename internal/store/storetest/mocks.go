// Package storetest holds testify mocks for the store interfaces.
package storetest

import (
	"context"

	"github.com/farxc/ensu_insecurity/internal/store"
	"github.com/stretchr/testify/mock"
)

type Aggregates struct {
	mock.Mock
}

func (m *Aggregates) UpsertAggregate(ctx context.Context, agg *store.MunicipalityAggregate) error {
	return m.Called(ctx, agg).Error(0)
}

func (m *Aggregates) GetAggregates(ctx context.Context, filter store.AggregateFilter) ([]store.MunicipalityAggregate, error) {
	args := m.Called(ctx, filter)
	out, _ := args.Get(0).([]store.MunicipalityAggregate)
	return out, args.Error(1)
}

func (m *Aggregates) GetPeriods(ctx context.Context) ([]store.PeriodSummary, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]store.PeriodSummary)
	return out, args.Error(1)
}

func (m *Aggregates) GetMunicipalitySeries(ctx context.Context, municipality string) ([]store.MunicipalityAggregate, error) {
	args := m.Called(ctx, municipality)
	out, _ := args.Get(0).([]store.MunicipalityAggregate)
	return out, args.Error(1)
}

type IngestionHistory struct {
	mock.Mock

	nextID int64
}

// InsertIngestionHistory assigns increasing ids the way the database sequence would.
func (m *IngestionHistory) InsertIngestionHistory(ctx context.Context, history *store.IngestionHistory) error {
	args := m.Called(ctx, history)
	if args.Error(0) == nil {
		m.nextID++
		history.ID = m.nextID
	}
	return args.Error(0)
}

func (m *IngestionHistory) GetLatest(ctx context.Context, limit int) ([]store.IngestionHistory, error) {
	args := m.Called(ctx, limit)
	out, _ := args.Get(0).([]store.IngestionHistory)
	return out, args.Error(1)
}

func (m *IngestionHistory) UpdateIngestionStatus(ctx context.Context, id int64, status, message string) error {
	return m.Called(ctx, id, status, message).Error(0)
}

// NewStorage wires fresh mocks into a Storage.
func NewStorage() (*store.Storage, *Aggregates, *IngestionHistory) {
	aggs := &Aggregates{}
	history := &IngestionHistory{}
	return &store.Storage{Aggregates: aggs, IngestionHistory: history}, aggs, history
}
