package service

import (
	"context"
	"time"

	"NewsDesk/internal/domain/models"
)

// MarketContextProvider returns a market snapshot. It never fails; sources
// that cannot be reached fall back to neutral defaults.
type MarketContextProvider interface {
	Fetch(ctx context.Context) models.MarketContext
}

// DispatchOptions bounds one dispatcher run.
type DispatchOptions struct {
	// AllowedSymbols, when non-empty, limits which normalized symbols may be
	// queried. Nil lets every symbol through.
	AllowedSymbols map[string]struct{}
	ReferenceDate  time.Time
}

// DataDispatcher executes a declarative list of typed data requests.
type DataDispatcher interface {
	Execute(ctx context.Context, requests []models.DataRequest, opts DispatchOptions) models.CollectedPack
}
