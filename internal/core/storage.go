package core

import (
	"context"
	"time"
)

type MessageLog interface {
	RecordMessage(ctx context.Context, rec MessageRecord, turns ...HistoryEntry) (int64, error)
}

type HistoryRepository interface {
	AppendHistory(ctx context.Context, entries ...HistoryEntry) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]HistoryEntry, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

type CounterRepository interface {
	IncrementDailyCount(ctx context.Context, date string) (int, error)
	GetDailyCount(ctx context.Context, date string) (int, error)
}

// DashboardReader is the read-mostly surface shared with the dashboard.
type DashboardReader interface {
	ListMessages(ctx context.Context, filter MessageFilter) ([]MessageRecord, error)
	GetHistory(ctx context.Context, sessionID string, limit int) ([]HistoryEntry, error)
	GetDailyCount(ctx context.Context, date string) (int, error)
	DailySeries(ctx context.Context, days int) ([]DailyCounter, error)
	TotalStats(ctx context.Context) (TotalStats, error)
}

type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
