package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"channelbot/internal/model"
)

type fakeLister struct {
	users []model.User
	err   error
}

func (l *fakeLister) ListAll(ctx context.Context) ([]model.User, error) {
	return l.users, l.err
}

func TestSummaryCounters(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{users: []model.User{
		{TelegramID: 1, CreatedAt: now.Add(-2 * time.Hour)},
		{TelegramID: 2, CreatedAt: now.AddDate(0, 0, -3)},
		{TelegramID: 3, CreatedAt: now.AddDate(0, 0, -30)},
	}}
	svc := NewStatsService(lister, zerolog.Nop())

	stats := svc.Summary(context.Background(), now)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 1, stats.Today)
	require.Equal(t, 2, stats.Week)
}

func TestSummaryUsesLocalCalendarDays(t *testing.T) {
	// Shortly after local midnight in UTC+3: both creation instants below
	// fall on June 14 in UTC, but on different local calendar days.
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2025, 6, 15, 0, 30, 0, 0, loc)
	lister := &fakeLister{users: []model.User{
		{TelegramID: 1, CreatedAt: time.Date(2025, 6, 14, 21, 10, 0, 0, time.UTC)}, // 00:10 June 15 local
		{TelegramID: 2, CreatedAt: time.Date(2025, 6, 14, 20, 50, 0, 0, time.UTC)}, // 23:50 June 14 local
	}}
	svc := NewStatsService(lister, zerolog.Nop())

	stats := svc.Summary(context.Background(), now)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Today)
	require.Equal(t, 2, stats.Week)
}

func TestSummaryDegradesOnStorageFailure(t *testing.T) {
	svc := NewStatsService(&fakeLister{err: errors.New("connection refused")}, zerolog.Nop())

	stats := svc.Summary(context.Background(), time.Now())
	require.Equal(t, Stats{}, stats)
}

func TestRecentLimitsAndDegrades(t *testing.T) {
	users := make([]model.User, 15)
	for i := range users {
		users[i] = model.User{TelegramID: int64(i + 1)}
	}
	svc := NewStatsService(&fakeLister{users: users}, zerolog.Nop())

	recent := svc.Recent(context.Background(), 10)
	require.Len(t, recent, 10)
	require.Equal(t, int64(1), recent[0].TelegramID)

	broken := NewStatsService(&fakeLister{err: errors.New("down")}, zerolog.Nop())
	require.Empty(t, broken.Recent(context.Background(), 10))
}
