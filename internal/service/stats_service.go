package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"channelbot/internal/model"
)

// Stats holds user counters for the admin panel.
type Stats struct {
	Total int
	Today int
	Week  int
}

type userLister interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

// StatsService computes user statistics for the admin panel and the
// periodic digest. Storage failures degrade to zero values so the
// admin UI stays alive.
type StatsService struct {
	users userLister
	log   zerolog.Logger
}

func NewStatsService(users userLister, log zerolog.Logger) *StatsService {
	return &StatsService{users: users, log: log}
}

func (s *StatsService) Summary(ctx context.Context, now time.Time) Stats {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("stats: list users")
		return Stats{}
	}

	// Days are bucketed on the calendar of now's location, the way the
	// admin reads them, not on UTC boundaries.
	loc := now.Location()
	today := startOfDay(now, loc)
	weekAgo := today.AddDate(0, 0, -7)

	stats := Stats{Total: len(users)}
	for _, user := range users {
		created := startOfDay(user.CreatedAt, loc)
		if created.Equal(today) {
			stats.Today++
		}
		if !created.Before(weekAgo) {
			stats.Week++
		}
	}
	return stats
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// Recent returns up to limit newest users, empty on storage failure.
func (s *StatsService) Recent(ctx context.Context, limit int) []model.User {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("stats: list users")
		return nil
	}
	if len(users) > limit {
		users = users[:limit]
	}
	return users
}
