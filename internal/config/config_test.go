package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresTokenAndAdmins(t *testing.T) {
	t.Setenv("TOKEN", "")
	t.Setenv("ADMIN_IDS", "1")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadParsesAdminAllowlist(t *testing.T) {
	t.Setenv("TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "7118184736, 889158373, oops")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []int64{7118184736, 889158373}, cfg.AdminIDs)
	require.True(t, cfg.IsAdmin(7118184736))
	require.True(t, cfg.IsAdmin(889158373))
	require.False(t, cfg.IsAdmin(42))
}

func TestLoadDefaultsAndLists(t *testing.T) {
	t.Setenv("TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "1")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("RESERVE_LINKS", " https://t.me/one , https://t.me/two ")
	t.Setenv("STATS_INTERVAL_HOURS", "6")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "channelbot.db", cfg.DatabaseURL)
	require.Equal(t, 5432, cfg.DBPort)
	require.NotEmpty(t, cfg.VerifyMessage)
	require.Equal(t, []string{"https://t.me/one", "https://t.me/two"}, cfg.ReserveLinks)
	require.Equal(t, 6*time.Hour, cfg.StatsInterval)
}
