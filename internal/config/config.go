package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string

	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     int
	// SQLite fallback path, used when DBHost is empty.
	DatabaseURL string

	ChannelLink   string
	ReserveLinks  []string
	VerifyMessage string

	AdminIDs      []int64
	StatsInterval time.Duration
	LogLevel      string

	admins map[int64]struct{}
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TOKEN")),
		DBUser:        strings.TrimSpace(os.Getenv("DB_USER")),
		DBPassword:    strings.TrimSpace(os.Getenv("DB_PASSWORD")),
		DBName:        strings.TrimSpace(os.Getenv("DB_NAME")),
		DBHost:        strings.TrimSpace(os.Getenv("DB_HOST")),
		DBPort:        parsePort(strings.TrimSpace(os.Getenv("DB_PORT"))),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ChannelLink:   strings.TrimSpace(os.Getenv("CHANNEL_LINK")),
		ReserveLinks:  splitList(os.Getenv("RESERVE_LINKS")),
		VerifyMessage: os.Getenv("TEXT_MESSAGE"),
		AdminIDs:      parseAdminIDs(os.Getenv("ADMIN_IDS")),
		StatsInterval: parseInterval(strings.TrimSpace(os.Getenv("STATS_INTERVAL_HOURS"))),
		LogLevel:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "channelbot.db"
	}
	if cfg.ChannelLink == "" {
		cfg.ChannelLink = "https://t.me/+eXOltHvhsk81NTgy"
	}
	if cfg.VerifyMessage == "" {
		cfg.VerifyMessage = "Для доступа в канал необходимо подписаться на наши резервы 👇\n\n"
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TOKEN is required")
	}
	if len(cfg.AdminIDs) == 0 {
		return cfg, fmt.Errorf("ADMIN_IDS is required")
	}

	cfg.admins = make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		cfg.admins[id] = struct{}{}
	}

	return cfg, nil
}

// IsAdmin reports whether the given Telegram ID is in the allowlist.
func (c *Config) IsAdmin(id int64) bool {
	_, ok := c.admins[id]
	return ok
}

func parseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func splitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func parsePort(raw string) int {
	if raw == "" {
		return 5432
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 {
		return 5432
	}
	return port
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
