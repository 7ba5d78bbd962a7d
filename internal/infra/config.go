package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultLeagues are the Odds API sport keys settled when SCORES_LEAGUES is unset.
var DefaultLeagues = []string{
	"basketball_nba",
	"americanfootball_nfl",
	"baseball_mlb",
	"icehockey_nhl",
}

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER"`
	PGPassword  string `env:"PGPASSWORD"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"picks"`

	// Redis (pass lease). Empty falls back to a Postgres advisory lock.
	RedisURL string `env:"REDIS_URL"`

	// Scores provider
	OddsAPIKey        string        `env:"ODDS_API_KEY"`
	OddsAPIBaseURL    string        `env:"ODDS_API_BASE_URL" envDefault:"https://api.the-odds-api.com"`
	Leagues           []string      `env:"SCORES_LEAGUES" envSeparator:","`
	LookbackDays      int           `env:"SCORES_LOOKBACK_DAYS" envDefault:"3"`
	ScoresConcurrency int           `env:"SCORES_CONCURRENCY" envDefault:"4"`
	ScoresRatePerSec  float64       `env:"SCORES_RATE_PER_SEC" envDefault:"2"`
	ScoresHTTPTimeout time.Duration `env:"SCORES_HTTP_TIMEOUT" envDefault:"15s"`

	// Settlement
	Schedule         string        `env:"SETTLE_SCHEDULE" envDefault:"@every 15m"`
	StrictLines      bool          `env:"SETTLE_STRICT_LINES" envDefault:"false"`
	WriteConcurrency int           `env:"SETTLE_WRITE_CONCURRENCY" envDefault:"4"`
	LeaseTTL         time.Duration `env:"SETTLE_LEASE_TTL" envDefault:"10m"`
	// PassTimeout bounds scheduled passes. Zero lets a pass run to completion.
	PassTimeout      time.Duration `env:"SETTLE_PASS_TIMEOUT" envDefault:"0s"`

	// Trigger endpoint
	APIPort           int    `env:"API_PORT" envDefault:"3200"`
	TriggerJWTSecret  string `env:"TRIGGER_JWT_SECRET"`
	TriggerRateLimit  int    `env:"TRIGGER_RATE_LIMIT" envDefault:"30"`
	RunMigrationsOnUp bool   `env:"RUN_MIGRATIONS" envDefault:"false"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Leagues = normalizeLeagues(cfg.Leagues)
	return cfg, nil
}

// Missing lists the required settings that are absent. A non-empty result
// means no settlement work may start.
func (c *Config) Missing() []string {
	var missing []string
	if c.OddsAPIKey == "" {
		missing = append(missing, "ODDS_API_KEY")
	}
	if c.DatabaseURL == "" {
		if c.PGHost == "" {
			missing = append(missing, "PGHOST")
		}
		if c.PGUser == "" {
			missing = append(missing, "PGUSER")
		}
	}
	return missing
}

// Validate returns an error naming every missing required setting.
func (c *Config) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.LookbackDays < 1 || c.LookbackDays > 3 {
		return fmt.Errorf("SCORES_LOOKBACK_DAYS must be between 1 and 3, got %d", c.LookbackDays)
	}
	return nil
}

// HasDatabase reports whether enough settings exist to open a pool.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != "" || (c.PGHost != "" && c.PGUser != "")
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

func normalizeLeagues(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, l := range in {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultLeagues...)
	}
	return out
}
