package config

import "time"

// DBConfig contains PostgreSQL configuration for the job history archive.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"qlora"`
	Password string `env:"PASSWORD" envDefault:"qlora"`
	Name     string `env:"NAME"     envDefault:"qlora"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
	MaxOpenConns         int  `env:"MAX_OPEN_CONNS"          envDefault:"10"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// HistoryBackend selects where terminal jobs are archived.
type HistoryBackend string

const (
	HistoryBackendNone     HistoryBackend = "none"
	HistoryBackendPostgres HistoryBackend = "postgres"
	HistoryBackendRedis    HistoryBackend = "redis"
)

// HistoryConfig controls the write-only archive of finished jobs.
type HistoryConfig struct {
	Backend HistoryBackend `env:"HISTORY_BACKEND" envDefault:"none"`
	// LogTailLines is how many trailing log lines are archived with each job.
	LogTailLines int `env:"HISTORY_LOG_TAIL_LINES" envDefault:"200"`
	// RedisTTL expires archived entries in Redis. Zero keeps them until pruned.
	RedisTTL       time.Duration `env:"HISTORY_REDIS_TTL"        envDefault:"720h"`
	RedisKeyPrefix string        `env:"HISTORY_REDIS_KEY_PREFIX" envDefault:"qlora:history"`
	RetryLimit     uint64        `env:"HISTORY_RETRY_LIMIT"      envDefault:"3"`
	RetryBase      time.Duration `env:"HISTORY_RETRY_BASE"       envDefault:"500ms"`
	WriteTimeout   time.Duration `env:"HISTORY_WRITE_TIMEOUT"    envDefault:"10s"`
}

// Sanitize applies guardrails to history configuration values.
func (h *HistoryConfig) Sanitize() {
	switch h.Backend {
	case HistoryBackendPostgres, HistoryBackendRedis:
	default:
		h.Backend = HistoryBackendNone
	}
	if h.LogTailLines < 0 {
		h.LogTailLines = 0
	}
	if h.RedisTTL < 0 {
		h.RedisTTL = 0
	}
	if h.RetryBase <= 0 {
		h.RetryBase = 500 * time.Millisecond
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 10 * time.Second
	}
}

// Enabled reports whether an archive backend is configured.
func (h *HistoryConfig) Enabled() bool {
	return h.Backend == HistoryBackendPostgres || h.Backend == HistoryBackendRedis
}
