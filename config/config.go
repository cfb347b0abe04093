package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEDUP_"

// DuplicateDetection holds the feature settings read before every scan.
type DuplicateDetection struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// MaxDistance is the largest cosine distance two assets may have to be
	// considered duplicates.
	MaxDistance float64 `yaml:"max_distance" toml:"max_distance"`
}

type MachineLearning struct {
	Enabled            bool               `yaml:"enabled" toml:"enabled"`
	DuplicateDetection DuplicateDetection `yaml:"duplicate_detection" toml:"duplicate_detection"`
}

type Store struct {
	Path string `yaml:"path" toml:"path"`
}

type Search struct {
	// Backend is "sql" or "index".
	Backend string `yaml:"backend" toml:"backend"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" toml:"brokers"`
	Topic   string   `yaml:"topic" toml:"topic"`
	GroupID string   `yaml:"group_id" toml:"group_id"`
}

type Redis struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Key      string `yaml:"key" toml:"key"`
}

type Queue struct {
	// Backend is "memory", "kafka" or "redis".
	Backend     string `yaml:"backend" toml:"backend"`
	BatchSize   int    `yaml:"batch_size" toml:"batch_size"`
	MaxAttempts int    `yaml:"max_attempts" toml:"max_attempts"`
	Kafka       Kafka  `yaml:"kafka" toml:"kafka"`
	Redis       Redis  `yaml:"redis" toml:"redis"`
}

type Worker struct {
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
	// Rate limits jobs per second; zero means unlimited.
	Rate  float64 `yaml:"rate" toml:"rate"`
	Burst int     `yaml:"burst" toml:"burst"`
	// Schedule is the cron expression of the periodic scan-all job; empty
	// disables it.
	Schedule string `yaml:"schedule" toml:"schedule"`
}

type Log struct {
	Level string `yaml:"level" toml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format" toml:"format"`
}

type Metrics struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Config is the complete service configuration.
type Config struct {
	MachineLearning MachineLearning `yaml:"machine_learning" toml:"machine_learning"`
	Store           Store           `yaml:"store" toml:"store"`
	Search          Search          `yaml:"search" toml:"search"`
	Queue           Queue           `yaml:"queue" toml:"queue"`
	Worker          Worker          `yaml:"worker" toml:"worker"`
	Log             Log             `yaml:"log" toml:"log"`
	Metrics         Metrics         `yaml:"metrics" toml:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MachineLearning: MachineLearning{
			Enabled:            true,
			DuplicateDetection: DuplicateDetection{Enabled: true, MaxDistance: 0.01},
		},
		Store:  Store{Path: "dedup.sqlite"},
		Search: Search{Backend: "sql"},
		Queue: Queue{
			Backend:     "memory",
			BatchSize:   1000,
			MaxAttempts: 3,
			Kafka:       Kafka{Topic: "duplicate-detection", GroupID: "dupscan"},
			Redis:       Redis{Addr: "localhost:6379", Key: "dupscan:jobs"},
		},
		Worker:  Worker{Concurrency: 4, Burst: 1, Schedule: "0 2 * * *"},
		Log:     Log{Level: "info", Format: "json"},
		Metrics: Metrics{Addr: ":9090"},
	}
}

// Detection returns the effective duplicate detection settings: detection
// only runs when machine learning is enabled as well.
func (c *Config) Detection() DuplicateDetection {
	d := c.MachineLearning.DuplicateDetection
	d.Enabled = d.Enabled && c.MachineLearning.Enabled
	return d
}

// Load reads .env (if present), then the config file at path (if set) over
// the defaults, then applies environment overrides. The file format follows
// its extension: .toml for TOML, anything else for YAML.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse TOML %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse YAML %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	d := c.MachineLearning.DuplicateDetection
	if d.MaxDistance < 0 || d.MaxDistance > 2 {
		return fmt.Errorf("config: max_distance %v out of range [0, 2]", d.MaxDistance)
	}
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("config: queue batch_size must be positive, got %d", c.Queue.BatchSize)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("config: worker concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Worker.Rate < 0 {
		return fmt.Errorf("config: worker rate must not be negative")
	}
	switch c.Queue.Backend {
	case "memory", "kafka", "redis":
	default:
		return fmt.Errorf("config: unknown queue backend %q", c.Queue.Backend)
	}
	if c.Queue.Backend == "kafka" && len(c.Queue.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka queue requires brokers")
	}
	switch c.Search.Backend {
	case "", "sql", "index":
	default:
		return fmt.Errorf("config: unknown search backend %q", c.Search.Backend)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var err error
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && err == nil {
			b, perr := strconv.ParseBool(strings.TrimSpace(v))
			if perr != nil {
				err = fmt.Errorf("config: %s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && err == nil {
			n, perr := strconv.Atoi(strings.TrimSpace(v))
			if perr != nil {
				err = fmt.Errorf("config: %s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(EnvPrefix + name); ok && err == nil {
			f, perr := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if perr != nil {
				err = fmt.Errorf("config: %s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = f
		}
	}

	boolean("ML_ENABLED", &c.MachineLearning.Enabled)
	boolean("DUPLICATE_DETECTION_ENABLED", &c.MachineLearning.DuplicateDetection.Enabled)
	float("MAX_DISTANCE", &c.MachineLearning.DuplicateDetection.MaxDistance)
	str("SQLITE_PATH", &c.Store.Path)
	str("SEARCH_BACKEND", &c.Search.Backend)
	str("QUEUE", &c.Queue.Backend)
	integer("BATCH_SIZE", &c.Queue.BatchSize)
	integer("MAX_ATTEMPTS", &c.Queue.MaxAttempts)
	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok && v != "" {
		c.Queue.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &c.Queue.Kafka.Topic)
	str("KAFKA_GROUP", &c.Queue.Kafka.GroupID)
	str("REDIS_ADDR", &c.Queue.Redis.Addr)
	str("REDIS_PASSWORD", &c.Queue.Redis.Password)
	integer("REDIS_DB", &c.Queue.Redis.DB)
	str("REDIS_KEY", &c.Queue.Redis.Key)
	integer("WORKER_CONCURRENCY", &c.Worker.Concurrency)
	float("WORKER_RATE", &c.Worker.Rate)
	integer("WORKER_BURST", &c.Worker.Burst)
	str("SCHEDULE", &c.Worker.Schedule)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("METRICS_ADDR", &c.Metrics.Addr)
	return err
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
