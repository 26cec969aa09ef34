// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Models      ModelsConfig      `mapstructure:"models"`
	Pool        PoolConfig        `mapstructure:"pool"`
	Access      AccessConfig      `mapstructure:"access"`
	Database    DatabaseConfig    `mapstructure:"database"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	MetricsPath     string `mapstructure:"metrics_path"`
}

// Address returns the listen address of the HTTP server.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelsConfig locates the model registry and controls model loading.
type ModelsConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
	BaseDir      string `mapstructure:"base_dir"`
	// Preload overrides the per-model preload flags of the registry when set.
	Preload        []string `mapstructure:"preload"`
	LoadTimeout    int      `mapstructure:"load_timeout"` // milliseconds
	RegionOverride bool     `mapstructure:"region_override"`
	MaxDistance    float64  `mapstructure:"max_distance"` // degrees
}

type PoolConfig struct {
	Size           int `mapstructure:"size"` // 0 = number of CPUs
	QueueSize      int `mapstructure:"queue_size"`
	ComputeTimeout int `mapstructure:"compute_timeout"` // milliseconds
	LaneQueueSize  int `mapstructure:"lane_queue_size"`
}

// AccessConfig drives the per-client request counter and blocklist.
type AccessConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Blocklist []string `mapstructure:"blocklist"`
	Store     string   `mapstructure:"store"` // memory | redis | postgres
	KeyPrefix string   `mapstructure:"key_prefix"`
	TTL       int      `mapstructure:"ttl"` // milliseconds, 0 = no expiry
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ObjectStoreConfig points at an S3-compatible store holding model archives.
// An empty endpoint disables s3:// locators.
type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	CacheDir  string `mapstructure:"cache_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	PrettyPrint bool    `mapstructure:"pretty_print"`
}
