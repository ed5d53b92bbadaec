package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported values of DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Database   DatabaseConfig
	Postgres   PostgresConfig
	MySQL      MySQLConfig
	Redis      RedisConfig
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return strings.EqualFold(c.AppEnv, "production") }

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// DatabaseConfig selects the catalog store and tunes the connection pool.
type DatabaseConfig struct {
	Driver          string        `envconfig:"DB_DRIVER" default:"postgres"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// MySQLConfig holds MySQL database connection details.
type MySQLConfig struct {
	Host     string `envconfig:"MYSQL_HOST"`
	Port     string `envconfig:"MYSQL_PORT" default:"3306"`
	User     string `envconfig:"MYSQL_USER"`
	Password string `envconfig:"MYSQL_PASSWORD"`
	DBName   string `envconfig:"MYSQL_DBNAME"`
}

// DSN builds a go-sql-driver DSN. Times are parsed into time.Time and
// UPDATE reports matched rather than changed rows, so an update that
// rewrites identical values is not mistaken for a missing record.
func (mc *MySQLConfig) DSN() string {
	c := mysql.NewConfig()
	c.User = mc.User
	c.Passwd = mc.Password
	c.Net = "tcp"
	c.Addr = mc.Host + ":" + mc.Port
	c.DBName = mc.DBName
	c.ParseTime = true
	c.ClientFoundRows = true
	c.Loc = time.UTC
	return c.FormatDSN()
}

// RedisConfig configures the optional analytics cache. An empty Addr disables it.
type RedisConfig struct {
	Addr      string        `envconfig:"REDIS_ADDR"`
	Password  string        `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"catalog"`
	CacheTTL  time.Duration `envconfig:"ANALYTICS_CACHE_TTL" default:"5m"`
}

// Enabled reports whether a Redis address is configured.
func (rc *RedisConfig) Enabled() bool { return rc.Addr != "" }

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Postgres.Host == "" || c.Postgres.User == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("config: POSTGRES_HOST, POSTGRES_USER and POSTGRES_DBNAME are required for DB_DRIVER=%s", DriverPostgres)
		}
	case DriverMySQL:
		if c.MySQL.Host == "" || c.MySQL.User == "" || c.MySQL.DBName == "" {
			return fmt.Errorf("config: MYSQL_HOST, MYSQL_USER and MYSQL_DBNAME are required for DB_DRIVER=%s", DriverMySQL)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Redis.Enabled() && c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("config: ANALYTICS_CACHE_TTL must be positive")
	}
	return nil
}

// Load reads an optional .env file, then initializes the configuration from
// environment variables. It should be called once during application startup.
func Load() (*Config, error) {
	// a missing .env is fine; the process environment still applies
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
