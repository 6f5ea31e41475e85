package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/Evgen-Mutagen/finledger/internal/repository"
	"github.com/Evgen-Mutagen/finledger/internal/service"
)

const (
	DriverMemory = "memory"

	defaultKafkaTopic = "finledger.movements"
)

type Config struct {
	RunAddress       string        `yaml:"run_address"`
	DatabaseDriver   string        `yaml:"database_driver"`
	DatabaseURI      string        `yaml:"database_uri"`
	LogLevel         string        `yaml:"log_level"`
	JWTSecretKey     string        `yaml:"jwt_secret_key"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	MigrationsPath   string        `yaml:"migrations_path"`
	KafkaBrokers     []string      `yaml:"kafka_brokers"`
	KafkaTopic       string        `yaml:"kafka_topic"`
	LedgerMaxRetries int           `yaml:"ledger_max_retries"`
}

func DefaultConfig() *Config {
	return &Config{
		RunAddress:       "localhost:8080",
		DatabaseDriver:   repository.DriverPostgres,
		LogLevel:         "debug",
		TokenTTL:         service.DefaultTokenTTL,
		KafkaTopic:       defaultKafkaTopic,
		LedgerMaxRetries: service.DefaultMaxRetries,
	}
}

// LoadDotEnv exports the variables of a .env file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFile overlays the YAML file at path. An empty path is a no-op.
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// BindFlags registers the command-line flags, using the current values as defaults.
func (c *Config) BindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.RunAddress, "address", "a", c.RunAddress, "Server address (env: RUN_ADDRESS)")
	flags.StringVar(&c.DatabaseDriver, "driver", c.DatabaseDriver, "Storage driver postgres|sqlite3|memory (env: DATABASE_DRIVER)")
	flags.StringVarP(&c.DatabaseURI, "database", "d", c.DatabaseURI, "Database URI (env: DATABASE_URI)")
	flags.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Log level (debug|info|warn|error) (env: LOG_LEVEL)")
	flags.StringVar(&c.JWTSecretKey, "jwt-secret", c.JWTSecretKey, "JWT secret key (env: JWT_SECRET_KEY)")
	flags.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "Session token lifetime (env: TOKEN_TTL)")
	flags.StringVar(&c.MigrationsPath, "migrations", c.MigrationsPath, "Path to migrations folder, embedded when empty (env: MIGRATIONS_PATH)")
	flags.StringSliceVar(&c.KafkaBrokers, "kafka-brokers", c.KafkaBrokers, "Kafka brokers, events are dropped when empty (env: KAFKA_BROKERS)")
	flags.StringVar(&c.KafkaTopic, "kafka-topic", c.KafkaTopic, "Kafka topic for movement events (env: KAFKA_TOPIC)")
	flags.IntVar(&c.LedgerMaxRetries, "max-retries", c.LedgerMaxRetries, "Attempts per ledger write on storage conflicts (env: LEDGER_MAX_RETRIES)")
}

// ApplyEnv overrides fields with the environment variables that are set.
func (c *Config) ApplyEnv() error {
	if envAddr := os.Getenv("RUN_ADDRESS"); envAddr != "" {
		c.RunAddress = envAddr
	}
	if envDriver := os.Getenv("DATABASE_DRIVER"); envDriver != "" {
		c.DatabaseDriver = envDriver
	}
	if envDB := os.Getenv("DATABASE_URI"); envDB != "" {
		c.DatabaseURI = envDB
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		c.LogLevel = envLogLevel
	}
	if envSecret := os.Getenv("JWT_SECRET_KEY"); envSecret != "" {
		c.JWTSecretKey = envSecret
	}
	if envTTL := os.Getenv("TOKEN_TTL"); envTTL != "" {
		ttl, err := time.ParseDuration(envTTL)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_TTL: %w", err)
		}
		c.TokenTTL = ttl
	}
	if envMigrations := os.Getenv("MIGRATIONS_PATH"); envMigrations != "" {
		c.MigrationsPath = envMigrations
	}
	if envBrokers := os.Getenv("KAFKA_BROKERS"); envBrokers != "" {
		c.KafkaBrokers = splitList(envBrokers)
	}
	if envTopic := os.Getenv("KAFKA_TOPIC"); envTopic != "" {
		c.KafkaTopic = envTopic
	}
	if envRetries := os.Getenv("LEDGER_MAX_RETRIES"); envRetries != "" {
		retries, err := strconv.Atoi(envRetries)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_MAX_RETRIES: %w", err)
		}
		c.LedgerMaxRetries = retries
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case repository.DriverPostgres, repository.DriverSQLite:
		if c.DatabaseURI == "" {
			errs = append(errs, errors.New("database URI is required (use -d flag or DATABASE_URI env)"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.DatabaseDriver))
	}

	if c.JWTSecretKey == "" {
		errs = append(errs, errors.New("JWT secret key is required (use --jwt-secret flag or JWT_SECRET_KEY env)"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token TTL must be positive, got %s", c.TokenTTL))
	}
	if c.LedgerMaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max retries must be at least 1, got %d", c.LedgerMaxRetries))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}

	return errors.Join(errs...)
}

func (c *Config) MaskDBPassword() string {
	u, err := url.Parse(c.DatabaseURI)
	if err != nil {
		return c.DatabaseURI
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
