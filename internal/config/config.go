package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Store     StoreConfig
	Directory DirectoryConfig
	IDP       IDPConfig
	Session   SessionConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// StoreConfig selects the shared state medium.
// memory: single-process only. redis: cross-process convergence.
type StoreConfig struct {
	Driver string

	RedisHost string
	RedisPort int
}

// DirectoryConfig selects the catalogue directory backend.
type DirectoryConfig struct {
	Driver string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// DBSSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	DBSSLMode string
}

type IDPConfig struct {
	BaseURL    string
	AdminToken string
	Timeout    time.Duration
}

// SessionConfig carries the renewal and freshness policy.
type SessionConfig struct {
	// ReactiveMinValidity is the remaining validity at which the expiry
	// trigger renews.
	ReactiveMinValidity time.Duration
	// PreventiveThreshold is the higher bound the recurring timer maintains.
	// Must exceed ReactiveMinValidity.
	PreventiveThreshold time.Duration
	// PreventivePeriod is the recurring timer interval.
	PreventivePeriod time.Duration
	// StalenessWindow separates fresh logins from silent re-validations.
	StalenessWindow time.Duration
}

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.Driver = strings.TrimSpace(os.Getenv("STORE_DRIVER"))
	c.Store.RedisHost = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Store.RedisPort = optInt("REDIS_PORT")

	c.Directory.Driver = strings.TrimSpace(os.Getenv("DIRECTORY_DRIVER"))
	c.Directory.DBHost = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.Directory.DBPort = optInt("DB_PORT")
	c.Directory.DBUser = strings.TrimSpace(os.Getenv("DB_USER"))
	c.Directory.DBPassword = os.Getenv("DB_PASSWORD")
	c.Directory.DBName = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.Directory.DBSSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.IDP.BaseURL = strings.TrimSpace(os.Getenv("IDP_BASE_URL"))
	c.IDP.AdminToken = os.Getenv("IDP_ADMIN_TOKEN")
	c.IDP.Timeout = optDuration("IDP_TIMEOUT")

	// Policy durations are optional; defaults applied in Validate().
	c.Session.ReactiveMinValidity = optDuration("SESSION_REACTIVE_MIN_VALIDITY")
	c.Session.PreventiveThreshold = optDuration("SESSION_PREVENTIVE_THRESHOLD")
	c.Session.PreventivePeriod = optDuration("SESSION_PREVENTIVE_PERIOD")
	c.Session.StalenessWindow = optDuration("SESSION_STALENESS_WINDOW")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Store.Driver == "" {
		// Local-friendly default; production must be explicit.
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_DRIVER is required in production"))
		} else {
			c.Store.Driver = DriverMemory
		}
	}
	switch c.Store.Driver {
	case "", DriverMemory:
	case DriverRedis:
		if c.Store.RedisHost == "" {
			errs = append(errs, errors.New("REDIS_HOST is required for the redis store driver"))
		}
		if c.Store.RedisPort <= 0 || c.Store.RedisPort > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Store.RedisPort))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be memory or redis, got %q", c.Store.Driver))
	}

	if c.Directory.Driver == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DIRECTORY_DRIVER is required in production"))
		} else {
			c.Directory.Driver = DriverMemory
		}
	}
	switch c.Directory.Driver {
	case "", DriverMemory:
	case DriverPostgres:
		if c.Directory.DBHost == "" {
			errs = append(errs, errors.New("DB_HOST is required for the postgres directory driver"))
		}
		if c.Directory.DBPort <= 0 || c.Directory.DBPort > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.Directory.DBPort))
		}
		if c.Directory.DBUser == "" {
			errs = append(errs, errors.New("DB_USER is required for the postgres directory driver"))
		}
		if c.Directory.DBName == "" {
			errs = append(errs, errors.New("DB_NAME is required for the postgres directory driver"))
		}
		if c.Directory.DBSSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.Directory.DBSSLMode = "disable"
			}
		}
		if c.Directory.DBSSLMode != "" && !isValidSSLMode(c.Directory.DBSSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.Directory.DBSSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("DIRECTORY_DRIVER must be memory or postgres, got %q", c.Directory.Driver))
	}

	if c.IDP.BaseURL == "" {
		errs = append(errs, errors.New("IDP_BASE_URL is required"))
	}
	if c.IDP.Timeout <= 0 {
		c.IDP.Timeout = 10 * time.Second
	}

	if c.Session.ReactiveMinValidity <= 0 {
		c.Session.ReactiveMinValidity = 30 * time.Second
	}
	if c.Session.PreventiveThreshold <= 0 {
		c.Session.PreventiveThreshold = 5 * time.Minute
	}
	if c.Session.PreventivePeriod <= 0 {
		c.Session.PreventivePeriod = time.Minute
	}
	if c.Session.StalenessWindow <= 0 {
		c.Session.StalenessWindow = 24 * time.Hour
	}
	if c.Session.PreventiveThreshold <= c.Session.ReactiveMinValidity {
		errs = append(errs, errors.New("SESSION_PREVENTIVE_THRESHOLD must be greater than SESSION_REACTIVE_MIN_VALIDITY"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Directory.DBHost,
		c.Directory.DBPort,
		c.Directory.DBUser,
		c.Directory.DBPassword,
		c.Directory.DBName,
		c.Directory.DBSSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Store.RedisHost, c.Store.RedisPort)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
