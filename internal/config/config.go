package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Policy   PolicyConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// PolicyConfig holds the enforcement thresholds. Every value must be
// strictly positive; a zero or negative value fails startup rather than
// silently disabling protection.
type PolicyConfig struct {
	HistoryDepth       int           `validate:"required,gt=0"`
	FailureThreshold   int           `validate:"required,gt=0"`
	LockoutDuration    time.Duration `validate:"required,gt=0"`
	MinimumPasswordAge time.Duration `validate:"required,gt=0"`
}

var validate = validator.New()

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "bastion"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Policy: PolicyConfig{
			HistoryDepth:       getEnvAsInt("POLICY_HISTORY_DEPTH", 5),
			FailureThreshold:   getEnvAsInt("POLICY_FAILURE_THRESHOLD", 5),
			LockoutDuration:    getEnvAsDuration("POLICY_LOCKOUT_DURATION", 15*time.Minute),
			MinimumPasswordAge: getEnvAsDuration("POLICY_MINIMUM_PASSWORD_AGE", 24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fails fast on any non-positive policy value.
func (p *PolicyConfig) Validate() error {
	if err := validate.Struct(p); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return &models.ConfigError{
				Field:  ve[0].StructField(),
				Reason: "must be strictly positive",
			}
		}
		return &models.ConfigError{Field: "policy", Reason: err.Error()}
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
