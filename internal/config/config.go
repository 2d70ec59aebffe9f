// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config represents the application configuration
type Config struct {
	APIName          string `env:"AT_API_APP_NAME" default:"Autotrader API"`
	APIVersion       string `env:"AT_API_APP_VERSION" default:"1.0.0"`
	ServerPort       string `env:"AT_API_SERVER_PORT" default:"3009"`
	ServerLogLevel   string `env:"AT_API_SERVER_LOG_LEVEL" default:"info"`
	PostgresDsn      string `env:"AT_API_PG_DSN"`
	PostgresLogLevel string `env:"AT_API_PG_LOG_LEVEL" default:"warn"`
	RedisHost        string `env:"AT_API_REDIS_HOST" default:"localhost"`
	RedisPort        string `env:"AT_API_REDIS_PORT" default:"6379"`
	RedisPassword    string `env:"AT_API_REDIS_PASSWORD" default:""`

	// Upstream feed credentials
	KiteUserID     string `env:"AT_API_KITE_USER_ID"`
	KitePassword   string `env:"AT_API_KITE_PASSWORD"`
	KiteTotpSecret string `env:"AT_API_KITE_TOTP_SECRET"`
	KiteBaseURL    string `env:"AT_API_KITE_BASE_URL" default:"https://kite.zerodha.com"`

	// Indicator refresh loop
	RefreshInterval  time.Duration `env:"AT_API_REFRESH_INTERVAL" default:"45s"`
	IdleInterval     time.Duration `env:"AT_API_IDLE_INTERVAL" default:"30s"`
	RefreshBatchSize int           `env:"AT_API_REFRESH_BATCH_SIZE" default:"5"`

	// Historical candle window
	CandleInterval     string `env:"AT_API_CANDLE_INTERVAL" default:"15minute"`
	CandleLookbackDays int    `env:"AT_API_CANDLE_LOOKBACK_DAYS" default:"10"`
	CandleWindowSize   int    `env:"AT_API_CANDLE_WINDOW_SIZE" default:"100"`

	// Position risk parameters
	RiskPercent     float64 `env:"AT_API_RISK_PERCENT" default:"0.01"`
	RiskReward      float64 `env:"AT_API_RISK_REWARD" default:"1.5"`
	MTMEpsilon      float64 `env:"AT_API_MTM_EPSILON" default:"0.05"`
	TargetTolerance float64 `env:"AT_API_TARGET_TOLERANCE" default:"0.01"`

	// Position sizing for signal-opened positions
	DefaultLots int `env:"AT_API_DEFAULT_LOTS" default:"1"`
	DefaultQty  int `env:"AT_API_DEFAULT_QTY" default:"50"`
}

var (
	SingleLine string = "--------------------------------------------------"
)

var (
	instance *Config
	once     sync.Once
	err      error
)

// Get returns the application configuration
func Get() (*Config, error) {
	once.Do(func() {
		instance, err = loadConfig()
	})
	return instance, err
}

// loadConfig loads configuration from environment variables
func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables.
// Fields without a `default` tag are required.
func (c *Config) loadFromEnv() error {
	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(c).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envTag := field.Tag.Get("env")
		if envTag == "" {
			return fmt.Errorf("missing env tag for field %s", field.Name)
		}

		value := os.Getenv(envTag)
		if value == "" {
			defaultValue, ok := field.Tag.Lookup("default")
			if !ok {
				return fmt.Errorf("env variable %s is required but not set", envTag)
			}
			value = defaultValue
		}

		if err := setField(v.Field(i), field.Name, value); err != nil {
			return err
		}
	}

	return nil
}

func setField(f reflect.Value, name, value string) error {
	// time.Duration is an int64 kind, match on type first
	if f.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for field %s: %v", name, err)
		}
		f.SetInt(int64(d))
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(value)
	case reflect.Int:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer for field %s: %v", name, err)
		}
		f.SetInt(n)
	case reflect.Float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float for field %s: %v", name, err)
		}
		f.SetFloat(n)
	default:
		return fmt.Errorf("unsupported config field kind %s for field %s", f.Kind(), name)
	}
	return nil
}

// String returns the configuration as a string
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n--------------------------------------\n")
	sb.WriteString("Configuration:\n")
	sb.WriteString("--------------------------------------\n")

	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(*c)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := fmt.Sprintf("%v", v.Field(i).Interface())

		// Mask sensitive fields
		value = maskSensitiveField(field.Name, value)
		sb.WriteString(fmt.Sprintf("  %s:  %s\n", field.Name, value))
	}

	sb.WriteString("--------------------------------------\n")

	return sb.String()
}

func maskSensitiveField(fieldName, value string) string {
	sensitiveFields := []string{"token", "dsn", "secret", "password", "url"}

	fieldNameLower := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(fieldNameLower, sensitive) {
			return maskValue(value)
		}
	}

	return value
}

func maskValue(value string) string {
	if len(value) <= 3 {
		return strings.Repeat("*", 7)
	}
	return value[:3] + strings.Repeat("*", 7)
}
