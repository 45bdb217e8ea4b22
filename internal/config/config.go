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
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Rooms    RoomsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// ProviderConfig holds credentials for the external call provider.
// APIKey identifies the app; APISecret signs server tokens for provider REST calls.
type ProviderConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string

	// RequestTimeout bounds a single provider API call.
	RequestTimeout time.Duration
}

// RoomsConfig carries lifecycle tunables. The defaults mirror long-standing
// production values; they are configurable rather than re-derived.
type RoomsConfig struct {
	// InactivityThreshold terminates rooms the provider has not touched for this long.
	InactivityThreshold time.Duration

	// BanMonitorWindow bounds how long ban enforcement keeps re-checking membership.
	BanMonitorWindow time.Duration

	// BanMonitorInterval is the base delay between ban verification attempts.
	BanMonitorInterval time.Duration

	// WebhookDedupTTL is how long a processed delivery id stays marked in Redis.
	WebhookDedupTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Provider.BaseURL = strings.TrimSpace(os.Getenv("CALL_PROVIDER_BASE_URL"))
	c.Provider.APIKey = strings.TrimSpace(os.Getenv("CALL_PROVIDER_API_KEY"))
	c.Provider.APISecret = os.Getenv("CALL_PROVIDER_API_SECRET")
	c.Provider.RequestTimeout = mustDuration("CALL_PROVIDER_TIMEOUT")

	c.Rooms.InactivityThreshold = mustDuration("ROOM_INACTIVITY_THRESHOLD")
	c.Rooms.BanMonitorWindow = mustDuration("ROOM_BAN_MONITOR_WINDOW")
	c.Rooms.BanMonitorInterval = mustDuration("ROOM_BAN_MONITOR_INTERVAL")
	c.Rooms.WebhookDedupTTL = mustDuration("WEBHOOK_DEDUP_TTL")

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

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("CALL_PROVIDER_API_KEY is required"))
	}
	if c.Provider.APISecret == "" {
		errs = append(errs, errors.New("CALL_PROVIDER_API_SECRET is required"))
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://video.stream-io-api.com"
	}
	if c.Provider.RequestTimeout <= 0 {
		c.Provider.RequestTimeout = 10 * time.Second
	}

	if c.Rooms.InactivityThreshold <= 0 {
		c.Rooms.InactivityThreshold = 5 * time.Minute
	}
	if c.Rooms.BanMonitorWindow <= 0 {
		c.Rooms.BanMonitorWindow = 30 * time.Second
	}
	if c.Rooms.BanMonitorInterval <= 0 {
		c.Rooms.BanMonitorInterval = 2 * time.Second
	}
	if c.Rooms.WebhookDedupTTL <= 0 {
		c.Rooms.WebhookDedupTTL = 24 * time.Hour
	}
	if c.Rooms.BanMonitorInterval >= c.Rooms.BanMonitorWindow {
		errs = append(errs, errors.New("ROOM_BAN_MONITOR_INTERVAL must be less than ROOM_BAN_MONITOR_WINDOW"))
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
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
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

func mustDuration(key string) time.Duration {
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
