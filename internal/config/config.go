package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is everything the API process reads from its environment. Values
// come from env vars, optionally seeded from a .env file (ENV_FILE or
// ./.env); variables already set in the environment win over the file.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Twilio TwilioConfig
	Inbox  InboxConfig
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
	// disable, require, verify-ca or verify-full
	SSLMode string
	// MaxOpenConns bounds the pool; 0 uses the utils.PoolConfig default.
	MaxOpenConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type TwilioConfig struct {
	// AuthToken signs status callbacks (X-Twilio-Signature). Empty disables the check.
	AuthToken string
	// PublicBaseURL is the URL Twilio posts to, as seen from outside. The
	// signature covers it.
	PublicBaseURL string
}

type InboxConfig struct {
	// MaxConcurrentLoads caps parallel unified inbox loads per operator. 0 disables the cap.
	MaxConcurrentLoads int
	LoadSlotTTL        time.Duration
}

// Load reads the environment (after the optional .env file), fills defaults
// and validates the result.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	var e envReader
	c := Config{
		App: AppConfig{
			Env:  e.str("APP_ENV"),
			Port: e.requiredInt("APP_PORT"),
		},
		DB: DBConfig{
			Host:         e.str("DB_HOST"),
			Port:         e.requiredInt("DB_PORT"),
			User:         e.str("DB_USER"),
			Password:     os.Getenv("DB_PASSWORD"),
			Name:         e.str("DB_NAME"),
			SSLMode:      e.str("DB_SSLMODE"),
			MaxOpenConns: e.optionalInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     e.str("REDIS_HOST"),
			Port:     e.requiredInt("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			JWTIssuer:      e.str("JWT_ISSUER"),
			JWTAudience:    e.str("JWT_AUDIENCE"),
			AccessTokenTTL: e.optionalDuration("JWT_ACCESS_TTL"),
		},
		Twilio: TwilioConfig{
			AuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
			PublicBaseURL: strings.TrimRight(e.str("TWILIO_PUBLIC_BASE_URL"), "/"),
		},
		Inbox: InboxConfig{
			MaxConcurrentLoads: e.optionalInt("INBOX_MAX_CONCURRENT_LOADS"),
			LoadSlotTTL:        e.optionalDuration("INBOX_LOAD_SLOT_TTL"),
		},
	}
	if err := joinErrors(e.errs); err != nil {
		return Config{}, err
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func loadDotEnv() error {
	if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("ENV_FILE %q: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env: %w", err)
	}
	return nil
}

// applyDefaults fills optional values. Production must set DB_SSLMODE explicitly.
func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" && !c.IsProduction() {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Inbox.LoadSlotTTL <= 0 {
		c.Inbox.LoadSlotTTL = 30 * time.Second
	}
}

// Validate reports every problem at once, one per line.
func (c Config) Validate() error {
	prod := c.IsProduction()
	var errs []error
	errs = append(errs, c.App.problems()...)
	errs = append(errs, c.DB.problems(prod)...)
	errs = append(errs, c.Redis.problems()...)
	errs = append(errs, c.Auth.problems(prod)...)
	errs = append(errs, c.Twilio.problems(prod)...)
	if c.Inbox.MaxConcurrentLoads < 0 {
		errs = append(errs, fmt.Errorf("INBOX_MAX_CONCURRENT_LOADS must be >= 0, got %d", c.Inbox.MaxConcurrentLoads))
	}
	return joinErrors(errs)
}

func (a AppConfig) problems() []error {
	var errs []error
	switch a.Env {
	case "":
		errs = append(errs, errors.New("APP_ENV is required"))
	case "local", "dev", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", a.Env))
	}
	return appendPort(errs, "APP_PORT", a.Port)
}

func (d DBConfig) problems(production bool) []error {
	errs := required(nil, "DB_HOST", d.Host)
	errs = appendPort(errs, "DB_PORT", d.Port)
	errs = required(errs, "DB_USER", d.User)
	errs = required(errs, "DB_NAME", d.Name)
	switch d.SSLMode {
	case "":
		errs = append(errs, errors.New("DB_SSLMODE is required"))
	case "disable":
		if production {
			errs = append(errs, errors.New("DB_SSLMODE=disable is not allowed in production"))
		}
	case "require", "verify-ca", "verify-full":
	default:
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", d.SSLMode))
	}
	if d.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 0, got %d", d.MaxOpenConns))
	}
	return errs
}

func (r RedisConfig) problems() []error {
	errs := required(nil, "REDIS_HOST", r.Host)
	return appendPort(errs, "REDIS_PORT", r.Port)
}

func (a AuthConfig) problems(production bool) []error {
	errs := required(nil, "JWT_SECRET", a.JWTSecret)
	if production {
		if a.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if a.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if a.AccessTokenTTL > 24*time.Hour {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_TTL must be at most 24h, got %s", a.AccessTokenTTL))
	}
	return errs
}

func (t TwilioConfig) problems(production bool) []error {
	var errs []error
	if production && t.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required in production"))
	}
	if t.AuthToken != "" && t.PublicBaseURL == "" {
		errs = append(errs, errors.New("TWILIO_PUBLIC_BASE_URL is required when TWILIO_AUTH_TOKEN is set"))
	}
	return errs
}

func required(errs []error, key, v string) []error {
	if v == "" {
		return append(errs, fmt.Errorf("%s is required", key))
	}
	return errs
}

func appendPort(errs []error, key string, port int) []error {
	if port <= 0 || port > 65535 {
		return append(errs, fmt.Errorf("%s must be a valid port, got %d", key, port))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// PostgresDSN carries the password; never log it.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// envReader reads trimmed env vars and collects parse errors so Load can
// report all of them together.
type envReader struct {
	errs []error
}

func (e *envReader) str(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (e *envReader) requiredInt(key string) int {
	v := e.str(key)
	if v == "" {
		e.errs = append(e.errs, fmt.Errorf("%s is required", key))
		return 0
	}
	return e.atoi(key, v)
}

func (e *envReader) optionalInt(key string) int {
	if v := e.str(key); v != "" {
		return e.atoi(key, v)
	}
	return 0
}

func (e *envReader) atoi(key, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n
}

func (e *envReader) optionalDuration(key string) time.Duration {
	v := e.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, "- "+e.Error())
	}
	return errors.New("config errors:\n" + strings.Join(lines, "\n"))
}
