// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database selection, the session/invitation store backend, the
// shared API key, event publishing and observability settings.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported values for DBConfig.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported values for StoreConfig.Backend.
const (
	StoreMemory = "memory" // process cache only
	StoreFile   = "file"   // process cache + JSON files under DataDir
	StoreBadger = "badger" // process cache + badger directory under DataDir
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and configures the relational store.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH (sqlite)
	DSN    string // DATABASE_DSN (postgres)
}

// StoreConfig configures the session and invitation key-value stores.
type StoreConfig struct {
	Backend       string        // STORE_BACKEND: memory|file|badger
	DataDir       string        // DATA_DIR
	InvitationTTL time.Duration // INVITATION_TTL
}

// TokensFile is the JSON document backing the session store in file mode.
func (s StoreConfig) TokensFile() string { return filepath.Join(s.DataDir, "tokens.json") }

// InvitationsFile is the JSON document backing the invitation store in file mode.
func (s StoreConfig) InvitationsFile() string { return filepath.Join(s.DataDir, "invitations.json") }

// BadgerDir is the badger directory used in badger mode.
func (s StoreConfig) BadgerDir() string { return filepath.Join(s.DataDir, "badger") }

// AuthConfig holds the shared API key and password hashing policy.
type AuthConfig struct {
	APIKey         string // API_KEY; empty means "unconfigured"
	PasswordHasher string // PASSWORD_HASHER: bcrypt|argon2id
	BcryptCost     int    // BCRYPT_COST
}

// EventsConfig configures domain event publishing.
type EventsConfig struct {
	AMQPURL  string // AMQP_URL; empty selects the noop publisher
	Exchange string // AMQP_EXCHANGE
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	GzipEnabled    bool   // gzip responses when the client accepts it
	APIBasePath    string // base path for API routes

	// App
	DB             DBConfig
	Store          StoreConfig
	Auth           AuthConfig
	Events         EventsConfig
	NearbyRadiusKm float64

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// APIKeyConfigured reports whether a shared API key was provided.
func (c Config) APIKeyConfigured() bool { return strings.TrimSpace(c.Auth.APIKey) != "" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		GzipEnabled:    getbool("GZIP_ENABLED", true),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// App
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", DriverSQLite)),
			Path:   getenv("DB_PATH", "app.db"),
			DSN:    getenv("DATABASE_DSN", ""),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getenv("STORE_BACKEND", StoreFile)),
			DataDir:       getenv("DATA_DIR", "var"),
			InvitationTTL: getdur("INVITATION_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			APIKey:         os.Getenv("API_KEY"),
			PasswordHasher: strings.ToLower(getenv("PASSWORD_HASHER", "bcrypt")),
			BcryptCost:     getint("BCRYPT_COST", 10),
		},
		Events: EventsConfig{
			AMQPURL:  getenv("AMQP_URL", ""),
			Exchange: getenv("AMQP_EXCHANGE", "geochat.events"),
		},
		NearbyRadiusKm: getfloat("NEARBY_RADIUS_KM", 5.0),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-geochat-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "sqlite3" {
		cfg.DB.Driver = DriverSQLite
	}
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "pg" {
		cfg.DB.Driver = DriverPostgres
	}
	if cfg.Auth.PasswordHasher == "argon2" {
		cfg.Auth.PasswordHasher = "argon2id"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DATABASE_DSN must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	switch cfg.Store.Backend {
	case StoreMemory, StoreFile, StoreBadger:
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: memory, file, badger")
	}
	if cfg.Store.Backend != StoreMemory && strings.TrimSpace(cfg.Store.DataDir) == "" {
		return cfg, errors.New("DATA_DIR must not be empty")
	}
	if cfg.Store.InvitationTTL <= 0 {
		return cfg, errors.New("INVITATION_TTL must be > 0")
	}
	switch cfg.Auth.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return cfg, errors.New("PASSWORD_HASHER must be one of: bcrypt, argon2id")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return cfg, errors.New("BCRYPT_COST must be between 4 and 31")
	}
	if strings.TrimSpace(cfg.Events.Exchange) == "" {
		return cfg, errors.New("AMQP_EXCHANGE must not be empty")
	}
	if cfg.NearbyRadiusKm <= 0 {
		return cfg, errors.New("NEARBY_RADIUS_KM must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
