package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Map      MapConfig
	Places   PlacesConfig
	CORS     CORSConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Secure         bool     // Use HTTPS-only cookies
	Environment    string   // "development", "production", "test"
	TrustedProxies []string // IPs or CIDRs allowed to set X-Forwarded-For
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MaxConns      int32
	MinConns      int32
	MigrationsDir string // overrides the embedded migrations when set
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// MapConfig controls map session behaviour.
type MapConfig struct {
	// CreatorOnlyApproval restricts participant approval to the session creator.
	CreatorOnlyApproval bool
	// PollInterval is advertised to clients in session responses.
	PollInterval time.Duration
}

type PlacesConfig struct {
	NominatimURL string
	WikipediaURL string
	UserAgent    string
	CacheTTL     time.Duration
	Timeout      time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			Secure:         getEnvBool("SERVER_SECURE", false),
			Environment:    getEnv("APP_ENV", "development"),
			TrustedProxies: getEnvList("SERVER_TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "friendhub"),
			Password:      getEnv("DB_PASSWORD", "friendhub"),
			DBName:        getEnv("DB_NAME", "friendhub"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MaxConns:      int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns:      int32(getEnvInt("DB_MIN_CONNS", 5)),
			MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Map: MapConfig{
			CreatorOnlyApproval: getEnvBool("MAP_CREATOR_ONLY_APPROVAL", false),
			PollInterval:        getEnvDuration("MAP_POLL_INTERVAL", 2*time.Second),
		},
		Places: PlacesConfig{
			NominatimURL: getEnv("PLACES_NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
			WikipediaURL: getEnv("PLACES_WIKIPEDIA_URL", "https://en.wikipedia.org/w/api.php"),
			UserAgent:    getEnv("PLACES_USER_AGENT", "FriendHub/1.0 (+https://friendhub.app)"),
			CacheTTL:     getEnvDuration("PLACES_CACHE_TTL", 10*time.Minute),
			Timeout:      getEnvDuration("PLACES_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("invalid APP_ENV %q", c.Server.Environment)
	}
	if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS %d/%d", c.Database.MinConns, c.Database.MaxConns)
	}
	for _, proxy := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			return fmt.Errorf("invalid SERVER_TRUSTED_PROXIES entry %q", proxy)
		}
	}
	if c.Map.PollInterval <= 0 {
		return errors.New("MAP_POLL_INTERVAL must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.Log.Format)
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
