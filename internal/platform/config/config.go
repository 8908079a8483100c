package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa todo lo configurable del gateway.
// Se lee de env (AutomaticEnv) y opcionalmente de config.yaml.
type Config struct {
	Env     string `mapstructure:"ENV"`
	Port    string `mapstructure:"PORT"`
	AppName string `mapstructure:"APP_NAME"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Backend de turnos (FastAPI). BackendAPIPrefix se antepone a todos los paths.
	BackendAPIURL    string        `mapstructure:"BACKEND_API_URL"`
	BackendAPIPrefix string        `mapstructure:"BACKEND_API_PREFIX"`
	BackendTimeout   time.Duration `mapstructure:"BACKEND_TIMEOUT"` // 0 = sin timeout propio

	// Auditoría de acciones: memory | postgres | sqlite
	AuditDriver string `mapstructure:"AUDIT_DRIVER"`
	DBDSN       string `mapstructure:"DB_DSN"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	// Cache de vistas de turnos: memory | redis
	CacheDriver   string        `mapstructure:"CACHE_DRIVER"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	LoginRatePerMin int `mapstructure:"LOGIN_RATE_PER_MIN"`
	LoginBurst      int `mapstructure:"LOGIN_BURST"`

	// Solo detrás de un proxy propio: habilita X-Forwarded-For / X-Real-IP como IP del cliente.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`
}

var defaults = map[string]any{
	"ENV":                "development",
	"PORT":               "8080",
	"APP_NAME":           "turnos-gateway",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "text",
	"BACKEND_API_URL":    "http://localhost:8000",
	"BACKEND_API_PREFIX": "/api",
	"BACKEND_TIMEOUT":    "0s",
	"AUDIT_DRIVER":       "memory",
	"DB_DSN":             "",
	"SQLITE_PATH":        "turnos-gateway.db",
	"CACHE_DRIVER":       "memory",
	"REDIS_ADDR":         "localhost:6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"CACHE_TTL":          "5m",
	"LOGIN_RATE_PER_MIN": 20,
	"LOGIN_BURST":        5,

	"TRUST_PROXY_HEADERS": false,
}

// Load lee config.yaml (si existe en . o ./config) y env.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.BackendAPIURL = strings.TrimRight(strings.TrimSpace(c.BackendAPIURL), "/")
	c.BackendAPIPrefix = strings.TrimRight(strings.TrimSpace(c.BackendAPIPrefix), "/")
	if c.BackendAPIPrefix != "" && !strings.HasPrefix(c.BackendAPIPrefix, "/") {
		c.BackendAPIPrefix = "/" + c.BackendAPIPrefix
	}
	c.AuditDriver = strings.ToLower(strings.TrimSpace(c.AuditDriver))
	c.CacheDriver = strings.ToLower(strings.TrimSpace(c.CacheDriver))
	if c.BackendTimeout < 0 {
		c.BackendTimeout = 0
	}
}

func (c Config) Validate() error {
	if c.BackendAPIURL == "" {
		return errors.New("config: BACKEND_API_URL required")
	}
	switch c.AuditDriver {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.DBDSN) == "" {
			return errors.New("config: DB_DSN required when AUDIT_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown AUDIT_DRIVER %q", c.AuditDriver)
	}
	switch c.CacheDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown CACHE_DRIVER %q", c.CacheDriver)
	}
	return nil
}

// IsProduction decide el flag Secure de la cookie de sesión.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// BackendBaseURL es la URL del backend con el prefijo de API ya aplicado.
func (c Config) BackendBaseURL() string {
	return c.BackendAPIURL + c.BackendAPIPrefix
}
