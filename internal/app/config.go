package app

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Placeholders shown on the about endpoint when no identity is configured.
const (
	DefaultDisplayName = "Student Name"
	DefaultDisplayID   = "0000-00-00000"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CATALOG_ prefix), flags, a .env file or YAML config
// files.
type Config struct {
	Addr string `default:"0.0.0.0:8080" validate:"required" usage:"HTTP listen address"`
	// BaseURL selects the remote catalog. When empty the bundled dataset is
	// served instead.
	BaseURL      string `env:"BASE_URL" flag:"base-url" validate:"omitempty,url" usage:"Remote cocktail API base URL"`
	ProductsPath string `env:"PRODUCTS_PATH" flag:"products-path" usage:"Default listing path, relative to the base URL"`
	DatasetPath  string `env:"DATASET_PATH" flag:"dataset-path" usage:"Fallback dataset file (.json or .json.gz); empty uses the embedded one"`

	DisplayName string `env:"DISPLAY_NAME" flag:"display-name" default:"Student Name" usage:"Name shown on the about endpoint"`
	DisplayID   string `env:"DISPLAY_ID" flag:"display-id" default:"0000-00-00000" usage:"Id shown on the about endpoint"`

	PageSize       int           `env:"PAGE_SIZE" flag:"page-size" yaml:"page_size" default:"8" validate:"min=1,max=100" usage:"Catalog page size"`
	Locale         string        `default:"en" validate:"required,bcp47_language_tag" usage:"Collation locale for title and category sorting"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" flag:"request-timeout" default:"10s" validate:"gt=0" usage:"Remote request timeout"`
	WaitTimeout    time.Duration `env:"WAIT_TIMEOUT" flag:"wait-timeout" default:"5s" validate:"gt=0" usage:"Upper bound for ?wait=true requests"`
	SecureCookie   bool          `env:"SECURE_COOKIE" flag:"secure-cookie" default:"false" usage:"Mark the session cookie Secure"`

	Session   SessionConfig `yaml:"session"`
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// SessionConfig bounds the per-session controller store.
type SessionConfig struct {
	IdleTTL     time.Duration `env:"IDLE_TTL" flag:"idle-ttl" default:"30m" validate:"gte=0" usage:"Drop sessions idle for this long"`
	MaxSessions int           `env:"MAX_SESSIONS" flag:"max-sessions" yaml:"max_sessions" default:"10000" validate:"gte=0" usage:"Maximum live sessions"`
	// CreateMax bounds new sessions per client address and CreateWindow.
	CreateMax    int           `env:"CREATE_MAX" flag:"session-create-max" yaml:"create_max" default:"30" validate:"gte=0" usage:"Max new sessions per address per window"`
	CreateWindow time.Duration `env:"CREATE_WINDOW" flag:"session-create-window" yaml:"create_window" default:"1m" validate:"gte=0" usage:"Session creation rate limit window"`
}

// RateLimitConfig controls the per-session sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"120" validate:"gte=0" usage:"Max requests per window"`
	Window time.Duration `default:"1m" validate:"gte=0" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `env:"ALLOW_CREDENTIALS" flag:"cors-credentials" default:"false" usage:"Allow the session cookie cross-origin"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `env:"READINESS_DELAY" flag:"readiness-delay" default:"3s" usage:"Delay after readiness=false before shutdown"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" flag:"shutdown-timeout" default:"15s" usage:"Maximum shutdown duration"`
}

// LoadConfig reads .env, then environment variables, flags and YAML config
// files, applies platform fallbacks and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/catalog/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	ac.EnvPrefix = "CATALOG"
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the variable names used by hosting platforms and
// the Vite frontend build onto the configuration when the CATALOG_ ones
// are not set.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	fallback := func(dst *string, unset, env string) {
		if *dst == unset {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				*dst = v
			}
		}
	}
	fallback(&c.BaseURL, "", "VITE_API_BASE_URL")
	fallback(&c.ProductsPath, "", "VITE_PRODUCTS_PATH")
	fallback(&c.DisplayName, DefaultDisplayName, "VITE_STUDENT_NAME")
	fallback(&c.DisplayID, DefaultDisplayID, "VITE_STUDENT_ID")
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
}

// Language returns the parsed collation locale.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}
