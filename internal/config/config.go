package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DivergencePolicy controls how a session behaves after the Remote backend
// has failed once. Neither policy reconciles Remote and Local afterwards.
type DivergencePolicy string

const (
	// DivergenceAccept keeps trying Remote first on every call and accepts
	// that canvases written to Local while degraded stay Local-only.
	DivergenceAccept DivergencePolicy = "accept"

	// DivergenceSticky pins the session to Local after the first Remote
	// failure, until the process restarts.
	DivergenceSticky DivergencePolicy = "sticky"
)

type Config struct {
	Port           string
	Environment    string
	DatabaseURL    string // Remote backend; empty = Local only
	JWKSURL        string // Identity provider key set; empty = anonymous owners only
	CORSOrigins    string
	TablePrefix    string
	LocalStorePath string // Badger directory; empty = in-memory
	LogDir         string
	// Debug flags
	Debug bool

	Workspace WorkspaceConfig
}

// WorkspaceConfig holds tuning for a single workspace session. It can be
// overlaid from a YAML file (see LoadWorkspaceFile).
type WorkspaceConfig struct {
	MaxLoadedCanvases  int              `yaml:"max_loaded_canvases"`
	AutoOpenDwell      time.Duration    `yaml:"auto_open_dwell"`
	DragSettleDelay    time.Duration    `yaml:"drag_settle_delay"`
	DeleteSettleDelay  time.Duration    `yaml:"delete_settle_delay"`
	DivergencePolicy   DivergencePolicy `yaml:"divergence_policy"`
	DefaultCanvasTitle string           `yaml:"default_canvas_title"`
	EventReplay        int              `yaml:"event_replay"`
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWKSURL:        getEnv("JWKS_URL", ""),
		CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:    getTablePrefix(env),
		LocalStorePath: getEnv("LOCAL_STORE_PATH", ""),
		LogDir:         getEnv("LOG_DIR", ""),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",

		Workspace: DefaultWorkspaceConfig(),
	}

	cfg.Workspace.MaxLoadedCanvases = getEnvInt("MAX_LOADED_CANVASES", cfg.Workspace.MaxLoadedCanvases)
	cfg.Workspace.DivergencePolicy = DivergencePolicy(getEnv("DIVERGENCE_POLICY", string(cfg.Workspace.DivergencePolicy)))

	return cfg
}

// DefaultWorkspaceConfig returns the tuning used when nothing is configured.
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		MaxLoadedCanvases:  DefaultMaxLoadedCanvases,
		AutoOpenDwell:      DefaultAutoOpenDwell,
		DragSettleDelay:    DefaultDragSettleDelay,
		DeleteSettleDelay:  DefaultDeleteSettleDelay,
		DivergencePolicy:   DivergenceAccept,
		DefaultCanvasTitle: DefaultCanvasTitle,
		EventReplay:        DefaultEventReplay,
	}
}

// LoadWorkspaceFile overlays workspace tuning from a YAML file onto base.
// Fields absent from the file keep their base values.
func LoadWorkspaceFile(path string, base WorkspaceConfig) (WorkspaceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read workspace config: %w", err)
	}

	var file struct {
		Workspace WorkspaceConfig `yaml:"workspace"`
	}
	file.Workspace = base
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parse workspace config: %w", err)
	}

	if err := file.Workspace.Validate(); err != nil {
		return base, fmt.Errorf("invalid workspace config: %w", err)
	}
	return file.Workspace, nil
}

// Validate checks the tuning values are usable.
func (c WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxLoadedCanvases, validation.Required, validation.Min(1)),
		validation.Field(&c.AutoOpenDwell, validation.Min(time.Duration(0))),
		validation.Field(&c.DragSettleDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.DeleteSettleDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.DivergencePolicy, validation.In(DivergenceAccept, DivergenceSticky)),
		validation.Field(&c.DefaultCanvasTitle, validation.Required, validation.Length(1, MaxCanvasTitleLength)),
		validation.Field(&c.EventReplay, validation.Min(0)),
	)
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
