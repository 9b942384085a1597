package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/provisioning"
	"github.com/tjfontaine/agent-launcher/internal/roomurl"
)

// EnvPrefix prefixes every environment override. Nested keys use "__",
// e.g. LAUNCHER_BACKEND__URL sets backend.url.
const EnvPrefix = "LAUNCHER_"

// Config is built once at startup and never modified afterwards.
type Config struct {
	App       AppConfig        `koanf:"app"`
	Backend   BackendConfig    `koanf:"backend"`
	Room      RoomConfig       `koanf:"room"`
	Scenarios []ScenarioConfig `koanf:"scenarios"`
	Listen    ListenConfig     `koanf:"listen"`
	Storage   StorageConfig    `koanf:"storage"`
	Bridge    BridgeConfig     `koanf:"bridge"`
}

type AppConfig struct {
	Title             string `koanf:"title"`
	Maintenance       bool   `koanf:"maintenance"`         // serve only the maintenance notice
	ManualRoomEntry   bool   `koanf:"manual_room_entry"`   // never provision, even with a backend url
	ShowConfigOptions bool   `koanf:"show_config_options"` // start in idle instead of configuring_step1
	OpenMic           bool   `koanf:"open_mic"`            // forwarded to the presentation layer only
}

// BackendConfig points at the bot server. An empty URL disables provisioning.
type BackendConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

type RoomConfig struct {
	Host string `koanf:"host"` // validator host, e.g. daily.co
	URL  string `koanf:"url"`  // room_url supplied up front (query parameter)
}

type ScenarioConfig struct {
	ID    string `koanf:"id"`
	Label string `koanf:"label"`
}

type ListenConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// BridgeConfig points at the real-time client bridge. Empty means dry run.
type BridgeConfig struct {
	URL string `koanf:"url"`
}

// ProvisioningEnabled reports whether rooms are created on the bot server.
func (c *Config) ProvisioningEnabled() bool {
	return c.Backend.URL != "" && !c.App.ManualRoomEntry
}

// Catalog returns the configured scenarios or the built-in catalog.
func (c *Config) Catalog() domain.Catalog {
	if len(c.Scenarios) == 0 {
		return domain.DefaultCatalog
	}
	out := make(domain.Catalog, 0, len(c.Scenarios))
	for _, s := range c.Scenarios {
		out = append(out, domain.Scenario{ID: s.ID, Label: s.Label})
	}
	return out
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (missing is fine) and then LAUNCHER_* environment
// variables, which win. The backend URL is normalized here and nowhere else.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	defaults := map[string]any{
		"listen.port":         8080,
		"backend.timeout":     "30s",
		"room.host":           roomurl.DefaultHost,
		"storage.type":        "memory",
		"storage.sqlite.path": "./data/launcher.db",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Backend.URL = provisioning.NormalizeBaseURL(substituteEnvVars(cfg.Backend.URL))
	cfg.Bridge.URL = substituteEnvVars(cfg.Bridge.URL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that koanf cannot.
func (c *Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	switch c.Storage.Type {
	case "sqlite", "memory", "none":
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	seen := make(map[string]bool, len(c.Scenarios))
	for _, s := range c.Scenarios {
		if s.ID == "" || s.ID == domain.PlaceholderScenario {
			return fmt.Errorf("scenario id %q is reserved", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate scenario %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
