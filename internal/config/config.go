// Package config resolves autoledger settings from file, environment and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/autoledger/internal/audit"
	"github.com/Veraticus/autoledger/internal/common"
	"github.com/Veraticus/autoledger/internal/parser"
)

// Dedup window bounds in seconds.
const (
	MinDedupWindowSeconds     = 1
	MaxDedupWindowSeconds     = 600
	DefaultDedupWindowSeconds = 20
)

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "~/.local/share/autoledger/autoledger.db"

// Config is the resolved runtime configuration.
type Config struct {
	Logging      LoggingConfig
	DatabasePath string
	Apps         []AppConfig
	Dedup        DedupConfig
	Audit        AuditConfig
	Thresholds   parser.Thresholds
}

// AppConfig overrides processing for one notification source. Apps are a
// list because package names contain dots, which viper treats as key paths.
type AppConfig struct {
	Enabled   *bool    `mapstructure:"enabled"`
	Package   string   `mapstructure:"package"`
	Blacklist []string `mapstructure:"blacklist"`
}

// IsEnabled reports whether automatic bookkeeping is on; it defaults to true.
func (a AppConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// DedupConfig controls duplicate suppression.
type DedupConfig struct {
	Enabled bool
	// Window is applied on both sides of a notification's post time.
	Window time.Duration
	// MaxEventsPerWindow caps accepted notifications per package inside one
	// window. Zero disables the cap.
	MaxEventsPerWindow int
}

// AuditConfig controls debug records.
type AuditConfig struct {
	Policy audit.Policy
	// MaskAtRest masks records before they are written.
	MaskAtRest bool
	// MaskAfter is the default age for the mask command.
	MaskAfter time.Duration
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its shipped default.
func SetDefaults(v *viper.Viper) {
	th := parser.DefaultThresholds()
	policy := audit.DefaultPolicy()

	v.SetDefault("thresholds.min_confidence", th.MinConfidence)
	v.SetDefault("thresholds.retain_raw_below", th.RetainRawBelow)
	v.SetDefault("thresholds.fast_path_confidence", th.FastPathConfidence)

	v.SetDefault("audit.auto_create", policy.AutoCreateEnabled)
	v.SetDefault("audit.auto_create_confidence", policy.AutoCreateConfidence)
	v.SetDefault("audit.min_auto_amount_cents", policy.MinAutoAmountCents)
	v.SetDefault("audit.mask_at_rest", false)
	v.SetDefault("audit.mask_after", "168h")

	v.SetDefault("dedup.enabled", true)
	v.SetDefault("dedup.window_seconds", DefaultDedupWindowSeconds)
	v.SetDefault("dedup.max_events_per_window", 10)

	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load resolves the configuration from v. Defaults are registered first, so
// any viper instance works, including an empty one.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Thresholds: parser.Thresholds{
			MinConfidence:      v.GetFloat64("thresholds.min_confidence"),
			RetainRawBelow:     v.GetFloat64("thresholds.retain_raw_below"),
			FastPathConfidence: v.GetFloat64("thresholds.fast_path_confidence"),
		},
		Audit: AuditConfig{
			Policy: audit.Policy{
				AutoCreateEnabled:    v.GetBool("audit.auto_create"),
				AutoCreateConfidence: v.GetFloat64("audit.auto_create_confidence"),
				MinAutoAmountCents:   v.GetInt64("audit.min_auto_amount_cents"),
			},
			MaskAtRest: v.GetBool("audit.mask_at_rest"),
			MaskAfter:  v.GetDuration("audit.mask_after"),
		},
		Dedup: DedupConfig{
			Enabled:            v.GetBool("dedup.enabled"),
			Window:             time.Duration(ClampWindowSeconds(v.GetInt("dedup.window_seconds"))) * time.Second,
			MaxEventsPerWindow: v.GetInt("dedup.max_events_per_window"),
		},
		DatabasePath: ExpandPath(v.GetString("database.path")),
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := v.UnmarshalKey("apps", &cfg.Apps); err != nil {
		return nil, fmt.Errorf("%w: apps: %w", common.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: thresholds: %w", common.ErrInvalidConfig, err)
	}
	if err := c.Audit.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: audit: %w", common.ErrInvalidConfig, err)
	}
	if c.Audit.MaskAfter < 0 {
		return fmt.Errorf("%w: audit.mask_after must not be negative", common.ErrInvalidConfig)
	}
	if c.Dedup.MaxEventsPerWindow < 0 {
		return fmt.Errorf("%w: dedup.max_events_per_window must not be negative", common.ErrInvalidConfig)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	seen := make(map[string]struct{}, len(c.Apps))
	for i, app := range c.Apps {
		if strings.TrimSpace(app.Package) == "" {
			return fmt.Errorf("%w: apps[%d].package", common.ErrMissingConfig, i)
		}
		if _, dup := seen[app.Package]; dup {
			return fmt.Errorf("%w: apps: %s configured twice", common.ErrInvalidConfig, app.Package)
		}
		seen[app.Package] = struct{}{}
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// ClampWindowSeconds keeps a configured dedup window within 1..600 seconds.
func ClampWindowSeconds(seconds int) int {
	switch {
	case seconds < MinDedupWindowSeconds:
		return MinDedupWindowSeconds
	case seconds > MaxDedupWindowSeconds:
		return MaxDedupWindowSeconds
	default:
		return seconds
	}
}

// ExpandPath expands a leading ~ and $VAR references in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return os.ExpandEnv(path)
}
