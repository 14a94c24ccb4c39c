package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for a pares run.
// Values are populated from .pares.yaml, PARES_* env vars, and CLI flags.
type Config struct {
	InputDir      string  `mapstructure:"input_dir" validate:"required"`
	ScenariosFile string  `mapstructure:"scenarios_file"`
	OutputDB      string  `mapstructure:"output_db"`
	EventsFile    string  `mapstructure:"events_file"`
	Strict        bool    `mapstructure:"strict"`
	TopN          int     `mapstructure:"top_n" validate:"min=1"`
	HalfLifeDays  float64 `mapstructure:"half_life_days" validate:"gt=0"`
	AsOf          string  `mapstructure:"as_of"`
	PowerWeighted bool    `mapstructure:"power_weighted"`
	Inclusiveness bool    `mapstructure:"inclusiveness"`
	Parallel      bool    `mapstructure:"parallel"`
	Verbose       bool    `mapstructure:"verbose"`
	// DebounceMS is the quiet period the watch command waits after a file
	// change before re-running.
	DebounceMS int `mapstructure:"debounce_ms" validate:"min=0"`
}

// HalfLife returns HalfLifeDays as a duration.
func (c Config) HalfLife() time.Duration {
	return time.Duration(c.HalfLifeDays * float64(24*time.Hour))
}

// AsOfTime parses AsOf. An empty value reports false.
func (c Config) AsOfTime() (time.Time, bool, error) {
	if c.AsOf == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, c.AsOf); err == nil {
			return t.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("as_of %q: want RFC3339 or YYYY-MM-DD", c.AsOf)
}

var validate = validator.New()

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags, and validates the
// result.
func Load() (Config, error) {
	viper.SetDefault("input_dir", ".")
	viper.SetDefault("scenarios_file", "")
	viper.SetDefault("output_db", "")
	viper.SetDefault("events_file", "")
	viper.SetDefault("strict", false)
	viper.SetDefault("top_n", 10)
	viper.SetDefault("half_life_days", 180.0)
	viper.SetDefault("as_of", "")
	viper.SetDefault("power_weighted", false)
	viper.SetDefault("inclusiveness", false)
	viper.SetDefault("parallel", true)
	viper.SetDefault("verbose", false)
	viper.SetDefault("debounce_ms", 500)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if _, _, err := cfg.AsOfTime(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
