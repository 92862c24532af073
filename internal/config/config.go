package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the arrowcompute tool
type Config struct {
	Log     LogConfig
	Run     RunConfig
	Cast    CastConfig
	Extract ExtractConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type RunConfig struct {
	Rows    int // Number of sample rows generated per run
	Chunks  int // Number of row chunks processed in parallel
	Workers int // Worker goroutines (default: number of CPUs)
}

type CastConfig struct {
	InPrecision  int32
	InScale      int32
	OutPrecision int32
	OutScale     int32
	Policy       string // "safe" or "strict"
}

type ExtractConfig struct {
	Part     string // date part name, e.g. "Hour" or "WeekISO"
	Timezone string // optional timezone for the timestamp column
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("ARROWCOMPUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("arrowcompute")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.arrowcompute/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Run: RunConfig{
			Rows:    v.GetInt("run.rows"),
			Chunks:  v.GetInt("run.chunks"),
			Workers: v.GetInt("run.workers"),
		},
		Cast: CastConfig{
			InPrecision:  v.GetInt32("cast.in_precision"),
			InScale:      v.GetInt32("cast.in_scale"),
			OutPrecision: v.GetInt32("cast.out_precision"),
			OutScale:     v.GetInt32("cast.out_scale"),
			Policy:       v.GetString("cast.policy"),
		},
		Extract: ExtractConfig{
			Part:     v.GetString("extract.part"),
			Timezone: v.GetString("extract.timezone"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Run.Rows <= 0 {
		return fmt.Errorf("run.rows must be positive, got %d", cfg.Run.Rows)
	}
	if cfg.Run.Chunks <= 0 {
		return fmt.Errorf("run.chunks must be positive, got %d", cfg.Run.Chunks)
	}
	switch cfg.Cast.Policy {
	case "safe", "strict":
	default:
		return fmt.Errorf("cast.policy must be \"safe\" or \"strict\", got %q", cfg.Cast.Policy)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Run sizing
	v.SetDefault("run.rows", 1_000_000)
	v.SetDefault("run.chunks", 8)
	v.SetDefault("run.workers", runtime.NumCPU())

	// Decimal cast
	v.SetDefault("cast.in_precision", 20)
	v.SetDefault("cast.in_scale", 4)
	v.SetDefault("cast.out_precision", 20)
	v.SetDefault("cast.out_scale", 2)
	v.SetDefault("cast.policy", "safe")

	// Part extraction
	v.SetDefault("extract.part", "Hour")
	v.SetDefault("extract.timezone", "")
}
