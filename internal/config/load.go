// Package config loads analysis settings from defaults, an optional YAML
// file, a .env file and DEPCOMPLIANCE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "DEPCOMPLIANCE"

// Config keys.
const (
	KeyOSVURL          = "osv.url"
	KeyOSVEnabled      = "osv.enabled"
	KeyOSVChunkSize    = "osv.chunk_size"
	KeyOSVTimeout      = "osv.timeout"
	KeyOutdatedEnabled = "outdated.enabled"
	KeyPolicyFile      = "policy.file"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyFailOn          = "fail_on"
	KeyTimeout         = "timeout"
	KeyOut             = "out"
	KeyMetricsFile     = "metrics.file"
)

// FailOn levels accepted by the analyze command.
var failOnLevels = []string{"none", "low", "medium", "high"}

// Config is the resolved settings of one invocation.
type Config struct {
	OSVURL          string
	OSVEnabled      bool
	OSVChunkSize    int
	OSVTimeout      time.Duration
	OutdatedEnabled bool
	PolicyFile      string
	LogLevel        string
	LogFormat       string
	FailOn          string
	Timeout         time.Duration
	Out             string
	MetricsFile     string
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyOSVURL, "https://api.osv.dev/v1/querybatch")
	v.SetDefault(KeyOSVEnabled, true)
	v.SetDefault(KeyOSVChunkSize, 50)
	v.SetDefault(KeyOSVTimeout, "10s")
	v.SetDefault(KeyOutdatedEnabled, true)
	v.SetDefault(KeyPolicyFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyFailOn, "high")
	v.SetDefault(KeyTimeout, "5m")
	v.SetDefault(KeyOut, "depcompliance-report")
	v.SetDefault(KeyMetricsFile, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the .env file and the config file into v and returns the
// resolved Config. A missing .env or default config file is not an error;
// an explicitly named config file that cannot be read is.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".depcompliance")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		OSVURL:          v.GetString(KeyOSVURL),
		OSVEnabled:      v.GetBool(KeyOSVEnabled),
		OSVChunkSize:    v.GetInt(KeyOSVChunkSize),
		OSVTimeout:      v.GetDuration(KeyOSVTimeout),
		OutdatedEnabled: v.GetBool(KeyOutdatedEnabled),
		PolicyFile:      v.GetString(KeyPolicyFile),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
		FailOn:          strings.ToLower(v.GetString(KeyFailOn)),
		Timeout:         v.GetDuration(KeyTimeout),
		Out:             v.GetString(KeyOut),
		MetricsFile:     v.GetString(KeyMetricsFile),
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.OSVChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyOSVChunkSize, c.OSVChunkSize))
	}
	if c.OSVTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyOSVTimeout, c.OSVTimeout))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyTimeout, c.Timeout))
	}
	valid := false
	for _, l := range failOnLevels {
		if c.FailOn == l {
			valid = true
		}
	}
	if !valid {
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", KeyFailOn, strings.Join(failOnLevels, ", "), c.FailOn))
	}
	return errors.Join(errs...)
}
