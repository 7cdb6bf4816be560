// Package config provides configuration loading for zkdrop components.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Claims        ClaimsConfig        `mapstructure:"claims"`
	Verifier      VerifierConfig      `mapstructure:"verifier"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

type StorageConfig struct {
	Nullifier BackendConfig `mapstructure:"nullifier"`
	Airdrop   BackendConfig `mapstructure:"airdrop"`
}

type BackendConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

type ClaimsConfig struct {
	RootValidityWindow time.Duration `mapstructure:"root_validity_window"`
	RootHistorySize    int           `mapstructure:"root_history_size"`
	Spender            string        `mapstructure:"spender"`
}

type VerifierConfig struct {
	// Mode is "groth16" or "static".
	Mode      string `mapstructure:"mode"`
	VKPath    string `mapstructure:"vk_path"`
	CacheSize int    `mapstructure:"cache_size"`
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zkdrop"
	}
	return filepath.Join(home, ".zkdrop")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())

	v.SetDefault("http.addr", ":8480")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "text")
	v.SetDefault("observability.metrics_addr", ":9090")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("observability.service_name", "zkdrop")
	v.SetDefault("observability.service_version", "dev")

	v.SetDefault("storage.nullifier.backend", "badger")
	v.SetDefault("storage.airdrop.backend", "sqlite")

	v.SetDefault("claims.root_validity_window", time.Hour)
	v.SetDefault("claims.root_history_size", 16)

	v.SetDefault("verifier.mode", "groth16")
	v.SetDefault("verifier.cache_size", 4096)
}

// BindStartFlags binds cobra flags to viper for the start command.
func BindStartFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.String("data-dir", "", "data directory (default ~/.zkdrop)")
	f.String("addr", "", "HTTP listen address")
	f.String("config", "", "config file path")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")
	f.String("metrics-addr", "", "metrics HTTP listen address")
	f.String("verifier-mode", "", "proof verifier mode (groth16, static)")
	f.String("vk-path", "", "path to the verification key JSON file")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("http.addr", f.Lookup("addr"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("verifier.mode", f.Lookup("verifier-mode"))
	_ = v.BindPFlag("verifier.vk_path", f.Lookup("vk-path"))
}

// Load reads config from flags, env, and file, returning the merged Config.
func Load(v *viper.Viper, configFile string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("ZKDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("zkdrop")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.zkdrop")
		v.AddConfigPath("/etc/zkdrop")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
