// Package config loads Hermes's process configuration from YAML defaults
// merged with environment overrides, the way the teacher's pkg/config does
// for its node configuration.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified runtime configuration for a Hermes host process.
type Config struct {
	Chain struct {
		Network          string `mapstructure:"network" json:"network"`
		RelayAddress     string `mapstructure:"relay_address" json:"relay_address"`
		SubscribeFrom    string `mapstructure:"subscribe_from" json:"subscribe_from"`
		UpdateBufferSize int    `mapstructure:"chain_update_buffer_size" json:"chain_update_buffer_size"`
		ImmutableWindow  int    `mapstructure:"immutable_slot_window" json:"immutable_slot_window"`
		SnapshotDir      string `mapstructure:"snapshot_dir" json:"snapshot_dir"`
	} `mapstructure:"chain" json:"chain"`

	Dispatch struct {
		WorkerPoolSize    int `mapstructure:"worker_pool_size" json:"worker_pool_size"`
		MaxInstancesPerMod int `mapstructure:"max_instances_per_module" json:"max_instances_per_module"`
	} `mapstructure:"dispatch" json:"dispatch"`

	Storage struct {
		StateDir string `mapstructure:"state_dir" json:"state_dir"`
	} `mapstructure:"storage" json:"storage"`

	IPFS struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"ipfs" json:"ipfs"`

	HTTP struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"http" json:"http"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`

	Issue struct {
		GithubRepoOwner    string `mapstructure:"github_repo_owner" json:"github_repo_owner"`
		GithubRepoName     string `mapstructure:"github_repo_name" json:"github_repo_name"`
		GithubIssueTemplate string `mapstructure:"github_issue_template" json:"github_issue_template"`
	} `mapstructure:"issue" json:"issue"`
}

// Load reads the default configuration file plus an optional environment
// override file, then applies environment variable overrides. The caller
// owns the returned *Config; there is no package-level mutable global.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("default")
	v.AddConfigPath("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, herrors.Wrap(err, "load config")
		}
	}

	if env != "" {
		v.SetConfigName(env)
		if err := v.MergeInConfig(); err != nil {
			return nil, herrors.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	v.SetEnvPrefix("hermes")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, herrors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration using HERMES_ENV to select the override
// file, matching the teacher's LoadFromEnv convention.
func LoadFromEnv() (*Config, error) {
	return Load(envOrDefault("HERMES_ENV", ""))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.network", "mainnet")
	v.SetDefault("chain.chain_update_buffer_size", 32)
	v.SetDefault("chain.immutable_slot_window", 43200)
	v.SetDefault("chain.subscribe_from", "TIP")
	v.SetDefault("dispatch.worker_pool_size", 8)
	v.SetDefault("dispatch.max_instances_per_module", 4)
	v.SetDefault("logging.level", "info")
	v.SetDefault("ipfs.listen_addr", "/ip4/0.0.0.0/tcp/0")
	v.SetDefault("http.listen_addr", ":8080")
}

// bindEnv wires spec.md §6's named environment variables onto their
// config fields explicitly, since their names don't follow the
// HERMES_<SECTION>_<FIELD> convention AutomaticEnv would otherwise need.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("logging.level", "HERMES_LOG_LEVEL")
	_ = v.BindEnv("chain.network", "CHAIN_NETWORK")
	_ = v.BindEnv("chain.subscribe_from", "SUBSCRIBE_FROM")
	_ = v.BindEnv("issue.github_repo_owner", "GITHUB_REPO_OWNER")
	_ = v.BindEnv("issue.github_repo_name", "GITHUB_REPO_NAME")
	_ = v.BindEnv("issue.github_issue_template", "GITHUB_ISSUE_TEMPLATE")
}

func envOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
