package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".hfwatch.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/hfwatch"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix is the prefix for environment overrides, e.g. HFWATCH_POLL_INTERVAL.
	EnvPrefix = "HFWATCH"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'hfwatch init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .hfwatch.yaml in current directory
// 3. .hfwatch.yaml in parent directories (stops at git root or home)
// 4. ~/.config/hfwatch/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	if !isGitRoot(dir) {
		for {
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			if home != "" && parent == home {
				// Don't go above home directory
				break
			}
			dir = parent

			configPath := filepath.Join(dir, ConfigFileName)
			if _, err := os.Stat(configPath); err == nil {
				return configPath, nil
			}

			if isGitRoot(dir) {
				break
			}
		}
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault finds and loads the config, or returns defaults (with
// environment overrides applied) when no file exists.
// Returns the path that was loaded, empty when defaults were used.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "defaults")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	// Viper decodes duration strings into time.Duration fields through its
	// default decode hooks.
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	cfg.Discovery.SSHConfig = ExpandTilde(cfg.Discovery.SSHConfig)
	cfg.Log.File = ExpandTilde(cfg.Log.File)

	return cfg, nil
}

// setDefaults registers every key with viper. AutomaticEnv only overrides
// keys viper knows about, so each leaf needs a default here.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("discovery.pattern", d.Discovery.Pattern)
	v.SetDefault("discovery.ssh_config", d.Discovery.SSHConfig)
	v.SetDefault("discovery.endpoints", d.Discovery.Endpoints)
	v.SetDefault("discovery.interval", d.Discovery.Interval.String())
	v.SetDefault("inspector.command", d.Inspector.Command)
	v.SetDefault("inspector.object", d.Inspector.Object)
	v.SetDefault("inspector.format", d.Inspector.Format)
	v.SetDefault("inspector.compression", d.Inspector.Compression)
	v.SetDefault("connect.timeout", d.Connect.Timeout.String())
	v.SetDefault("connect.strict_host_key_checking", d.Connect.StrictHostKeyChecking)
	v.SetDefault("poll.interval", d.Poll.Interval.String())
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("publish.broker", d.Publish.Broker)
	v.SetDefault("publish.topic", d.Publish.Topic)
	v.SetDefault("publish.client_id", d.Publish.ClientID)
	v.SetDefault("publish.qos", d.Publish.QoS)
	v.SetDefault("publish.timeout", d.Publish.Timeout.String())
}

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
