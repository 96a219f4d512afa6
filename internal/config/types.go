package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// MinInterval is the shortest poll or discovery period accepted.
const MinInterval = 100 * time.Millisecond

// Config represents the complete .hfwatch.yaml configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Inspector InspectorConfig `yaml:"inspector" mapstructure:"inspector"`
	Connect   ConnectConfig   `yaml:"connect" mapstructure:"connect"`
	Poll      PollConfig      `yaml:"poll" mapstructure:"poll"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Publish   PublishConfig   `yaml:"publish" mapstructure:"publish"`
}

// DiscoveryConfig controls how candidate endpoints are found.
type DiscoveryConfig struct {
	// Pattern filters candidates with shell glob syntax (path.Match).
	Pattern string `yaml:"pattern" mapstructure:"pattern"`

	// SSHConfig is the ssh_config file whose Host aliases become candidates.
	// Empty disables alias discovery.
	SSHConfig string `yaml:"ssh_config" mapstructure:"ssh_config"`

	// Endpoints are explicit SSH destinations, always offered as candidates.
	Endpoints []string `yaml:"endpoints" mapstructure:"endpoints"`

	// Interval is the period of the background discovery ticker.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// InspectorConfig describes the remote command that prints a snapshot.
type InspectorConfig struct {
	// Command is run on the endpoint with Object appended, shell-quoted.
	Command string `yaml:"command" mapstructure:"command"`

	// Object names the remote inspector object to query.
	Object string `yaml:"object" mapstructure:"object"`

	// Format of the snapshot on stdout: "cbor" or "json".
	Format string `yaml:"format" mapstructure:"format"`

	// Compression applied to the payload: "none" or "zstd".
	Compression string `yaml:"compression" mapstructure:"compression"`
}

// ConnectConfig controls SSH attach behavior.
type ConnectConfig struct {
	Timeout               time.Duration `yaml:"timeout" mapstructure:"timeout"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
}

// PollConfig controls the refresher loop.
type PollConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// LogConfig controls the rotating log file used while the dashboard owns the terminal.
type LogConfig struct {
	// File is the log path. Empty logs to stderr.
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	Debug      bool   `yaml:"debug" mapstructure:"debug"`
}

// PublishConfig controls the optional MQTT snapshot publisher.
type PublishConfig struct {
	// Broker URL, e.g. tcp://localhost:1883. Empty disables publishing.
	Broker   string        `yaml:"broker" mapstructure:"broker"`
	Topic    string        `yaml:"topic" mapstructure:"topic"`
	ClientID string        `yaml:"client_id" mapstructure:"client_id"`
	QoS      int           `yaml:"qos" mapstructure:"qos"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Enabled reports whether a broker is configured.
func (p PublishConfig) Enabled() bool {
	return p.Broker != ""
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Discovery: DiscoveryConfig{
			Pattern:   "*",
			SSHConfig: "~/.ssh/config",
			Endpoints: []string{},
			Interval:  time.Second,
		},
		Inspector: InspectorConfig{
			Command:     "terrain-inspector dump",
			Object:      "terrain:type=GridInspector",
			Format:      "cbor",
			Compression: "none",
		},
		Connect: ConnectConfig{
			Timeout:               10 * time.Second,
			StrictHostKeyChecking: true,
		},
		Poll: PollConfig{
			Interval: 500 * time.Millisecond,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Publish: PublishConfig{
			Topic:    "hfwatch",
			ClientID: "hfwatch",
			QoS:      0,
			Timeout:  2 * time.Second,
		},
	}
}
