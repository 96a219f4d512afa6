package config

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but hfwatch only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest hfwatch release.")
	}

	if err := validateDiscovery(cfg.Discovery); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'discovery' section in your .hfwatch.yaml.")
	}

	if err := validateInspector(cfg.Inspector); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'inspector' section in your .hfwatch.yaml.")
	}

	if cfg.Connect.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("connect.timeout must be positive, got %v", cfg.Connect.Timeout),
			"Try something like '10s'.")
	}

	if cfg.Poll.Interval < MinInterval {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("poll.interval %v is too short - the minimum is %v", cfg.Poll.Interval, MinInterval),
			"Try something like '500ms' or '1s'.")
	}

	if err := validateLog(cfg.Log); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'log' section in your .hfwatch.yaml.")
	}

	if err := validatePublish(cfg.Publish); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'publish' section in your .hfwatch.yaml.")
	}

	return nil
}

// validateDiscovery checks discovery configuration.
func validateDiscovery(d DiscoveryConfig) error {
	if d.Pattern == "" {
		return fmt.Errorf("discovery.pattern is empty - use '*' to match every endpoint")
	}
	if _, err := path.Match(d.Pattern, ""); err != nil {
		return fmt.Errorf("discovery.pattern '%s' isn't a valid glob: %w", d.Pattern, err)
	}
	if d.Interval < MinInterval {
		return fmt.Errorf("discovery.interval %v is too short - the minimum is %v", d.Interval, MinInterval)
	}
	for _, ep := range d.Endpoints {
		if strings.TrimSpace(ep) == "" {
			return fmt.Errorf("discovery.endpoints has an empty entry")
		}
		if strings.ContainsAny(ep, " \t\n") {
			return fmt.Errorf("discovery.endpoints entry '%s' contains whitespace", ep)
		}
	}
	return nil
}

// validateInspector checks the remote inspector command and payload settings.
func validateInspector(in InspectorConfig) error {
	if strings.TrimSpace(in.Command) == "" {
		return fmt.Errorf("inspector.command is empty - hfwatch needs a command that prints a snapshot")
	}
	if strings.TrimSpace(in.Object) == "" {
		return fmt.Errorf("inspector.object is empty")
	}
	if _, err := terrain.ParseFormat(in.Format); err != nil {
		return fmt.Errorf("inspector.format '%s' isn't valid - use 'cbor' or 'json'", in.Format)
	}
	if _, err := terrain.ParseCompression(in.Compression); err != nil {
		return fmt.Errorf("inspector.compression '%s' isn't valid - use 'none' or 'zstd'", in.Compression)
	}
	return nil
}

// validateLog checks log file settings.
func validateLog(l LogConfig) error {
	if l.MaxSizeMB < 0 {
		return fmt.Errorf("log.max_size_mb can't be negative")
	}
	if l.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups can't be negative")
	}
	return nil
}

// validatePublish checks MQTT settings. Nothing is checked when no broker is set.
func validatePublish(p PublishConfig) error {
	if !p.Enabled() {
		return nil
	}
	u, err := url.Parse(p.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("publish.broker '%s' needs a scheme and host, like tcp://localhost:1883", p.Broker)
	}
	if p.QoS < 0 || p.QoS > 2 {
		return fmt.Errorf("publish.qos must be 0, 1, or 2, got %d", p.QoS)
	}
	if strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("publish.topic is empty")
	}
	if strings.ContainsAny(p.Topic, "+#") {
		return fmt.Errorf("publish.topic '%s' can't contain MQTT wildcards", p.Topic)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("publish.timeout must be positive, got %v", p.Timeout)
	}
	return nil
}
