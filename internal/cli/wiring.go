package cli

import (
	"github.com/rileyhilliard/hfwatch/internal/config"
	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/publish"
	"github.com/rileyhilliard/hfwatch/internal/refresher"
	"github.com/rileyhilliard/hfwatch/internal/remote"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/pkg/sshutil"
)

// Test hooks.
var (
	extraConnectorOptions []remote.Option
	newPublishClient      func(publish.Options) publish.Client
)

func newSource(cfg *config.Config) discovery.Source {
	return &discovery.SSHSource{
		Endpoints:     cfg.Discovery.Endpoints,
		SSHConfigPath: cfg.Discovery.SSHConfig,
	}
}

func newConnector(cfg *config.Config, log logger.Logger) (*remote.Connector, error) {
	codec, err := terrain.ParseCodec(cfg.Inspector.Format, cfg.Inspector.Compression)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid inspector format",
			"Check inspector.format and inspector.compression in .hfwatch.yaml.")
	}

	opts := remote.Options{
		Command: cfg.Inspector.Command,
		Object:  cfg.Inspector.Object,
		Codec:   codec,
		Dial: sshutil.DialOptions{
			Timeout:               cfg.Connect.Timeout,
			StrictHostKeyChecking: cfg.Connect.StrictHostKeyChecking,
			SSHConfigPath:         cfg.Discovery.SSHConfig,
			Logger:                log,
		},
	}
	options := append([]remote.Option{remote.WithLogger(log)}, extraConnectorOptions...)
	return remote.NewConnector(opts, options...), nil
}

// newPublisher connects the MQTT publisher when publish.broker is set.
// It returns nil, nil when publishing is off.
func newPublisher(cfg *config.Config, log logger.Logger) (*publish.Publisher, error) {
	if !cfg.Publish.Enabled() {
		return nil, nil
	}

	opts := publish.Options{
		Broker:   cfg.Publish.Broker,
		Topic:    cfg.Publish.Topic,
		ClientID: cfg.Publish.ClientID,
		QoS:      byte(cfg.Publish.QoS),
		Timeout:  cfg.Publish.Timeout,
	}
	options := []publish.Option{publish.WithLogger(log)}
	if newPublishClient != nil {
		options = append(options, publish.WithClient(newPublishClient(opts)))
	}

	p := publish.New(opts, options...)
	if err := p.Connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// publisherListeners is the listener list for an optional publisher.
func publisherListeners(p *publish.Publisher) []refresher.Listener {
	if p == nil {
		return nil
	}
	return []refresher.Listener{p}
}
