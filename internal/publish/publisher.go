// Package publish mirrors polled snapshots to an MQTT broker. A Publisher
// is a refresher.Listener: it sends a small JSON summary per snapshot and
// retained status messages when the endpoint attaches and disconnects.
package publish

import (
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"

	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Options configures a Publisher.
type Options struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte

	// Timeout bounds every broker round trip.
	Timeout time.Duration
}

// Summary is the per-snapshot payload.
type Summary struct {
	Endpoint  string    `json:"endpoint"`
	Size      int       `json:"size"`
	Min       float32   `json:"min"`
	Max       float32   `json:"max"`
	NoData    int       `json:"no_data"`
	Digest    string    `json:"digest"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Status is the retained per-endpoint state payload.
type Status struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// Publisher sends snapshot summaries to MQTT. Broker errors are logged
// and never reach the polling loop.
type Publisher struct {
	opts   Options
	client Client
	log    logger.Logger

	mu       sync.Mutex
	endpoint terrain.EndpointID // attached endpoint, until it disconnects
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClient replaces the paho client, mainly for tests.
func WithClient(c Client) Option {
	return func(p *Publisher) { p.client = c }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) { p.log = l }
}

// New creates a publisher. It does not connect; call Connect.
func New(opts Options, options ...Option) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Topic == "" {
		opts.Topic = "hfwatch"
	}
	p := &Publisher{opts: opts}
	for _, o := range options {
		o(p)
	}
	p.log = logger.OrDefault(p.log)
	if p.client == nil {
		p.client = mqtt.NewClient(clientOptions(opts))
	}
	return p
}

func clientOptions(opts Options) *mqtt.ClientOptions {
	will, _ := json.Marshal(Status{State: "offline"})

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	o.SetConnectTimeout(opts.Timeout)
	o.SetWriteTimeout(opts.Timeout)
	o.SetAutoReconnect(true)
	o.SetOrderMatters(false)
	o.SetWill(opts.Topic+"/status", string(will), opts.QoS, true)
	return o
}

// Connect opens the broker connection.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(p.opts.Timeout) {
		return errors.New(errors.ErrConnect,
			fmt.Sprintf("Timed out connecting to MQTT broker %s", p.opts.Broker),
			"Check publish.broker, or raise publish.timeout.")
	}
	if err := token.Error(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Couldn't connect to MQTT broker %s", p.opts.Broker),
			"Check publish.broker and that the broker accepts this client ID.")
	}
	p.log.Info("publish: connected to %s", p.opts.Broker)
	p.publish(p.opts.Topic+"/status", true, Status{State: "online", At: time.Now()})
	return nil
}

// Close announces the publisher going offline and disconnects.
func (p *Publisher) Close() {
	if !p.client.IsConnected() {
		return
	}
	p.publish(p.opts.Topic+"/status", true, Status{State: "offline", At: time.Now()})
	p.client.Disconnect(uint(p.opts.Timeout / time.Millisecond))
}

// OnAttached implements refresher.AttachListener. It records ep so a
// disconnect is announced even if no snapshot ever arrives.
func (p *Publisher) OnAttached(ep terrain.EndpointID) {
	p.mu.Lock()
	first := p.endpoint != ep
	p.endpoint = ep
	p.mu.Unlock()

	if first {
		p.publish(p.topic(ep, "status"), true, Status{State: "connected", At: time.Now()})
	}
}

// OnSnapshot implements refresher.Listener.
func (p *Publisher) OnSnapshot(s *terrain.Snapshot) {
	if s == nil {
		return
	}

	p.OnAttached(s.Endpoint)
	p.publish(p.topic(s.Endpoint, "snapshot"), false, Summarize(s))
}

// OnDisconnected implements refresher.Listener.
func (p *Publisher) OnDisconnected() {
	p.mu.Lock()
	ep := p.endpoint
	p.endpoint = ""
	p.mu.Unlock()

	if ep == "" {
		return
	}
	p.publish(p.topic(ep, "status"), true, Status{State: "disconnected", At: time.Now()})
}

// Summarize builds the snapshot payload.
func Summarize(s *terrain.Snapshot) Summary {
	st := s.Stats()
	return Summary{
		Endpoint:  string(s.Endpoint),
		Size:      s.Size,
		Min:       st.Min,
		Max:       st.Max,
		NoData:    st.NoData,
		Digest:    fmt.Sprintf("%016x", s.Digest()),
		FetchedAt: s.FetchedAt,
	}
}

// topic builds <root>/<endpoint>/<leaf>. MQTT separators and wildcards in
// the endpoint are replaced.
func (p *Publisher) topic(ep terrain.EndpointID, leaf string) string {
	safe := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(string(ep))
	return p.opts.Topic + "/" + safe + "/" + leaf
}

func (p *Publisher) publish(topic string, retained bool, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Error("publish: encoding %s: %v", topic, err)
		return
	}

	token := p.client.Publish(topic, p.opts.QoS, retained, payload)
	if !token.WaitTimeout(p.opts.Timeout) {
		p.log.Warn("publish: %s timed out after %s", topic, p.opts.Timeout)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn("publish: %s: %v", topic, err)
	}
}
