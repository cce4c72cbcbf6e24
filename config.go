package kroute

import (
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/rcrowley/go-metrics"
	"golang.org/x/net/proxy"

	"github.com/IBM/kroute/protocol"
)

const defaultClientID = "kroute"

var validID = regexp.MustCompile(`\A[A-Za-z0-9._-]+\z`)

// Config is used to pass multiple configuration options to kroute's constructors.
type Config struct {
	// Net is the namespace for network-level properties used by the Broker, and
	// shared by the Client/Producer/Consumer.
	Net struct {
		// All three of the below configurations are similar to the
		// `socket.timeout.ms` setting in JVM kafka. All of them default
		// to 30 seconds. A timeout fails the round trip like any other
		// connection error.
		DialTimeout  time.Duration // How long to wait for the initial connection.
		ReadTimeout  time.Duration // How long to wait for a response.
		WriteTimeout time.Duration // How long to wait for a transmit.

		TLS struct {
			// Whether or not to use TLS when connecting to the broker
			// (defaults to false).
			Enable bool
			// The TLS configuration to use for secure connections if
			// enabled (defaults to nil).
			Config *tls.Config
		}

		// KeepAlive specifies the keep-alive period for an active network connection (defaults to 0).
		// If zero or positive, keep-alives are enabled.
		// If negative, keep-alives are disabled.
		KeepAlive time.Duration

		// LocalAddr is the local address to use when dialing an
		// address. The address must be of a compatible type for the
		// network being dialed.
		// If nil, a local address is automatically chosen.
		LocalAddr net.Addr

		Proxy struct {
			// Whether or not to use proxy when connecting to the broker
			// (defaults to false).
			Enable bool
			// The proxy dialer to use enabled (defaults to nil).
			Dialer proxy.Dialer
		}

		// CircuitBreaker guards dialing each broker address. After ErrorThreshold
		// failed dials the address fails fast with breaker.ErrBreakerOpen until
		// Timeout has passed, then a single successful dial closes it again.
		// Disabled by default, which leaves every lookup free to redial.
		CircuitBreaker struct {
			Enable         bool
			ErrorThreshold int           // defaults to 3
			Timeout        time.Duration // defaults to 10 seconds
		}
	}

	// Metadata is the namespace for metadata management properties used by the
	// Client.
	Metadata struct {
		// How long to wait before reloading the metadata of a topic whose partition
		// was found without a leader (default 0, reload on every lookup). While the
		// cooldown runs such a lookup fails fast with a LeaderUnavailableError.
		ReloadCooldown time.Duration
	}

	// Producer is the namespace for configuration of produce requests.
	Producer struct {
		// The level of acknowledgement reliability needed from the broker (defaults
		// to WaitForLocal). Equivalent to the `request.required.acks` setting of the
		// JVM producer. NoResponse makes produce requests fire-and-forget.
		RequiredAcks protocol.RequiredAcks
		// The maximum duration the broker will wait the receipt of the number of
		// RequiredAcks (defaults to 1 second). This is only relevant when
		// RequiredAcks is set to WaitForAll or a number > 1. Only supports
		// millisecond resolution, nanoseconds will be truncated.
		Timeout time.Duration
	}

	// Consumer is the namespace for configuration of fetch requests.
	Consumer struct {
		Fetch struct {
			// The minimum number of message bytes to fetch in a request - the broker
			// will wait until at least this many are available. The default is 4096.
			MinBytes int32
		}
		// The maximum amount of time the broker will wait for Consumer.Fetch.MinBytes
		// to become available before it returns fewer than that anyways. The
		// default is 100ms.
		MaxWaitTime time.Duration
	}

	// A user-provided string sent with every request to the brokers for logging,
	// debugging, and auditing purposes. Defaults to "kroute", but you should
	// probably set it to something specific to your application.
	ClientID string

	// The registry to define metrics into.
	// Defaults to a local registry.
	// If you want to disable metrics gathering, set "metrics.UseNilMetrics" to "true"
	// prior to starting kroute.
	// See Examples on how to use the metrics registry
	MetricRegistry metrics.Registry
}

// NewConfig returns a new configuration instance with sane defaults.
func NewConfig() *Config {
	c := &Config{}

	c.Net.DialTimeout = 30 * time.Second
	c.Net.ReadTimeout = 30 * time.Second
	c.Net.WriteTimeout = 30 * time.Second
	c.Net.CircuitBreaker.ErrorThreshold = 3
	c.Net.CircuitBreaker.Timeout = 10 * time.Second

	c.Producer.RequiredAcks = protocol.WaitForLocal
	c.Producer.Timeout = 1000 * time.Millisecond

	c.Consumer.Fetch.MinBytes = 4096
	c.Consumer.MaxWaitTime = 100 * time.Millisecond

	c.ClientID = defaultClientID
	c.MetricRegistry = metrics.NewRegistry()

	return c
}

// Validate checks a Config instance. It will return a
// ConfigurationError if the specified values don't make sense.
func (c *Config) Validate() error {
	// some configuration values should be warned on but not fail completely, do those first
	if !c.Net.TLS.Enable && c.Net.TLS.Config != nil {
		Logger.Println("Net.TLS is disabled but a non-nil configuration was provided.")
	}
	if c.Consumer.MaxWaitTime >= c.Net.ReadTimeout {
		Logger.Println("Consumer.MaxWaitTime is not below Net.ReadTimeout, long-polling fetches may time out.")
	}
	if c.ClientID == defaultClientID {
		Logger.Println("ClientID is the default of 'kroute', you should consider setting it to something application-specific.")
	}

	// validate Net values
	switch {
	case c.Net.DialTimeout <= 0:
		return ConfigurationError("Net.DialTimeout must be > 0")
	case c.Net.ReadTimeout <= 0:
		return ConfigurationError("Net.ReadTimeout must be > 0")
	case c.Net.WriteTimeout <= 0:
		return ConfigurationError("Net.WriteTimeout must be > 0")
	case c.Net.Proxy.Enable && c.Net.Proxy.Dialer == nil:
		return ConfigurationError("Net.Proxy.Dialer must not be nil when Net.Proxy.Enable is true")
	case c.Net.CircuitBreaker.Enable && c.Net.CircuitBreaker.ErrorThreshold <= 0:
		return ConfigurationError("Net.CircuitBreaker.ErrorThreshold must be > 0")
	case c.Net.CircuitBreaker.Enable && c.Net.CircuitBreaker.Timeout <= 0:
		return ConfigurationError("Net.CircuitBreaker.Timeout must be > 0")
	}

	// validate the Metadata values
	if c.Metadata.ReloadCooldown < 0 {
		return ConfigurationError("Metadata.ReloadCooldown must be >= 0")
	}

	// validate the Producer values
	switch {
	case c.Producer.RequiredAcks < -1:
		return ConfigurationError("Producer.RequiredAcks must be >= -1")
	case c.Producer.Timeout <= 0:
		return ConfigurationError("Producer.Timeout must be > 0")
	}

	// validate the Consumer values
	switch {
	case c.Consumer.Fetch.MinBytes <= 0:
		return ConfigurationError("Consumer.Fetch.MinBytes must be > 0")
	case c.Consumer.MaxWaitTime < 1*time.Millisecond:
		return ConfigurationError("Consumer.MaxWaitTime must be >= 1ms")
	}

	// validate misc shared values
	switch {
	case c.MetricRegistry == nil:
		return ConfigurationError("MetricRegistry must not be nil")
	case !validID.MatchString(c.ClientID):
		return ConfigurationError(fmt.Sprintf("ClientID value %q is not valid", c.ClientID))
	}

	return nil
}

func (c *Config) getDialer() proxy.Dialer {
	if c.Net.Proxy.Enable {
		return c.Net.Proxy.Dialer
	}
	return &net.Dialer{
		Timeout:   c.Net.DialTimeout,
		KeepAlive: c.Net.KeepAlive,
		LocalAddr: c.Net.LocalAddr,
	}
}
