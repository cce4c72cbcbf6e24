package kroute

import (
	"net"
	"testing"
	"time"
)

const (
	apiKeyProduce  int16 = 0
	apiKeyFetch    int16 = 1
	apiKeyOffsets  int16 = 2
	apiKeyMetadata int16 = 3
)

// NewTestConfig returns a config meant to be used by tests, with timeouts short enough for
// a hung mock broker to fail the test quickly.
func NewTestConfig() *Config {
	config := NewConfig()
	config.Net.DialTimeout = time.Second
	config.Net.ReadTimeout = 2 * time.Second
	config.Net.WriteTimeout = time.Second
	config.ClientID = "kroute-test"
	return config
}

// deadAddr returns the address of a listener that was closed again, so that dialing it is refused.
func deadAddr(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

func safeClose(t testing.TB, c interface{ Close() error }) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Error(err)
	}
}
