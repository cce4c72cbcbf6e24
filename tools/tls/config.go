package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// NewConfig builds the TLS configuration the tools dial brokers with. The client certificate is
// only loaded when both clientCert and clientKey are set, and caFile (if set) replaces the
// system roots.
func NewConfig(clientCert, clientKey, caFile string) (*tls.Config, error) {
	tlsConfig := tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if clientCert != "" && clientKey != "" {
		cert, err := tls.LoadX509KeyPair(clientCert, clientKey)
		if err != nil {
			return &tlsConfig, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return &tlsConfig, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return &tlsConfig, fmt.Errorf("no certificates found in %s", caFile)
		}
		tlsConfig.RootCAs = pool
	}

	return &tlsConfig, nil
}
