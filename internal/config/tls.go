package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TemporalTLS builds the client TLS config for the evaluation dispatcher.
// Returns nil, nil if no cert/key is configured (plaintext mode).
func (c *Config) TemporalTLS() (*tls.Config, error) {
	if c.TemporalTLSCert == "" && c.TemporalTLSKey == "" {
		return nil, nil
	}
	return clientTLS("temporal", c.TemporalTLSCert, c.TemporalTLSKey, c.TemporalTLSCACert, c.TemporalTLSServerName)
}

// RedisTLS builds the TLS config for the event publisher. Only a CA bundle is
// needed; Redis servers rarely ask for client certificates.
func (c *Config) RedisTLS() (*tls.Config, error) {
	if c.RedisTLSCACert == "" {
		return nil, nil
	}
	return clientTLS("redis", "", "", c.RedisTLSCACert, "")
}

func clientTLS(name, certFile, keyFile, caFile, serverName string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load %s client cert: %w", name, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if caFile != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read %s CA cert: %w", name, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse %s CA cert", name)
		}
		tlsConfig.RootCAs = pool
	}

	if serverName != "" {
		tlsConfig.ServerName = serverName
	}

	return tlsConfig, nil
}
