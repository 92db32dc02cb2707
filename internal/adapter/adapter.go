package adapter

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

var errBadCA = errors.New("no certificates found in CA file")

// A MakeTLSConfig returns the client [*tls.Config] for mutual TLS with
// the brokers. Panics when a file cannot be loaded.
//
// All args are the filepaths.
func MakeTLSConfig(ca, cert, key string) *tls.Config {
	cfg, err := LoadTLSConfig(ca, cert, key)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadTLSConfig is MakeTLSConfig returning the error.
func LoadTLSConfig(ca, cert, key string) (*tls.Config, error) {
	const op = "adapter.LoadTLSConfig"

	caCert, err := os.ReadFile(ca)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read CA certificate file: %w", op, err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("%s: %q: %w", op, ca, errBadCA)
	}

	clientCert, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{clientCert},
	}, nil
}
