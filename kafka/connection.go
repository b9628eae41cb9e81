package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/kbukum/chunkscribe/version"
)

const dialTimeout = 10 * time.Second

// security is the TLS and SASL setup shared by the producer transport and
// the health-check dialer. Both fields are nil when disabled.
type security struct {
	tls  *tls.Config
	sasl sasl.Mechanism
}

func newSecurity(cfg *Config) (security, error) {
	var sec security
	if cfg.EnableTLS {
		tc, err := loadTLS(cfg)
		if err != nil {
			return sec, fmt.Errorf("kafka tls: %w", err)
		}
		sec.tls = tc
	}
	if cfg.EnableSASL {
		m, err := saslMechanism(cfg.SASLMechanism, cfg.Username, cfg.Password)
		if err != nil {
			return sec, fmt.Errorf("kafka sasl: %w", err)
		}
		sec.sasl = m
	}
	return sec, nil
}

// NewTransport builds the writer transport.
func NewTransport(cfg *Config) (*kafka.Transport, error) {
	sec, err := newSecurity(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		TLS:         sec.tls,
		SASL:        sec.sasl,
		IdleTimeout: ParseDuration(cfg.IdleTimeout),
		MetadataTTL: ParseDuration(cfg.MetadataTTL),
		ClientID:    version.Name,
	}, nil
}

// NewDialer builds a dialer with the same security as the transport, for
// broker reachability checks.
func NewDialer(cfg *Config) (*kafka.Dialer, error) {
	sec, err := newSecurity(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		ClientID:      version.Name,
		Timeout:       dialTimeout,
		DualStack:     true,
		TLS:           sec.tls,
		SASLMechanism: sec.sasl,
	}, nil
}

func loadTLS(cfg *Config) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.TLSCAFile)
		}
		tc.RootCAs = pool
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func saslMechanism(name, user, pass string) (sasl.Mechanism, error) {
	switch name {
	case "PLAIN":
		return plain.Mechanism{Username: user, Password: pass}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, user, pass)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, user, pass)
	}
	return nil, fmt.Errorf("unsupported mechanism %q", name)
}

// Compression maps a codec name to kafka-go's codec. Unknown names and
// "none" disable compression.
func Compression(name string) kafka.Compression {
	codecs := map[string]kafka.Compression{
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	}
	return codecs[name]
}
