package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/willibrandon/goasics/asics/signatures"
	"github.com/willibrandon/goasics/auth"
	asicshttp "github.com/willibrandon/goasics/http"
	"github.com/willibrandon/goasics/observability"
)

var tracingExporters = map[string]bool{
	observability.ExporterNone:   true,
	observability.ExporterStdout: true,
	observability.ExporterOTLP:   true,
}

// Settings is the typed view of a Config.
type Settings struct {
	TSAURL          string
	Credentials     auth.Credentials
	DigestAlgorithm signatures.DigestAlgorithm
	Timeout         time.Duration
	Tracing         string
	OTLPEndpoint    string
	HTTP3           bool
}

// Resolve validates cfg and fills in defaults. The TSA password is read back from the keychain
// with the TSA URL as account.
func (c *Config) Resolve() (*Settings, error) {
	s := &Settings{
		TSAURL:          c.Get(KeyTSAURL),
		DigestAlgorithm: signatures.DefaultDigestAlgorithm,
		Timeout:         asicshttp.DefaultTimeout,
		Tracing:         observability.ExporterNone,
		OTLPEndpoint:    c.Get(KeyOTLPEndpoint),
		Credentials: auth.Credentials{
			Username: c.Get(KeyTSAUsername),
			Token:    c.Get(KeyTSAToken),
			APIKey:   c.Get(KeyTSAAPIKey),
		},
	}

	if v := c.Get(KeyTSAPassword); v != "" {
		password, err := DecodePassword(s.TSAURL, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyTSAPassword, err)
		}
		s.Credentials.Password = password
	}

	if v := c.Get(KeyDigestAlgorithm); v != "" {
		alg, err := signatures.ParseDigestAlgorithm(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyDigestAlgorithm, err)
		}
		s.DigestAlgorithm = alg
	}

	if v := c.Get(KeyTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyTimeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s: must be positive, got %s", KeyTimeout, v)
		}
		s.Timeout = d
	}

	if v := strings.ToLower(c.Get(KeyTracing)); v != "" {
		if !tracingExporters[v] {
			return nil, fmt.Errorf("%s: unsupported exporter %q (none, stdout, otlp)", KeyTracing, v)
		}
		s.Tracing = v
	}
	if s.Tracing == observability.ExporterOTLP && s.OTLPEndpoint == "" {
		s.OTLPEndpoint = "localhost:4317"
	}

	if v := c.Get(KeyHTTP3); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyHTTP3, err)
		}
		s.HTTP3 = b
	}

	return s, nil
}
