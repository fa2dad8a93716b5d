package http

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/net/http2"
)

const (
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	responseTimeout     = 15 * time.Second
)

// newTransport builds the round tripper for a client configuration.
// HTTP/2 is negotiated over ALPN when enabled. With HTTP/3 enabled, https
// requests go over QUIC first and fall back to the TCP transport.
func newTransport(cfg *Config) http.RoundTripper {
	idle := cfg.MaxIdleConns
	if idle <= 0 {
		idle = 100
	}

	tcp := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          idle,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseTimeout,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       cfg.TLSConfig,
	}
	if cfg.EnableHTTP2 {
		// on failure the transport keeps speaking HTTP/1.1
		_ = http2.ConfigureTransport(tcp)
	}

	if !cfg.EnableHTTP3 {
		return tcp
	}
	return newQUICTransport(tcp, cfg.TLSConfig)
}

// quicTransport sends https requests over HTTP/3 and retries them on the
// TCP transport when the QUIC attempt fails.
type quicTransport struct {
	quic     *http3.Transport
	fallback http.RoundTripper
}

func newQUICTransport(fallback http.RoundTripper, tlsCfg *tls.Config) *quicTransport {
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	} else {
		tlsCfg = tlsCfg.Clone()
	}
	return &quicTransport{
		quic: &http3.Transport{
			TLSClientConfig: tlsCfg,
			QUICConfig:      &quic.Config{Allow0RTT: true},
		},
		fallback: fallback,
	}
}

func (t *quicTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" || !rewindable(req) {
		return t.fallback.RoundTrip(req)
	}

	resp, err := t.quic.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, berr
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.fallback.RoundTrip(req)
}

// Close releases QUIC connections.
func (t *quicTransport) Close() error {
	return t.quic.Close()
}

func rewindable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// protocolName names the HTTP version a response arrived over.
func protocolName(resp *http.Response) string {
	switch resp.ProtoMajor {
	case 3:
		return "HTTP/3"
	case 2:
		return "HTTP/2"
	default:
		return "HTTP/1.1"
	}
}
