package signatures

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/willibrandon/goasics/auth"
	asicshttp "github.com/willibrandon/goasics/http"
	"github.com/willibrandon/goasics/observability"
)

// Timestamper produces an RFC 3161 token over a digest.
type Timestamper interface {
	Timestamp(ctx context.Context, digest Digest) ([]byte, error)
}

// Signer is what a container signs with: a Timestamper that reports its profile.
type Signer interface {
	Timestamper
	Profile() Profile
}

// ErrTimestampRejected is returned when the authority answers with a failure status.
var ErrTimestampRejected = errors.New("timestamp request rejected")

const maxTimestampResponseSize = 1 << 20

// TimestampClient requests time-stamp tokens from a remote authority over HTTP.
type TimestampClient struct {
	url    string
	client *asicshttp.Client
	auth   auth.Authenticator
	policy asn1.ObjectIdentifier
	logger observability.Logger
}

// TimestampClientOption configures a TimestampClient.
type TimestampClientOption func(*TimestampClient)

// WithHTTPClient sets the HTTP client. The default retries transient failures and
// opens a circuit breaker after repeated errors.
func WithHTTPClient(c *asicshttp.Client) TimestampClientOption {
	return func(tc *TimestampClient) { tc.client = c }
}

// WithAuthenticator adds credentials to every request.
func WithAuthenticator(a auth.Authenticator) TimestampClientOption {
	return func(tc *TimestampClient) { tc.auth = a }
}

// WithPolicy requests a specific TSA policy.
func WithPolicy(oid asn1.ObjectIdentifier) TimestampClientOption {
	return func(tc *TimestampClient) { tc.policy = oid }
}

// WithClientLogger sets the logger.
func WithClientLogger(l observability.Logger) TimestampClientOption {
	return func(tc *TimestampClient) { tc.logger = l }
}

// NewTimestampClient creates a client for the RFC 3161 authority at tsaURL.
func NewTimestampClient(tsaURL string, opts ...TimestampClientOption) *TimestampClient {
	tc := &TimestampClient{url: tsaURL}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.logger == nil {
		tc.logger = observability.NewNullLogger()
	}
	if tc.client == nil {
		tc.client = asicshttp.NewClientWithOptions(asicshttp.WithLogger(tc.logger))
	}
	return tc
}

// Profile implements Signer.
func (c *TimestampClient) Profile() Profile { return ProfileTimestampToken }

// URL returns the authority endpoint.
func (c *TimestampClient) URL() string { return c.url }

// Timestamp sends a TimeStampReq for digest and returns the verified token.
func (c *TimestampClient) Timestamp(ctx context.Context, digest Digest) (token []byte, err error) {
	ctx, span := observability.StartTSARequestSpan(ctx, c.url, digest.Algorithm.ShortName())
	defer func() { observability.EndSpanWithError(span, err) }()

	host := c.url
	if u, perr := url.Parse(c.url); perr == nil {
		host = u.Host
	}

	start := time.Now()
	defer func() {
		observability.TSARequestDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
		status := "granted"
		switch {
		case errors.Is(err, ErrTimestampRejected):
			status = "rejected"
		case err != nil:
			status = "error"
		}
		observability.TSARequestsTotal.WithLabelValues(status).Inc()
	}()

	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	reqBytes, err := buildTimestampRequest(digest, c.policy, nonce)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/timestamp-query")
	httpReq.Header.Set("Accept", "application/timestamp-reply")
	if c.auth != nil {
		if err := c.auth.Authenticate(httpReq); err != nil {
			return nil, fmt.Errorf("authenticate timestamp request: %w", err)
		}
	}

	c.logger.DebugContext(ctx, "Requesting {DigestMethod} timestamp from {TSA}", digest.Algorithm.ShortName(), c.url)

	httpResp, err := c.client.DoWithRetry(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("send timestamp request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timestamp server error: HTTP %d %s", httpResp.StatusCode, http.StatusText(httpResp.StatusCode))
	}

	respBytes, err := io.ReadAll(io.LimitReader(httpResp.Body, maxTimestampResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read timestamp response: %w", err)
	}

	token, err = parseTimestampResponse(respBytes)
	if err != nil {
		return nil, err
	}

	if err := verifyTimestampResponse(token, digest, nonce); err != nil {
		return nil, fmt.Errorf("verify timestamp response: %w", err)
	}

	c.logger.InfoContext(ctx, "Received timestamp token ({Size} bytes) from {TSA}", len(token), c.url)
	return token, nil
}

// RFC 3161 ASN.1 structures

type timestampRequest struct {
	Version        int
	MessageImprint messageImprint
	ReqPolicy      asn1.ObjectIdentifier `asn1:"optional"`
	Nonce          *big.Int              `asn1:"optional"`
	CertReq        bool                  `asn1:"optional,default:false"`
	Extensions     asn1.RawValue         `asn1:"optional,tag:0"`
}

type timestampResponse struct {
	Status         pkiStatusInfo
	TimeStampToken asn1.RawValue `asn1:"optional"`
}

type pkiStatusInfo struct {
	Status       int
	StatusString []string       `asn1:"optional"`
	FailInfo     asn1.BitString `asn1:"optional"`
}

// PKIStatus values accepted as success (granted, grantedWithMods).
const (
	pkiStatusGranted         = 0
	pkiStatusGrantedWithMods = 1
)

func buildTimestampRequest(digest Digest, policy asn1.ObjectIdentifier, nonce *big.Int) ([]byte, error) {
	oid := digest.Algorithm.OID()
	if oid == nil {
		return nil, fmt.Errorf("unsupported digest algorithm %q", string(digest.Algorithm))
	}

	req := timestampRequest{
		Version: 1,
		MessageImprint: messageImprint{
			HashAlgorithm: AlgorithmIdentifier{Algorithm: oid, Parameters: asn1.NullRawValue},
			HashedMessage: digest.Value,
		},
		ReqPolicy: policy,
		Nonce:     nonce,
		CertReq:   true,
	}

	b, err := asn1.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp request: %w", err)
	}
	return b, nil
}

func parseTimestampResponse(respBytes []byte) ([]byte, error) {
	var resp timestampResponse
	if _, err := asn1.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal timestamp response: %w", err)
	}

	if resp.Status.Status != pkiStatusGranted && resp.Status.Status != pkiStatusGrantedWithMods {
		return nil, fmt.Errorf("%w: status=%d %v", ErrTimestampRejected, resp.Status.Status, resp.Status.StatusString)
	}

	if len(resp.TimeStampToken.FullBytes) == 0 {
		return nil, fmt.Errorf("timestamp response missing token")
	}
	return resp.TimeStampToken.FullBytes, nil
}

// generateNonce returns a random positive 64-bit nonce.
func generateNonce() (*big.Int, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	b[0] &= 0x7f
	return new(big.Int).SetBytes(b), nil
}

// verifyTimestampResponse checks that the token answers this request.
func verifyTimestampResponse(token []byte, digest Digest, nonce *big.Int) error {
	info, err := ParseTimestampToken(token)
	if err != nil {
		return err
	}
	if info.HashAlgorithm != digest.Algorithm {
		return fmt.Errorf("timestamp imprint algorithm %s, requested %s", info.HashAlgorithm.ShortName(), digest.Algorithm.ShortName())
	}
	if !bytes.Equal(info.MessageImprint, digest.Value) {
		return fmt.Errorf("timestamp message imprint mismatch")
	}
	if info.Nonce == nil || info.Nonce.Cmp(nonce) != 0 {
		return fmt.Errorf("timestamp nonce mismatch")
	}
	return nil
}
