package clients

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	// DefaultBitstampURL is the v2 REST root.
	DefaultBitstampURL = "https://www.bitstamp.net/api/v2"

	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 5
	maxResponseBytes         = 1 << 20
)

// Response raw HTTP response of an exchange call.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// BitstampClient performs single HTTP round trips against the Bitstamp REST API.
// It never retries.
type BitstampClient struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter

	// signed requests are sent one at a time so nonces reach the exchange in allocation order
	signedMu sync.Mutex
}

// NewBitstampClient creates a client. signer may be nil for public endpoints only.
func NewBitstampClient(baseURL string, signer *Signer, timeout time.Duration, requestsPerSecond float64) *BitstampClient {
	if baseURL == "" {
		baseURL = DefaultBitstampURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}

	return &BitstampClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Get performs an unsigned GET request.
func (c *BitstampClient) Get(ctx context.Context, path string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}

	return c.do(ctx, req)
}

// PostSigned performs a signed form POST. Each call consumes exactly one nonce.
func (c *BitstampClient) PostSigned(ctx context.Context, path string, values url.Values) (*Response, error) {
	if c.signer == nil {
		return nil, errors.Wrap(ErrMissingCredentials, "signed request without signer")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.signedMu.Lock()
	defer c.signedMu.Unlock()

	form := url.Values{}
	for k, v := range values {
		form[k] = v
	}
	nonce, signature := c.signer.Sign()
	form.Set("key", c.signer.APIKey())
	form.Set("signature", signature)
	form.Set("nonce", strconv.FormatInt(nonce, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(ctx, req)
}

func (c *BitstampClient) do(ctx context.Context, req *http.Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *BitstampClient) endpoint(path string) string {
	path = strings.Trim(path, "/")
	return c.baseURL + "/" + path + "/"
}
