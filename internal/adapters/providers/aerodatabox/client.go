package aerodatabox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aeroclaim/internal/adapters/providers"
	"aeroclaim/internal/adapters/providers/ratelimit"
	"aeroclaim/internal/adapters/providers/retry"
	"aeroclaim/pkg/logger"
)

const (
	dateLayout            = "2006-01-02"
	vendorTimeLayout      = "2006-01-02 15:04Z"
	vendorLocalTimeLayout = "2006-01-02 15:04-07:00"
	defaultHTTPTimeout    = 10 * time.Second

	// maxResponseBytes bounds how much of a provider response we are willing
	// to buffer; route searches for busy city pairs are the largest payloads.
	maxResponseBytes = 4 << 20
)

// Config configures the AeroDataBox client.
type Config struct {
	BaseURL           string
	APIKey            string
	AuthStyle         providers.AuthStyle
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestsPerMinute int

	HTTPClient *http.Client
}

// NewClient creates a new AeroDataBox adapter.
func NewClient(cfg Config, log *logger.Logger) (providers.FlightProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if cfg.AuthStyle == "" {
		cfg.AuthStyle = providers.DetectAuthStyle(cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &client{
		cfg:        cfg,
		httpClient: httpClient,
		retry: retry.New(retry.Config{
			Provider:   "aerodatabox",
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay,
			MaxDelay:   cfg.RetryMaxDelay,
		}),
		limiter: ratelimit.NewLimiter("aerodatabox", cfg.RequestsPerMinute),
		log:     log.With("provider", "aerodatabox"),
	}, nil
}

type client struct {
	cfg        Config
	httpClient *http.Client
	retry      *retry.Middleware
	limiter    *ratelimit.Limiter
	log        *logger.Logger
}

func (c *client) Name() string {
	return "aerodatabox"
}

func (c *client) FlightStatus(ctx context.Context, flightNumber string, date time.Time) (*providers.FlightStatus, error) {
	path := fmt.Sprintf("/flights/number/%s/%s",
		url.PathEscape(normalizeFlightNumber(flightNumber)), date.UTC().Format(dateLayout))

	body, err := c.do(ctx, providers.OpFlightStatus, path, url.Values{"withLocation": []string{"false"}})
	if err != nil {
		return nil, err
	}

	var flights []vendorFlight
	if err := json.Unmarshal(body, &flights); err != nil {
		return nil, providers.NewError(providers.KindClient, providers.OpFlightStatus, 0,
			"malformed flight response", err)
	}
	if len(flights) == 0 {
		return nil, providers.NewError(providers.KindNotFound, providers.OpFlightStatus, 0,
			fmt.Sprintf("no flights for %s on %s", flightNumber, date.Format(dateLayout)), nil)
	}

	normalized := flights[0].normalize()
	normalized.Raw = json.RawMessage(body)
	return &normalized, nil
}

func (c *client) SearchRoute(ctx context.Context, depIATA, arrIATA string, date time.Time) ([]providers.FlightStatus, error) {
	path := fmt.Sprintf("/flights/airports/iata/%s/%s/%s",
		url.PathEscape(strings.ToUpper(depIATA)),
		url.PathEscape(strings.ToUpper(arrIATA)),
		date.UTC().Format(dateLayout))

	body, err := c.do(ctx, providers.OpRouteSearch, path, nil)
	if err != nil {
		return nil, err
	}

	var flights []vendorFlight
	if err := json.Unmarshal(body, &flights); err != nil {
		return nil, providers.NewError(providers.KindClient, providers.OpRouteSearch, 0,
			"malformed route search response", err)
	}

	results := make([]providers.FlightStatus, 0, len(flights))
	for _, vf := range flights {
		results = append(results, vf.normalize())
	}
	return results, nil
}

func (c *client) AirportByIATA(ctx context.Context, code string) (*providers.Airport, error) {
	path := fmt.Sprintf("/airports/iata/%s", url.PathEscape(strings.ToUpper(code)))

	body, err := c.do(ctx, providers.OpAirportInfo, path, nil)
	if err != nil {
		return nil, err
	}

	var va vendorAirport
	if err := json.Unmarshal(body, &va); err != nil {
		return nil, providers.NewError(providers.KindClient, providers.OpAirportInfo, 0,
			"malformed airport response", err)
	}

	airport := va.normalize()
	return &airport, nil
}

func (c *client) SearchAirports(ctx context.Context, term string) ([]providers.Airport, error) {
	body, err := c.do(ctx, providers.OpAirportSearch, "/airports/search/term",
		url.Values{"q": []string{term}, "limit": []string{"10"}})
	if err != nil {
		return nil, err
	}

	var result struct {
		Items []vendorAirport `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, providers.NewError(providers.KindClient, providers.OpAirportSearch, 0,
			"malformed airport search response", err)
	}

	airports := make([]providers.Airport, 0, len(result.Items))
	for _, va := range result.Items {
		airports = append(airports, va.normalize())
	}
	return airports, nil
}

// do issues one logical provider call: rate limit, per-attempt timeout,
// classified errors, retries on transient failures.
func (c *client) do(ctx context.Context, op providers.Operation, path string, query url.Values) ([]byte, error) {
	var body []byte

	err := c.retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		b, err := c.attempt(attemptCtx, op, path, query)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *client) attempt(ctx context.Context, op providers.Operation, path string, query url.Values) ([]byte, error) {
	reqURL, err := c.buildURL(path, query)
	if err != nil {
		return nil, providers.NewError(providers.KindClient, op, 0, "bad request url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, providers.NewError(providers.KindClient, op, 0, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authenticate(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(op, err)
	}

	c.log.Debugf("Provider call %s returned %d in %s", op, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return payload, nil
	}

	kind := providers.ClassifyStatus(resp.StatusCode)
	pe := providers.NewError(kind, op, resp.StatusCode, truncate(string(payload), 200), nil)
	if kind == providers.KindRateLimit {
		pe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return nil, pe
}

// authenticate attaches the API key in the style the configured gateway expects.
func (c *client) authenticate(req *http.Request) {
	switch c.cfg.AuthStyle {
	case providers.AuthRapidAPI:
		req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
		req.Header.Set("X-RapidAPI-Host", req.URL.Host)
	case providers.AuthMarketHeader:
		req.Header.Set("x-magicapi-key", c.cfg.APIKey)
	default:
		q := req.URL.Query()
		q.Set("api-key", c.cfg.APIKey)
		req.URL.RawQuery = q.Encode()
	}
}

func (c *client) buildURL(path string, query url.Values) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(c.cfg.BaseURL, "/"))
	if err != nil {
		return "", err
	}
	base.Path += path
	if query != nil {
		base.RawQuery = query.Encode()
	}
	return base.String(), nil
}

// classifyTransport distinguishes timeouts from other transport failures.
func classifyTransport(op providers.Operation, err error) *providers.Error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return providers.NewError(providers.KindTimeout, op, 0, "request timed out", err)
	}
	if urlErr, ok := err.(*url.Error); ok && urlErr.Timeout() {
		return providers.NewError(providers.KindTimeout, op, 0, "request timed out", err)
	}
	if err == context.DeadlineExceeded {
		return providers.NewError(providers.KindTimeout, op, 0, "request timed out", err)
	}
	return providers.NewError(providers.KindNetwork, op, 0, "transport failure", err)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func normalizeFlightNumber(number string) string {
	return strings.ToUpper(strings.ReplaceAll(number, " ", ""))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
