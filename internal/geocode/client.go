package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.opencagedata.com/geocode/v1/json"
	userAgent      = "xplorawatch/1.0"
	requestTimeout = 30 * time.Second
)

// Client is a forward/reverse geocoding client for the OpenCage API.
//
// Network calls are only valid inside a WithSession scope; the
// underlying HTTP session is opened on entry and closed on every exit
// path. A Client is not meant to be shared across concurrent callers
// with independent session lifetimes - give each caller its own.
type Client struct {
	key     string
	baseURL string
	logger  *zap.Logger

	mu      sync.Mutex
	session *http.Client
}

// NewClient creates a geocoding client for the given API key.
func NewClient(key string, logger *zap.Logger) *Client {
	return &Client{
		key:     key,
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// WithSession opens an HTTP session, runs fn, and closes the session
// again. The session is closed on every exit path, including when fn
// returns an error. Nested scopes on the same client are rejected.
func (c *Client) WithSession(ctx context.Context, fn func(context.Context) error) error {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return fmt.Errorf("geocode: session already active")
	}
	c.session = &http.Client{Timeout: requestTimeout}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.session.CloseIdleConnections()
		c.session = nil
		c.mu.Unlock()
	}()

	return fn(ctx)
}

// Geocode resolves a free-text query to a list of results. The raw
// result list is passed through FloatifyLatLng so coordinate pairs
// come back numeric.
func (c *Client) Geocode(ctx context.Context, query string, extra url.Values) ([]any, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, ErrSessionNotActive
	}

	params, err := c.requestParams(query, extra)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("Sending geocode request", zap.String("query", query))

	resp, err := session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("geocode: read response: %w", err)
	}

	payload, err := classifyResponse(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	results, ok := payload["results"].([]any)
	if !ok {
		return nil, &UnknownResponseError{Reason: "results key is not a list"}
	}
	return FloatifyLatLng(results).([]any), nil
}

// ReverseGeocode resolves a coordinate pair to a list of results.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64, extra url.Values) ([]any, error) {
	return c.Geocode(ctx, queryForReverseGeocoding(lat, lng), extra)
}

// requestParams builds the query parameters for a geocode request.
// Caller-supplied extras may override q and key.
func (c *Client) requestParams(query string, extra url.Values) (url.Values, error) {
	if query == "" || !utf8.ValidString(query) {
		return nil, &InvalidInputError{BadValue: query}
	}

	params := url.Values{
		"q":   {query},
		"key": {c.key},
	}
	for k, vs := range extra {
		params[k] = vs
	}
	return params, nil
}

// classifyResponse maps an HTTP status and body onto the error
// taxonomy. The checks run in a fixed priority order; a response that
// clears every check is a success and its decoded body is returned.
func classifyResponse(status int, body []byte) (map[string]any, error) {
	var payload map[string]any
	jsonErr := json.Unmarshal(body, &payload)

	if jsonErr != nil && status == http.StatusOK {
		return nil, &UnknownResponseError{Reason: "non-JSON result from server"}
	}

	switch status {
	case http.StatusUnauthorized:
		return nil, ErrNotAuthorized
	case http.StatusForbidden:
		return nil, ErrForbidden
	case http.StatusPaymentRequired, http.StatusTooManyRequests:
		return nil, rateLimitError(payload)
	case http.StatusInternalServerError:
		return nil, &UnknownResponseError{Reason: "500 status from API"}
	}

	if _, ok := payload["results"]; !ok {
		return nil, &UnknownResponseError{Reason: "missing results key"}
	}
	return payload, nil
}

// rateLimitError extracts the reset allowance and reset time from a
// 402/429 body. Fields the server omitted stay at their zero values.
func rateLimitError(payload map[string]any) *RateLimitError {
	e := &RateLimitError{}
	rate, ok := payload["rate"].(map[string]any)
	if !ok {
		return e
	}
	if limit, ok := rate["limit"].(float64); ok {
		e.ResetTo = int(limit)
	}
	if reset, ok := rate["reset"].(float64); ok {
		e.ResetTime = time.Unix(int64(reset), 0).UTC()
	}
	return e
}

// queryForReverseGeocoding formats a lat/lng pair as the search query
// the API expects. FormatFloat with 'f' keeps the exact decimal form,
// never scientific notation.
func queryForReverseGeocoding(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}
