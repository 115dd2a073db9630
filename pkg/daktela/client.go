// Package daktela implements the authenticated, retrying, paginated
// client for the Daktela API v6.
//
// One Client owns one authenticated session: Authenticate exchanges
// credentials for an access token, and every subsequent request carries
// that token. Page and count requests retry transient failures with
// linearly increasing backoff; authentication itself is never retried,
// since credential validity is unverified at that point.
package daktela

import (
	"context"
	errs "errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/jsvoboda/daktela-extractor/pkg/errors"
	"github.com/jsvoboda/daktela-extractor/pkg/logger"
	"github.com/jsvoboda/daktela-extractor/pkg/metrics"
	"github.com/jsvoboda/daktela-extractor/pkg/models"
	"github.com/jsvoboda/daktela-extractor/pkg/schema"
)

const (
	// DefaultLimit is the default page size.
	DefaultLimit = 1000

	// maxRetries is the total number of attempts for one count or page
	// request, including the first.
	maxRetries = 8
)

// Client is an authenticated Daktela API session.
type Client struct {
	baseURL  string
	username string
	password string
	token    string

	httpClient *http.Client
	log        *zap.Logger

	// sleep waits between retry attempts; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithSleep replaces the backoff wait, letting tests observe retry
// delays without sleeping.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// New creates a client for the given base URL and credentials.
func New(baseURL, username, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.log == nil {
		c.log = logger.Get()
	}
	if c.sleep == nil {
		c.sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	return c
}

// loginEnvelope is the login response. Result is either a bare token
// string (legacy) or an object carrying accessToken (v6).
type loginEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// resultEnvelope is the list response envelope shared by all table and
// child-table endpoints.
type resultEnvelope struct {
	Result struct {
		Total int              `json:"total"`
		Data  []*models.Record `json:"data"`
	} `json:"result"`
}

// Authenticate exchanges the credentials for an access token. Failures
// are fatal and never retried: an unreachable host, a non-success
// status, and a missing or empty token are distinct conditions.
func (c *Client) Authenticate(ctx context.Context) error {
	loginURL := c.baseURL + "/api/v6/login.json"

	params := url.Values{}
	params.Set("username", c.username)
	params.Set("password", c.password)
	params.Set("only_token", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create login request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.New(errors.ErrorTypeAuthentication, "server not responding, check your url")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrorTypeAuthentication,
			"invalid response from Daktela server (status %d %s), make sure your credentials are correct",
			resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var envelope loginEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.New(errors.ErrorTypeAuthentication, "token received was invalid or empty")
	}

	token, err := tokenFromResult(envelope.Result)
	if err != nil {
		return err
	}

	c.token = token
	c.log.Info("successfully authenticated with Daktela API")
	return nil
}

// tokenFromResult accepts both token shapes: a bare string and an
// object with an accessToken field.
func tokenFromResult(raw json.RawMessage) (string, error) {
	invalid := errors.New(errors.ErrorTypeAuthentication, "token received was invalid or empty")
	if len(raw) == 0 {
		return "", invalid
	}

	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		var obj struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", invalid
		}
		token = obj.AccessToken
	}

	if token == "" {
		return "", invalid
	}
	return token, nil
}

// CountTotal requests a single record to read the server-reported total
// for a table, using the standard retry policy.
func (c *Client) CountTotal(ctx context.Context, path string, filters []schema.Filter) (int, error) {
	params := url.Values{}
	params.Set("skip", "0")
	params.Set("take", "1")
	if encoded := EncodeFilters(filters); encoded != "" {
		params.Set("filter", encoded)
	}

	envelope, err := c.getWithRetry(ctx, path, c.tableURL(path), params)
	if err != nil {
		return 0, err
	}
	return envelope.Result.Total, nil
}

// FetchPage fetches one bounded page of a table.
func (c *Client) FetchPage(ctx context.Context, path string, skip, limit int, filters []schema.Filter, fields []string) ([]*models.Record, error) {
	params := url.Values{}
	params.Set("skip", strconv.Itoa(skip))
	params.Set("take", strconv.Itoa(limit))
	if encoded := EncodeFilters(filters); encoded != "" {
		params.Set("filter", encoded)
	}
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}

	envelope, err := c.getWithRetry(ctx, path, c.tableURL(path), params)
	if err != nil {
		return nil, err
	}
	return envelope.Result.Data, nil
}

// ExtractTable counts a table and fetches it page by page. An empty but
// valid table still issues one page request, so emptiness is observed
// rather than assumed.
func (c *Client) ExtractTable(ctx context.Context, path string, filters []schema.Filter, fields []string, limit int) ([]*models.Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	total, err := c.CountTotal(ctx, path, filters)
	if err != nil {
		return nil, err
	}

	batches := 1
	if total > 0 {
		batches = (total + limit - 1) / limit
	}
	c.log.Info("table extraction started",
		zap.String("table", path),
		zap.Int("total", total),
		zap.Int("batches", batches))

	var all []*models.Record
	for skip := 0; skip < max(total, 1); skip += limit {
		page, err := c.FetchPage(ctx, path, skip, limit, filters, fields)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}

// ExtractChildTable fetches the child collection nested under each
// parent identifier, in input order, stamping every child record with
// the parent identifier under "{parentTable}_name".
func (c *Client) ExtractChildTable(ctx context.Context, parentTable string, parentIDs []string, childPath string, limit int) ([]*models.Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	parentKey := parentTable + "_name"
	var all []*models.Record
	totalEntries := 0

	for _, parentID := range parentIDs {
		childURL := c.childURL(parentTable, parentID, childPath)

		count, err := c.countAt(ctx, parentTable+"/"+childPath, childURL)
		if err != nil {
			return nil, err
		}
		totalEntries += count

		for skip := 0; skip < max(count, 1); skip += limit {
			params := url.Values{}
			params.Set("skip", strconv.Itoa(skip))
			params.Set("take", strconv.Itoa(limit))

			envelope, err := c.getWithRetry(ctx, parentTable+"/"+childPath, childURL, params)
			if err != nil {
				return nil, err
			}
			for _, rec := range envelope.Result.Data {
				rec.Set(parentKey, parentID)
			}
			all = append(all, envelope.Result.Data...)
		}
	}

	batches := 1
	if totalEntries > 0 {
		batches = (totalEntries + limit - 1) / limit
	}
	c.log.Info("child table extraction finished",
		zap.String("table", parentTable+"_"+childPath),
		zap.Int("parents", len(parentIDs)),
		zap.Int("total", totalEntries),
		zap.Int("batches", batches))

	return all, nil
}

func (c *Client) countAt(ctx context.Context, table, rawURL string) (int, error) {
	params := url.Values{}
	params.Set("skip", "0")
	params.Set("take", "1")

	envelope, err := c.getWithRetry(ctx, table, rawURL, params)
	if err != nil {
		return 0, err
	}
	return envelope.Result.Total, nil
}

func (c *Client) tableURL(path string) string {
	return c.baseURL + "/api/v6/" + path + ".json"
}

func (c *Client) childURL(parentTable, parentID, childPath string) string {
	return c.baseURL + "/api/v6/" + parentTable + "/" + url.PathEscape(parentID) + "/" + childPath + ".json"
}

// EncodeFilters renders filters as "field[operator]=value" pairs joined
// with "&". Filters with a nil value are skipped; resolving them from
// the date window is the caller's job.
func EncodeFilters(filters []schema.Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if f.Value == nil {
			continue
		}
		parts = append(parts, f.Field+"["+f.Operator+"]="+*f.Value)
	}
	return strings.Join(parts, "&")
}

// getWithRetry performs a GET with the access token attached, retrying
// transient failures (connection drop, timeout, HTTP 429/5xx) up to
// maxRetries attempts with linearly increasing backoff. Error summaries
// carry the failure class only; raw transport errors embed the request
// URL, token included, and must never reach logs.
func (c *Client) getWithRetry(ctx context.Context, table, rawURL string, params url.Values) (*resultEnvelope, error) {
	params.Set("accessToken", c.token)
	fullURL := rawURL + "?" + params.Encode()

	var lastErr *errors.Error

	for attempt := 0; attempt < maxRetries; attempt++ {
		envelope, attemptErr := c.doGet(ctx, fullURL)
		if envelope != nil {
			metrics.APIRequests.WithLabelValues("success").Inc()
			return envelope, nil
		}

		if !errors.IsRetryable(attemptErr) {
			metrics.APIRequests.WithLabelValues("fatal").Inc()
			return nil, errors.Newf(attemptErr.Type,
				"request for table %s failed: %s", table, attemptErr.Message)
		}
		metrics.APIRequests.WithLabelValues("retryable").Inc()

		lastErr = attemptErr
		if attempt == maxRetries-1 {
			break
		}

		wait := time.Duration(attempt+1) * time.Second
		c.log.Warn("request failed, retrying",
			zap.String("table", table),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
			zap.String("reason", attemptErr.Message),
			zap.Duration("wait", wait))
		metrics.APIRetries.Inc()

		if err := c.sleep(ctx, wait); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "retry wait cancelled")
		}
	}

	return nil, errors.Newf(lastErr.Type,
		"request for table %s failed after %d attempts: %s", table, maxRetries, lastErr.Message).
		WithDetail("table", table).
		WithDetail("attempts", maxRetries)
}

// doGet performs one attempt. Failures come back as typed errors whose
// messages name only the failure class; retryability follows from the
// error type.
func (c *Client) doGet(ctx context.Context, fullURL string) (*resultEnvelope, *errors.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeInternal, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errs.As(err, &netErr) && netErr.Timeout() {
			return nil, errors.New(errors.ErrorTypeTimeout, "request timed out")
		}
		if ctx.Err() != nil {
			return nil, errors.New(errors.ErrorTypeInternal, "request cancelled")
		}
		return nil, errors.New(errors.ErrorTypeConnection, "connection error")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var envelope resultEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, errors.New(errors.ErrorTypeData, "invalid response body")
		}
		return &envelope, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.New(errors.ErrorTypeRateLimit, "status 429 (rate limited)")
	case resp.StatusCode >= 500:
		return nil, errors.New(errors.ErrorTypeServer, "status "+strconv.Itoa(resp.StatusCode))
	default:
		return nil, errors.New(errors.ErrorTypeData, "status "+strconv.Itoa(resp.StatusCode))
	}
}
