package aliexpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cheapmatch/backend/internal/domain"
	"github.com/cheapmatch/backend/internal/metrics"
)

const (
	methodProductQuery  = "aliexpress.affiliate.product.query"
	methodProductDetail = "aliexpress.affiliate.productdetail.get"

	apiVersion     = "2.0"
	signMethod     = "sha256"
	targetLanguage = "EN"
	maxAttempts    = 3
	maxBodyBytes   = 4 << 20
)

// Client handles communication with the AliExpress affiliate API gateway
type Client struct {
	httpClient  *http.Client
	credentials domain.CatalogCredentials
	baseURL     string
	rateLimiter *rate.Limiter
	debug       bool
	now         func() time.Time
	backoff     func(attempt int) time.Duration
}

// NewClient creates a new catalog API client
func NewClient(credentials domain.CatalogCredentials, baseURL string) *Client {
	// The affiliate API allows a handful of calls per second per app key
	limiter := rate.NewLimiter(rate.Limit(5), 10)

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		credentials: credentials,
		baseURL:     baseURL,
		rateLimiter: limiter,
		now:         time.Now,
		backoff:     exponentialBackoff,
	}
}

// SetDebug enables logging of raw API responses
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// SetRateLimit replaces the request rate limit
func (c *Client) SetRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 || burst <= 0 {
		return
	}
	c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// SetTimeout sets the per-request HTTP timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
}

// exponentialBackoff returns the delay before retry attempt n (1-based)
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// Search queries the catalog for keywords, priced in currency
func (c *Client) Search(ctx context.Context, keywords string, currency domain.Currency, pageSize int) ([]domain.Candidate, error) {
	log.Printf("[CATALOG] Search called with keywords: %q (%s)", keywords, currency)

	params := map[string]string{
		"keywords":        keywords,
		"target_currency": string(currency),
		"target_language": targetLanguage,
		"tracking_id":     c.credentials.TrackingID,
		"page_size":       strconv.Itoa(pageSize),
	}

	resp, err := c.call(ctx, methodProductQuery, params)
	if err != nil {
		return nil, err
	}

	products := resp.products()
	candidates := make([]domain.Candidate, 0, len(products))
	for _, p := range products {
		if candidate, ok := mapToCandidate(p, currency); ok {
			candidates = append(candidates, candidate)
		}
	}

	log.Printf("[CATALOG] Found %d usable products (of %d) for %q", len(candidates), len(products), keywords)
	return candidates, nil
}

// GetDetails fetches one product priced in currency. Returns (nil, nil) when
// the product does not exist anymore.
func (c *Client) GetDetails(ctx context.Context, candidateID string, currency domain.Currency) (*domain.Candidate, error) {
	params := map[string]string{
		"product_ids":     candidateID,
		"target_currency": string(currency),
		"target_language": targetLanguage,
		"tracking_id":     c.credentials.TrackingID,
	}

	resp, err := c.call(ctx, methodProductDetail, params)
	if err != nil {
		return nil, err
	}

	for _, p := range resp.products() {
		if string(p.ProductID) != candidateID {
			continue
		}
		if candidate, ok := mapToCandidate(p, currency); ok {
			return &candidate, nil
		}
	}

	log.Printf("[CATALOG] Product %s not found", candidateID)
	return nil, nil
}

// call signs and posts one gateway request, retrying transient failures
func (c *Client) call(ctx context.Context, method string, params map[string]string) (*gatewayResponse, error) {
	if !c.credentials.Complete() {
		return nil, domain.ErrNotConfigured
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Wait for rate limiter
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, retry, err := c.doRequest(ctx, method, params)
		if err == nil {
			metrics.RecordCatalogRequest(method, "ok")
			return resp, nil
		}

		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}

		log.Printf("[CATALOG] %s failed (attempt %d): %v", method, attempt, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	metrics.RecordCatalogRequest(method, "error")
	return nil, lastErr
}

// doRequest executes a single signed request. retry reports whether the
// failure is worth another attempt.
func (c *Client) doRequest(ctx context.Context, method string, extra map[string]string) (*gatewayResponse, bool, error) {
	params := map[string]string{
		"app_key":     c.credentials.AppKey,
		"timestamp":   strconv.FormatInt(c.now().UnixMilli(), 10),
		"sign_method": signMethod,
		"method":      method,
		"v":           apiVersion,
	}
	for k, v := range extra {
		params[k] = v
	}
	params["sign"] = Sign(params, c.credentials.AppSecret)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("User-Agent", "CheapMatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", domain.ErrCatalogAPIFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", domain.ErrCatalogAPIFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("%w: status %d", domain.ErrCatalogAPIFailure, resp.StatusCode)
	}

	if c.debug {
		log.Printf("[CATALOG] %s response: %s", method, truncateBody(body))
	}

	var gw gatewayResponse
	if err := json.Unmarshal(body, &gw); err != nil {
		return nil, false, fmt.Errorf("%w: malformed response: %v", domain.ErrCatalogAPIFailure, err)
	}
	if gw.ErrorResponse != nil {
		return nil, false, fmt.Errorf("%w: %s (%s)", domain.ErrCatalogAPIFailure, gw.ErrorResponse.Msg, gw.ErrorResponse.Code)
	}

	return &gw, false, nil
}

func truncateBody(body []byte) string {
	const limit = 500
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
