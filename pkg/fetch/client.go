// Package fetch is the HTTP client used for pages, site APIs and images. It
// sends browser-like headers, forwards a referer, retries transient failures
// and maps non-2xx responses to typed errors.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"time"

	"comicgrabber/pkg/config"
	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/logger"
	"comicgrabber/pkg/ratelimit"
	"comicgrabber/pkg/retry"
)

// MaxBodySize caps a single response body
const MaxBodySize = 64 << 20

// Hints are per-request transport details
type Hints struct {
	Referer string
	Cookie  string
	Accept  string
	Header  map[string]string
}

// Response is a fully read HTTP response
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client performs rate-limited, retried HTTP requests
type Client struct {
	httpClient     *http.Client
	headers        map[string]string
	limiter        ratelimit.Limiter
	retry          *retry.Config
	forwardReferer bool
	logger         logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithRetry replaces the retry configuration
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLimiter replaces the rate limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a client from the fetch configuration
func NewClient(cfg config.FetchConfig, log logger.Logger, opts ...Option) *Client {
	log = logger.OrDefault(log).WithField("component", "fetch")

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
		limiter:        ratelimit.New(cfg.RequestsPerMinute),
		retry:          retry.ForHTTP(cfg.MaxAttempts, log),
		forwardReferer: cfg.ForwardReferer,
		logger:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves rawURL and returns the full body. Non-2xx statuses are errors.
func (c *Client) Get(ctx context.Context, rawURL string, hints Hints) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, "", hints)
}

// GetJSON retrieves rawURL and decodes the JSON body into target
func (c *Client) GetJSON(ctx context.Context, rawURL string, hints Hints, target interface{}) error {
	if hints.Accept == "" {
		hints.Accept = "application/json, text/plain, */*"
	}
	resp, err := c.Get(ctx, rawURL, hints)
	if err != nil {
		return err
	}
	return c.decode(resp, target)
}

// PostMultipart posts form values as multipart/form-data to rawURL and
// decodes the JSON response into target
func (c *Client) PostMultipart(ctx context.Context, rawURL string, form url.Values, hints Hints, target interface{}) error {
	if hints.Accept == "" {
		hints.Accept = "application/json, text/plain, */*"
	}
	body, contentType, err := encodeMultipart(form)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, "failed to encode form", err)
	}
	resp, err := c.do(ctx, http.MethodPost, rawURL, body, contentType, hints)
	if err != nil {
		return err
	}
	return c.decode(resp, target)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, contentType string, hints Hints) (*Response, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		c.applyHeaders(req, hints)

		return c.roundTrip(req)
	}, c.retry)
}

func (c *Client) applyHeaders(req *http.Request, hints Hints) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	if hints.Accept != "" {
		req.Header.Set("Accept", hints.Accept)
	}
	if hints.Referer != "" && c.forwardReferer {
		req.Header.Set("Referer", hints.Referer)
	}
	if hints.Cookie != "" {
		req.Header.Set("Cookie", hints.Cookie)
	}
	for key, value := range hints.Header {
		req.Header.Set(key, value)
	}
}

func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	target := req.URL.String()
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    target,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      target,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: "request failed", URL: target, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      target,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errs.FromStatus(resp.StatusCode, target)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: "failed to read response body", Code: resp.StatusCode, URL: target, Err: err}
	}
	if len(data) > MaxBodySize {
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Message: fmt.Sprintf("response larger than %d bytes", MaxBodySize), URL: target}
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func (c *Client) decode(resp *Response, target interface{}) error {
	if err := json.Unmarshal(resp.Body, target); err != nil {
		preview := string(resp.Body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.WarnWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          resp.URL,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return &errs.Error{Type: errs.ErrorTypeParsing, Message: "failed to parse JSON", Code: resp.StatusCode, URL: resp.URL, Err: err}
	}
	return nil
}

func encodeMultipart(form url.Values) ([]byte, string, error) {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, k := range keys {
		for _, v := range form[k] {
			if err := mw.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
