// Package httpx is the transport core of the SDK: one client that issues
// JSON and multipart requests against the marketplace API, reuses responses
// through a pluggable cache, and routes failures through the error
// classifier before propagating them.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/troca-app/troca-go/apierr"
	"github.com/troca-app/troca-go/cache"
	"github.com/troca-app/troca-go/metrics"
)

// RestClient exposes a minimal subset of resty.Client for customization
// without importing resty.
type RestClient interface {
	SetHeader(key, value string) RestClient
	SetHeaders(headers map[string]string) RestClient
	SetTimeout(d time.Duration) RestClient
}

type restyAdapter struct{ c *resty.Client }

func (r restyAdapter) SetHeader(key, value string) RestClient {
	r.c.SetHeader(key, value)
	return r
}

func (r restyAdapter) SetHeaders(headers map[string]string) RestClient {
	r.c.SetHeaders(headers)
	return r
}

func (r restyAdapter) SetTimeout(d time.Duration) RestClient {
	r.c.SetTimeout(d)
	return r
}

type Client struct {
	resty     *resty.Client
	baseURL   string
	cache     cache.Store
	presenter apierr.Presenter
	metrics   *metrics.Metrics
	log       zerolog.Logger
	flight    *singleflight.Group
}

func NewClient(opts ...ClientOption) *Client {
	cfg := defaultClientOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	// resty ships a cookie jar by default, which carries the backend's
	// session cookie across calls.
	rc := resty.New()
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if len(cfg.Headers) > 0 {
		rc.SetHeaders(cfg.Headers)
	}
	if cfg.RestyConfig != nil {
		cfg.RestyConfig(restyAdapter{rc})
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &Client{
		resty:     rc,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		cache:     cfg.Cache,
		presenter: cfg.Presenter,
		metrics:   cfg.Metrics,
		log:       logger,
	}
	if cfg.Singleflight {
		c.flight = new(singleflight.Group)
	}
	return c
}

// Request performs a JSON request. present controls whether a classified
// failure is pushed to the presenter; the failure is returned to the caller
// either way.
func (c *Client) Request(ctx context.Context, endpoint string, present bool, opts ...RequestOption) (json.RawMessage, error) {
	cfg := buildRequestOptions(opts)
	return c.do(ctx, endpoint, nil, nil, present, cfg)
}

// FormRequest performs a multipart request, used for image uploads. Caching
// defaults to disabled regardless of method and the body never participates
// in the cache key.
func (c *Client) FormRequest(ctx context.Context, endpoint, method string, form *Form, present bool, opts ...RequestOption) (json.RawMessage, error) {
	cfg := buildRequestOptions(opts)
	cfg.method = method
	if form == nil {
		form = NewForm()
	}
	return c.do(ctx, endpoint, form, nil, present, cfg)
}

// Get performs a GET with query parameters appended to the endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, present bool, opts ...RequestOption) (json.RawMessage, error) {
	cfg := buildRequestOptions(opts)
	cfg.method = http.MethodGet
	return c.do(ctx, endpoint, nil, params, present, cfg)
}

func buildRequestOptions(opts []RequestOption) requestOptions {
	var cfg requestOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c *Client) do(ctx context.Context, endpoint string, form *Form, params url.Values, present bool, cfg requestOptions) (json.RawMessage, error) {
	method := strings.ToUpper(cfg.method)
	if method == "" {
		method = http.MethodGet
	}

	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	// GET caches by default, everything else does not; multipart never
	// caches unless explicitly asked to.
	useCache := method == http.MethodGet && form == nil
	if cfg.useCache != nil {
		useCache = *cfg.useCache
	}
	useCache = useCache && c.cache != nil

	var key string
	if useCache {
		key = cache.Key(method, fullURL, cfg.body, cfg.matchBody && form == nil)
	}

	if key != "" && !cfg.forceRefresh {
		cached, err := c.cache.Get(ctx, key, cfg.cacheTTL)
		switch {
		case err == nil:
			c.metrics.RecordCacheEvent(metrics.CacheHit)
			c.log.Debug().Str("key", key).Msg("cache hit")
			return c.finish(cached, cfg.result)
		case errors.Is(err, cache.ErrNotFound):
			c.metrics.RecordCacheEvent(metrics.CacheMiss)
		default:
			// a broken cache read is a miss, not a request failure
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
			c.metrics.RecordCacheEvent(metrics.CacheMiss)
		}
	} else if key != "" {
		c.metrics.RecordCacheEvent(metrics.CacheBypass)
		c.log.Debug().Str("key", key).Msg("force refresh, skipping cache read")
	}

	fetch := func() (json.RawMessage, error) {
		return c.fetch(ctx, method, endpoint, fullURL, form, key, present, cfg)
	}

	if c.flight != nil && key != "" && method == http.MethodGet {
		v, err, _ := c.flight.Do(key, func() (any, error) { return fetch() })
		if err != nil {
			return nil, err
		}
		return c.finish(v.(json.RawMessage), cfg.result)
	}

	raw, err := fetch()
	if err != nil {
		return nil, err
	}
	return c.finish(raw, cfg.result)
}

func (c *Client) fetch(ctx context.Context, method, endpoint, fullURL string, form *Form, key string, present bool, cfg requestOptions) (json.RawMessage, error) {
	req := c.resty.R().SetContext(ctx)
	if len(cfg.headers) > 0 {
		req.SetHeaders(cfg.headers)
	}
	if form != nil {
		// no explicit Content-Type: the multipart writer computes the
		// boundary
		form.apply(req)
	} else {
		req.SetHeader("Content-Type", "application/json")
		if cfg.body != nil {
			req.SetBody(cfg.body)
		}
	}

	start := time.Now()
	resp, err := req.Execute(method, fullURL)
	if err != nil {
		c.metrics.ObserveRequest(method, 0, time.Since(start))
		c.log.Debug().Err(err).Str("url", fullURL).Msg("transport failure")
		if present {
			c.present(err)
		}
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}

	status := resp.StatusCode()
	c.metrics.ObserveRequest(method, status, time.Since(start))

	// empty or non-JSON success bodies (204s and friends) become {}
	raw := resp.Body()
	if len(raw) == 0 || !json.Valid(raw) {
		raw = []byte("{}")
	}

	if resp.IsError() {
		apiErr := apierr.FromBody(status, raw)
		c.log.Debug().Int("status", status).Str("url", fullURL).Str("message", apiErr.Message).Msg("request failed")
		if present {
			c.present(apiErr)
		}
		// failed calls never touch the cache
		return nil, apiErr
	}

	if key != "" {
		// best effort: a cache write failure must never fail the call
		if err := c.cache.Set(ctx, key, raw); err != nil {
			c.metrics.RecordCacheEvent(metrics.CacheStoreFail)
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return raw, nil
}

func (c *Client) finish(raw json.RawMessage, result any) (json.RawMessage, error) {
	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return raw, nil
}

func (c *Client) present(err error) {
	if c.presenter != nil {
		c.presenter(apierr.Classify(err))
	}
}
