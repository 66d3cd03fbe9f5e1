package httpx

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/troca-app/troca-go/apierr"
	"github.com/troca-app/troca-go/cache"
	"github.com/troca-app/troca-go/metrics"
)

type ClientOptions struct {
	BaseURL      string
	Timeout      time.Duration
	Headers      map[string]string
	Cache        cache.Store
	Presenter    apierr.Presenter
	Logger       *zerolog.Logger
	Metrics      *metrics.Metrics
	Singleflight bool
	RestyConfig  func(RestClient)
}

type ClientOption func(*ClientOptions)

func defaultClientOptions() ClientOptions {
	return ClientOptions{Timeout: 10 * time.Second}
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		if len(headers) == 0 {
			return
		}
		o.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

// WithCache installs the response cache. Without one, every call goes to the
// network.
func WithCache(store cache.Store) ClientOption {
	return func(o *ClientOptions) {
		o.Cache = store
	}
}

// WithPresenter installs the callback that displays classified errors.
func WithPresenter(p apierr.Presenter) ClientOption {
	return func(o *ClientOptions) {
		o.Presenter = p
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(o *ClientOptions) {
		o.Logger = &logger
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(o *ClientOptions) {
		o.Metrics = m
	}
}

// WithSingleflight coalesces concurrent identical cacheable GETs into one
// network call. Off by default: independent callers then race and the last
// response wins the cache write.
func WithSingleflight() ClientOption {
	return func(o *ClientOptions) {
		o.Singleflight = true
	}
}

func WithRestyConfig(fn func(RestClient)) ClientOption {
	return func(o *ClientOptions) {
		o.RestyConfig = fn
	}
}

type requestOptions struct {
	method       string
	body         any
	headers      map[string]string
	result       any
	useCache     *bool
	cacheTTL     time.Duration
	matchBody    bool
	forceRefresh bool
}

type RequestOption func(*requestOptions)

// WithMethod overrides the HTTP method (default GET).
func WithMethod(method string) RequestOption {
	return func(o *requestOptions) {
		o.method = method
	}
}

// WithBody sets the JSON-serialized request body.
func WithBody(body any) RequestOption {
	return func(o *requestOptions) {
		o.body = body
	}
}

func WithRequestHeaders(headers map[string]string) RequestOption {
	return func(o *requestOptions) {
		if len(headers) == 0 {
			return
		}
		o.headers = headers
	}
}

// WithResult unmarshals the response (cached or fresh) into out.
func WithResult(out any) RequestOption {
	return func(o *requestOptions) {
		o.result = out
	}
}

// WithUseCache overrides the per-method default (GET caches, others don't).
func WithUseCache(use bool) RequestOption {
	return func(o *requestOptions) {
		o.useCache = &use
	}
}

// WithCacheTTL bounds the age of an acceptable cached response. Without it a
// cached entry never goes stale.
func WithCacheTTL(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.cacheTTL = d
	}
}

// WithCacheMatchBody includes the JSON body in the cache key. Ignored for
// multipart requests, whose payloads are not reliably re-serializable.
func WithCacheMatchBody() RequestOption {
	return func(o *requestOptions) {
		o.matchBody = true
	}
}

// WithForceRefresh skips the cache read but still stores the fresh response
// when caching is enabled.
func WithForceRefresh() RequestOption {
	return func(o *requestOptions) {
		o.forceRefresh = true
	}
}
