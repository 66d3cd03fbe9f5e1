package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/troca-app/troca-go/apierr"
	"github.com/troca-app/troca-go/cache"
	"github.com/troca-app/troca-go/cache/memory"
)

func newCountingServer(t *testing.T, handler http.HandlerFunc) (*TestServer, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	ts := NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestGetPopulatesAndReusesCache(t *testing.T) {
	ts, calls := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.String() != "/items/?page=1&page_size=20" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":1}],"total_pages":3}`))
	})

	store := memory.NewStore(memory.Options{})
	client := NewClient(WithBaseURL(ts.BaseURL()), WithCache(store))

	var first, second struct {
		TotalPages int `json:"total_pages"`
	}
	params := map[string][]string{"page": {"1"}, "page_size": {"20"}}

	if _, err := client.Get(context.Background(), "/items/", params, true, WithResult(&first)); err != nil {
		t.Fatalf("first Get() error = %v", err)
	}
	if first.TotalPages != 3 {
		t.Fatalf("unexpected decode: %+v", first)
	}

	key := cache.Key("GET", ts.BaseURL()+"/items/?page=1&page_size=20", nil, false)
	if _, err := store.Get(context.Background(), key, 0); err != nil {
		t.Fatalf("expected cache entry under %q: %v", key, err)
	}

	if _, err := client.Get(context.Background(), "/items/", params, true, WithResult(&second)); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if second.TotalPages != 3 {
		t.Fatalf("unexpected decode from cache: %+v", second)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 network call, got %d", calls.Load())
	}
}

func TestPostNotCachedByDefault(t *testing.T) {
	ts, calls := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":9}`))
	})

	client := NewClient(WithBaseURL(ts.BaseURL()), WithCache(memory.NewStore(memory.Options{})))
	body := map[string]any{"item_id": 5, "price": 10, "message": "hi"}

	for i := 0; i < 2; i++ {
		if _, err := client.Request(context.Background(), "/offers/", true,
			WithMethod(http.MethodPost), WithBody(body)); err != nil {
			t.Fatalf("Request() error = %v", err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("POST must not cache by default; got %d network calls", calls.Load())
	}
}

func TestExplicitUseCacheOverridesDefaults(t *testing.T) {
	ts, calls := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	})

	client := NewClient(WithBaseURL(ts.BaseURL()), WithCache(memory.NewStore(memory.Options{})))

	// cached POST, body participating in the key
	for i := 0; i < 2; i++ {
		if _, err := client.Request(context.Background(), "/search", true,
			WithMethod(http.MethodPost),
			WithBody(map[string]string{"q": "sofa"}),
			WithUseCache(true), WithCacheMatchBody()); err != nil {
			t.Fatalf("Request() error = %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("cached POST should hit the network once, got %d", calls.Load())
	}

	// a different body misses
	if _, err := client.Request(context.Background(), "/search", true,
		WithMethod(http.MethodPost),
		WithBody(map[string]string{"q": "chair"}),
		WithUseCache(true), WithCacheMatchBody()); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("different body should bypass the entry, got %d calls", calls.Load())
	}

	// GET with caching disabled always fetches
	for i := 0; i < 2; i++ {
		if _, err := client.Get(context.Background(), "/items/", nil, true, WithUseCache(false)); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if calls.Load() != 4 {
		t.Fatalf("useCache=false GET should always fetch, got %d calls", calls.Load())
	}
}

func TestForceRefreshOverwritesEntry(t *testing.T) {
	var serial atomic.Int64
	ts, calls := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int64{"serial": serial.Add(1)})
	})

	client := NewClient(WithBaseURL(ts.BaseURL()), WithCache(memory.NewStore(memory.Options{})))

	var out struct {
		Serial int64 `json:"serial"`
	}
	if _, err := client.Get(context.Background(), "/items/1", nil, true, WithResult(&out)); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.Serial != 1 {
		t.Fatalf("unexpected first serial %d", out.Serial)
	}

	if _, err := client.Get(context.Background(), "/items/1", nil, true, WithResult(&out), WithForceRefresh()); err != nil {
		t.Fatalf("forced Get() error = %v", err)
	}
	if out.Serial != 2 {
		t.Fatalf("force refresh should fetch fresh data, got serial %d", out.Serial)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 network calls, got %d", calls.Load())
	}

	// the forced response replaced the entry
	if _, err := client.Get(context.Background(), "/items/1", nil, true, WithResult(&out)); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.Serial != 2 || calls.Load() != 2 {
		t.Fatalf("expected cached serial 2 with no extra call, got serial %d after %d calls", out.Serial, calls.Load())
	}
}

func TestCacheTTLExpiryTriggersRefetch(t *testing.T) {
	ts, calls := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	})

	now := time.Unix(1700000000, 0)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	advance := func(d time.Duration) { mu.Lock(); now = now.Add(d); mu.Unlock() }

	store := memory.NewStore(memory.Options{Clock: clock})
	client := NewClient(WithBaseURL(ts.BaseURL()), WithCache(store))

	ttl := time.Second
	if _, err := client.Get(context.Background(), "/items/", nil, true, WithCacheTTL(ttl)); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	advance(999 * time.Millisecond)
	if _, err := client.Get(context.Background(), "/items/", nil, true, WithCacheTTL(ttl)); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("entry still fresh, expected 1 call, got %d", calls.Load())
	}

	advance(2 * time.Millisecond)
	if _, err := client.Get(context.Background(), "/items/", nil, true, WithCacheTTL(ttl)); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("stale entry should refetch, got %d calls", calls.Load())
	}
}

func TestErrorResponsesNeverCached(t *testing.T) {
	ts, calls := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"item not found"}`))
	})

	store := memory.NewStore(memory.Options{})
	client := NewClient(WithBaseURL(ts.BaseURL()), WithCache(store))

	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), "/items/99", nil, false)
		var apiErr *apierr.Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *apierr.Error, got %v", err)
		}
		if apiErr.Status != http.StatusNotFound || apiErr.Message != "item not found" {
			t.Fatalf("unexpected API error: %+v", apiErr)
		}
		if apiErr.Error() != "404: item not found" {
			t.Fatalf("unexpected error string: %s", apiErr.Error())
		}
	}

	if calls.Load() != 2 {
		t.Fatalf("failed responses must not cache, got %d calls", calls.Load())
	}
	if n, _ := store.Len(context.Background()); n != 0 {
		t.Fatalf("cache should stay empty after failures, has %d entries", n)
	}
}

func TestNonJSONSuccessBodyBecomesEmptyObject(t *testing.T) {
	ts, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := NewClient(WithBaseURL(ts.BaseURL()))
	raw, err := client.Request(context.Background(), "/auth/logout", true, WithMethod(http.MethodPost))
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("empty body should decode to {}, got %q", raw)
	}
}

func TestPresenterInvokedAndErrorStillPropagates(t *testing.T) {
	ts, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"not propperly logged in"}`))
	})

	var notices []apierr.Notice
	client := NewClient(WithBaseURL(ts.BaseURL()), WithPresenter(func(n apierr.Notice) {
		notices = append(notices, n)
	}))

	_, err := client.Get(context.Background(), "/auth/me", nil, true)
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notices))
	}
	if notices[0].Title != "Not Logged In" || notices[0].ActionText != "Go to Login" {
		t.Fatalf("unexpected notice: %+v", notices[0])
	}

	// suppressed presentation still propagates, silently
	notices = nil
	if _, err := client.Get(context.Background(), "/auth/me", nil, false); err == nil {
		t.Fatalf("expected error with presentation suppressed")
	}
	if len(notices) != 0 {
		t.Fatalf("presenter must not fire when suppressed, got %d notices", len(notices))
	}
}

func TestInvalidCredentialsNotice(t *testing.T) {
	ts, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid credentials"}`))
	})

	var notice apierr.Notice
	client := NewClient(WithBaseURL(ts.BaseURL()), WithPresenter(func(n apierr.Notice) { notice = n }))

	if _, err := client.Request(context.Background(), "/auth/login", true, WithMethod(http.MethodPost)); err == nil {
		t.Fatalf("expected error")
	}
	if notice.Title != "Invalid Login" || notice.ActionText != "" {
		t.Fatalf("unexpected notice: %+v", notice)
	}
}

func TestTransportFailureClassifiedAndPropagated(t *testing.T) {
	var notice apierr.Notice
	// a closed server to force a connection error
	ts := NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := ts.BaseURL()
	ts.Close()

	client := NewClient(WithBaseURL(base), WithPresenter(func(n apierr.Notice) { notice = n }))

	_, err := client.Get(context.Background(), "/items/", nil, true)
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure must not be an API error: %v", err)
	}
	if notice.Title != "Network Error" {
		t.Fatalf("unexpected notice: %+v", notice)
	}
}

func TestFormRequestUploadsMultipart(t *testing.T) {
	ts, calls := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("title"); got != "old sofa" {
			t.Errorf("title = %q", got)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			file.Close()
			if header.Filename != "sofa.jpg" {
				t.Errorf("filename = %q", header.Filename)
			}
		}
		w.Write([]byte(`{"message":"Item created successfully","item_id":7}`))
	})

	client := NewClient(WithBaseURL(ts.BaseURL()), WithCache(memory.NewStore(memory.Options{})))

	var out struct {
		ItemID int `json:"item_id"`
	}
	for i := 0; i < 2; i++ {
		form := NewForm().
			AddField("title", "old sofa").
			AddFile("image", "sofa.jpg", strings.NewReader("fake-jpeg-bytes"))
		if _, err := client.FormRequest(context.Background(), "/items/", http.MethodPost, form, true, WithResult(&out)); err != nil {
			t.Fatalf("FormRequest() error = %v", err)
		}
	}
	if out.ItemID != 7 {
		t.Fatalf("unexpected decode: %+v", out)
	}
	if calls.Load() != 2 {
		t.Fatalf("multipart requests must not cache, got %d calls", calls.Load())
	}
}

func TestSingleflightCoalescesIdenticalGets(t *testing.T) {
	release := make(chan struct{})
	ts, calls := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"ok":true}`))
	})

	client := NewClient(WithBaseURL(ts.BaseURL()),
		WithCache(memory.NewStore(memory.Options{})),
		WithSingleflight())

	const concurrent = 8
	var wg sync.WaitGroup
	errs := make(chan error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(context.Background(), "/items/", nil, true)
			errs <- err
		}()
	}

	// let the goroutines pile up on the shared flight before answering
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single coalesced call, got %d", calls.Load())
	}
}
