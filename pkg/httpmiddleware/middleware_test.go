package httpmiddleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func do(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func fromIP(ip string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = ip + ":1234"
	return r
}

func withCookie(name, value string) *http.Request {
	r := fromIP("10.0.0.1")
	r.AddCookie(&http.Cookie{Name: name, Value: value})
	return r
}

func TestWrapOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	do(Wrap(okHandler(), mw("a"), mw("b"), mw("c")), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRateLimit(t *testing.T) {
	t.Run("UnderAndOverLimit", func(t *testing.T) {
		h := NewLimiter(RateLimitConfig{Max: 2, Window: time.Minute}).Middleware()(okHandler())

		for i := range 2 {
			w := do(h, fromIP("10.0.0.1"))
			require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
			assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		}

		w := do(h, fromIP("10.0.0.1"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())

		assert.Equal(t, http.StatusOK, do(h, fromIP("10.0.0.2")).Code)
	})
	t.Run("Disabled", func(t *testing.T) {
		h := NewLimiter(RateLimitConfig{}).Middleware()(okHandler())
		for range 10 {
			w := do(h, fromIP("10.0.0.1"))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
		}
	})
	t.Run("SessionCookie", func(t *testing.T) {
		live := func(v string) bool { return v == "a" || v == "b" }
		h := NewLimiter(RateLimitConfig{Max: 1, Window: time.Minute, KeyFunc: CookieOrIP("sid", live)}).Middleware()(okHandler())

		assert.Equal(t, http.StatusOK, do(h, withCookie("sid", "a")).Code)
		assert.Equal(t, http.StatusOK, do(h, withCookie("sid", "b")).Code, "same IP, other session")
		assert.Equal(t, http.StatusTooManyRequests, do(h, withCookie("sid", "a")).Code)
		assert.Equal(t, http.StatusOK, do(h, fromIP("10.0.0.1")).Code, "cookieless requests use the IP bucket")
	})
	t.Run("UnknownCookiesShareIPBucket", func(t *testing.T) {
		l := NewLimiter(RateLimitConfig{
			Max:     2,
			Window:  time.Minute,
			KeyFunc: CookieOrIP("sid", func(string) bool { return false }),
		})
		h := l.Middleware()(okHandler())

		allowed := 0
		for i := range 10 {
			if do(h, withCookie("sid", fmt.Sprintf("made-up-%d", i))).Code == http.StatusOK {
				allowed++
			}
		}
		assert.Equal(t, 2, allowed)
		assert.Equal(t, 1, l.Len())
	})
	t.Run("Skip", func(t *testing.T) {
		h := NewLimiter(RateLimitConfig{
			Max:    1,
			Window: time.Minute,
			Skip:   func(r *http.Request) bool { return CookieValue(r, "sid") == "a" },
		}).Middleware()(okHandler())

		for range 3 {
			w := do(h, withCookie("sid", "a"))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
		}
		assert.Equal(t, http.StatusOK, do(h, fromIP("10.0.0.1")).Code)
		assert.Equal(t, http.StatusTooManyRequests, do(h, withCookie("sid", "b")).Code)
	})
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := NewLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for range 4 {
		ok, _, _ := l.Allow("k", start)
		require.True(t, ok)
	}
	ok, _, reset := l.Allow("k", start)
	assert.False(t, ok)
	assert.Equal(t, start.Add(time.Minute), reset)

	// Halfway through the next window half of the previous count still applies.
	ok, remaining, _ := l.Allow("k", start.Add(90*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	l.Sweep(start.Add(10 * time.Minute))
	assert.Zero(t, l.Len())
}

func TestClientIP(t *testing.T) {
	r := fromIP("192.168.1.1")
	assert.Equal(t, "192.168.1.1", ClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	assert.Equal(t, "203.0.113.50", ClientIP(r))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "trace-123")
	w := do(h, r)
	assert.Equal(t, "trace-123", seen)
	assert.Equal(t, "trace-123", w.Header().Get(RequestIDHeader))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	w = do(h, r)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	assert.Empty(t, RequestIDFromContext(r.Context()))
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := do(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, w.Body.String())
}

func TestInjectLoggerAndLogRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	r := chi.NewRouter()
	r.Use(LogRequests())
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	})
	h := Wrap(r, RequestID(), InjectLogger(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/api/items/7", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	do(h, req)

	inside := logs.FilterMessage("inside").All()
	require.Len(t, inside, 1)
	assert.Equal(t, "rid-1", inside[0].ContextMap()["request_id"])

	access := logs.FilterMessage("Request").All()
	require.Len(t, access, 1)
	fields := access[0].ContextMap()
	assert.Equal(t, "/api/items/{id}", fields["route"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowOrigins: []string{"https://app.example"}, AllowCredentials: true})(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/catalog", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := do(h, r)

	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	r.Header.Set("Origin", "https://evil.example")
	w = do(h, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
