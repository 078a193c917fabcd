package app

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/cocktail-catalog/internal/handler"
	"github.com/xenking/cocktail-catalog/pkg/httpmiddleware"
)

func startServer(t *testing.T, cfg *Config) (*server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := newServer(ctx, zaptest.NewLogger(t), cfg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	ts := httptest.NewServer(s.handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, c *http.Client, target string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(target)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_DatasetCatalog(t *testing.T) {
	cfg, err := testLoad(t)
	require.NoError(t, err)
	_, ts := startServer(t, cfg)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &http.Client{Jar: jar}

	resp, body := get(t, c, ts.URL+"/api/catalog?wait=true")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"total":20`)
	assert.Contains(t, body, `"Margarita"`)
	assert.NotEmpty(t, resp.Header.Get(httpmiddleware.RequestIDHeader))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))

	resp, body = get(t, c, ts.URL+"/api/about")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"name":"Student Name","id":"0000-00-00000","name_default":true,"id_default":true}`, body)
}

func TestServer_UnknownSessionCookies(t *testing.T) {
	cfg, err := testLoad(t)
	require.NoError(t, err)
	cfg.Session.CreateMax = 3
	s, ts := startServer(t, cfg)

	codes := make(map[int]int)
	for i := range 10 {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/catalog", nil)
		require.NoError(t, err)
		// Well-formed but unknown ids and garbage values alike.
		value := uuid.NewString()
		if i%2 == 1 {
			value = "made-up-" + strconv.Itoa(i)
		}
		req.AddCookie(&http.Cookie{Name: handler.SessionCookie, Value: value})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes[resp.StatusCode]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 3, http.StatusTooManyRequests: 7}, codes)
	assert.Equal(t, 3, s.sessions.Len())

	// A live session is not charged against the creation budget.
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	id, _, err := s.sessions.Acquire("")
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: handler.SessionCookie, Value: id}})
	resp, _ := get(t, &http.Client{Jar: jar}, ts.URL+"/api/catalog")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	cfg, err := testLoad(t)
	require.NoError(t, err)
	s, ts := startServer(t, cfg)

	resp, body := get(t, http.DefaultClient, ts.URL+"/livez")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, _ = get(t, http.DefaultClient, ts.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.health.SetReady(true)
	resp, _ = get(t, http.DefaultClient, ts.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewGateway(t *testing.T) {
	cfg, err := testLoad(t)
	require.NoError(t, err)

	_, remoteCheck, err := newGateway(cfg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	assert.Nil(t, remoteCheck)

	cfg.BaseURL = "https://www.thecocktaildb.com"
	_, remoteCheck, err = newGateway(cfg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotNil(t, remoteCheck)

	cfg.BaseURL = ""
	cfg.DatasetPath = "/nonexistent/products.json"
	_, _, err = newGateway(cfg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.Error(t, err)
}
