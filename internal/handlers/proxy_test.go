package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/rates-proxy-go/internal/analytics"
	"github.com/serroba/rates-proxy-go/internal/cache"
	"github.com/serroba/rates-proxy-go/internal/gate"
	"github.com/serroba/rates-proxy-go/internal/handlers"
	"github.com/serroba/rates-proxy-go/internal/messaging"
	"github.com/serroba/rates-proxy-go/internal/quota"
	"github.com/serroba/rates-proxy-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockSource serves canned payloads and counts upstream calls.
type mockSource struct {
	latestStatus  int
	latestCalls   int
	historyStatus int
	historyCalls  int
}

func (m *mockSource) Latest(_ context.Context) (int, json.RawMessage, error) {
	m.latestCalls++

	if m.latestStatus != 0 && m.latestStatus != http.StatusOK {
		return m.latestStatus, json.RawMessage(`{"error":"upstream"}`), nil
	}

	return http.StatusOK, json.RawMessage(`{"base":"USD","rates":{"EUR":0.91}}`), nil
}

func (m *mockSource) History(_ context.Context, id string, limit, page int) (int, json.RawMessage, error) {
	m.historyCalls++

	if m.historyStatus != 0 && m.historyStatus != http.StatusOK {
		return m.historyStatus, nil, nil
	}

	payload := fmt.Sprintf(`{"id":%q,"limit":%d,"page":%d}`, id, limit, page)

	return http.StatusOK, json.RawMessage(payload), nil
}

type testEnv struct {
	router *chi.Mux
	source *mockSource
}

func setup(t *testing.T, minuteMax, monthMax int64) *testEnv {
	t.Helper()

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))

	tracker := quota.NewTracker(
		store.NewQuotaMemoryStore(),
		quota.Limits{MinuteMax: minuteMax, MonthMax: monthMax},
	)

	source := &mockSource{}

	proxy := handlers.NewProxyHandler(
		gate.New(tracker, zap.NewNop()),
		cache.NewSlot(cache.DefaultTTL),
		cache.NewMap(cache.DefaultTTL),
		source,
		messaging.NoopPublish[analytics.RequestServedEvent](),
		messaging.NoopPublish[analytics.QuotaDeniedEvent](),
		zap.NewNop(),
	)

	handlers.RegisterRoutes(api, proxy, handlers.NewQuotaHandler(tracker))

	return &testEnv{router: router, source: source}
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	return w
}

func TestLatestRates(t *testing.T) {
	t.Run("returns the upstream payload with quota headers", func(t *testing.T) {
		env := setup(t, 20, 500)

		w := env.get("/rates/latest")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"base":"USD","rates":{"EUR":0.91}}`, w.Body.String())
		assert.Equal(t, "20", w.Header().Get("X-RateLimit-Limit-Minute"))
		assert.Equal(t, "19", w.Header().Get("X-RateLimit-Remaining-Minute"))
		assert.Equal(t, "500", w.Header().Get("X-RateLimit-Limit-Month"))
		assert.Equal(t, "499", w.Header().Get("X-RateLimit-Remaining-Month"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset-Minute"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset-Month"))
	})

	t.Run("second request is served from cache but spends quota", func(t *testing.T) {
		env := setup(t, 20, 500)

		env.get("/rates/latest")
		w := env.get("/rates/latest")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, env.source.latestCalls)
		assert.Equal(t, "18", w.Header().Get("X-RateLimit-Remaining-Minute"))
	})

	t.Run("denies over the minute cap with retry-after", func(t *testing.T) {
		env := setup(t, 2, 500)

		env.get("/rates/latest")
		env.get("/rates/latest")
		w := env.get("/rates/latest")

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining-Minute"))

		var body struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Contains(t, body.Message, "minute")
	})

	t.Run("denies over the month cap without retry-after", func(t *testing.T) {
		env := setup(t, 100, 1)

		env.get("/rates/latest")
		env.get("/symbols/USD/history")
		w := env.get("/symbols/USD/history")

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Empty(t, w.Header().Get("Retry-After"))

		var body struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body.Message, "month")
	})

	t.Run("mirrors an upstream failure with quota headers", func(t *testing.T) {
		env := setup(t, 20, 500)
		env.source.latestStatus = http.StatusServiceUnavailable

		w := env.get("/rates/latest")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "19", w.Header().Get("X-RateLimit-Remaining-Minute"))

		var body struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, "Upstream error: 503", body.Message)
	})
}

func TestSymbolHistory(t *testing.T) {
	t.Run("distinct parameterizations are cached independently", func(t *testing.T) {
		env := setup(t, 20, 500)

		first := env.get("/symbols/USD/history?limit=10&page=1")
		second := env.get("/symbols/EUR/history?limit=10&page=1")

		assert.JSONEq(t, `{"id":"USD","limit":10,"page":1}`, first.Body.String())
		assert.JSONEq(t, `{"id":"EUR","limit":10,"page":1}`, second.Body.String())
		assert.Equal(t, 2, env.source.historyCalls)
	})

	t.Run("identical parameterization hits the cache", func(t *testing.T) {
		env := setup(t, 20, 500)

		env.get("/symbols/USD/history?limit=10&page=1")
		env.get("/symbols/USD/history?limit=10&page=1")

		assert.Equal(t, 1, env.source.historyCalls)
	})

	t.Run("a different page misses the cache", func(t *testing.T) {
		env := setup(t, 20, 500)

		env.get("/symbols/USD/history?limit=10&page=1")
		env.get("/symbols/USD/history?limit=10&page=2")

		assert.Equal(t, 2, env.source.historyCalls)
	})

	t.Run("both routes draw from the same quota", func(t *testing.T) {
		env := setup(t, 2, 500)

		env.get("/rates/latest")
		env.get("/symbols/USD/history")
		w := env.get("/symbols/EUR/history")

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestQuotaStatus(t *testing.T) {
	t.Run("reports usage without consuming", func(t *testing.T) {
		env := setup(t, 20, 500)

		env.get("/rates/latest")

		for i := 0; i < 3; i++ {
			w := env.get("/quota")
			assert.Equal(t, http.StatusOK, w.Code)
		}

		w := env.get("/quota")

		var body struct {
			Success bool `json:"success"`
			Minute  struct {
				Limit     int64 `json:"limit"`
				Remaining int64 `json:"remaining"`
			} `json:"minute"`
			Month struct {
				Remaining int64 `json:"remaining"`
			} `json:"month"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

		assert.True(t, body.Success)
		assert.Equal(t, int64(20), body.Minute.Limit)
		assert.Equal(t, int64(19), body.Minute.Remaining, "status checks must not spend quota")
		assert.Equal(t, int64(499), body.Month.Remaining)
	})
}
