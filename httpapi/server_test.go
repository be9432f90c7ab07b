package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zabeloliver/smarthome-bridge/platform"
)

func newTestRouter(t *testing.T) http.Handler {
	store := platform.NewMemoryStore()
	ctx := context.Background()
	_, err := store.SetObjectNotExists(ctx, platform.Object{Id: "lamp", Common: platform.Common{Name: "Lamp", Type: "boolean", Role: "switch", Write: true}, Native: platform.Native{Id: "lamp"}})
	require.NoError(t, err)
	require.NoError(t, store.SetState(ctx, "lamp", platform.State{Val: true, Ack: true}))

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	return NewRouter(reg, store, zap.NewNop().Sugar())
}

func TestObjects(t *testing.T) {
	r := newTestRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/objects", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "lamp", got[0]["_id"])
	assert.Equal(t, true, got[0]["state"].(map[string]any)["val"])
}

func TestObjectById(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/objects/lamp", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role":"switch"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/objects/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "test_total 1")
}
