package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/osint-monitor/internal/adapter/http"
	"github.com/couchcryptid/osint-monitor/internal/analytics"
	"github.com/couchcryptid/osint-monitor/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockStore struct {
	events []domain.Event
	err    error

	gotDomain      string
	gotSince       time.Time
	gotMinPriority int
}

func (m *mockStore) QueryEvents(_ context.Context, domainFilter string, since time.Time, minPriority int) ([]domain.Event, error) {
	m.gotDomain = domainFilter
	m.gotSince = since
	m.gotMinPriority = minPriority
	return m.events, m.err
}

func newTestServer(readyErr error, store *mockStore) *httpadapter.Server {
	if store == nil {
		store = &mockStore{}
	}
	detector := analytics.NewDetector(clockwork.NewFakeClockAt(time.Now().UTC()))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, store, detector, slog.Default())
}

func get(t *testing.T, srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("store unreachable"), nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "store unreachable", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEventsReturnsStoredEvents(t *testing.T) {
	store := &mockStore{events: []domain.Event{
		{EventID: "abc123", Title: "Ransomware wave hits hospitals", Domain: "cti", Priority: 70},
	}}
	rec := get(t, newTestServer(nil, store), "/events?domain=cti&hours=48&min_priority=50")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body []domain.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "abc123", body[0].EventID)

	assert.Equal(t, "cti", store.gotDomain)
	assert.Equal(t, 50, store.gotMinPriority)
	assert.WithinDuration(t, time.Now().UTC().Add(-48*time.Hour), store.gotSince, 5*time.Second)
}

func TestEventsEmptyResultIsEmptyArray(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockStore{}), "/events")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestEventsRejectsBadHours(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/events?hours=yesterday")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsStoreFailureReturns500(t *testing.T) {
	store := &mockStore{err: fmt.Errorf("disk gone")}
	rec := get(t, newTestServer(nil, store), "/events")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSpikesEmptyResultIsEmptyArray(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockStore{}), "/spikes")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestSpikesQueriesLookbackWindow(t *testing.T) {
	store := &mockStore{}
	rec := get(t, newTestServer(nil, store), "/spikes?domain=cti")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cti", store.gotDomain)
	assert.Equal(t, 0, store.gotMinPriority)
	lookback := analytics.DefaultSpikeParams().LookbackDays
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -lookback), store.gotSince, 5*time.Second)
}

func TestSituationsRanksStoredEvents(t *testing.T) {
	now := time.Now().UTC()
	store := &mockStore{events: []domain.Event{
		{EventID: "e1", Domain: "cti", SourceName: "Feed A", Tags: "ransomware", Priority: 80, TS: now},
		{EventID: "e2", Domain: "cti", SourceName: "Feed A", Tags: "ransomware", Priority: 60, TS: now},
	}}
	rec := get(t, newTestServer(nil, store), "/situations")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body []analytics.Situation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "ransomware", body[0].Situation)
	assert.Equal(t, 2, body[0].Events)
	assert.Equal(t, 80, body[0].MaxPriority)
	assert.Equal(t, "Feed A", body[0].TopSource)
}

func TestSituationsEmptyResultIsEmptyArray(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockStore{}), "/situations")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
