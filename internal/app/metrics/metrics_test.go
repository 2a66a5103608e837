package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerServesRegistry(t *testing.T) {
	RecordAttackCompletion("BruteforceSubdomains", true, 2*time.Second)
	RecordAggregatorUpsert("host", "inserted")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "kraken_attacks_completions_total")
	assert.Contains(t, body, "kraken_aggregator_upserts_total")
}

func TestInstrumentHandlerRecordsStatus(t *testing.T) {
	wrapped := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/attacks/bruteforceSubdomains", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCanonicalPathCollapsesUUIDs(t *testing.T) {
	assert.Equal(t, "/api/v1/attacks/:uuid",
		canonicalPath("/api/v1/attacks/0b54b3a0-47b8-4cf1-8d38-85ed0b2b2e6f"))
	assert.Equal(t, "/", canonicalPath("/"))
}

func TestObservationHooksReuseCollectors(t *testing.T) {
	a := ObservationHooks("kraken", "test", "ops")
	b := ObservationHooks("kraken", "test", "ops")
	require.NotNil(t, a.OnStart)
	require.NotNil(t, b.OnComplete)
	// Same key must not re-register (MustRegister would panic on duplicates).
	a.OnStart(nil, map[string]string{"resource": "x"})
	b.OnComplete(nil, map[string]string{"resource": "x"}, nil, time.Millisecond)
}
