package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraken-ng/kraken/internal/app/domain/host"
	"github.com/kraken-ng/kraken/internal/app/krakenerr"
	"github.com/kraken-ng/kraken/internal/app/storage/memory"

	provrecorder "github.com/kraken-ng/kraken/internal/app/provenance"
)

func newTestHandler(t *testing.T) (*Handler, *memory.Memory) {
	t.Helper()
	mem := memory.New()
	h := New(nil, mem, mem, mem, mem, mem, mem, nil, mem, provrecorder.New(mem, nil), nil, nil)
	return h, mem
}

func TestWriteError_MapsKindsToStatusAndCode(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, krakenerr.New(krakenerr.NotFound, krakenerr.CodeInvalidUUID, "no such workspace"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, codeInvalidUUID, body.Code)
	assert.Equal(t, "no such workspace", body.Message)
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, krakenerr.New(krakenerr.Storage, "DbDown", "connection refused to 10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, codeStorage, body.Code)
	assert.Equal(t, "internal server error", body.Message)
}

func TestStartAttack_UnknownKind(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attacks/tcpPortScan", bytes.NewBufferString("{}"))
	req.Header.Set(userHeader, uuid.New().String())
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	// tcpPortScan is deprecated and not startable.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartAttack_RequiresUser(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attacks/hostsAlive", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListHosts_InvalidFilterRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	ws := uuid.New()
	body, _ := json.Marshal(map[string]interface{}{"filter": "bogus:value"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/"+ws.String()+"/hosts/all", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var e apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, codeInvalidFilter, e.Code)
}

func TestListHosts_ReturnsPage(t *testing.T) {
	h, mem := newTestHandler(t)
	ws := uuid.New()
	_, err := mem.UpsertHost(context.Background(), host.Host{
		UUID:      uuid.New(),
		Workspace: ws,
		IPAddress: net.ParseIP("203.0.113.7"),
		Certainty: host.Verified,
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]interface{}{"limit": 10})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/"+ws.String()+"/hosts/all", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
}

func TestEntitySources_UnknownKind(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/workspaces/"+uuid.New().String()+"/widgets/"+uuid.New().String()+"/sources", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
