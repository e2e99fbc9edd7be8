package outputs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/landingzone/internal/model"
	"github.com/edvin/landingzone/internal/state"
)

func newTestServer(t *testing.T) (*Server, state.Store) {
	t.Helper()
	store := state.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	t.Cleanup(func() { store.Close() })
	return NewServer(store, zerolog.Nop()), store
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHub_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/environments/dev/hub", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHub_Found(t *testing.T) {
	s, store := newTestServer(t)
	err := store.SaveHubOutputs(context.Background(), &model.HubOutputs{
		Environment:   "dev",
		Region:        "westeurope",
		ResourceGroup: "dev-hub-rg",
		NetworkID:     "/subscriptions/x/vnet",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/environments/dev/hub", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var hub model.HubOutputs
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hub))
	assert.Equal(t, "dev-hub-rg", hub.ResourceGroup)
}

func TestSpokes_ListAndGet(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.SaveSpokeOutputs(ctx, &model.SpokeOutputs{
		Environment: "dev",
		Domain:      model.DomainDatabase,
		Phase:       model.PhaseProvisioned,
		Connection:  model.ConnectionInfo{Endpoint: "db.example.net", SecretRef: "database-admin-password"},
	}))

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/environments/dev/spokes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Domains []string `json:"domains"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, []string{model.DomainDatabase}, list.Domains)

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/environments/dev/spokes/database", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var spoke model.SpokeOutputs
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spoke))
	assert.Equal(t, "db.example.net", spoke.Connection.Endpoint)

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/environments/dev/spokes/storage", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSpokes_EmptyList(t *testing.T) {
	s, _ := newTestServer(t)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/environments/dev/spokes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"domains":[]}`, w.Body.String())
}
