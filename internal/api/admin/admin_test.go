package admin_test

import (
	"net/http"
	"testing"

	"github.com/allaboutapps/integresql-client-go/internal/api"
	"github.com/allaboutapps/integresql-client-go/internal/fakepool"
	"github.com/allaboutapps/integresql-client-go/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminTemplateStateAndStats(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodGet, "/api/v1/admin/templates/unknown", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodPost, "/api/v1/templates", test.GenericPayload{"hash": "admin"}, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodGet, "/api/v1/admin/templates/admin", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var state struct {
			Hash  string `json:"hash"`
			State string `json:"state"`
		}
		test.ParseResponseBody(t, res, &state)
		assert.Equal(t, "admin", state.Hash)
		assert.Equal(t, "init", state.State)

		res = test.PerformRequest(t, s, http.MethodDelete, "/api/v1/templates/admin", nil, nil)
		require.Equal(t, http.StatusNoContent, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodGet, "/api/v1/admin/templates/admin", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)
		test.ParseResponseBody(t, res, &state)
		assert.Equal(t, "discarded", state.State)

		res = test.PerformRequest(t, s, http.MethodGet, "/api/v1/admin/stats", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var stats fakepool.Stats
		test.ParseResponseBody(t, res, &stats)
		assert.Equal(t, int64(1), stats.InitializeTemplate)
		assert.Equal(t, int64(1), stats.DiscardTemplate)
		assert.Equal(t, int64(0), stats.GetTestDatabase)
	})
}

func TestAdminBackendState(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodPut, "/api/v1/admin/backend", test.GenericPayload{"ready": false}, nil)
		require.Equal(t, http.StatusNoContent, res.Result().StatusCode)
		assert.False(t, s.Pool.Ready())

		res = test.PerformRequest(t, s, http.MethodDelete, "/api/v1/admin/templates", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodPost, "/api/v1/templates", test.GenericPayload{"hash": "outage"}, nil)
		assert.Equal(t, http.StatusServiceUnavailable, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodPut, "/api/v1/admin/backend", test.GenericPayload{"ready": true}, nil)
		require.Equal(t, http.StatusNoContent, res.Result().StatusCode)
		assert.True(t, s.Pool.Ready())

		res = test.PerformRequest(t, s, http.MethodDelete, "/api/v1/admin/templates", nil, nil)
		assert.Equal(t, http.StatusNoContent, res.Result().StatusCode)
	})
}
