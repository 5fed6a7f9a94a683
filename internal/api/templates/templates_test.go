package templates_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/allaboutapps/integresql-client-go/internal/api"
	"github.com/allaboutapps/integresql-client-go/internal/test"
	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateLifecycle(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		hash := "lifecycle"

		res := test.PerformRequest(t, s, "POST", "/api/v1/templates", test.GenericPayload{"hash": hash}, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var template db.TemplateDatabase
		test.ParseResponseBody(t, res, &template)
		assert.Equal(t, hash, template.TemplateHash)
		assert.Equal(t, "integresql_template_lifecycle", template.Config.Database)

		res = test.PerformRequest(t, s, "POST", "/api/v1/templates", test.GenericPayload{"hash": hash}, nil)
		assert.Equal(t, http.StatusLocked, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "PUT", "/api/v1/templates/"+hash, nil, nil)
		require.Equal(t, http.StatusNoContent, res.Result().StatusCode)

		// finalizing twice is fine
		res = test.PerformRequest(t, s, "PUT", "/api/v1/templates/"+hash, nil, nil)
		assert.Equal(t, http.StatusNoContent, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/templates/"+hash+"/tests", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode)

		var testDB db.TestDatabase
		test.ParseResponseBody(t, res, &testDB)
		assert.Equal(t, 0, testDB.ID)
		assert.Equal(t, "integresql_test_lifecycle_000", testDB.Config.Database)

		res = test.PerformRequest(t, s, "DELETE", fmt.Sprintf("/api/v1/templates/%s/tests/%d", hash, testDB.ID), nil, nil)
		assert.Equal(t, http.StatusNoContent, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", fmt.Sprintf("/api/v1/templates/%s/tests/%d/recreate", hash, testDB.ID), nil, nil)
		assert.Equal(t, http.StatusNoContent, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "DELETE", fmt.Sprintf("/api/v1/templates/%s/tests/%d", hash, 99), nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "DELETE", "/api/v1/templates/"+hash+"/tests/abc", nil, nil)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "DELETE", "/api/v1/templates/"+hash, nil, nil)
		assert.Equal(t, http.StatusNoContent, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/templates/"+hash+"/tests", nil, nil)
		assert.Equal(t, http.StatusGone, res.Result().StatusCode)
	})
}

func TestTemplateNotFound(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "PUT", "/api/v1/templates/unknown", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "DELETE", "/api/v1/templates/unknown", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/templates/unknown/tests", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/templates/unknown/tests/0/recreate", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "POST", "/api/v1/templates", test.GenericPayload{"hash": ""}, nil)
		assert.Equal(t, http.StatusBadRequest, res.Result().StatusCode)
	})
}

func TestBackendUnavailable(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "PUT", "/api/v1/admin/backend", test.GenericPayload{"ready": false}, nil)
		require.Equal(t, http.StatusNoContent, res.Result().StatusCode)
		assert.False(t, s.Pool.Ready())

		res = test.PerformRequest(t, s, "POST", "/api/v1/templates", test.GenericPayload{"hash": "outage"}, nil)
		assert.Equal(t, http.StatusServiceUnavailable, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "GET", "/api/v1/templates/outage/tests", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "DELETE", "/api/v1/admin/templates", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "PUT", "/api/v1/admin/backend", test.GenericPayload{"ready": true}, nil)
		require.Equal(t, http.StatusNoContent, res.Result().StatusCode)

		res = test.PerformRequest(t, s, "DELETE", "/api/v1/admin/templates", nil, nil)
		assert.Equal(t, http.StatusNoContent, res.Result().StatusCode)
	})
}
