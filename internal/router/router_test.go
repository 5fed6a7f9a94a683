package router_test

import (
	"net/http"
	"testing"

	"github.com/allaboutapps/integresql-client-go/internal/api"
	"github.com/allaboutapps/integresql-client-go/internal/test"
	"github.com/stretchr/testify/assert"
)

func TestRouterDebugEndpoints(t *testing.T) {
	tests := []struct {
		name           string
		debugEndpoints bool
		path           string
		expectedStatus int
	}{
		{"heap profile", true, "/debug/pprof/heap", http.StatusOK},
		{"index redirects", true, "/debug/pprof/", http.StatusMovedPermanently},
		{"disabled", false, "/debug/pprof/heap", http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			config := api.DefaultServerConfigFromEnv()
			config.DebugEndpoints = tt.debugEndpoints

			test.WithTestServerConfigurable(t, config, func(s *api.Server) {
				res := test.PerformRequest(t, s, http.MethodGet, tt.path, nil, nil)
				assert.Equal(t, tt.expectedStatus, res.Result().StatusCode)
			})
		})
	}
}

func TestRouterTrailingSlash(t *testing.T) {
	config := api.DefaultServerConfigFromEnv()
	config.Echo.EnableTrailingSlashMiddleware = true

	test.WithTestServerConfigurable(t, config, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodPost, "/api/v1/templates/", test.GenericPayload{"hash": "slash"}, nil)
		assert.Equal(t, http.StatusOK, res.Result().StatusCode)

		res = test.PerformRequest(t, s, http.MethodGet, "/api/v1/unknown", nil, nil)
		assert.Equal(t, http.StatusNotFound, res.Result().StatusCode)
	})
}
