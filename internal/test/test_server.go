package test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/allaboutapps/integresql-client-go/internal/api"
	"github.com/allaboutapps/integresql-client-go/internal/router"
)

// WithTestServer returns a fully configured server (using the default server config).
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()
	defaultConfig := api.DefaultServerConfigFromEnv()
	WithTestServerConfigurable(t, defaultConfig, closure)
}

// WithTestServerConfigurable returns a fully configured server, allowing for configuration using the provided server config.
func WithTestServerConfigurable(t *testing.T, config api.ServerConfig, closure func(s *api.Server)) {
	t.Helper()
	ctx := context.Background()
	execClosureNewTestServer(ctx, t, config, closure)
}

// WithFakeService serves a new fake pooling service over HTTP for the duration of closure.
// baseURL points to the API root (e.g. "http://127.0.0.1:43567/api") and can be passed to client.ClientConfig as is.
func WithFakeService(t *testing.T, closure func(s *api.Server, baseURL string)) {
	t.Helper()

	config := api.DefaultServerConfigFromEnv()
	config.Echo.EnableLoggerMiddleware = false

	execClosureNewTestServer(context.Background(), t, config, func(s *api.Server) {
		srv := httptest.NewServer(s.Echo)
		defer srv.Close()

		closure(s, srv.URL+"/api")
	})
}

// Executes closure on a new test server
func execClosureNewTestServer(ctx context.Context, t *testing.T, config api.ServerConfig, closure func(s *api.Server)) {
	t.Helper()

	// https://stackoverflow.com/questions/43424787/how-to-use-next-available-port-in-http-listenandserve
	// You may use port 0 to indicate you're not specifying an exact port but you want a free, available port selected by the system
	config.Address = ":0"

	s := api.NewServer(config)

	if err := s.InitPool(ctx); err != nil {
		t.Fatalf("failed to init pool: %v", err)
	}

	router.Init(s)

	closure(s)

	// echo is managed and should close automatically after running the test
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("failed to shutdown server: %v", err)
	}

	// disallow any further refs to managed object after running the test
	s = nil
}
