package client

import (
	"net/http"
	"time"

	"github.com/allaboutapps/integresql-client-go/pkg/util"
)

type ClientConfig struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration // Per request timeout of the default HTTP client, 0 disables it

	// HTTPClient replaces the default HTTP client (e.g. to add a custom transport), Timeout is ignored then.
	HTTPClient *http.Client
}

func DefaultClientConfigFromEnv() ClientConfig {
	return ClientConfig{
		BaseURL:    util.GetEnv("INTEGRESQL_CLIENT_BASE_URL", "http://localhost:5000/api"),
		APIVersion: util.GetEnv("INTEGRESQL_CLIENT_API_VERSION", "v1"),
		Timeout:    util.GetEnvAsDuration("INTEGRESQL_CLIENT_TIMEOUT_MS", 60*time.Second),
	}
}
