package api

import (
	"time"

	"github.com/allaboutapps/integresql-client-go/internal/fakepool"
	"github.com/allaboutapps/integresql-client-go/pkg/util"
	"github.com/rs/zerolog"
)

type EchoServer struct {
	Debug                         bool
	ListenAddress                 string
	EnableCORSMiddleware          bool
	EnableLoggerMiddleware        bool
	EnableRecoverMiddleware       bool
	EnableRequestIDMiddleware     bool
	EnableTrailingSlashMiddleware bool
	EnableTimeoutMiddleware       bool
	RequestTimeout                time.Duration
}

type LoggerServer struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	LogRequestBody     bool
	LogRequestHeader   bool
	LogRequestQuery    bool
	LogResponseBody    bool
	LogResponseHeader  bool
	PrettyPrintConsole bool
}

type ServerConfig struct {
	Address        string
	Port           int
	DebugEndpoints bool

	Echo   EchoServer
	Logger LoggerServer
	Pool   fakepool.PoolConfig
}

func DefaultServerConfigFromEnv() ServerConfig {
	return ServerConfig{
		Address:        util.GetEnv("INTEGRESQL_ADDRESS", ""),
		Port:           util.GetEnvAsInt("INTEGRESQL_PORT", 5000),
		DebugEndpoints: util.GetEnvAsBool("INTEGRESQL_DEBUG_ENDPOINTS", true),
		Echo: EchoServer{
			Debug:                         util.GetEnvAsBool("INTEGRESQL_ECHO_DEBUG", false),
			EnableCORSMiddleware:          util.GetEnvAsBool("INTEGRESQL_ECHO_ENABLE_CORS_MIDDLEWARE", true),
			EnableLoggerMiddleware:        util.GetEnvAsBool("INTEGRESQL_ECHO_ENABLE_LOGGER_MIDDLEWARE", true),
			EnableRecoverMiddleware:       util.GetEnvAsBool("INTEGRESQL_ECHO_ENABLE_RECOVER_MIDDLEWARE", true),
			EnableRequestIDMiddleware:     util.GetEnvAsBool("INTEGRESQL_ECHO_ENABLE_REQUEST_ID_MIDDLEWARE", true),
			EnableTrailingSlashMiddleware: util.GetEnvAsBool("INTEGRESQL_ECHO_ENABLE_TRAILING_SLASH_MIDDLEWARE", true),
			EnableTimeoutMiddleware:       util.GetEnvAsBool("INTEGRESQL_ECHO_ENABLE_REQUEST_TIMEOUT_MIDDLEWARE", true),
			RequestTimeout:                util.GetEnvAsDuration("INTEGRESQL_ECHO_REQUEST_TIMEOUT_MS", 60*time.Second),
		},
		Logger: LoggerServer{
			Level:              util.LogLevelFromString(util.GetEnv("INTEGRESQL_LOGGER_LEVEL", zerolog.InfoLevel.String())),
			RequestLevel:       util.LogLevelFromString(util.GetEnv("INTEGRESQL_LOGGER_REQUEST_LEVEL", zerolog.InfoLevel.String())),
			LogRequestBody:     util.GetEnvAsBool("INTEGRESQL_LOGGER_LOG_REQUEST_BODY", false),
			LogRequestHeader:   util.GetEnvAsBool("INTEGRESQL_LOGGER_LOG_REQUEST_HEADER", false),
			LogRequestQuery:    util.GetEnvAsBool("INTEGRESQL_LOGGER_LOG_REQUEST_QUERY", false),
			LogResponseBody:    util.GetEnvAsBool("INTEGRESQL_LOGGER_LOG_RESPONSE_BODY", false),
			LogResponseHeader:  util.GetEnvAsBool("INTEGRESQL_LOGGER_LOG_RESPONSE_HEADER", false),
			PrettyPrintConsole: util.GetEnvAsBool("INTEGRESQL_LOGGER_PRETTY_PRINT_CONSOLE", false),
		},
		Pool: fakepool.DefaultPoolConfigFromEnv(),
	}
}
