package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/allaboutapps/integresql-client-go/pkg/util"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	DefaultLoggerConfig = LoggerConfig{
		Skipper:         middleware.DefaultSkipper,
		Level:           zerolog.DebugLevel,
		LogRequestBody:  false,
		LogResponseBody: false,
	}
)

type LoggerConfig struct {
	Skipper         middleware.Skipper
	Level           zerolog.Level
	LogRequestBody  bool
	LogResponseBody bool
}

// Logger with default logger output and configuration
func Logger() echo.MiddlewareFunc {
	return LoggerWithConfig(DefaultLoggerConfig)
}

// LoggerWithConfig returns a new MiddlewareFunc which attaches a request scoped zerolog instance to the
// request context and logs every request and response at the configured level.
// If more outputs are provided, the first is being used.
func LoggerWithConfig(config LoggerConfig, output ...io.Writer) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultLoggerConfig.Skipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			req := c.Request()
			res := c.Response()

			id := req.Header.Get(echo.HeaderXRequestID)
			if len(id) == 0 {
				id = res.Header().Get(echo.HeaderXRequestID)
			}

			l := log.With().
				Dict("req", zerolog.Dict().
					Str("id", id).
					Str("method", req.Method).
					Str("url", req.URL.String()),
				).Logger()

			if len(output) > 0 {
				l = l.Output(output[0])
			}

			le := l.WithLevel(config.Level)
			req = req.WithContext(l.WithContext(req.Context()))

			if config.LogRequestBody && req.Body != nil {
				reqBody, err := io.ReadAll(req.Body)
				if err != nil {
					l.Error().Err(err).Msg("Failed to read body while logging request")
					return err
				}

				req.Body = io.NopCloser(bytes.NewBuffer(reqBody))
				le = le.Bytes("req_body", reqBody)
			}

			le.Msg("Request received")

			c.SetRequest(req)

			var resBody bytes.Buffer
			if config.LogResponseBody {
				res.Writer = &bodyDumpResponseWriter{Writer: io.MultiWriter(res.Writer, &resBody), ResponseWriter: res.Writer}
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			stop := time.Now()

			lle := util.LogFromEchoContext(c).WithLevel(config.Level).
				Dict("res", zerolog.Dict().
					Int("status", res.Status).
					Int64("bytes_out", res.Size).
					TimeDiff("duration_ms", stop, start).
					Err(err),
				)

			if config.LogResponseBody && strings.HasPrefix(res.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
				lle = lle.Bytes("res_body", resBody.Bytes())
			}

			lle.Msg("Response sent")

			return nil
		}
	}
}

type bodyDumpResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w *bodyDumpResponseWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyDumpResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}
