package router

import (
	"bytes"

	"github.com/rs/zerolog"
)

// echoLogWriter forwards echo's internal log output (e.g. startup errors) to zerolog.
type echoLogWriter zerolog.Logger

func newEchoLogWriter(log zerolog.Logger, level zerolog.Level) *echoLogWriter {
	l := echoLogWriter(log.Level(level).With().Str("component", "echo").Logger())
	return &l
}

func (w *echoLogWriter) Write(p []byte) (int, error) {
	log := zerolog.Logger(*w)
	log.WithLevel(log.GetLevel()).Msg(string(bytes.TrimSpace(p)))

	return len(p), nil
}
