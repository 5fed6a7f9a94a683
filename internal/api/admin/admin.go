package admin

import (
	"errors"
	"net/http"

	"github.com/allaboutapps/integresql-client-go/internal/api"
	"github.com/allaboutapps/integresql-client-go/internal/fakepool"
	"github.com/labstack/echo/v4"
)

func deleteResetAllTemplates(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.Pool.ResetAllTracking(c.Request().Context()); err != nil {
			if errors.Is(err, fakepool.ErrNotReady) {
				return echo.ErrServiceUnavailable
			}

			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		return c.NoContent(http.StatusNoContent)
	}
}

// putBackendState toggles the simulated PostgreSQL outage of the fake pool.
func putBackendState(s *api.Server) echo.HandlerFunc {
	type requestPayload struct {
		Ready bool `json:"ready"`
	}

	return func(c echo.Context) error {
		var payload requestPayload

		if err := c.Bind(&payload); err != nil {
			return err
		}

		s.Pool.SetReady(payload.Ready)

		return c.NoContent(http.StatusNoContent)
	}
}

func getTemplateState(s *api.Server) echo.HandlerFunc {
	type responsePayload struct {
		Hash  string `json:"hash"`
		State string `json:"state"`
	}

	return func(c echo.Context) error {
		hash := c.Param("hash")

		state, found := s.Pool.TemplateState(c.Request().Context(), hash)
		if !found {
			return echo.NewHTTPError(http.StatusNotFound, "template not found")
		}

		return c.JSON(http.StatusOK, responsePayload{Hash: hash, State: state.String()})
	}
}

func getStats(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.Pool.Stats())
	}
}
