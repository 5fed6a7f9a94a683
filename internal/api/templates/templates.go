package templates

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/allaboutapps/integresql-client-go/internal/api"
	"github.com/allaboutapps/integresql-client-go/internal/fakepool"
	"github.com/labstack/echo/v4"
)

func postInitializeTemplate(s *api.Server) echo.HandlerFunc {
	type requestPayload struct {
		Hash string `json:"hash"`
	}

	return func(c echo.Context) error {
		var payload requestPayload

		if err := c.Bind(&payload); err != nil {
			return err
		}

		if len(payload.Hash) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "hash is required")
		}

		template, err := s.Pool.InitializeTemplateDatabase(c.Request().Context(), payload.Hash)
		if err != nil {
			if errors.Is(err, fakepool.ErrNotReady) {
				return echo.ErrServiceUnavailable
			} else if errors.Is(err, fakepool.ErrTemplateAlreadyInitialized) {
				return echo.NewHTTPError(http.StatusLocked, "template is already initialized")
			}

			// default 500
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		return c.JSON(http.StatusOK, &template)
	}
}

func putFinalizeTemplate(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		hash := c.Param("hash")

		if _, err := s.Pool.FinalizeTemplateDatabase(c.Request().Context(), hash); err != nil {
			if errors.Is(err, fakepool.ErrTemplateAlreadyInitialized) {
				// template is finalized already, we ignore this error
				return c.NoContent(http.StatusNoContent)
			} else if errors.Is(err, fakepool.ErrNotReady) {
				return echo.ErrServiceUnavailable
			} else if errors.Is(err, fakepool.ErrTemplateNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "template not found")
			} else if errors.Is(err, fakepool.ErrTemplateDiscarded) {
				return echo.NewHTTPError(http.StatusNotFound, "template was discarded")
			}

			// default 500
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		return c.NoContent(http.StatusNoContent)
	}
}

func deleteDiscardTemplate(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		hash := c.Param("hash")

		if err := s.Pool.DiscardTemplateDatabase(c.Request().Context(), hash); err != nil {
			if errors.Is(err, fakepool.ErrNotReady) {
				return echo.ErrServiceUnavailable
			} else if errors.Is(err, fakepool.ErrTemplateNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "template not found")
			}

			// default 500
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		return c.NoContent(http.StatusNoContent)
	}
}

func getTestDatabase(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		hash := c.Param("hash")

		test, err := s.Pool.GetTestDatabase(c.Request().Context(), hash)
		if err != nil {
			if errors.Is(err, fakepool.ErrNotReady) {
				return echo.ErrServiceUnavailable
			} else if errors.Is(err, fakepool.ErrTemplateNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "template not found")
			} else if errors.Is(err, fakepool.ErrTemplateDiscarded) {
				return echo.NewHTTPError(http.StatusGone, "template was just discarded")
			}

			// default 500
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		return c.JSON(http.StatusOK, &test)
	}
}

func deleteReturnTestDatabase(s *api.Server) echo.HandlerFunc {
	return releaseTestDatabase(s.Pool.ReturnTestDatabase)
}

func postRecreateTestDatabase(s *api.Server) echo.HandlerFunc {
	return releaseTestDatabase(s.Pool.RecreateTestDatabase)
}

// releaseTestDatabase serves both the soft return and the recreation of a test database.
func releaseTestDatabase(release func(ctx context.Context, hash string, id int) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		hash := c.Param("hash")
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid test database ID")
		}

		if err := release(c.Request().Context(), hash, id); err != nil {
			if errors.Is(err, fakepool.ErrNotReady) {
				return echo.ErrServiceUnavailable
			} else if errors.Is(err, fakepool.ErrTemplateNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "template not found")
			} else if errors.Is(err, fakepool.ErrTestNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "test database not found")
			}

			// default 500
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		return c.NoContent(http.StatusNoContent)
	}
}
