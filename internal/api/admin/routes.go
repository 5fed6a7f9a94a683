package admin

import "github.com/allaboutapps/integresql-client-go/internal/api"

// InitRoutes registers the endpoints tests use to inspect and manipulate the fake pool.
// None of them are part of the IntegreSQL protocol, except DELETE /templates.
func InitRoutes(s *api.Server) {
	admin := s.Echo.Group("/api/v1/admin")

	admin.DELETE("/templates", deleteResetAllTemplates(s))
	admin.GET("/templates/:hash", getTemplateState(s))
	admin.GET("/stats", getStats(s))
	admin.PUT("/backend", putBackendState(s))
}
