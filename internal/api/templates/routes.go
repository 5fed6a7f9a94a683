package templates

import "github.com/allaboutapps/integresql-client-go/internal/api"

// InitRoutes registers the IntegreSQL v1 template lifecycle:
//
//	POST   /api/v1/templates                         reserve a template (423 if already reserved)
//	PUT    /api/v1/templates/:hash                   finalize it
//	DELETE /api/v1/templates/:hash                   discard it
//	GET    /api/v1/templates/:hash/tests             hand out a test database
//	DELETE /api/v1/templates/:hash/tests/:id         return a test database as is
//	POST   /api/v1/templates/:hash/tests/:id/recreate recreate it from the template
func InitRoutes(s *api.Server) {
	templates := s.Echo.Group("/api/v1/templates")

	templates.POST("", postInitializeTemplate(s))
	templates.PUT("/:hash", putFinalizeTemplate(s))
	templates.DELETE("/:hash", deleteDiscardTemplate(s))

	tests := templates.Group("/:hash/tests")
	tests.GET("", getTestDatabase(s))
	tests.DELETE("/:id", deleteReturnTestDatabase(s))
	tests.POST("/:id/recreate", postRecreateTestDatabase(s))
}
