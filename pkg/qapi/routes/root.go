package routes

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qtube/pkg/qapi/services"
)

// RegisterAPI wires every operation onto api. A nil svcs registers the
// operations for OpenAPI generation only.
func RegisterAPI(api huma.API, svcs *services.Services) {
	if svcs == nil {
		RegisterHealth(api)
		RegisterUsers(api, nil)
		return
	}

	// Middlewares must be in place before operations are registered.
	api.UseMiddleware(svcs.IAM.Middleware(api))

	RegisterHealth(api)
	RegisterUsers(api, svcs)
}
