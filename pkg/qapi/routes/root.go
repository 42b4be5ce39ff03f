package routes

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qsmr/pkg/qapi/services"
)

// RegisterAPI registers every route. A nil svcs registers the operations
// for OpenAPI generation only.
func RegisterAPI(api huma.API, svcs *services.Services) {
	RegisterHealth(api)
	if svcs == nil {
		RegisterBatches(api, nil, nil)
	} else {
		RegisterBatches(api, svcs.Reports, svcs.Artifacts)
	}
}
