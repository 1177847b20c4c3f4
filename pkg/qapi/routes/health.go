package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qtube/pkg/qapi/schemas"
)

type HealthOutput struct {
	Body schemas.Envelope[schemas.HealthData]
}

func RegisterHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{TagHealth.String()},
	}, func(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: schemas.OK(schemas.HealthData{Status: "ok"}, "healthy")}, nil
	})
}
