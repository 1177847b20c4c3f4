package client

// The client is regenerated from the OpenAPI document the server publishes:
// the first step exports it, the second runs oapi-codegen over it.

//go:generate go run github.com/quatton/qtube/apps/qtube openapi -o openapi.json
//go:generate go tool oapi-codegen -config oapi-codegen.yaml openapi.json
