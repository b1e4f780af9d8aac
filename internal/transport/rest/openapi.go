package rest

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

const DefaultOpenAPIPath = "./api/openapi.yml"

// LoadAPISpec loads and validates the OpenAPI document served at /openapi.yml.
func LoadAPISpec(ctx context.Context, path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}
