package http

import (
	"bytes"
	"embed"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://pertforge.dev/schemas/"

// Schemas holds the compiled request schemas.
type Schemas struct {
	Schedule *jsonschema.Schema
	Batch    *jsonschema.Schema
}

// CompileSchemas compiles the embedded request schemas.
func CompileSchemas() (*Schemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range []string{"schedule_request.json", "batch_request.json"} {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	sched, err := c.Compile(schemaBaseURL + "schedule_request.json")
	if err != nil {
		return nil, fmt.Errorf("compile schedule schema: %w", err)
	}
	batch, err := c.Compile(schemaBaseURL + "batch_request.json")
	if err != nil {
		return nil, fmt.Errorf("compile batch schema: %w", err)
	}
	return &Schemas{Schedule: sched, Batch: batch}, nil
}
