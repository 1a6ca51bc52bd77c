package http

import (
	"embed"
	"encoding/json"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML embed.FS

// getOpenAPIJSON returns the OpenAPI specification as JSON. The embedded
// YAML is converted on first access.
var getOpenAPIJSON = sync.OnceValues(func() ([]byte, error) {
	data, err := openAPIYAML.ReadFile("openapi.yaml")
	if err != nil {
		return nil, err
	}

	// yaml.v3 decodes string-keyed mappings to map[string]any, which
	// encoding/json accepts as is.
	var spec map[string]any
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return json.MarshalIndent(spec, "", "  ")
})
