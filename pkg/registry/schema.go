// pkg/registry/schema.go
package registry

// ToolRegistry is the set of tools a persona is configured with.
type ToolRegistry struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	Tools       []Tool `json:"tools"`
}

// Tool mirrors the function-tool shape accepted by the persona API.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}
