// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agent-demo-webhooks/internal/common/validation"
	"agent-demo-webhooks/internal/toolcall"
)

const registryVersion = "1.0.0"

var descriptions = map[toolcall.ToolName]string{
	toolcall.FetchVideo:   "Show the demo video whose title best matches what the user asked to see.",
	toolcall.PauseVideo:   "Pause the video that is currently playing.",
	toolcall.PlayVideo:    "Resume playback of the current video.",
	toolcall.NextVideo:    "Skip to the next video in the demo.",
	toolcall.CloseVideo:   "Close the video player and return to the conversation.",
	toolcall.ShowTrialCTA: "Show the free-trial call to action.",
}

func noParameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Default returns definitions for every canonical tool in canonical order.
func Default() *ToolRegistry {
	tools := make([]Tool, 0, len(descriptions))
	for _, name := range toolcall.KnownTools() {
		params := noParameters()
		if name == toolcall.FetchVideo {
			params = map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Title of the video to show.",
					},
				},
				"required": []interface{}{"title"},
			}
		}
		tools = append(tools, Tool{
			Type: "function",
			Function: Function{
				Name:        string(name),
				Description: descriptions[name],
				Parameters:  params,
			},
		})
	}
	return &ToolRegistry{
		Version:     registryVersion,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Tools:       tools,
	}
}

func LoadRegistry(path string) (*ToolRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ToolRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// SaveRegistry writes reg as indented JSON, creating parent directories.
func SaveRegistry(reg *ToolRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Validate checks that every tool is canonical, unique and carries a
// parameter schema that compiles.
func (r *ToolRegistry) Validate() error {
	if len(r.Tools) == 0 {
		return fmt.Errorf("registry contains no tools")
	}

	seen := make(map[string]bool, len(r.Tools))
	for i, tool := range r.Tools {
		name := tool.Function.Name
		if name == "" {
			return fmt.Errorf("tool %d missing required field: function.name", i)
		}
		if !toolcall.IsKnownTool(name) {
			return fmt.Errorf("tool %s is not a recognized tool", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate tool: %s", name)
		}
		seen[name] = true

		if tool.Type != "function" {
			return fmt.Errorf("tool %s has unsupported type %q", name, tool.Type)
		}
		if tool.Function.Description == "" {
			return fmt.Errorf("tool %s missing required field: description", name)
		}
		if tool.Function.Parameters == nil {
			return fmt.Errorf("tool %s missing required field: parameters", name)
		}
		if _, err := validation.Compile(name, tool.Function.Parameters); err != nil {
			return fmt.Errorf("tool %s: %w", name, err)
		}
	}
	return nil
}

// Missing lists canonical tools absent from the registry.
func (r *ToolRegistry) Missing() []toolcall.ToolName {
	present := make(map[string]bool, len(r.Tools))
	for _, tool := range r.Tools {
		present[tool.Function.Name] = true
	}
	var missing []toolcall.ToolName
	for _, name := range toolcall.KnownTools() {
		if !present[string(name)] {
			missing = append(missing, name)
		}
	}
	return missing
}
