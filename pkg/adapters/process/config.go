package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tool names looked up by the adapters.
const (
	ToolRender       = "render"
	ToolRasterizePNG = "rasterize-png"
	ToolRasterizeSVG = "rasterize-svg"
)

// ProcessConfig represents the configuration for an external tool execution.
// Args may contain placeholders such as {input} and {output}, expanded per call.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of tools.yaml
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

// DefaultTools returns the mermaid-cli renderer and librsvg rasterizer.
func DefaultTools() map[string]ProcessConfig {
	return map[string]ProcessConfig{
		ToolRender: {
			Name:        ToolRender,
			Command:     "mmdc",
			Args:        []string{"-i", "{input}", "-o", "{output}", "-t", "{mermaid_theme}", "-b", "transparent", "-q"},
			Description: "Render Mermaid source to SVG with mermaid-cli",
		},
		ToolRasterizePNG: {
			Name:        ToolRasterizePNG,
			Command:     "rsvg-convert",
			Args:        []string{"-f", "{format}", "-w", "{width}", "-h", "{height}", "-b", "{background}", "-o", "{output}", "{input}"},
			Description: "Encode SVG markup as PNG with librsvg",
		},
	}
}

// LoadTools reads a configuration file (YAML or JSON) and returns a map of tool names to configs.
// A missing file yields an empty map.
func LoadTools(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse tools.json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse tools.yaml: %w", err)
		}
	}

	toolMap := make(map[string]ProcessConfig)
	for _, tool := range cfg.Tools {
		if tool.Name == "" || tool.Command == "" {
			continue
		}
		toolMap[tool.Name] = tool
	}

	return toolMap, nil
}

// MergeTools overlays configured tools on top of defaults.
func MergeTools(defaults, overrides map[string]ProcessConfig) map[string]ProcessConfig {
	out := make(map[string]ProcessConfig, len(defaults)+len(overrides))
	for name, tool := range defaults {
		out[name] = tool
	}
	for name, tool := range overrides {
		out[name] = tool
	}
	return out
}
