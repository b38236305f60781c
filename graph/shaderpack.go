package graph

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FramebufferTarget names the swapchain image as a pass output.
const FramebufferTarget = "@framebuffer"

// ResourceType tags a declared resource in a shader pack.
type ResourceType string

const (
	ResourceMat4    ResourceType = "mat4"
	ResourceTexture ResourceType = "texture"
	ResourceBuffer  ResourceType = "buffer"
)

// ResourceConfig declares one named resource a shader pack expects the host
// to provide.
type ResourceConfig struct {
	Type ResourceType `yaml:"type"`
}

// PassConfig declares one render pass. Passes run in the order listed.
type PassConfig struct {
	Name      string   `yaml:"name"`
	Shader    string   `yaml:"shader"`
	Geometry  string   `yaml:"geometry"`
	Resources []string `yaml:"resources"`
	Output    string   `yaml:"output"`
	Depth     string   `yaml:"depth"`
	Clear     bool     `yaml:"clear"`
}

// Config is the parsed shader pack manifest.
type Config struct {
	Resources map[string]ResourceConfig `yaml:"resources"`
	Passes    []PassConfig              `yaml:"passes"`
}

// ConfigError reports a structurally invalid shader pack manifest.
type ConfigError struct {
	Pass   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Pass == "" {
		return fmt.Sprintf("shader pack config: %s", e.Reason)
	}
	return fmt.Sprintf("shader pack config: pass %q: %s", e.Pass, e.Reason)
}

// ParseConfig decodes and validates a shader pack manifest.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("shader pack config: %w", err)
	}

	if len(cfg.Passes) == 0 {
		return nil, &ConfigError{Reason: "no passes declared"}
	}

	for name, res := range cfg.Resources {
		switch res.Type {
		case ResourceMat4, ResourceTexture, ResourceBuffer:
		default:
			return nil, &ConfigError{Reason: fmt.Sprintf("resource %q has unknown type %q", name, res.Type)}
		}
	}

	seen := map[string]bool{}
	for _, pass := range cfg.Passes {
		if pass.Name == "" {
			return nil, &ConfigError{Reason: "pass without a name"}
		}
		if seen[pass.Name] {
			return nil, &ConfigError{Pass: pass.Name, Reason: "duplicate pass name"}
		}
		seen[pass.Name] = true

		if pass.Shader == "" {
			return nil, &ConfigError{Pass: pass.Name, Reason: "no shader"}
		}
		if pass.Output == "" {
			return nil, &ConfigError{Pass: pass.Name, Reason: "no output"}
		}
		for _, res := range pass.Resources {
			if _, ok := cfg.Resources[res]; !ok {
				return nil, &ConfigError{Pass: pass.Name, Reason: fmt.Sprintf("undeclared resource %q", res)}
			}
		}
		if pass.Output != FramebufferTarget {
			res, ok := cfg.Resources[pass.Output]
			if !ok {
				return nil, &ConfigError{Pass: pass.Name, Reason: fmt.Sprintf("output names undeclared resource %q", pass.Output)}
			}
			if res.Type != ResourceTexture {
				return nil, &ConfigError{Pass: pass.Name, Reason: fmt.Sprintf("output %q is not a texture", pass.Output)}
			}
		}
		if pass.Depth != "" {
			res, ok := cfg.Resources[pass.Depth]
			if !ok {
				return nil, &ConfigError{Pass: pass.Name, Reason: fmt.Sprintf("depth names undeclared resource %q", pass.Depth)}
			}
			if res.Type != ResourceTexture {
				return nil, &ConfigError{Pass: pass.Name, Reason: fmt.Sprintf("depth %q is not a texture", pass.Depth)}
			}
		}
	}

	return &cfg, nil
}
