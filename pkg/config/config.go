// Package config parses and applies the node's declarative YAML
// configuration: one or more apiVersion/kind/metadata/spec documents,
// each describing a link, route, registration, security key, or listening
// interface. It mirrors the teacher's resource-apply pattern (one Kind per
// document, a generic spec map, helpers to pull typed values out of it)
// generalized from container-orchestration resources to DTN ones.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Metadata is the common envelope metadata every resource carries.
type Metadata struct {
	Name string `yaml:"name"`
}

// Resource is one YAML document: apiVersion/kind/metadata/spec, with Spec
// left as a generic map so each Kind's applyXxx parses only the fields it
// understands.
type Resource struct {
	APIVersion string                 `yaml:"apiVersion"`
	Kind       string                 `yaml:"kind"`
	Metadata   Metadata               `yaml:"metadata"`
	Spec       map[string]interface{} `yaml:"spec"`
}

// Kind values this package knows how to apply.
const (
	KindLink         = "Link"
	KindRoute        = "Route"
	KindRegistration = "Registration"
	KindSecurityKey  = "SecurityKey"
	KindInterface    = "Interface"
)

// ParseFile reads path and returns every resource document it contains.
func ParseFile(path string) ([]Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return ParseAll(f)
}

// ParseAll decodes a (possibly multi-document, "---"-separated) YAML
// stream into a list of resources.
func ParseAll(r io.Reader) ([]Resource, error) {
	dec := yaml.NewDecoder(r)
	var out []Resource
	for {
		var res Resource
		if err := dec.Decode(&res); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("config: decode document %d: %w", len(out), err)
		}
		if res.Kind == "" {
			continue // blank document between "---" separators
		}
		out = append(out, res)
	}
	return out, nil
}

func getString(spec map[string]interface{}, key string) (string, bool) {
	v, ok := spec[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func getInt(spec map[string]interface{}, key string) (int, bool) {
	v, ok := spec[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func getBool(spec map[string]interface{}, key string) (bool, bool) {
	v, ok := spec[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
