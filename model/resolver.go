package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/strata3d/strata/resource"
)

// maxParentDepth bounds the parent chain; a cyclic pair of models would
// otherwise loop forever.
const maxParentDepth = 16

// ParentChainError reports a model whose parent chain never terminates.
type ParentChainError struct {
	Model string
}

func (e *ParentChainError) Error() string {
	return fmt.Sprintf("model %q: parent chain exceeds %d levels", e.Model, maxParentDepth)
}

// UnresolvedTextureError reports a texture slot whose value still references
// another slot ("#name") after the parent chain has been merged.
type UnresolvedTextureError struct {
	Key   string
	Value string
}

func (e *UnresolvedTextureError) Error() string {
	return fmt.Sprintf("unresolved texture reference: key %q value %q", e.Key, e.Value)
}

// ModelPath builds the provider path for a model name, e.g.
// "block/stone" -> "models/block/stone.json".
func ModelPath(name string) resource.Path {
	return resource.Path(name).Prepend("models/").Append(".json")
}

// TexturePath builds the provider path for a texture name, e.g.
// "block/stone" -> "textures/block/stone.png".
func TexturePath(name string) resource.Path {
	return resource.Path(name).Prepend("textures/").Append(".png")
}

// Resolve fetches the named model and recursively merges its parent chain
// into a flat model. Child-declared elements and textures override the
// parent's; texture slots referencing other slots are substituted until no
// reference remains. Resolution has no shared state; callers cache results.
func Resolve(name string, provider resource.Provider) (*Model, error) {
	m, err := fetch(name, provider)
	if err != nil {
		return nil, err
	}

	depth := 0
	for parent := m.Parent; parent != ""; {
		if depth++; depth > maxParentDepth {
			return nil, &ParentChainError{Model: name}
		}
		p, err := fetch(parent, provider)
		if err != nil {
			return nil, err
		}
		merge(m, p)
		parent = p.Parent
	}
	m.Parent = ""

	if err := substituteTextures(m); err != nil {
		return nil, err
	}
	return m, nil
}

func fetch(name string, provider resource.Provider) (*Model, error) {
	path := ModelPath(name)
	text, err := provider.GetString(path)
	if err != nil {
		return nil, err
	}

	var m Model
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	return &m, nil
}

// merge folds a parent model underneath a child: anything the child declares
// wins, anything it leaves out is inherited.
func merge(child *Model, parent *Model) {
	if child.AmbientOcclusion == nil {
		child.AmbientOcclusion = parent.AmbientOcclusion
	}
	if len(child.Elements) == 0 {
		child.Elements = parent.Elements
	}
	if child.Textures == nil {
		child.Textures = map[string]string{}
	}
	for key, value := range parent.Textures {
		if _, ok := child.Textures[key]; !ok {
			child.Textures[key] = value
		}
	}
}

// substituteTextures rewrites every "#ref" texture slot value to the value
// of the referenced slot. A reference chain that never reaches a concrete
// value is an error.
func substituteTextures(m *Model) error {
	for key, value := range m.Textures {
		resolved, ok := followReference(value, m.Textures)
		if !ok {
			return &UnresolvedTextureError{Key: key, Value: value}
		}
		m.Textures[key] = resolved
	}
	return nil
}

// ResolveFaceTexture maps an element face's texture value (either a concrete
// texture name or a "#slot" reference) to the concrete name, using the
// model's merged texture table.
func ResolveFaceTexture(value string, m *Model) (string, error) {
	resolved, ok := followReference(value, m.Textures)
	if !ok {
		return "", &UnresolvedTextureError{Key: value, Value: value}
	}
	return resolved, nil
}

func followReference(value string, textures map[string]string) (string, bool) {
	// The bound of 16 hops guards against reference cycles.
	for i := 0; i < 16; i++ {
		if !strings.HasPrefix(value, "#") {
			return value, true
		}
		next, ok := textures[strings.TrimPrefix(value, "#")]
		if !ok {
			return "", false
		}
		value = next
	}
	return "", false
}

// LoadBlockState fetches and parses a blockstate definition, mapping
// property-variant strings to models.
func LoadBlockState(name string, provider resource.Provider) (*BlockState, error) {
	path := resource.Path(name).Prepend("blockstates/").Append(".json")
	text, err := provider.GetString(path)
	if err != nil {
		return nil, err
	}

	var bs BlockState
	if err := json.Unmarshal([]byte(text), &bs); err != nil {
		return nil, fmt.Errorf("parse blockstate %s: %w", path, err)
	}
	return &bs, nil
}
