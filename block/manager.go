package block

import (
	"fmt"
	"sort"
	"sync"

	"github.com/strata3d/strata/atlas"
	"github.com/strata3d/strata/model"
	"github.com/strata3d/strata/resource"
)

// Definition is one registered block: a name, whether full-cube instances
// occlude their neighbors, and the model set of each variant. The variant
// slice index is the augment of the resulting blockstate keys.
type Definition struct {
	Name     string
	Opaque   bool
	Variants [][]ModelProperties
}

// Manager owns every registered block definition and the baked mesh cache,
// keyed by packed blockstate key. It is explicitly constructed and passed
// around; there is no process-wide registry.
type Manager struct {
	mu       sync.RWMutex
	blocks   []*Definition
	index    map[string]uint16
	meshes   map[uint32]*Mesh
	atlasGen uint64
	baked    bool
}

func NewManager() *Manager {
	return &Manager{
		index:  map[string]uint16{},
		meshes: map[uint32]*Mesh{},
	}
}

// Register adds a block definition and returns its block index. Keys for
// its variants are {index, augment} with augment being the variant's
// position in def.Variants.
func (m *Manager) Register(def *Definition) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[def.Name]; ok {
		return 0, fmt.Errorf("block %q already registered", def.Name)
	}
	if len(m.blocks) > 0xffff {
		return 0, fmt.Errorf("block registry full")
	}

	idx := uint16(len(m.blocks))
	m.blocks = append(m.blocks, def)
	m.index[def.Name] = idx
	m.baked = false
	return idx, nil
}

// RegisterBlockState registers a block from its declarative blockstate
// definition, assigning augments to property-variant strings in sorted
// order so keys are deterministic. Returns the variant-string to key
// mapping.
func (m *Manager) RegisterBlockState(name string, opaque bool, bs *model.BlockState) (map[string]Key, error) {
	variantNames := make([]string, 0, len(bs.Variants))
	for v := range bs.Variants {
		variantNames = append(variantNames, v)
	}
	sort.Strings(variantNames)

	def := &Definition{Name: name, Opaque: opaque}
	for _, v := range variantNames {
		var props []ModelProperties
		for _, variant := range bs.Variants[v] {
			props = append(props, ModelProperties{Model: variant.Model})
		}
		def.Variants = append(def.Variants, props)
	}

	idx, err := m.Register(def)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]Key, len(variantNames))
	for augment, v := range variantNames {
		keys[v] = Key{Block: idx, Augment: uint16(augment)}
	}
	return keys, nil
}

// KeyFor looks up the key of a registered block variant.
func (m *Manager) KeyFor(name string, augment uint16) (Key, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.index[name]
	if !ok {
		return Key{}, false
	}
	if int(augment) >= len(m.blocks[idx].Variants) {
		return Key{}, false
	}
	return Key{Block: idx, Augment: augment}, true
}

// Bake resolves and bakes every registered variant against the atlas,
// filling the mesh cache. A variant that fails to resolve is skipped and
// reported, leaving the rest of the registry usable; the first error is
// returned after the pass completes.
func (m *Manager) Bake(provider resource.Provider, blockAtlas *atlas.Atlas) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for idx, def := range m.blocks {
		for augment, props := range def.Variants {
			key := Key{Block: uint16(idx), Augment: uint16(augment)}

			mesh, err := BakeMesh(props, provider, blockAtlas)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("block %q augment %d: %w", def.Name, augment, err)
				}
				continue
			}
			mesh.Transparent = !def.Opaque
			m.meshes[key.Pack()] = mesh
		}
	}

	m.atlasGen = blockAtlas.Generation()
	m.baked = true
	return firstErr
}

// Stale reports whether the atlas changed since the last bake, invalidating
// cached UVs.
func (m *Manager) Stale(blockAtlas *atlas.Atlas) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.baked || m.atlasGen != blockAtlas.Generation()
}

// Mesh returns the baked mesh for a key, or nil when the key is unknown or
// its bake failed.
func (m *Manager) Mesh(key Key) *Mesh {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meshes[key.Pack()]
}

// MeshForState unwraps a voxel state; air has no mesh.
func (m *Manager) MeshForState(s State) *Mesh {
	if s.IsAir() {
		return nil
	}
	return m.Mesh(s.Key())
}
