// Package chunk walks block grids into per-layer vertex streams and places
// them in a shared GPU vertex pool via a range allocator.
package chunk

import (
	"sync"
	"sync/atomic"

	"github.com/strata3d/strata/block"
)

const (
	Width         = 16
	Area          = Width * Width
	Height        = 384
	Volume        = Area * Height
	SectionHeight = 16
	SectionCount  = Height / SectionHeight
	SectionVolume = Area * SectionHeight
)

// Pos is a chunk coordinate in chunk units (16-block columns).
type Pos [2]int32

// LightLevel packs sky and block light into one byte, a nibble each.
type LightLevel uint8

func LightFromSkyAndBlock(sky, blk uint8) LightLevel {
	return LightLevel(sky<<4 | blk&0xf)
}

func (l LightLevel) Sky() uint8 {
	return uint8(l) >> 4
}

func (l LightLevel) Block() uint8 {
	return uint8(l) & 0xf
}

// BlockStateProvider is the pull-based world data source the mesher reads.
// It is queried per voxel during a bake and makes no caching promises.
type BlockStateProvider interface {
	StateAt(x int32, y int16, z int32) block.State
	LightLevelAt(x int32, y int16, z int32) LightLevel
	BlockColorAt(x int32, y int16, z int32, tintIndex int32) [3]uint8
	// SectionEmpty lets the mesher skip a whole 16-row section without
	// touching StateAt for any position inside it.
	SectionEmpty(index int) bool
}

// TerrainVertex is the GPU vertex the chunk layers produce. The struct tags
// drive the reflected vertex buffer layout.
type TerrainVertex struct {
	Position          [3]float32 `strata:"layout" format:"float3" location:"0"`
	TexCoords         [2]float32 `strata:"layout" format:"float2" location:"1"`
	Normal            [3]float32 `strata:"layout" format:"float3" location:"2"`
	Color             [4]float32 `strata:"layout" format:"float4" location:"3"`
	AnimationUVOffset uint32     `strata:"layout" format:"uint" location:"4"`
}

// VertexMapper turns a baked block-local vertex into the final GPU vertex,
// attaching world-relative position, lighting, shading and tint.
type VertexMapper func(v *block.MeshVertex, x, y, z float32, light LightLevel, shading float32, color [3]uint8) TerrainVertex

// RenderLayer is a capability object the embedding application registers:
// which blockstates belong to the layer and how their vertices map to GPU
// vertices. A chunk may bake into several layers from the same grid.
type RenderLayer struct {
	Name   string
	Filter func(block.Key) bool
	Mapper VertexMapper
}

// DefaultMapper bakes light and directional shading into the vertex color.
// Suitable for an opaque terrain layer.
func DefaultMapper(v *block.MeshVertex, x, y, z float32, light LightLevel, shading float32, color [3]uint8) TerrainVertex {
	sky := float32(light.Sky()) / 15
	blk := float32(light.Block()) / 15
	lum := sky
	if blk > lum {
		lum = blk
	}

	scale := shading * lum
	return TerrainVertex{
		Position: [3]float32{v.Position[0] + x, v.Position[1] + y, v.Position[2] + z},
		TexCoords: [2]float32{
			float32(v.TexCoords[0]),
			float32(v.TexCoords[1]),
		},
		Normal: v.Normal,
		Color: [4]float32{
			float32(color[0]) / 255 * scale,
			float32(color[1]) / 255 * scale,
			float32(color[2]) / 255 * scale,
			1,
		},
		AnimationUVOffset: v.AnimationUVOffset,
	}
}

// BakedLayer records where one chunk layer's geometry lives in the shared
// pool buffers.
type BakedLayer struct {
	Vertices    Range
	Indices     Range
	VertexCount uint32
	IndexCount  uint32
}

// Chunk is one 16x16 column of the world. Its baked layer table is replaced
// wholesale on every rebake; the generation counter discards bakes that
// were superseded while still in flight.
type Chunk struct {
	Pos Pos

	mu         sync.RWMutex
	baked      map[string]BakedLayer
	generation atomic.Uint64
}

func New(pos Pos) *Chunk {
	return &Chunk{
		Pos:   pos,
		baked: map[string]BakedLayer{},
	}
}

// BakedLayers returns a snapshot of the layer table.
func (c *Chunk) BakedLayers() map[string]BakedLayer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]BakedLayer, len(c.baked))
	for name, layer := range c.baked {
		out[name] = layer
	}
	return out
}
