package chunk

import (
	"github.com/strata3d/strata/block"
)

// neighborOffsets maps each face direction to the grid offset of the voxel
// that can occlude it.
var neighborOffsets = [6][3]int32{
	block.South: {0, 0, 1},
	block.West:  {-1, 0, 0},
	block.North: {0, 0, -1},
	block.East:  {1, 0, 0},
	block.Up:    {0, 1, 0},
	block.Down:  {0, -1, 0},
}

// faceShading is the classic per-direction light factor.
var faceShading = [6]float32{
	block.South: 0.8,
	block.West:  0.6,
	block.North: 0.8,
	block.East:  0.6,
	block.Up:    1.0,
	block.Down:  0.5,
}

// BakeLayer walks every voxel of the chunk and emits the layer's vertex and
// index streams. Vertices come out in grid traversal order (X fastest, then
// Z, then Y); each face contributes its 4 corners plus 6 indices, keeping
// per-face winding intact. Sections the provider reports empty are skipped
// without a single state query.
func BakeLayer(blocks *block.Manager, c *Chunk, mapper VertexMapper, filter func(block.Key) bool, provider BlockStateProvider) ([]TerrainVertex, []uint32) {
	var vertices []TerrainVertex
	var indices []uint32

	blockIndex := 0
	for blockIndex < Volume {
		x := int32(blockIndex % Width)
		y := int16(blockIndex / Area)
		z := int32((blockIndex % Area) / Width)

		if x == 0 && z == 0 && int(y)%SectionHeight == 0 {
			if provider.SectionEmpty(int(y) / SectionHeight) {
				blockIndex += SectionVolume
				continue
			}
		}

		blockIndex++

		absX := c.Pos[0]*Width + x
		absZ := c.Pos[1]*Width + z

		state := provider.StateAt(absX, y, absZ)
		if state.IsAir() {
			continue
		}
		if !filter(state.Key()) {
			continue
		}

		mesh := blocks.Mesh(state.Key())
		if mesh == nil {
			// Bake failure upstream: leave the voxel empty and keep going.
			continue
		}

		light := provider.LightLevelAt(absX, y, absZ)

		if mesh.IsCube {
			var visible [6]bool
			for dir, off := range neighborOffsets {
				visible[dir] = faceVisible(blocks, provider, absX+off[0], y+int16(off[1]), absZ+off[2])
			}
			for i := range mesh.Faces {
				emitFaces(&mesh.Faces[i], &visible, mapper, float32(x), float32(y), float32(z),
					light, tintColor(provider, absX, y, absZ), &vertices, &indices)
			}
		} else {
			// Partial geometry cannot be neighbor-culled reliably; emit
			// every face the model defines.
			allVisible := [6]bool{true, true, true, true, true, true}
			for i := range mesh.Faces {
				emitFaces(&mesh.Faces[i], &allVisible, mapper, float32(x), float32(y), float32(z),
					light, tintColor(provider, absX, y, absZ), &vertices, &indices)
			}
		}
	}

	return vertices, indices
}

// faceVisible reports whether a face adjacent to the given position should
// render: the neighbor is absent, transparent, or not a full cube.
func faceVisible(blocks *block.Manager, provider BlockStateProvider, x int32, y int16, z int32) bool {
	if y < 0 || int(y) >= Height {
		return true
	}
	mesh := blocks.MeshForState(provider.StateAt(x, y, z))
	if mesh == nil {
		return true
	}
	return mesh.Transparent || !mesh.IsCube
}

func tintColor(provider BlockStateProvider, x int32, y int16, z int32) func(tintIndex int32) [3]uint8 {
	return func(tintIndex int32) [3]uint8 {
		if tintIndex == block.NoTint {
			return [3]uint8{255, 255, 255}
		}
		return provider.BlockColorAt(x, y, z, tintIndex)
	}
}

// emitFaces pushes the 4 vertices and 6 indices of every present, visible
// face of one element.
func emitFaces(faces *block.ModelFaces, visible *[6]bool, mapper VertexMapper, x, y, z float32,
	light LightLevel, color func(int32) [3]uint8, vertices *[]TerrainVertex, indices *[]uint32) {
	for dir := 0; dir < 6; dir++ {
		face := faces.Faces[dir]
		if face == nil || !visible[dir] {
			continue
		}

		base := uint32(len(*vertices))
		tint := color(face.TintIndex)
		shading := faceShading[dir]
		for i := uint32(0); i < 4; i++ {
			v := &faces.Vertices[face.VertIndex+i]
			*vertices = append(*vertices, mapper(v, x, y, z, light, shading, tint))
		}
		*indices = append(*indices, base, base+1, base+2, base, base+2, base+3)
	}
}
