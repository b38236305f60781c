// Package block defines block-state keys, baked per-block meshes, and the
// baker that turns a resolved block model into the fixed 24-vertex layout
// the chunk mesher consumes.
package block

import "fmt"

// Key identifies one resolved block-model variant: an index into the block
// manager plus a compact variant discriminator, avoiding string hashing on
// the meshing hot path.
type Key struct {
	Block   uint16
	Augment uint16
}

// Pack encodes the key into a single 32-bit cache key.
func (k Key) Pack() uint32 {
	return uint32(k.Block)<<16 | uint32(k.Augment)
}

func KeyFromPacked(v uint32) Key {
	return Key{Block: uint16(v >> 16), Augment: uint16(v & 0xffff)}
}

func (k Key) String() string {
	return fmt.Sprintf("block(%d:%d)", k.Block, k.Augment)
}

// State is one voxel's content as seen by the mesher: air, or a keyed
// block-model variant.
type State struct {
	key Key
	set bool
}

// Air is the empty voxel state.
var Air = State{}

func NewState(k Key) State {
	return State{key: k, set: true}
}

func (s State) IsAir() bool {
	return !s.set
}

func (s State) Key() Key {
	return s.key
}

// MeshVertex is one vertex of a baked block mesh. Positions live in
// block-local 0..1 cube space, mirrored on the X axis relative to the raw
// model coordinates (the model space is left-handed). Texture coordinates
// are atlas pixel coordinates.
type MeshVertex struct {
	Position          [3]float32
	TexCoords         [2]uint16
	Normal            [3]float32
	AnimationUVOffset uint32
}

// Direction indexes the six faces of a block, in baked vertex order.
type Direction int

const (
	South Direction = iota
	West
	North
	East
	Up
	Down
)

var directionNames = [6]string{"south", "west", "north", "east", "up", "down"}

func (d Direction) String() string {
	return directionNames[d]
}

// VertIndex is the offset of the face's 4 vertices within the 24-vertex
// block layout.
func (d Direction) VertIndex() uint32 {
	return uint32(d) * 4
}

// Face marks a present model face: where its vertices sit in the 24-slot
// layout and which tint index colors it. NoTint means the face is drawn
// untinted.
type Face struct {
	VertIndex uint32
	TintIndex int32
}

// NoTint is the tint sentinel for untinted faces.
const NoTint int32 = -1

// ModelFaces is the baked geometry of one model element: exactly 24
// vertices (4 per direction, in Direction order), with the per-direction
// Face set only where the source model defines geometry. Absent faces keep
// zeroed placeholder vertex slots so indexing stays uniform.
type ModelFaces struct {
	Vertices [24]MeshVertex
	Faces    [6]*Face
	Cube     bool
}

// Mesh is a block model baked against the current texture atlas, ready for
// chunk meshing. IsCube is true only when every element spans the full unit
// cube, which enables neighbor-based face culling. Transparent blocks never
// occlude their neighbors' faces.
type Mesh struct {
	Faces       []ModelFaces
	IsCube      bool
	Transparent bool
}
