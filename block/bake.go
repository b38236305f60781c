package block

import (
	"fmt"

	"github.com/strata3d/strata/atlas"
	"github.com/strata3d/strata/model"
	"github.com/strata3d/strata/resource"
)

// ModelProperties selects one model for a blockstate variant. A variant may
// carry several (weighted or multipart models); all of them bake into the
// same Mesh.
type ModelProperties struct {
	Model string
}

// faceInfo is the resolved UV/animation/tint for one direction of one
// element. A zero-value faceInfo is the placeholder for an absent face.
type faceInfo struct {
	u0, v0  uint16
	u1, v1  uint16
	anim    uint32
	tint    int32
	present bool
}

// BakeMesh resolves every model of a property set, makes sure all
// referenced textures are allocated in the atlas (fetching raw bytes for
// any that are missing), and bakes the elements into the fixed 24-vertex
// layout. The result is cached upstream by packed blockstate key and stays
// valid until the atlas is rebuilt.
func BakeMesh(props []ModelProperties, provider resource.Provider, blockAtlas *atlas.Atlas) (*Mesh, error) {
	mesh := &Mesh{IsCube: true}

	for _, prop := range props {
		m, err := model.Resolve(prop.Model, provider)
		if err != nil {
			return nil, fmt.Errorf("bake %s: %w", prop.Model, err)
		}

		if err := allocateModelTextures(m, provider, blockAtlas); err != nil {
			return nil, fmt.Errorf("bake %s: %w", prop.Model, err)
		}

		for i := range m.Elements {
			faces := bakeElement(&m.Elements[i], m, blockAtlas)
			mesh.IsCube = mesh.IsCube && faces.Cube
			mesh.Faces = append(mesh.Faces, faces)
		}
	}

	return mesh, nil
}

// allocateModelTextures batches every texture the model references that the
// atlas does not hold yet, then allocates them in one locked pass.
func allocateModelTextures(m *model.Model, provider resource.Provider, blockAtlas *atlas.Atlas) error {
	var missing []atlas.Entry
	for _, name := range m.Textures {
		path := resource.Path(name)
		if blockAtlas.Contains(path) {
			continue
		}
		data, err := provider.GetBytes(model.TexturePath(name))
		if err != nil {
			return err
		}
		missing = append(missing, atlas.Entry{Path: path, Data: data})
	}

	if len(missing) == 0 {
		return nil
	}
	return blockAtlas.Allocate(missing)
}

// resolveFace maps one element face to its atlas rectangle. Faces the model
// omits, and faces whose texture never made it into the atlas, come back
// absent and keep placeholder vertex slots.
func resolveFace(face *model.ElementFace, m *model.Model, blockAtlas *atlas.Atlas) faceInfo {
	if face == nil {
		return faceInfo{}
	}

	name, err := model.ResolveFaceTexture(face.Texture, m)
	if err != nil {
		return faceInfo{}
	}

	uv, ok := blockAtlas.UV(resource.Path(name))
	if !ok {
		return faceInfo{}
	}

	sub := [4]float32{0, 0, 16, 16}
	if face.UV != nil {
		sub = *face.UV
	}

	tint := NoTint
	if face.TintIndex != nil {
		tint = int32(*face.TintIndex)
	}

	return faceInfo{
		u0:      uv.X0 + uint16(sub[0]),
		v0:      uv.Y0 + uint16(sub[1]),
		u1:      uv.X0 + uint16(sub[2]),
		v1:      uv.Y0 + uint16(sub[3]),
		anim:    blockAtlas.AnimationOffset(resource.Path(name)),
		tint:    tint,
		present: true,
	}
}

// bakeElement computes the element's 8 corners in block-local unit-cube
// space (X mirrored) and lays out the 24-vertex face array.
func bakeElement(el *model.Element, m *model.Model, blockAtlas *atlas.Atlas) ModelFaces {
	south := resolveFace(el.Faces["south"], m, blockAtlas)
	west := resolveFace(el.Faces["west"], m, blockAtlas)
	north := resolveFace(el.Faces["north"], m, blockAtlas)
	east := resolveFace(el.Faces["east"], m, blockAtlas)
	up := resolveFace(el.Faces["up"], m, blockAtlas)
	down := resolveFace(el.Faces["down"], m, blockAtlas)

	// The model's X axis is mirrored into the renderer's right-handed space.
	x0 := 1 - el.From[0]/16
	x1 := 1 - el.To[0]/16
	y0 := el.From[1] / 16
	y1 := el.To[1] / 16
	z0 := el.From[2] / 16
	z1 := el.To[2] / 16

	a := [3]float32{x0, y0, z0}
	b := [3]float32{x1, y0, z0}
	c := [3]float32{x1, y1, z0}
	d := [3]float32{x0, y1, z0}
	e := [3]float32{x0, y0, z1}
	f := [3]float32{x1, y0, z1}
	g := [3]float32{x1, y1, z1}
	h := [3]float32{x0, y1, z1}

	faces := ModelFaces{
		Vertices: [24]MeshVertex{
			// south (+Z)
			{Position: h, TexCoords: [2]uint16{south.u1, south.v0}, Normal: [3]float32{0, 0, 1}, AnimationUVOffset: south.anim},
			{Position: g, TexCoords: [2]uint16{south.u0, south.v0}, Normal: [3]float32{0, 0, 1}, AnimationUVOffset: south.anim},
			{Position: f, TexCoords: [2]uint16{south.u0, south.v1}, Normal: [3]float32{0, 0, 1}, AnimationUVOffset: south.anim},
			{Position: e, TexCoords: [2]uint16{south.u1, south.v1}, Normal: [3]float32{0, 0, 1}, AnimationUVOffset: south.anim},
			// west (-X)
			{Position: f, TexCoords: [2]uint16{west.u1, west.v1}, Normal: [3]float32{-1, 0, 0}, AnimationUVOffset: west.anim},
			{Position: g, TexCoords: [2]uint16{west.u1, west.v0}, Normal: [3]float32{-1, 0, 0}, AnimationUVOffset: west.anim},
			{Position: c, TexCoords: [2]uint16{west.u0, west.v0}, Normal: [3]float32{-1, 0, 0}, AnimationUVOffset: west.anim},
			{Position: b, TexCoords: [2]uint16{west.u0, west.v1}, Normal: [3]float32{-1, 0, 0}, AnimationUVOffset: west.anim},
			// north (-Z)
			{Position: a, TexCoords: [2]uint16{north.u0, north.v1}, Normal: [3]float32{0, 0, -1}, AnimationUVOffset: north.anim},
			{Position: b, TexCoords: [2]uint16{north.u1, north.v1}, Normal: [3]float32{0, 0, -1}, AnimationUVOffset: north.anim},
			{Position: c, TexCoords: [2]uint16{north.u1, north.v0}, Normal: [3]float32{0, 0, -1}, AnimationUVOffset: north.anim},
			{Position: d, TexCoords: [2]uint16{north.u0, north.v0}, Normal: [3]float32{0, 0, -1}, AnimationUVOffset: north.anim},
			// east (+X)
			{Position: h, TexCoords: [2]uint16{east.u0, east.v0}, Normal: [3]float32{1, 0, 0}, AnimationUVOffset: east.anim},
			{Position: e, TexCoords: [2]uint16{east.u0, east.v1}, Normal: [3]float32{1, 0, 0}, AnimationUVOffset: east.anim},
			{Position: a, TexCoords: [2]uint16{east.u1, east.v1}, Normal: [3]float32{1, 0, 0}, AnimationUVOffset: east.anim},
			{Position: d, TexCoords: [2]uint16{east.u1, east.v0}, Normal: [3]float32{1, 0, 0}, AnimationUVOffset: east.anim},
			// up (+Y)
			{Position: d, TexCoords: [2]uint16{up.u0, up.v1}, Normal: [3]float32{0, 1, 0}, AnimationUVOffset: up.anim},
			{Position: c, TexCoords: [2]uint16{up.u1, up.v1}, Normal: [3]float32{0, 1, 0}, AnimationUVOffset: up.anim},
			{Position: g, TexCoords: [2]uint16{up.u1, up.v0}, Normal: [3]float32{0, 1, 0}, AnimationUVOffset: up.anim},
			{Position: h, TexCoords: [2]uint16{up.u0, up.v0}, Normal: [3]float32{0, 1, 0}, AnimationUVOffset: up.anim},
			// down (-Y)
			{Position: e, TexCoords: [2]uint16{down.u1, down.v1}, Normal: [3]float32{0, -1, 0}, AnimationUVOffset: down.anim},
			{Position: f, TexCoords: [2]uint16{down.u0, down.v1}, Normal: [3]float32{0, -1, 0}, AnimationUVOffset: down.anim},
			{Position: b, TexCoords: [2]uint16{down.u0, down.v0}, Normal: [3]float32{0, -1, 0}, AnimationUVOffset: down.anim},
			{Position: a, TexCoords: [2]uint16{down.u1, down.v0}, Normal: [3]float32{0, -1, 0}, AnimationUVOffset: down.anim},
		},
		Cube: el.FullCube(),
	}

	infos := [6]faceInfo{south, west, north, east, up, down}
	for dir, info := range infos {
		if info.present {
			faces.Faces[dir] = &Face{VertIndex: Direction(dir).VertIndex(), TintIndex: info.tint}
		}
	}

	return faces
}
