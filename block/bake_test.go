package block

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/strata3d/strata/atlas"
	"github.com/strata3d/strata/resource"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func cubeProvider(t *testing.T) *resource.MapProvider {
	t.Helper()
	provider := resource.NewMapProvider()
	provider.PutString("models/block/stone.json", `{
		"textures": {"all": "block/stone"},
		"elements": [
			{"from": [0,0,0], "to": [16,16,16], "faces": {
				"south": {"texture": "#all"},
				"west":  {"texture": "#all"},
				"north": {"texture": "#all"},
				"east":  {"texture": "#all"},
				"up":    {"texture": "#all"},
				"down":  {"texture": "#all"}
			}}
		]
	}`)
	provider.Put("textures/block/stone.png", pngBytes(t, 16, 16))
	return provider
}

func TestBakeMesh_FullCube(t *testing.T) {
	provider := cubeProvider(t)
	a := atlas.New()

	mesh, err := BakeMesh([]ModelProperties{{Model: "block/stone"}}, provider, a)
	if err != nil {
		t.Fatalf("BakeMesh failed: %v", err)
	}

	if !mesh.IsCube {
		t.Error("Full 16x16x16 element must bake as a cube")
	}
	if len(mesh.Faces) != 1 {
		t.Fatalf("Expected 1 element, got %d", len(mesh.Faces))
	}

	el := mesh.Faces[0]
	for dir := 0; dir < 6; dir++ {
		if el.Faces[dir] == nil {
			t.Errorf("Face %s missing", Direction(dir))
			continue
		}
		if el.Faces[dir].VertIndex != uint32(dir*4) {
			t.Errorf("Face %s: vert index %d", Direction(dir), el.Faces[dir].VertIndex)
		}
		if el.Faces[dir].TintIndex != NoTint {
			t.Errorf("Face %s: expected untinted, got %d", Direction(dir), el.Faces[dir].TintIndex)
		}
	}
}

func TestBakeMesh_MirrorsX(t *testing.T) {
	provider := resource.NewMapProvider()
	provider.PutString("models/block/step.json", `{
		"textures": {"all": "block/step"},
		"elements": [
			{"from": [4,0,0], "to": [16,16,16], "faces": {
				"up": {"texture": "#all"}
			}}
		]
	}`)
	provider.Put("textures/block/step.png", pngBytes(t, 16, 16))
	a := atlas.New()

	mesh, err := BakeMesh([]ModelProperties{{Model: "block/step"}}, provider, a)
	if err != nil {
		t.Fatalf("BakeMesh failed: %v", err)
	}

	// Model X 4..16 lands at renderer X 0..0.75: the axis flips.
	el := mesh.Faces[0]
	var minX, maxX float32 = 2, -2
	for i := el.Faces[Up].VertIndex; i < el.Faces[Up].VertIndex+4; i++ {
		x := el.Vertices[i].Position[0]
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
	}
	if minX != 0 || maxX != 0.75 {
		t.Errorf("Expected X span [0, 0.75], got [%v, %v]", minX, maxX)
	}
	if mesh.IsCube {
		t.Error("Partial element must not bake as a cube")
	}
}

func TestBakeMesh_AbsentFacesKeepPlaceholders(t *testing.T) {
	provider := resource.NewMapProvider()
	provider.PutString("models/block/top_only.json", `{
		"textures": {"all": "block/top_only"},
		"elements": [
			{"from": [0,0,0], "to": [16,16,16], "faces": {
				"up": {"texture": "#all"}
			}}
		]
	}`)
	provider.Put("textures/block/top_only.png", pngBytes(t, 16, 16))
	a := atlas.New()

	mesh, err := BakeMesh([]ModelProperties{{Model: "block/top_only"}}, provider, a)
	if err != nil {
		t.Fatalf("BakeMesh failed: %v", err)
	}

	el := mesh.Faces[0]
	if el.Faces[Up] == nil {
		t.Fatal("Up face must be present")
	}
	for _, dir := range []Direction{South, West, North, East, Down} {
		if el.Faces[dir] != nil {
			t.Errorf("Face %s should be absent", dir)
		}
		// Placeholder slots stay zeroed.
		for i := dir.VertIndex(); i < dir.VertIndex()+4; i++ {
			if el.Vertices[i].TexCoords != [2]uint16{0, 0} {
				t.Errorf("Face %s slot %d has non-placeholder UVs", dir, i)
			}
		}
	}
}

func TestBakeMesh_TintIndex(t *testing.T) {
	provider := resource.NewMapProvider()
	provider.PutString("models/block/grass.json", `{
		"textures": {"top": "block/grass_top"},
		"elements": [
			{"from": [0,0,0], "to": [16,16,16], "faces": {
				"up": {"texture": "#top", "tintindex": 0}
			}}
		]
	}`)
	provider.Put("textures/block/grass_top.png", pngBytes(t, 16, 16))
	a := atlas.New()

	mesh, err := BakeMesh([]ModelProperties{{Model: "block/grass"}}, provider, a)
	if err != nil {
		t.Fatalf("BakeMesh failed: %v", err)
	}

	if mesh.Faces[0].Faces[Up].TintIndex != 0 {
		t.Errorf("Expected tint index 0, got %d", mesh.Faces[0].Faces[Up].TintIndex)
	}
}

func TestBakeMesh_AnimationOffset(t *testing.T) {
	provider := resource.NewMapProvider()
	provider.PutString("models/block/lava.json", `{
		"textures": {"all": "block/lava"},
		"elements": [
			{"from": [0,0,0], "to": [16,16,16], "faces": {
				"up": {"texture": "#all"}
			}}
		]
	}`)
	provider.Put("textures/block/lava.png", pngBytes(t, 16, 16))

	a := atlas.New()
	a.RegisterAnimation("block/lava", 3)

	mesh, err := BakeMesh([]ModelProperties{{Model: "block/lava"}}, provider, a)
	if err != nil {
		t.Fatalf("BakeMesh failed: %v", err)
	}

	el := mesh.Faces[0]
	for i := el.Faces[Up].VertIndex; i < el.Faces[Up].VertIndex+4; i++ {
		if el.Vertices[i].AnimationUVOffset != 3 {
			t.Errorf("Vertex %d: expected animation offset 3, got %d", i, el.Vertices[i].AnimationUVOffset)
		}
	}
}

func TestBakeMesh_MissingTexture(t *testing.T) {
	provider := resource.NewMapProvider()
	provider.PutString("models/block/ghost.json", `{
		"textures": {"all": "block/ghost"},
		"elements": [
			{"from": [0,0,0], "to": [16,16,16], "faces": {"up": {"texture": "#all"}}}
		]
	}`)
	a := atlas.New()

	_, err := BakeMesh([]ModelProperties{{Model: "block/ghost"}}, provider, a)
	if err == nil {
		t.Fatal("Expected error for missing texture bytes")
	}
}
