package chunk

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/strata3d/strata/atlas"
	"github.com/strata3d/strata/block"
	"github.com/strata3d/strata/resource"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// testBlocks bakes a small registry: an opaque full cube, a transparent
// full cube, and a half-height slab.
func testBlocks(t *testing.T) (*block.Manager, map[string]block.Key) {
	t.Helper()

	provider := resource.NewMapProvider()
	tex := testPNG(t)
	provider.Put("textures/block/plain.png", tex)

	cubeModel := `{
		"textures": {"all": "block/plain"},
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
	}`
	slabModel := `{
		"textures": {"all": "block/plain"},
		"elements": [
			{"from": [0,0,0], "to": [16,8,16], "faces": {
				"south": {"texture": "#all"},
				"west":  {"texture": "#all"},
				"north": {"texture": "#all"},
				"east":  {"texture": "#all"},
				"up":    {"texture": "#all"},
				"down":  {"texture": "#all"}
			}}
		]
	}`
	provider.PutString("models/block/stone.json", cubeModel)
	provider.PutString("models/block/brick.json", cubeModel)
	provider.PutString("models/block/glass.json", cubeModel)
	provider.PutString("models/block/slab.json", slabModel)

	blocks := block.NewManager()
	keys := map[string]block.Key{}
	for _, def := range []struct {
		name   string
		opaque bool
	}{
		{"stone", true},
		{"brick", true},
		{"glass", false},
		{"slab", true},
	} {
		idx, err := blocks.Register(&block.Definition{
			Name:     def.name,
			Opaque:   def.opaque,
			Variants: [][]block.ModelProperties{{{Model: "block/" + def.name}}},
		})
		if err != nil {
			t.Fatalf("register %s: %v", def.name, err)
		}
		keys[def.name] = block.Key{Block: idx}
	}

	if err := blocks.Bake(provider, atlas.New()); err != nil {
		t.Fatalf("bake registry: %v", err)
	}
	return blocks, keys
}

// fakeWorld serves states from a sparse map keyed by absolute coordinates.
type fakeWorld struct {
	blocks     map[[3]int32]block.State
	stateCalls int
	// onStateAt runs before each query when set.
	onStateAt func()
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{blocks: map[[3]int32]block.State{}}
}

func (w *fakeWorld) set(x, y, z int32, key block.Key) {
	w.blocks[[3]int32{x, y, z}] = block.NewState(key)
}

func (w *fakeWorld) StateAt(x int32, y int16, z int32) block.State {
	if w.onStateAt != nil {
		w.onStateAt()
	}
	w.stateCalls++
	return w.blocks[[3]int32{x, int32(y), z}]
}

func (w *fakeWorld) LightLevelAt(x int32, y int16, z int32) LightLevel {
	return LightFromSkyAndBlock(15, 0)
}

func (w *fakeWorld) BlockColorAt(x int32, y int16, z int32, tintIndex int32) [3]uint8 {
	return [3]uint8{255, 255, 255}
}

func (w *fakeWorld) SectionEmpty(index int) bool {
	lo := int32(index * SectionHeight)
	hi := lo + SectionHeight
	for pos := range w.blocks {
		if pos[1] >= lo && pos[1] < hi {
			return false
		}
	}
	return true
}

func allKeys(block.Key) bool { return true }

func TestBakeLayer_EmptyChunkQueriesNothing(t *testing.T) {
	blocks, _ := testBlocks(t)
	world := newFakeWorld()

	vertices, indices := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, allKeys, world)

	if len(vertices) != 0 || len(indices) != 0 {
		t.Errorf("Empty chunk produced %d vertices, %d indices", len(vertices), len(indices))
	}
	if world.stateCalls != 0 {
		t.Errorf("Empty sections must be skipped without state queries, got %d", world.stateCalls)
	}
}

func TestBakeLayer_SectionSkip(t *testing.T) {
	blocks, keys := testBlocks(t)
	world := newFakeWorld()
	world.set(0, 0, 0, keys["stone"])

	BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, allKeys, world)

	// Only section 0 is scanned: its 4096 voxels, plus the 5 in-range
	// neighbor probes of the one solid block (the down neighbor sits below
	// the grid and is not queried).
	expected := SectionVolume + 5
	if world.stateCalls != expected {
		t.Errorf("Expected %d state queries, got %d", expected, world.stateCalls)
	}
}

func TestBakeLayer_LoneCubeEmitsAllFaces(t *testing.T) {
	blocks, keys := testBlocks(t)
	world := newFakeWorld()
	world.set(3, 10, 3, keys["stone"])

	vertices, indices := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, allKeys, world)

	if len(vertices) != 24 {
		t.Errorf("Expected 24 vertices for an exposed cube, got %d", len(vertices))
	}
	if len(indices) != 36 {
		t.Errorf("Expected 36 indices, got %d", len(indices))
	}
}

func TestBakeLayer_BuriedCubeEmitsNothing(t *testing.T) {
	blocks, keys := testBlocks(t)

	// Center plus its six neighbors. Each neighbor has one face against
	// the center culled, leaving 5 of 6; the center itself is fully buried.
	world := newFakeWorld()
	world.set(5, 10, 5, keys["stone"])
	lone, _ := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, allKeys, world)

	for _, off := range [][3]int32{{0, 0, 1}, {-1, 0, 0}, {0, 0, -1}, {1, 0, 0}, {0, 1, 0}, {0, -1, 0}} {
		world.set(5+off[0], 10+off[1], 5+off[2], keys["stone"])
	}
	vertices, _ := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, allKeys, world)

	if len(lone) != 24 {
		t.Fatalf("Lone cube: expected 24 vertices, got %d", len(lone))
	}
	if len(vertices) != 6*5*4 {
		t.Errorf("Expected %d vertices (6 neighbors x 5 faces), got %d", 6*5*4, len(vertices))
	}
}

func TestBakeLayer_SingleExposedUpFace(t *testing.T) {
	blocks, keys := testBlocks(t)
	world := newFakeWorld()

	// Bury a brick on every side except above, then bake only the brick
	// layer. Culling still reads the stone shell from the provider.
	world.set(1, 1, 1, keys["brick"])
	for _, off := range [][3]int32{{0, 0, 1}, {-1, 0, 0}, {0, 0, -1}, {1, 0, 0}, {0, -1, 0}} {
		world.set(1+off[0], 1+off[1], 1+off[2], keys["stone"])
	}

	brickOnly := func(k block.Key) bool { return k == keys["brick"] }
	vertices, indices := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, brickOnly, world)

	if len(vertices) != 4 {
		t.Fatalf("Expected exactly the up face's 4 vertices, got %d", len(vertices))
	}

	// Corner order follows the baked layout; all four sit on the y=2 plane
	// with an upward normal.
	expected := [4][3]float32{{2, 2, 1}, {1, 2, 1}, {1, 2, 2}, {2, 2, 2}}
	for i, want := range expected {
		if vertices[i].Position != want {
			t.Errorf("Up-face corner %d: expected %v, got %v", i, want, vertices[i].Position)
		}
		if vertices[i].Normal != [3]float32{0, 1, 0} {
			t.Errorf("Up-face corner %d: normal %v", i, vertices[i].Normal)
		}
	}

	wantIdx := []uint32{0, 1, 2, 0, 2, 3}
	if len(indices) != 6 {
		t.Fatalf("Expected 6 indices, got %d", len(indices))
	}
	for i, want := range wantIdx {
		if indices[i] != want {
			t.Errorf("Index %d: expected %d, got %d", i, want, indices[i])
		}
	}
}

func TestBakeLayer_TransparentNeighborDoesNotOcclude(t *testing.T) {
	blocks, keys := testBlocks(t)
	world := newFakeWorld()
	world.set(0, 5, 0, keys["stone"])
	world.set(0, 6, 0, keys["glass"])

	vertices, _ := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, allKeys, world)

	// Stone keeps all 6 faces (glass is transparent); glass keeps 5 (its
	// down face is against opaque stone).
	if len(vertices) != 24+20 {
		t.Errorf("Expected 44 vertices, got %d", len(vertices))
	}
}

func TestBakeLayer_PartialGeometrySkipsCulling(t *testing.T) {
	blocks, keys := testBlocks(t)
	world := newFakeWorld()

	world.set(8, 10, 8, keys["slab"])
	for _, off := range [][3]int32{{0, 0, 1}, {-1, 0, 0}, {0, 0, -1}, {1, 0, 0}, {0, 1, 0}, {0, -1, 0}} {
		world.set(8+off[0], 10+off[1], 8+off[2], keys["stone"])
	}

	slabOnly := func(k block.Key) bool { return k == keys["slab"] }
	vertices, _ := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, slabOnly, world)

	// The buried slab still emits all 6 of its faces: partial geometry is
	// never neighbor-culled.
	if len(vertices) != 24 {
		t.Errorf("Expected the slab's 24 vertices regardless of neighbors, got %d", len(vertices))
	}
}

func TestBakeLayer_FilterExcludesKeys(t *testing.T) {
	blocks, keys := testBlocks(t)
	world := newFakeWorld()
	world.set(0, 0, 0, keys["stone"])
	world.set(1, 0, 0, keys["glass"])

	glassOnly := func(k block.Key) bool { return k == keys["glass"] }
	vertices, _ := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, glassOnly, world)

	// Only the glass block passes the filter. Its west face is still
	// culled against the opaque stone neighbor.
	if len(vertices) != 20 {
		t.Errorf("Expected 20 vertices from the filtered layer, got %d", len(vertices))
	}
}

func TestBakeLayer_UnbakedKeySkipped(t *testing.T) {
	blocks, _ := testBlocks(t)
	world := newFakeWorld()
	world.set(0, 0, 0, block.Key{Block: 999})

	vertices, indices := BakeLayer(blocks, New(Pos{0, 0}), DefaultMapper, allKeys, world)

	if len(vertices) != 0 || len(indices) != 0 {
		t.Errorf("Unknown key must be skipped, got %d vertices", len(vertices))
	}
}

func TestBakeLayer_ChunkOffsetAppliesToQueries(t *testing.T) {
	blocks, keys := testBlocks(t)
	world := newFakeWorld()
	// Chunk (2, -1) spans x 32..47, z -16..-1.
	world.set(32, 0, -16, keys["stone"])

	vertices, _ := BakeLayer(blocks, New(Pos{2, -1}), DefaultMapper, allKeys, world)

	if len(vertices) != 24 {
		t.Errorf("Expected the block at the chunk origin to bake, got %d vertices", len(vertices))
	}
}
