package strata

import (
	"testing"

	"github.com/strata3d/strata/chunk"
)

func TestRenderer_EnqueueChunkWriteOrder(t *testing.T) {
	r := &Renderer{logger: NewNopLogger()}

	r.EnqueueChunkWrite(chunk.TargetVertices, 0, make([]byte, 16))
	r.EnqueueChunkWrite(chunk.TargetIndices, 128, make([]byte, 8))
	r.EnqueueChunkWrite(chunk.TargetVertices, 1024, make([]byte, 32))

	if len(r.pending) != 3 {
		t.Fatalf("Expected 3 queued writes, got %d", len(r.pending))
	}

	// Writes flush in submission order so later bakes of the same range
	// win.
	expected := []struct {
		target chunk.BufferTarget
		offset uint64
	}{
		{chunk.TargetVertices, 0},
		{chunk.TargetIndices, 128},
		{chunk.TargetVertices, 1024},
	}
	for i, want := range expected {
		if r.pending[i].target != want.target || r.pending[i].offset != want.offset {
			t.Errorf("Write %d: got target=%d offset=%d", i, r.pending[i].target, r.pending[i].offset)
		}
	}
}

func TestRenderer_RegisterLayer(t *testing.T) {
	r := &Renderer{logger: NewNopLogger()}

	r.RegisterLayer(chunk.RenderLayer{Name: "terrain"})
	r.RegisterLayer(chunk.RenderLayer{Name: "translucent"})

	layers := r.Layers()
	if len(layers) != 2 || layers[0].Name != "terrain" || layers[1].Name != "translucent" {
		t.Errorf("Unexpected layer registration order: %+v", layers)
	}
}
