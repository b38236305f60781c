package strata

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/strata3d/strata/chunk"
)

func TestVertexBufferLayout_TerrainVertex(t *testing.T) {
	layout := VertexBufferLayout(chunk.TerrainVertex{})

	// 12 floats plus one uint32.
	if layout.ArrayStride != 52 {
		t.Errorf("Expected stride 52, got %d", layout.ArrayStride)
	}
	if layout.StepMode != wgpu.VertexStepModeVertex {
		t.Error("Terrain vertices are per-vertex data")
	}
	if len(layout.Attributes) != 5 {
		t.Fatalf("Expected 5 attributes, got %d", len(layout.Attributes))
	}

	expected := []struct {
		location uint32
		offset   uint64
		format   wgpu.VertexFormat
	}{
		{0, 0, wgpu.VertexFormatFloat32x3},
		{1, 12, wgpu.VertexFormatFloat32x2},
		{2, 20, wgpu.VertexFormatFloat32x3},
		{3, 32, wgpu.VertexFormatFloat32x4},
		{4, 48, wgpu.VertexFormatUint32},
	}
	for i, want := range expected {
		attr := layout.Attributes[i]
		if attr.ShaderLocation != want.location || attr.Offset != want.offset || attr.Format != want.format {
			t.Errorf("Attribute %d: got location=%d offset=%d format=%v",
				i, attr.ShaderLocation, attr.Offset, attr.Format)
		}
	}
}

func TestVertexBufferLayout_SkipsUntaggedFields(t *testing.T) {
	type vertex struct {
		Position [3]float32 `strata:"layout" format:"float3" location:"0"`
		Padding  [2]float32
		Color    [4]float32 `strata:"layout" format:"float4" location:"1"`
	}

	layout := VertexBufferLayout(vertex{})
	if len(layout.Attributes) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(layout.Attributes))
	}
	// The untagged field still occupies stride space.
	if layout.Attributes[1].Offset != 20 {
		t.Errorf("Expected color at offset 20, got %d", layout.Attributes[1].Offset)
	}
	if layout.ArrayStride != 36 {
		t.Errorf("Expected stride 36, got %d", layout.ArrayStride)
	}
}

func TestVertexBufferLayout_RejectsNonStruct(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for non-struct vertex type")
		}
	}()
	VertexBufferLayout([]float32{1, 2, 3})
}
