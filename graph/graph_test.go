package graph

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/strata3d/strata/texture"
	"github.com/stretchr/testify/assert"
)

func TestColorAttachment_ClearColor(t *testing.T) {
	sky := wgpu.Color{R: 0.53, G: 0.81, B: 0.92, A: 1}

	att := colorAttachment(nil, true, sky)
	assert.Equal(t, wgpu.LoadOpClear, att.LoadOp)
	assert.Equal(t, sky, att.ClearValue)
	assert.Equal(t, wgpu.StoreOpStore, att.StoreOp)

	// A non-clearing pass loads what the previous pass stored.
	att = colorAttachment(nil, false, sky)
	assert.Equal(t, wgpu.LoadOpLoad, att.LoadOp)
}

func TestBindableChanged(t *testing.T) {
	a := &texture.Bindable{ID: "a"}
	b := &texture.Bindable{ID: "b"}
	rebuilt := &texture.Bindable{ID: "a"}

	assert.False(t, bindableChanged(a, a))
	assert.False(t, bindableChanged(a, rebuilt))
	assert.True(t, bindableChanged(a, b))
	assert.True(t, bindableChanged(nil, a))
	assert.True(t, bindableChanged(a, nil))
	assert.False(t, bindableChanged(nil, nil))
}
