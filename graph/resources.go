package graph

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/strata3d/strata/texture"
)

// Matrix4 is a shared 4x4 matrix resource. Writers swap the value from any
// goroutine; the render thread uploads it to the uniform buffer when dirty.
type Matrix4 struct {
	value  atomic.Pointer[mgl32.Mat4]
	dirty  atomic.Bool
	buffer *wgpu.Buffer
}

// NewMatrix4 starts out holding the identity matrix.
func NewMatrix4() *Matrix4 {
	m := &Matrix4{}
	ident := mgl32.Ident4()
	m.value.Store(&ident)
	m.dirty.Store(true)
	return m
}

// Set replaces the matrix value. The upload happens on the next frame.
func (m *Matrix4) Set(mat mgl32.Mat4) {
	m.value.Store(&mat)
	m.dirty.Store(true)
}

// Get returns the current matrix value.
func (m *Matrix4) Get() mgl32.Mat4 {
	return *m.value.Load()
}

func (m *Matrix4) ensureBuffer(device *wgpu.Device, label string) error {
	if m.buffer != nil {
		return nil
	}
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  64,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer %s: %w", label, err)
	}
	m.buffer = buf
	return nil
}

// flush uploads the value if it changed since the last flush.
func (m *Matrix4) flush(queue *wgpu.Queue) error {
	if !m.dirty.Swap(false) {
		return nil
	}
	mat := *m.value.Load()
	return queue.WriteBuffer(m.buffer, 0, wgpu.ToBytes(mat[:]))
}

// Resource is one backing a shader pack resource name resolves to. Exactly
// one field is set, matching the declared ResourceType.
type Resource struct {
	Matrix  *Matrix4
	Texture *texture.Handle
	Buffer  *wgpu.Buffer
}

// Registry maps shader pack resource names to their backings.
type Registry struct {
	mu       sync.RWMutex
	backings map[string]*Resource
}

func NewRegistry() *Registry {
	return &Registry{backings: map[string]*Resource{}}
}

// BindMatrix registers (or replaces) a matrix backing under name.
func (r *Registry) BindMatrix(name string, m *Matrix4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backings[name] = &Resource{Matrix: m}
}

// BindTexture registers a swappable texture backing under name.
func (r *Registry) BindTexture(name string, h *texture.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backings[name] = &Resource{Texture: h}
}

// BindBuffer registers a raw buffer backing under name.
func (r *Registry) BindBuffer(name string, buf *wgpu.Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backings[name] = &Resource{Buffer: buf}
}

// Get returns the backing for name, or nil.
func (r *Registry) Get(name string) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backings[name]
}

func (r *Registry) snapshot() map[string]*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Resource, len(r.backings))
	for k, v := range r.backings {
		out[k] = v
	}
	return out
}
