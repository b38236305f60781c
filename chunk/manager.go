package chunk

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/strata3d/strata/block"
)

const (
	// VertexPoolSize is the size of the shared chunk vertex buffer.
	VertexPoolSize uint64 = 1_000_000_000
	// IndexPoolSize is the size of the shared chunk index buffer.
	IndexPoolSize uint64 = 250_000_000
)

// VertexStride is the byte size of one TerrainVertex in the pool.
const VertexStride = uint64(unsafe.Sizeof(TerrainVertex{}))

// BufferTarget selects which pool buffer an enqueued write lands in.
type BufferTarget int

const (
	TargetVertices BufferTarget = iota
	TargetIndices
)

// Uploader accepts chunk geometry writes. Implementations batch them and
// flush on the thread that owns the GPU queue, so bakes can run on worker
// threads without touching GPU objects.
type Uploader interface {
	EnqueueChunkWrite(target BufferTarget, offset uint64, data []byte)
}

// Manager owns the shared pool buffers, their range allocators, and the set
// of loaded chunks.
type Manager struct {
	VertexBuffer *wgpu.Buffer
	IndexBuffer  *wgpu.Buffer

	vertexAlloc *RangeAllocator
	indexAlloc  *RangeAllocator

	mu     sync.RWMutex
	loaded map[Pos]*Chunk
}

// NewManager creates the pool buffers on the device.
func NewManager(device *wgpu.Device) (*Manager, error) {
	vertexBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Chunk Vertex Pool",
		Size:  VertexPoolSize,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create chunk vertex pool: %w", err)
	}

	indexBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Chunk Index Pool",
		Size:  IndexPoolSize,
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vertexBuf.Release()
		return nil, fmt.Errorf("create chunk index pool: %w", err)
	}

	m := newManager()
	m.VertexBuffer = vertexBuf
	m.IndexBuffer = indexBuf
	return m, nil
}

func newManager() *Manager {
	return &Manager{
		vertexAlloc: NewRangeAllocator(VertexPoolSize),
		indexAlloc:  NewRangeAllocator(IndexPoolSize),
		loaded:      map[Pos]*Chunk{},
	}
}

// Load returns the chunk at pos, creating it if needed.
func (m *Manager) Load(pos Pos) *Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.loaded[pos]; ok {
		return c
	}
	c := New(pos)
	m.loaded[pos] = c
	return c
}

// At returns the loaded chunk at pos, or nil.
func (m *Manager) At(pos Pos) *Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded[pos]
}

// Unload removes a chunk and returns its ranges to the pool.
func (m *Manager) Unload(pos Pos) {
	m.mu.Lock()
	c, ok := m.loaded[pos]
	delete(m.loaded, pos)
	m.mu.Unlock()

	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, layer := range c.baked {
		m.vertexAlloc.Release(layer.Vertices)
		m.indexAlloc.Release(layer.Indices)
	}
	c.baked = map[string]BakedLayer{}
}

// FreeCapacity reports the free bytes in the vertex and index pools.
func (m *Manager) FreeCapacity() (vertex, index uint64) {
	return m.vertexAlloc.FreeCapacity(), m.indexAlloc.FreeCapacity()
}

// BakeChunk bakes every layer of the chunk, allocates pool ranges for the
// results, queues the byte uploads, and installs the new layer table,
// releasing the previous ranges. Meshing runs without any lock held; only
// the install step takes the chunk lock.
//
// Each call takes a fresh generation token. If another bake for the same
// chunk started after this one, this bake is stale by the time it installs:
// it allocates nothing, frees nothing, and reports no error. The newer bake
// owns the chunk's ranges.
func (m *Manager) BakeChunk(c *Chunk, layers []RenderLayer, blocks *block.Manager, provider BlockStateProvider, uploads Uploader) error {
	token := c.generation.Add(1)

	type bakedData struct {
		name     string
		vertices []TerrainVertex
		indices  []uint32
	}

	baked := make([]bakedData, 0, len(layers))
	for _, layer := range layers {
		vertices, indices := BakeLayer(blocks, c, layer.Mapper, layer.Filter, provider)
		baked = append(baked, bakedData{name: layer.Name, vertices: vertices, indices: indices})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation.Load() != token {
		return nil
	}

	newLayers := make(map[string]BakedLayer, len(baked))
	var grantedVertex, grantedIndex []Range

	rollback := func() {
		for _, r := range grantedVertex {
			m.vertexAlloc.Release(r)
		}
		for _, r := range grantedIndex {
			m.indexAlloc.Release(r)
		}
	}

	for _, d := range baked {
		if len(d.vertices) == 0 {
			continue
		}

		vertexBytes := wgpu.ToBytes(d.vertices)
		indexBytes := wgpu.ToBytes(d.indices)

		vertexRange, err := m.vertexAlloc.Allocate(uint64(len(vertexBytes)))
		if err != nil {
			rollback()
			return fmt.Errorf("bake chunk %v layer %s: %w", c.Pos, d.name, err)
		}
		grantedVertex = append(grantedVertex, vertexRange)

		indexRange, err := m.indexAlloc.Allocate(uint64(len(indexBytes)))
		if err != nil {
			rollback()
			return fmt.Errorf("bake chunk %v layer %s: %w", c.Pos, d.name, err)
		}
		grantedIndex = append(grantedIndex, indexRange)

		uploads.EnqueueChunkWrite(TargetVertices, vertexRange.Start, vertexBytes)
		uploads.EnqueueChunkWrite(TargetIndices, indexRange.Start, indexBytes)

		newLayers[d.name] = BakedLayer{
			Vertices:    vertexRange,
			Indices:     indexRange,
			VertexCount: uint32(len(d.vertices)),
			IndexCount:  uint32(len(d.indices)),
		}
	}

	for _, old := range c.baked {
		m.vertexAlloc.Release(old.Vertices)
		m.indexAlloc.Release(old.Indices)
	}
	c.baked = newLayers

	return nil
}

// DrawLayer issues one indexed draw per loaded chunk that has geometry in
// the named layer. The caller has already bound the pipeline and groups.
func (m *Manager) DrawLayer(pass *wgpu.RenderPassEncoder, layer string) {
	m.mu.RLock()
	chunks := make([]*Chunk, 0, len(m.loaded))
	for _, c := range m.loaded {
		chunks = append(chunks, c)
	}
	m.mu.RUnlock()

	for _, c := range chunks {
		c.mu.RLock()
		bl, ok := c.baked[layer]
		c.mu.RUnlock()
		if !ok || bl.IndexCount == 0 {
			continue
		}

		pass.SetVertexBuffer(0, m.VertexBuffer, bl.Vertices.Start, bl.Vertices.Size())
		pass.SetIndexBuffer(m.IndexBuffer, wgpu.IndexFormatUint32, bl.Indices.Start, bl.Indices.Size())
		pass.DrawIndexed(bl.IndexCount, 1, 0, 0, 0)
	}
}
