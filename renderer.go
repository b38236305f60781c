// Package strata is a chunked voxel rendering engine. The embedding
// application supplies block definitions, world data and a shader pack;
// the engine bakes chunk geometry into pooled GPU buffers and draws it
// through a configurable render graph.
package strata

import (
	"fmt"
	"sync"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/strata3d/strata/atlas"
	"github.com/strata3d/strata/block"
	"github.com/strata3d/strata/chunk"
	"github.com/strata3d/strata/graph"
	"github.com/strata3d/strata/resource"
	"github.com/strata3d/strata/texture"
)

// DefaultFlushInterval is how often queued chunk writes reach the GPU when
// the flush loop runs with interval 0.
const DefaultFlushInterval = 10 * time.Millisecond

type chunkWrite struct {
	target chunk.BufferTarget
	offset uint64
	data   []byte
}

type textureEntry struct {
	handle *texture.Handle
	format wgpu.TextureFormat
	// surfaceSized attachments are recreated at the new size on resize.
	surfaceSized bool
}

// Renderer ties the engine together: block registry, atlas, chunk pools,
// named textures and the render graph, all on one GPU device.
type Renderer struct {
	logger   Logger
	gpu      *GpuState
	provider resource.Provider

	Blocks *block.Manager
	Atlas  *atlas.Atlas
	Chunks *chunk.Manager
	Graph  *graph.Graph

	layers []chunk.RenderLayer

	texMu    sync.Mutex
	textures map[string]*textureEntry

	uploadMu sync.Mutex
	pending  []chunkWrite

	animMu     sync.Mutex
	animBuffer *wgpu.Buffer

	flushStop chan struct{}
	flushDone chan struct{}
}

// NewRenderer wires the managers onto the device. The provider serves
// models, textures and shader pack content for the lifetime of the
// renderer.
func NewRenderer(gpu *GpuState, provider resource.Provider, logger Logger) (*Renderer, error) {
	if logger == nil {
		logger = NewNopLogger()
	}

	chunks, err := chunk.NewManager(gpu.device)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	return &Renderer{
		logger:   logger,
		gpu:      gpu,
		provider: provider,
		Blocks:   block.NewManager(),
		Atlas:    atlas.New(),
		Chunks:   chunks,
		textures: map[string]*textureEntry{},
	}, nil
}

func (r *Renderer) Device() *wgpu.Device { return r.gpu.device }
func (r *Renderer) Queue() *wgpu.Queue   { return r.gpu.queue }

// RegisterLayer adds a chunk render layer. Layers registered before
// InitGraph become drawable graph geometries under their own name.
func (r *Renderer) RegisterLayer(layer chunk.RenderLayer) {
	r.layers = append(r.layers, layer)
}

// Layers returns the registered chunk render layers.
func (r *Renderer) Layers() []chunk.RenderLayer {
	return r.layers
}

// CreateTexture makes a named swappable texture. surfaceSized attachments
// track the swapchain dimensions across resizes.
func (r *Renderer) CreateTexture(name string, width, height uint32, format wgpu.TextureFormat, surfaceSized bool) (*texture.Handle, error) {
	tsv, err := texture.NewAttachmentView(r.gpu.device, width, height, format)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", name, err)
	}

	handle := texture.NewHandle(texture.NewBindable(tsv))

	r.texMu.Lock()
	r.textures[name] = &textureEntry{handle: handle, format: format, surfaceSized: surfaceSized}
	r.texMu.Unlock()

	return handle, nil
}

// Texture returns the named handle, or nil.
func (r *Renderer) Texture(name string) *texture.Handle {
	r.texMu.Lock()
	defer r.texMu.Unlock()
	if e, ok := r.textures[name]; ok {
		return e.handle
	}
	return nil
}

// UpdateSurfaceSize reconfigures the swapchain and rebuilds every
// surface-sized texture at the new dimensions. In-flight frames keep the
// old textures alive through their handles until their next load.
func (r *Renderer) UpdateSurfaceSize(width, height uint32) error {
	r.gpu.Reconfigure(width, height)

	r.texMu.Lock()
	defer r.texMu.Unlock()

	for name, entry := range r.textures {
		if !entry.surfaceSized {
			continue
		}
		tsv, err := texture.NewAttachmentView(r.gpu.device, width, height, entry.format)
		if err != nil {
			return fmt.Errorf("resize texture %s: %w", name, err)
		}
		old := entry.handle.Load()
		entry.handle.Store(texture.NewBindable(tsv))
		if old != nil {
			old.TSV.Release()
		}
	}
	return nil
}

// UploadAtlas pushes the current atlas image to the GPU and stores it into
// the named texture handle, creating the handle if needed.
func (r *Renderer) UploadAtlas(name string) (*texture.Handle, error) {
	tsv, err := r.Atlas.Upload(r.gpu.device, r.gpu.queue)
	if err != nil {
		return nil, fmt.Errorf("upload atlas: %w", err)
	}

	r.texMu.Lock()
	defer r.texMu.Unlock()

	entry, ok := r.textures[name]
	if !ok {
		entry = &textureEntry{handle: texture.NewHandle(texture.NewBindable(tsv)), format: tsv.Format}
		r.textures[name] = entry
		return entry.handle, nil
	}

	old := entry.handle.Load()
	entry.handle.Store(texture.NewBindable(tsv))
	if old != nil {
		old.TSV.Release()
	}
	return entry.handle, nil
}

// UploadAnimatedTextureBuffer pushes per-frame animation data for the
// animated atlas textures. The storage buffer is created on first call at
// the given size and bound into the registry under the given name; later
// calls with the same size just rewrite its contents.
func (r *Renderer) UploadAnimatedTextureBuffer(registry *graph.Registry, name string, data []float32) error {
	r.animMu.Lock()
	defer r.animMu.Unlock()

	if r.animBuffer == nil {
		buf, err := r.gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  uint64(len(data)) * 4,
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("animation buffer: %w", err)
		}
		r.animBuffer = buf
		registry.BindBuffer(name, buf)
	}

	if err := r.gpu.queue.WriteBuffer(r.animBuffer, 0, wgpu.ToBytes(data)); err != nil {
		return fmt.Errorf("animation buffer write: %w", err)
	}
	return nil
}

// EnqueueChunkWrite queues a pool buffer write. Safe from any goroutine;
// the data reaches the GPU on the next flush.
func (r *Renderer) EnqueueChunkWrite(target chunk.BufferTarget, offset uint64, data []byte) {
	r.uploadMu.Lock()
	r.pending = append(r.pending, chunkWrite{target: target, offset: offset, data: data})
	r.uploadMu.Unlock()
}

// SubmitChunkUpdates flushes all queued chunk writes to the GPU queue.
func (r *Renderer) SubmitChunkUpdates() error {
	r.uploadMu.Lock()
	writes := r.pending
	r.pending = nil
	r.uploadMu.Unlock()

	for _, w := range writes {
		buf := r.Chunks.VertexBuffer
		if w.target == chunk.TargetIndices {
			buf = r.Chunks.IndexBuffer
		}
		if err := r.gpu.queue.WriteBuffer(buf, w.offset, w.data); err != nil {
			return fmt.Errorf("chunk write at %d: %w", w.offset, err)
		}
	}
	return nil
}

// StartChunkFlushLoop flushes queued chunk writes on a background ticker
// until StopChunkFlushLoop. Interval 0 means DefaultFlushInterval.
func (r *Renderer) StartChunkFlushLoop(interval time.Duration) {
	if r.flushStop != nil {
		return
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	r.flushStop = make(chan struct{})
	r.flushDone = make(chan struct{})

	go func() {
		defer close(r.flushDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.SubmitChunkUpdates(); err != nil {
					r.logger.Errorf("chunk flush: %v", err)
				}
			case <-r.flushStop:
				return
			}
		}
	}()
}

// StopChunkFlushLoop stops the background flush and waits for it to exit.
func (r *Renderer) StopChunkFlushLoop() {
	if r.flushStop == nil {
		return
	}
	close(r.flushStop)
	<-r.flushDone
	r.flushStop = nil
	r.flushDone = nil
}

// BakeChunk rebakes all registered layers of the chunk and queues the
// geometry uploads.
func (r *Renderer) BakeChunk(c *chunk.Chunk, provider chunk.BlockStateProvider) error {
	return r.Chunks.BakeChunk(c, r.layers, r.Blocks, provider, r)
}

// NewBakePool starts background bake workers feeding this renderer's
// upload queue.
func (r *Renderer) NewBakePool(workers, queueSize int) *chunk.BakePool {
	return chunk.NewBakePool(r.Chunks, r, workers, queueSize)
}

// chunkLayerGeometry exposes one chunk layer as a render graph geometry.
type chunkLayerGeometry struct {
	chunks *chunk.Manager
	layer  string
}

func (g *chunkLayerGeometry) Layouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{VertexBufferLayout(chunk.TerrainVertex{})}
}

func (g *chunkLayerGeometry) Draw(pass *wgpu.RenderPassEncoder) {
	g.chunks.DrawLayer(pass, g.layer)
}

// InitGraph parses the shader pack manifest at the given path, binds every
// registered chunk layer as a geometry, and compiles the graph. Resource
// backings must already be bound in the registry.
func (r *Renderer) InitGraph(manifestPath resource.Path, registry *graph.Registry) error {
	data, err := r.provider.GetBytes(manifestPath)
	if err != nil {
		return fmt.Errorf("shader pack: %w", err)
	}

	cfg, err := graph.ParseConfig(data)
	if err != nil {
		return err
	}

	g := graph.New(cfg, registry)
	for _, layer := range r.layers {
		g.BindGeometry(layer.Name, &chunkLayerGeometry{chunks: r.Chunks, layer: layer.Name})
	}

	if err := g.Init(r.gpu.device, r.gpu.queue, r.gpu.surfaceConfig.Format, r.provider); err != nil {
		return err
	}

	r.Graph = g
	r.logger.Infof("render graph ready: %d passes", len(cfg.Passes))
	return nil
}

// Render draws one frame, clearing with clearColor. A lost or outdated
// surface is reconfigured and retried once; if the retry also fails the
// frame is skipped and the error returned.
func (r *Renderer) Render(clearColor wgpu.Color) error {
	if r.Graph == nil {
		return graph.ErrNotInitialized
	}

	nextTexture, err := r.gpu.surface.GetCurrentTexture()
	if err != nil {
		r.logger.Warnf("surface texture lost, reconfiguring: %v", err)
		r.gpu.Reconfigure(r.gpu.surfaceConfig.Width, r.gpu.surfaceConfig.Height)
		nextTexture, err = r.gpu.surface.GetCurrentTexture()
		if err != nil {
			return fmt.Errorf("acquire surface texture: %w", err)
		}
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("surface view: %w", err)
	}
	defer view.Release()

	if err := r.SubmitChunkUpdates(); err != nil {
		return err
	}

	encoder, err := r.gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	defer encoder.Release()

	if err := r.Graph.Render(encoder, view, clearColor); err != nil {
		return err
	}

	cmdBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer cmdBuffer.Release()

	r.gpu.queue.Submit(cmdBuffer)
	r.gpu.surface.Present()
	return nil
}

// Release frees the graph, textures and pool buffers.
func (r *Renderer) Release() {
	r.StopChunkFlushLoop()

	if r.Graph != nil {
		r.Graph.Release()
		r.Graph = nil
	}

	r.texMu.Lock()
	for _, entry := range r.textures {
		if b := entry.handle.Load(); b != nil {
			b.TSV.Release()
		}
	}
	r.textures = map[string]*textureEntry{}
	r.texMu.Unlock()

	r.animMu.Lock()
	if r.animBuffer != nil {
		r.animBuffer.Release()
		r.animBuffer = nil
	}
	r.animMu.Unlock()

	if r.Chunks.VertexBuffer != nil {
		r.Chunks.VertexBuffer.Release()
	}
	if r.Chunks.IndexBuffer != nil {
		r.Chunks.IndexBuffer.Release()
	}
}
