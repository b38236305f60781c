// Package graph runs a configurable sequence of render passes. A shader
// pack manifest names the passes, their WGSL shaders, and the resources
// they consume; the host binds backings for those names before Init.
package graph

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/strata3d/strata/resource"
	"github.com/strata3d/strata/texture"
)

var (
	ErrInitialized    = errors.New("render graph already initialized")
	ErrNotInitialized = errors.New("render graph not initialized")
)

// Geometry is anything a pass can draw. Layouts describes the vertex
// buffers Draw will bind; it is consulted once at pipeline creation.
type Geometry interface {
	Layouts() []wgpu.VertexBufferLayout
	Draw(pass *wgpu.RenderPassEncoder)
}

// ShaderPath maps a shader name from the manifest to its provider path.
func ShaderPath(name string) resource.Path {
	return resource.Path("shaders/" + name + ".wgsl")
}

type passBinding struct {
	name     string
	resource *Resource
	group    *wgpu.BindGroup
	// bindable is the texture snapshot the group was built from; a swap of
	// the handle invalidates the group.
	bindable *texture.Bindable
}

type compiledPass struct {
	cfg      PassConfig
	pipeline *wgpu.RenderPipeline
	bindings []*passBinding
	geometry Geometry
}

// Graph owns the compiled passes of one shader pack.
type Graph struct {
	config     *Config
	registry   *Registry
	geometries map[string]Geometry

	device *wgpu.Device
	queue  *wgpu.Queue
	passes []*compiledPass

	initialized bool
}

func New(config *Config, registry *Registry) *Graph {
	return &Graph{
		config:     config,
		registry:   registry,
		geometries: map[string]Geometry{},
	}
}

// BindGeometry registers the drawable a pass's geometry name resolves to.
// Must happen before Init.
func (g *Graph) BindGeometry(name string, geom Geometry) {
	g.geometries[name] = geom
}

// Registry returns the resource registry the graph resolves names against.
func (g *Graph) Registry() *Registry {
	return g.registry
}

// Init compiles every pass: loads its shader from the provider, builds its
// pipeline against the bound geometry's vertex layouts, and creates the
// bind groups for its resources. Init runs exactly once.
func (g *Graph) Init(device *wgpu.Device, queue *wgpu.Queue, surfaceFormat wgpu.TextureFormat, provider resource.Provider) error {
	if g.initialized {
		return ErrInitialized
	}

	g.device = device
	g.queue = queue

	backings := g.registry.snapshot()

	for _, cfg := range g.config.Passes {
		var geom Geometry
		if cfg.Geometry != "" {
			var ok bool
			geom, ok = g.geometries[cfg.Geometry]
			if !ok {
				return fmt.Errorf("pass %s: no geometry bound for %q", cfg.Name, cfg.Geometry)
			}
		}

		code, err := provider.GetString(ShaderPath(cfg.Shader))
		if err != nil {
			return fmt.Errorf("pass %s: %w", cfg.Name, err)
		}

		bindings := make([]*passBinding, 0, len(cfg.Resources))
		for _, name := range cfg.Resources {
			backing, ok := backings[name]
			if !ok {
				return fmt.Errorf("pass %s: no backing bound for resource %q", cfg.Name, name)
			}
			if backing.Matrix != nil {
				if err := backing.Matrix.ensureBuffer(device, name); err != nil {
					return fmt.Errorf("pass %s: %w", cfg.Name, err)
				}
			}
			bindings = append(bindings, &passBinding{name: name, resource: backing})
		}

		var depthFormat wgpu.TextureFormat
		if cfg.Depth != "" {
			backing, ok := backings[cfg.Depth]
			if !ok || backing.Texture == nil {
				return fmt.Errorf("pass %s: no texture bound for depth %q", cfg.Name, cfg.Depth)
			}
			bindable := backing.Texture.Load()
			if bindable == nil {
				return fmt.Errorf("pass %s: depth texture %q has no backing yet", cfg.Name, cfg.Depth)
			}
			depthFormat = bindable.TSV.Format
		}

		outputFormat := surfaceFormat
		if cfg.Output != FramebufferTarget {
			backing, ok := backings[cfg.Output]
			if !ok || backing.Texture == nil {
				return fmt.Errorf("pass %s: no texture bound for output %q", cfg.Name, cfg.Output)
			}
			bindable := backing.Texture.Load()
			if bindable == nil {
				return fmt.Errorf("pass %s: output texture %q has no backing yet", cfg.Name, cfg.Output)
			}
			outputFormat = bindable.TSV.Format
		}

		pipeline, err := g.createPipeline(cfg, code, geom, outputFormat, depthFormat)
		if err != nil {
			return fmt.Errorf("pass %s: %w", cfg.Name, err)
		}

		compiled := &compiledPass{
			cfg:      cfg,
			pipeline: pipeline,
			bindings: bindings,
			geometry: geom,
		}
		for i, b := range compiled.bindings {
			if err := g.buildBindGroup(compiled, uint32(i), b); err != nil {
				return fmt.Errorf("pass %s: %w", cfg.Name, err)
			}
		}

		g.passes = append(g.passes, compiled)
	}

	g.initialized = true
	return nil
}

func (g *Graph) createPipeline(cfg PassConfig, code string, geom Geometry, outputFormat, depthFormat wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	shader, err := g.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          cfg.Shader,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("compile shader %s: %w", cfg.Shader, err)
	}
	defer shader.Release()

	var buffers []wgpu.VertexBufferLayout
	if geom != nil {
		buffers = geom.Layouts()
	}

	var depthStencil *wgpu.DepthStencilState
	if cfg.Depth != "" {
		depthStencil = &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	return g.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: cfg.Name,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    outputFormat,
					Blend:     nil,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: depthStencil,
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
}

// buildBindGroup creates the bind group for resource slot `index` of the
// pass. Each resource occupies its own group; textures expose the view at
// binding 0 and the sampler at binding 1.
func (g *Graph) buildBindGroup(pass *compiledPass, index uint32, b *passBinding) error {
	var entries []wgpu.BindGroupEntry

	switch {
	case b.resource.Matrix != nil:
		b.bindable = nil
		entries = []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.resource.Matrix.buffer, Size: wgpu.WholeSize},
		}
	case b.resource.Buffer != nil:
		b.bindable = nil
		entries = []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.resource.Buffer, Size: wgpu.WholeSize},
		}
	case b.resource.Texture != nil:
		bindable := b.resource.Texture.Load()
		if bindable == nil {
			return fmt.Errorf("texture resource %q has no backing yet", b.name)
		}
		b.bindable = bindable
		entries = []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: bindable.TSV.View, Size: wgpu.WholeSize},
			{Binding: 1, Sampler: bindable.TSV.Sampler, Size: wgpu.WholeSize},
		}
	default:
		return fmt.Errorf("resource %q has no backing", b.name)
	}

	label := b.name
	if b.bindable != nil {
		// The bindable id distinguishes rebuilt groups of the same name
		// in captures.
		label = b.name + " " + b.bindable.ID
	}

	layout := pass.pipeline.GetBindGroupLayout(index)
	defer layout.Release()

	group, err := g.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("bind group %q: %w", b.name, err)
	}

	if b.group != nil {
		b.group.Release()
	}
	b.group = group
	return nil
}

// bindableChanged reports whether a handle now holds a different texture
// than the bind group was built from, by bindable identity.
func bindableChanged(built, current *texture.Bindable) bool {
	if built == nil || current == nil {
		return built != current
	}
	return built.ID != current.ID
}

// refreshBindGroups rebuilds any bind group whose backing moved since the
// group was built: a registry rebind of the resource name, or a swap of a
// texture handle's contents.
func (g *Graph) refreshBindGroups() error {
	for _, pass := range g.passes {
		for i, b := range pass.bindings {
			current := g.registry.Get(b.name)
			if current == nil {
				return fmt.Errorf("pass %s: resource %q was unbound", pass.cfg.Name, b.name)
			}

			if current == b.resource {
				if current.Texture == nil || !bindableChanged(b.bindable, current.Texture.Load()) {
					continue
				}
			} else {
				b.resource = current
				if current.Matrix != nil {
					if err := current.Matrix.ensureBuffer(g.device, b.name); err != nil {
						return fmt.Errorf("pass %s: %w", pass.cfg.Name, err)
					}
				}
			}

			if err := g.buildBindGroup(pass, uint32(i), b); err != nil {
				return fmt.Errorf("pass %s: %w", pass.cfg.Name, err)
			}
		}
	}
	return nil
}

// flushMatrices uploads every dirty matrix before the passes sample them.
func (g *Graph) flushMatrices() error {
	seen := map[*Matrix4]bool{}
	for _, pass := range g.passes {
		for _, b := range pass.bindings {
			m := b.resource.Matrix
			if m == nil || seen[m] {
				continue
			}
			seen[m] = true
			if err := m.flush(g.queue); err != nil {
				return fmt.Errorf("upload matrix %q: %w", b.name, err)
			}
		}
	}
	return nil
}

// colorAttachment builds the color attachment of one pass. Clearing passes
// fill with clearColor; the rest load what the previous pass stored.
func colorAttachment(view *wgpu.TextureView, clear bool, clearColor wgpu.Color) wgpu.RenderPassColorAttachment {
	loadOp := wgpu.LoadOpLoad
	if clear {
		loadOp = wgpu.LoadOpClear
	}
	return wgpu.RenderPassColorAttachment{
		View:       view,
		LoadOp:     loadOp,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: clearColor,
	}
}

// Render records every pass into the encoder, in manifest order. The
// surface view backs the "@framebuffer" output; clearColor fills the color
// attachment of every pass with the clear flag set.
func (g *Graph) Render(encoder *wgpu.CommandEncoder, surfaceView *wgpu.TextureView, clearColor wgpu.Color) error {
	if !g.initialized {
		return ErrNotInitialized
	}

	if err := g.refreshBindGroups(); err != nil {
		return err
	}
	if err := g.flushMatrices(); err != nil {
		return err
	}

	for _, pass := range g.passes {
		colorView := surfaceView
		if pass.cfg.Output != FramebufferTarget {
			bindable := g.registry.Get(pass.cfg.Output).Texture.Load()
			if bindable == nil {
				return fmt.Errorf("pass %s: output %q has no backing", pass.cfg.Name, pass.cfg.Output)
			}
			colorView = bindable.TSV.View
		}

		var depthAttachment *wgpu.RenderPassDepthStencilAttachment
		if pass.cfg.Depth != "" {
			bindable := g.registry.Get(pass.cfg.Depth).Texture.Load()
			if bindable == nil {
				return fmt.Errorf("pass %s: depth %q has no backing", pass.cfg.Name, pass.cfg.Depth)
			}
			depthLoadOp := wgpu.LoadOpLoad
			if pass.cfg.Clear {
				depthLoadOp = wgpu.LoadOpClear
			}
			depthAttachment = &wgpu.RenderPassDepthStencilAttachment{
				View:            bindable.TSV.View,
				DepthLoadOp:     depthLoadOp,
				DepthStoreOp:    wgpu.StoreOpStore,
				DepthClearValue: 1.0,
			}
		}

		rpass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			Label: pass.cfg.Name,
			ColorAttachments: []wgpu.RenderPassColorAttachment{
				colorAttachment(colorView, pass.cfg.Clear, clearColor),
			},
			DepthStencilAttachment: depthAttachment,
		})

		rpass.SetPipeline(pass.pipeline)
		for i, b := range pass.bindings {
			rpass.SetBindGroup(uint32(i), b.group, nil)
		}

		if pass.geometry != nil {
			pass.geometry.Draw(rpass)
		} else {
			// Fullscreen passes synthesize a triangle in the shader.
			rpass.Draw(3, 1, 0, 0)
		}

		err := rpass.End()
		rpass.Release()
		if err != nil {
			return fmt.Errorf("pass %s: %w", pass.cfg.Name, err)
		}
	}

	return nil
}

// Release frees the compiled pipelines and bind groups.
func (g *Graph) Release() {
	for _, pass := range g.passes {
		for _, b := range pass.bindings {
			if b.group != nil {
				b.group.Release()
			}
		}
		if pass.pipeline != nil {
			pass.pipeline.Release()
		}
	}
	g.passes = nil
}
