// Package texture wraps GPU textures so they can be referenced by name and
// swapped out at runtime without invalidating the pipeline objects that
// consume them.
package texture

import (
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// SamplerView bundles a texture with the view and sampler a render pass
// binds. Color textures are sampled linearly; depth formats get a
// comparison-free nearest sampler and no upload path.
type SamplerView struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	Sampler *wgpu.Sampler
	Format  wgpu.TextureFormat
	Width   uint32
	Height  uint32
}

// NewSamplerView creates an empty GPU texture of the given size and format.
// Pass pixels to fill it; depth formats must be created empty.
func NewSamplerView(device *wgpu.Device, queue *wgpu.Queue, pixels []byte, width, height uint32, format wgpu.TextureFormat) (*SamplerView, error) {
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if IsDepthFormat(format) {
		usage = wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	}

	extent := wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Texture",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, err
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}

	filter := wgpu.FilterModeLinear
	if IsDepthFormat(format) {
		filter = wgpu.FilterModeNearest
	}
	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return nil, err
	}

	sv := &SamplerView{
		Texture: tex,
		View:    view,
		Sampler: sampler,
		Format:  format,
		Width:   width,
		Height:  height,
	}

	if len(pixels) > 0 && !IsDepthFormat(format) {
		err = queue.WriteTexture(
			tex.AsImageCopy(),
			pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  width * BytesPerPixel(format),
				RowsPerImage: height,
			},
			&extent,
		)
		if err != nil {
			sv.Release()
			return nil, err
		}
	}

	return sv, nil
}

// NewAttachmentView creates a texture a render pass can draw into and a
// later pass can sample. No upload path; the GPU writes the contents.
func NewAttachmentView(device *wgpu.Device, width, height uint32, format wgpu.TextureFormat) (*SamplerView, error) {
	extent := wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Attachment",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, err
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}

	filter := wgpu.FilterModeLinear
	if IsDepthFormat(format) {
		filter = wgpu.FilterModeNearest
	}
	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filter,
		MinFilter:     filter,
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return nil, err
	}

	return &SamplerView{
		Texture: tex,
		View:    view,
		Sampler: sampler,
		Format:  format,
		Width:   width,
		Height:  height,
	}, nil
}

func (sv *SamplerView) Release() {
	if sv.Sampler != nil {
		sv.Sampler.Release()
	}
	if sv.View != nil {
		sv.View.Release()
	}
	if sv.Texture != nil {
		sv.Texture.Release()
	}
}

// Bindable is a texture identified by a stable id, suitable for use as a
// named render-graph resource.
type Bindable struct {
	ID    string
	TSV   *SamplerView
	Depth bool
}

func NewBindable(tsv *SamplerView) *Bindable {
	return &Bindable{
		ID:    uuid.NewString(),
		TSV:   tsv,
		Depth: IsDepthFormat(tsv.Format),
	}
}

// Handle is a swappable reference to a Bindable. Readers on the render
// thread always see a complete texture; writers replace the whole value
// atomically, so a surface resize can rebuild attachments without blocking
// an in-flight frame.
type Handle struct {
	ptr atomic.Pointer[Bindable]
}

func NewHandle(b *Bindable) *Handle {
	h := &Handle{}
	h.ptr.Store(b)
	return h
}

func (h *Handle) Load() *Bindable {
	return h.ptr.Load()
}

func (h *Handle) Store(b *Bindable) {
	h.ptr.Store(b)
}

func IsDepthFormat(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatDepth16Unorm,
		wgpu.TextureFormatDepth24Plus,
		wgpu.TextureFormatDepth24PlusStencil8,
		wgpu.TextureFormatDepth32Float:
		return true
	}
	return false
}

// BytesPerPixel covers the formats the engine uploads; attachment-only
// formats never take the upload path.
func BytesPerPixel(format wgpu.TextureFormat) uint32 {
	switch format {
	case wgpu.TextureFormatR8Unorm, wgpu.TextureFormatR8Uint:
		return 1
	case wgpu.TextureFormatR16Uint, wgpu.TextureFormatR16Float, wgpu.TextureFormatRG8Unorm:
		return 2
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb,
		wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatR32Float, wgpu.TextureFormatR32Uint:
		return 4
	case wgpu.TextureFormatRGBA16Float:
		return 8
	case wgpu.TextureFormatRGBA32Float:
		return 16
	}
	panic("add missing texture format")
}
