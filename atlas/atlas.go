// Package atlas packs many small block textures into one large GPU texture,
// handing out stable pixel rectangles and animation frame offsets.
package atlas

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"golang.org/x/image/draw"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/strata3d/strata/resource"
	"github.com/strata3d/strata/texture"
)

// Size is the width and height of the atlas backing image in pixels.
const Size = 2048

// UV is the pixel rectangle assigned to one texture within the atlas.
type UV struct {
	X0, Y0 uint16
	X1, Y1 uint16
}

// Entry is one raw image queued for allocation.
type Entry struct {
	Path resource.Path
	Data []byte
}

// Atlas packs textures into a single backing image using shelf packing.
// Reads never observe a partially written allocation: the whole batch is
// placed under the write lock, and lookups take the read lock.
type Atlas struct {
	mu sync.RWMutex

	img        *image.RGBA
	uv         map[resource.Path]UV
	animated   map[resource.Path]uint32
	generation uint64

	// shelf packer cursor
	cursorX int
	cursorY int
	shelfH  int
}

func New() *Atlas {
	return &Atlas{
		img:      image.NewRGBA(image.Rect(0, 0, Size, Size)),
		uv:       map[resource.Path]UV{},
		animated: map[resource.Path]uint32{},
	}
}

// Allocate packs every not-yet-present entry into the atlas and assigns it
// a UV rectangle. Entries already allocated are skipped, so re-allocating
// the same batch is a no-op.
func (a *Atlas) Allocate(entries []Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Entries placed before a failure stay placed, so the generation must
	// advance even on the error path.
	placed := 0
	defer func() {
		if placed > 0 {
			a.generation++
		}
	}()

	for _, entry := range entries {
		if _, ok := a.uv[entry.Path]; ok {
			continue
		}

		img, err := png.Decode(bytes.NewReader(entry.Data))
		if err != nil {
			return fmt.Errorf("decode texture %s: %w", entry.Path, err)
		}

		uv, err := a.place(img)
		if err != nil {
			return fmt.Errorf("allocate texture %s: %w", entry.Path, err)
		}
		a.uv[entry.Path] = uv
		placed++
	}
	return nil
}

// place finds a spot for an image on the current shelf, opening a new shelf
// when the row is full, and blits the pixels into the backing image.
func (a *Atlas) place(img image.Image) (UV, error) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	if a.cursorX+w > Size {
		a.cursorX = 0
		a.cursorY += a.shelfH
		a.shelfH = 0
	}
	if a.cursorY+h > Size || w > Size {
		return UV{}, fmt.Errorf("atlas full (%dx%d image at row %d)", w, h, a.cursorY)
	}

	dst := image.Rect(a.cursorX, a.cursorY, a.cursorX+w, a.cursorY+h)
	draw.Draw(a.img, dst, img, img.Bounds().Min, draw.Src)

	uv := UV{
		X0: uint16(a.cursorX),
		Y0: uint16(a.cursorY),
		X1: uint16(a.cursorX + w),
		Y1: uint16(a.cursorY + h),
	}

	a.cursorX += w
	if h > a.shelfH {
		a.shelfH = h
	}
	return uv, nil
}

// UV returns the rectangle last assigned to a texture path.
func (a *Atlas) UV(path resource.Path) (UV, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	uv, ok := a.uv[path]
	return uv, ok
}

// Contains reports whether the path has been allocated.
func (a *Atlas) Contains(path resource.Path) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.uv[path]
	return ok
}

// RegisterAnimation records the frame offset a shader uses to index a
// texture's frames in the animation lookup buffer.
func (a *Atlas) RegisterAnimation(path resource.Path, offset uint32) {
	a.mu.Lock()
	a.animated[path] = offset
	a.mu.Unlock()
}

// AnimationOffset returns the registered frame offset, or 0 for static
// textures.
func (a *Atlas) AnimationOffset(path resource.Path) uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.animated[path]
}

// Generation increments whenever allocation changes any UV assignment.
// Cached meshes baked against an older generation are stale.
func (a *Atlas) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

// Upload copies the backing image to a fresh GPU texture.
func (a *Atlas) Upload(device *wgpu.Device, queue *wgpu.Queue) (*texture.SamplerView, error) {
	a.mu.RLock()
	pixels := make([]byte, len(a.img.Pix))
	copy(pixels, a.img.Pix)
	a.mu.RUnlock()

	return texture.NewSamplerView(device, queue, pixels, Size, Size, wgpu.TextureFormatRGBA8Unorm)
}
