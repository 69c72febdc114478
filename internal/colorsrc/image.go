// Package colorsrc samples particle colours from a picture stretched over the
// world.
package colorsrc

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/san-kum/spherique/internal/physics"
)

// Image is an RGBA copy of a picture resized to the world dimensions.
type Image struct {
	rgba *image.RGBA
}

// Load decodes a JPEG, PNG or GIF file and resizes it to width x height.
func Load(path string, width, height int) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(src, width, height)
}

func FromImage(src image.Image, width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return &Image{rgba: dst}, nil
}

func (im *Image) Bounds() image.Rectangle { return im.rgba.Bounds() }

// Sample implements trace.ColorSource.
func (im *Image) Sample(x, y int) (physics.Color, bool) {
	if !image.Pt(x, y).In(im.rgba.Bounds()) {
		return physics.Color{}, false
	}
	c := im.rgba.RGBAAt(x, y)
	return physics.Color{R: c.R, G: c.G, B: c.B}, true
}
