package export

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/san-kum/spherique/internal/physics"
)

var (
	bgColor   = color.RGBA{R: 10, G: 10, B: 10, A: 255}
	textColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// Render rasterises the particles at one pixel per world unit and writes
// caption in the top-left corner.
func Render(particles []physics.Particle, bounds physics.Bounds, caption string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(bounds.Width), int(bounds.Height)))
	draw.Draw(img, img.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)

	for i := range particles {
		p := &particles[i]
		if p.IsValid() {
			fillCircle(img, p.Pos.X, p.Pos.Y, p.Radius(), color.RGBA{R: p.Color.R, G: p.Color.G, B: p.Color.B, A: 255})
		}
	}

	if caption != "" {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(textColor),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(10, 20),
		}
		d.DrawString(caption)
	}
	return img
}

func WritePNG(w io.Writer, particles []physics.Particle, bounds physics.Bounds, caption string) error {
	return png.Encode(w, Render(particles, bounds, caption))
}

func fillCircle(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	rect := image.Rect(int(cx-r), int(cy-r), int(cx+r)+1, int(cy+r)+1).Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}
