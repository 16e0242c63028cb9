// Package iconfactory renders source images into cache-ready icons: scaled
// to the configured size, badged for the owning profile, with a tint color
// and a monochrome variant, PNG-encoded.
package iconfactory

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/roach88/iconcache/internal/model"
)

// BadgeOptions describes how an icon must be decorated for its profile.
type BadgeOptions struct {
	User    model.UserHandle
	Managed bool
	Instant bool
}

// Colors used by the factory.
var (
	defaultIconColor = color.RGBA{R: 0x9E, G: 0x9E, B: 0x9E, A: 0xFF}
	workBadgeColor   = color.RGBA{R: 0xF5, G: 0x7C, B: 0x00, A: 0xFF}
	instantDotColor  = color.RGBA{R: 0x1A, G: 0x73, B: 0xE8, A: 0xFF}
)

// Factory renders icons at a fixed pixel size and density.
type Factory struct {
	pixelSize int
	dpi       int
}

// New returns a factory. pixelSize must be positive.
func New(pixelSize, dpi int) *Factory {
	if pixelSize <= 0 {
		pixelSize = 1
	}
	if dpi <= 0 {
		dpi = 160
	}
	return &Factory{pixelSize: pixelSize, dpi: dpi}
}

// PixelSize returns the edge length of produced icons.
func (f *Factory) PixelSize() int {
	return f.pixelSize
}

// DPI returns the density the factory renders for.
func (f *Factory) DPI() int {
	return f.dpi
}

// CreateBadgedIcon scales src, applies profile badges and encodes the
// result.
func (f *Factory) CreateBadgedIcon(src image.Image, opts BadgeOptions) (*model.BitmapInfo, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("create icon: empty source image")
	}

	size := f.pixelSize
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	tint := dominantColor(dst)

	var flags int32
	if opts.Managed {
		f.drawBadge(dst, workBadgeColor, false)
		flags |= model.FlagWorkBadge
	}
	if opts.Instant {
		f.drawBadge(dst, instantDotColor, true)
		flags |= model.FlagInstant
	}

	icon, err := encodePNG(dst)
	if err != nil {
		return nil, fmt.Errorf("create icon: %w", err)
	}

	gray := image.NewGray(dst.Bounds())
	draw.Draw(gray, gray.Bounds(), dst, image.Point{}, draw.Src)
	mono, err := encodePNG(gray)
	if err != nil {
		return nil, fmt.Errorf("create mono icon: %w", err)
	}

	return &model.BitmapInfo{Icon: icon, Mono: mono, Color: tint, Flags: flags}, nil
}

// MakeDefaultIcon renders the placeholder shown when no icon can be
// resolved. Output is deterministic for a given size and options.
func (f *Factory) MakeDefaultIcon(opts BadgeOptions) *model.BitmapInfo {
	src := image.NewUniform(defaultIconColor)
	bounded := &boundedImage{Uniform: src, rect: image.Rect(0, 0, f.pixelSize, f.pixelSize)}

	info, err := f.CreateBadgedIcon(bounded, opts)
	if err != nil {
		// Unreachable for an in-memory image; a colored placeholder is never nil.
		return model.NewLowRes(packColor(defaultIconColor))
	}
	return info
}

// drawBadge paints a square badge in the bottom-right corner, or a dot in
// the bottom-left for instant apps.
func (f *Factory) drawBadge(dst *image.RGBA, c color.RGBA, left bool) {
	inset := max(1, f.dpi/160)
	edge := max(1, f.pixelSize/4)
	x0 := f.pixelSize - edge - inset
	if left {
		x0 = inset
	}
	y0 := f.pixelSize - edge - inset
	rect := image.Rect(x0, y0, x0+edge, y0+edge).Intersect(dst.Bounds())
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// ValidateIcon checks that b is a PNG without decoding the pixels.
func ValidateIcon(b []byte) error {
	if _, err := png.DecodeConfig(bytes.NewReader(b)); err != nil {
		return fmt.Errorf("validate icon: %w", err)
	}
	return nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// dominantColor averages the opaque pixels into a packed ARGB tint.
func dominantColor(img *image.RGBA) int32 {
	var r, g, b, n uint64
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.A < 0x80 {
				continue
			}
			r += uint64(c.R)
			g += uint64(c.G)
			b += uint64(c.B)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return packColor(color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 0xFF})
}

// packColor packs c as 0xAARRGGBB.
func packColor(c color.RGBA) int32 {
	return int32(uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B))
}

// boundedImage gives an image.Uniform finite bounds.
type boundedImage struct {
	*image.Uniform
	rect image.Rectangle
}

func (b *boundedImage) Bounds() image.Rectangle {
	return b.rect
}
