package registry

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// sourceIconSize is the edge of synthesized source icons. The factory
// rescales them to the cache's pixel size.
const sourceIconSize = 64

type parsedIcon struct {
	color  color.RGBA
	circle bool
}

func (s IconSpec) parse() (parsedIcon, error) {
	hex, ok := strings.CutPrefix(s.Color, "#")
	if !ok || len(hex) != 6 {
		return parsedIcon{}, fmt.Errorf("icon color %q: want #RRGGBB", s.Color)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return parsedIcon{}, fmt.Errorf("icon color %q: %w", s.Color, err)
	}

	p := parsedIcon{color: color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}}
	switch s.Shape {
	case "", "square":
	case "circle":
		p.circle = true
	default:
		return parsedIcon{}, fmt.Errorf("icon shape %q: want square or circle", s.Shape)
	}
	return p, nil
}

// render draws the icon. Pixels outside a circle are transparent.
func (p parsedIcon) render() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, sourceIconSize, sourceIconSize))
	r := sourceIconSize / 2
	for y := 0; y < sourceIconSize; y++ {
		for x := 0; x < sourceIconSize; x++ {
			if p.circle {
				dx, dy := x-r, y-r
				if dx*dx+dy*dy > r*r {
					continue
				}
			}
			img.SetRGBA(x, y, p.color)
		}
	}
	return img
}

// renderIcon renders spec, falling back to def when spec is nil.
func renderIcon(spec *IconSpec, def IconSpec) (image.Image, error) {
	if spec == nil {
		spec = &def
	}
	p, err := spec.parse()
	if err != nil {
		return nil, err
	}
	return p.render(), nil
}
