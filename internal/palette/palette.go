// Package palette assigns a stable color to each category name.
package palette

import (
	"fmt"
	"math"
	"sync"
)

const (
	saturation = 70
	lightness  = 60
)

// Palette caches the color computed for each category.
type Palette struct {
	mu     sync.Mutex
	colors map[string]string
}

// Colors is the process-wide palette.
var Colors = New()

func New() *Palette {
	return &Palette{colors: make(map[string]string)}
}

// For returns the CSS hsl() color of category.
func (p *Palette) For(category string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.colors[category]; ok {
		return c
	}
	c := fmt.Sprintf("hsl(%d, %d%%, %d%%)", Hue(category), saturation, lightness)
	p.colors[category] = c
	return c
}

// Map returns the colors of every category, in the order given.
func (p *Palette) Map(categories []string) map[string]string {
	out := make(map[string]string, len(categories))
	for _, c := range categories {
		out[c] = p.For(c)
	}
	return out
}

// Hue hashes category with a 31-based rolling hash in 32-bit arithmetic and
// maps it into [0, 360).
func Hue(category string) int {
	var h int32
	for _, r := range category {
		h = h*31 + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % 360)
}

// Hex returns the same color as For, as "rrggbb" without the leading '#'.
func Hex(category string) string {
	r, g, b := hslToRGB(float64(Hue(category)), saturation/100.0, lightness/100.0)
	return fmt.Sprintf("%02x%02x%02x", r, g, b)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return toByte(r + m), toByte(g + m), toByte(b + m)
}

func toByte(v float64) uint8 {
	return uint8(math.Round(v * 255))
}
