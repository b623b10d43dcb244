// Package pal decodes the RA2 PAL palette format: a fixed 768-byte table
// of 256 (r, g, b) triples, each channel a 6-bit value stored in a byte.
package pal

import (
	"image/color"

	"github.com/1siamBot/xccarchive/xccfmt"
)

// Size is the only valid byte length of a PAL file.
const Size = 256 * 3

// Entries is the number of colors a palette holds.
const Entries = 256

// Palette is a decoded 256-color, 6-bit-per-channel palette.
type Palette struct {
	raw [Size]byte
}

// Decode parses exactly Size bytes into a Palette. Any other length is
// InvalidFormat.
func Decode(data []byte) (*Palette, error) {
	if len(data) != Size {
		return nil, xccfmt.InvalidFormatf("palette must be %d bytes, got %d", Size, len(data))
	}
	p := &Palette{}
	copy(p.raw[:], data)
	return p, nil
}

// Raw returns the channel triple (each 0..63) at index i without 8-bit
// expansion.
func (p *Palette) Raw(i int) (r, g, b byte, err error) {
	if i < 0 || i >= Entries {
		return 0, 0, 0, xccfmt.OutOfBoundaryf("palette index %d out of range [0,%d)", i, Entries)
	}
	return p.raw[i*3], p.raw[i*3+1], p.raw[i*3+2], nil
}

// At returns the RGBA color for index i, scaling each 6-bit channel to
// 8 bits via channel*255/63, with alpha always 255. Index 0 carries no
// special meaning here; transparency is a rendering-boundary convention
// (see package shp), not a palette property.
func (p *Palette) At(i int) (color.RGBA, error) {
	r, g, b, err := p.Raw(i)
	if err != nil {
		return color.RGBA{}, err
	}
	return color.RGBA{R: expand(r), G: expand(g), B: expand(b), A: 255}, nil
}

// Colors returns the full palette expanded to RGBA.
func (p *Palette) Colors() [Entries]color.RGBA {
	var out [Entries]color.RGBA
	for i := 0; i < Entries; i++ {
		out[i], _ = p.At(i)
	}
	return out
}

func expand(channel byte) byte {
	return byte(uint16(channel) * 255 / 63)
}
