// Package shp decodes the RA2 multi-frame paletted sprite format and
// renders frames into RGBA images against a pal.Palette.
package shp

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/1siamBot/xccarchive/pal"
	"github.com/1siamBot/xccarchive/xccfmt"
)

// fileHeaderSize is the 8-byte (reserved, width, height, frame_count) file
// header.
const fileHeaderSize = 8

// frameHeaderSize is the 24-byte per-frame header.
const frameHeaderSize = 24

// flagRLE marks a frame's payload as per-row RLE-compressed rather than
// raw palette indices.
const flagRLE = 0x02

// Frame is one entry of a sprite's frame table.
type Frame struct {
	X, Y       uint16
	W, H       uint16
	Flags      uint8
	Color      uint32
	DataOffset uint32
}

// Sprite is a decoded SHP file: its overall dimensions plus a frame
// table. Pixel data is decoded lazily per frame via Pixels.
type Sprite struct {
	Width, Height uint16
	data          []byte
	frames        []Frame
}

// Decode parses a SHP file's 8-byte header and frame table. Frame pixel
// payloads are not decoded until requested via Frame/Pixels, matching the
// format's random-access design (a frame's payload is only reachable by
// seeking to its declared data_offset).
func Decode(data []byte) (*Sprite, error) {
	if len(data) < fileHeaderSize {
		return nil, xccfmt.InvalidFormatf("shp file shorter than header: %d bytes", len(data))
	}

	s := &Sprite{data: data}
	// data[0:2] is the reserved field, always 0; not validated to stay
	// lenient with real-world files that repurpose it.
	s.Width = binary.LittleEndian.Uint16(data[2:4])
	s.Height = binary.LittleEndian.Uint16(data[4:6])
	frameCount := binary.LittleEndian.Uint16(data[6:8])

	need := fileHeaderSize + int(frameCount)*frameHeaderSize
	if len(data) < need {
		return nil, xccfmt.InvalidFormatf("shp frame table exceeds file: need %d bytes, have %d", need, len(data))
	}

	s.frames = make([]Frame, frameCount)
	for i := range s.frames {
		s.frames[i] = readFrameHeader(data, fileHeaderSize+i*frameHeaderSize)
	}
	return s, nil
}

func readFrameHeader(data []byte, off int) Frame {
	return Frame{
		X:          binary.LittleEndian.Uint16(data[off : off+2]),
		Y:          binary.LittleEndian.Uint16(data[off+2 : off+4]),
		W:          binary.LittleEndian.Uint16(data[off+4 : off+6]),
		H:          binary.LittleEndian.Uint16(data[off+6 : off+8]),
		Flags:      data[off+8],
		Color:      binary.LittleEndian.Uint32(data[off+12 : off+16]),
		DataOffset: binary.LittleEndian.Uint32(data[off+20 : off+24]),
	}
}

// FrameCount reports how many frames the sprite has.
func (s *Sprite) FrameCount() int { return len(s.frames) }

// Frame returns a copy of the frame header at index i. Frame headers were
// already parsed by Decode (header i sits at file offset 8 + i*24), so
// this is a bounds-checked accessor rather than a re-seek.
func (s *Sprite) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(s.frames) {
		return nil, xccfmt.OutOfBoundaryf("frame index %d out of range [0,%d)", i, len(s.frames))
	}
	f := s.frames[i]
	return &f, nil
}

// Pixels decodes frame f's payload into w*h palette indices (row-major,
// frame-local coordinates), applying raw or RLE decoding per its flags.
// A frame with DataOffset == 0 is an empty frame: it decodes to an
// all-zero (fully transparent once rendered) buffer at its declared
// dimensions.
func (f *Frame) Pixels(data []byte) ([]byte, error) {
	w, h := int(f.W), int(f.H)
	out := make([]byte, w*h)
	if f.DataOffset == 0 || w == 0 || h == 0 {
		return out, nil
	}

	off := int(f.DataOffset)
	if off >= len(data) {
		return nil, xccfmt.InvalidFormatf("frame data_offset %d exceeds file size %d", off, len(data))
	}

	if f.Flags&flagRLE == 0 {
		n := copy(out, data[off:])
		_ = n // short raw payloads are zero-padded, matching RLE's transparent-pad behavior
		return out, nil
	}
	return decodeRLE(data[off:], w, h)
}

// decodeRLE decodes h rows of w pixels each. Each row begins with a
// row_length (LE u16) that *includes* its own 2 bytes; the remaining
// row_length-2 bytes are control bytes: 0x00 introduces a
// (count byte)-length run of zero (transparent) pixels, any other byte is
// a literal palette index. Rows that decode short are zero-padded to w;
// rows that decode long are truncated to w.
func decodeRLE(data []byte, w, h int) ([]byte, error) {
	out := make([]byte, w*h)
	pos := 0

	for row := 0; row < h; row++ {
		if pos+2 > len(data) {
			return nil, xccfmt.InvalidFormatf("shp row %d: row length header exceeds payload", row)
		}
		rowLen := int(binary.LittleEndian.Uint16(data[pos : pos+2]))
		if rowLen < 2 {
			return nil, xccfmt.InvalidFormatf("shp row %d: row length %d is smaller than its own header", row, rowLen)
		}
		rowEnd := pos + rowLen
		if rowEnd > len(data) {
			rowEnd = len(data)
		}
		p := pos + 2

		x := 0
		dst := out[row*w : row*w+w]
		for p < rowEnd && x < w {
			ctrl := data[p]
			p++
			if ctrl == 0x00 {
				if p >= rowEnd {
					break
				}
				count := int(data[p])
				p++
				x += count // dst already zero-initialized
			} else {
				dst[x] = ctrl
				x++
			}
		}
		pos += rowLen
	}

	return out, nil
}

// RenderFrame decodes frame i and blits it at its declared (x, y) offset
// into an RGBA image sized to the sprite's overall width/height, mapping
// palette index 0 to fully-transparent black and every other index
// through pal's 6-to-8-bit expansion.
func RenderFrame(s *Sprite, i int, p *pal.Palette) (*image.RGBA, error) {
	f, err := s.Frame(i)
	if err != nil {
		return nil, err
	}
	pixels, err := f.Pixels(s.data)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, int(s.Width), int(s.Height)))
	w, h := int(f.W), int(f.H)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := pixels[y*w+x]
			var c color.RGBA
			if idx == 0 {
				c = color.RGBA{}
			} else {
				c, err = p.At(int(idx))
				if err != nil {
					return nil, err
				}
			}
			img.SetRGBA(int(f.X)+x, int(f.Y)+y, c)
		}
	}
	return img, nil
}

// RenderFrameToPNG is a boundary helper encoding RenderFrame's output as
// PNG, the one place this package touches an adjunct image format.
func RenderFrameToPNG(w io.Writer, s *Sprite, i int, p *pal.Palette) error {
	img, err := RenderFrame(s, i, p)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return xccfmt.EncodeErr(err, "encode frame %d as PNG", i)
	}
	return nil
}
