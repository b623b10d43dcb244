package pal

import (
	"image/color"
	"testing"
)

func TestDecodeRejectsWrongSize(t *testing.T) {
	for _, n := range []int{0, 767, 769, Size * 2} {
		if n == Size {
			continue
		}
		if _, err := Decode(make([]byte, n)); err == nil {
			t.Fatalf("Decode(%d bytes) = nil error, want InvalidFormat", n)
		}
	}
}

func TestDecodeAccepts768(t *testing.T) {
	data := make([]byte, Size)
	data[0], data[1], data[2] = 63, 32, 0 // index 0: orange, not transparent at the palette level
	p, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	c, err := p.At(0)
	if err != nil {
		t.Fatalf("At(0): %v", err)
	}
	want := color.RGBA{R: expand(63), G: expand(32), B: expand(0), A: 255}
	if c != want {
		t.Fatalf("At(0) = %+v, want %+v", c, want)
	}
}

func TestChannelExpansion(t *testing.T) {
	data := make([]byte, Size)
	data[3*10+0] = 63
	data[3*10+1] = 32
	data[3*10+2] = 1
	p, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	c, err := p.At(10)
	if err != nil {
		t.Fatalf("At(10): %v", err)
	}
	if c.R != 255 {
		t.Fatalf("channel 63 should expand to 255, got %d", c.R)
	}
	if c.A != 255 {
		t.Fatalf("palette colors always carry alpha 255, got %d", c.A)
	}
}

func TestAtOutOfRange(t *testing.T) {
	p, _ := Decode(make([]byte, Size))
	if _, err := p.At(-1); err == nil {
		t.Fatal("At(-1) should fail with OutOfBoundary")
	}
	if _, err := p.At(256); err == nil {
		t.Fatal("At(256) should fail with OutOfBoundary")
	}
}
