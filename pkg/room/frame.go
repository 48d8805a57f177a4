package room

import (
	"fmt"
	"image"
)

// Frame is one raw video frame in I420 (4:2:0 planar YUV) layout, the format
// the transport delivers.
type Frame struct {
	Width  int
	Height int
	Y      []byte
	Cb     []byte
	Cr     []byte
}

// Validate checks plane sizes against the frame dimensions.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if f.Width%2 != 0 || f.Height%2 != 0 {
		return fmt.Errorf("frame dimensions %dx%d not a multiple of 2", f.Width, f.Height)
	}
	lumaSize := f.Width * f.Height
	chromaSize := lumaSize / 4
	if len(f.Y) != lumaSize {
		return fmt.Errorf("luma plane is %d bytes, want %d", len(f.Y), lumaSize)
	}
	if len(f.Cb) != chromaSize || len(f.Cr) != chromaSize {
		return fmt.Errorf("chroma planes are %d/%d bytes, want %d", len(f.Cb), len(f.Cr), chromaSize)
	}
	return nil
}

// ToImage wraps the planes in an image.YCbCr without copying.
func (f Frame) ToImage() (*image.YCbCr, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &image.YCbCr{
		Y:              f.Y,
		Cb:             f.Cb,
		Cr:             f.Cr,
		YStride:        f.Width,
		CStride:        f.Width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, f.Width, f.Height),
	}, nil
}
