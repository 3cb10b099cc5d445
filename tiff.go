package jpegr

import (
	"bytes"
	"errors"
	"image"

	_ "golang.org/x/image/tiff" // register the TIFF decoder
)

// DecodeTIFFHDR reads a TIFF image into a linear HDRImage. Integer TIFFs
// come out normalized to [0, 1]; tone scaling is left to the caller.
func DecodeTIFFHDR(data []byte) (*HDRImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.New("invalid TIFF dimensions")
	}
	out := &HDRImage{W: w, H: h, Pix: make([]float32, w*h*3)}
	const scale = 1.0 / 65535.0
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out.Pix[i] = float32(r) * scale
			out.Pix[i+1] = float32(g) * scale
			out.Pix[i+2] = float32(bl) * scale
			i += 3
		}
	}
	return out, nil
}
