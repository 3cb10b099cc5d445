package jpegr

import (
	"errors"
	"image"
	"image/color"
	"io"

	mhdr "github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
)

// DecodeRadianceHDR decodes a Radiance RGBE (.hdr) stream into a linear
// HDRImage. Values keep the file's absolute scale, 1.0 meaning diffuse
// white.
func DecodeRadianceHDR(r io.Reader) (*HDRImage, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	h, ok := img.(mhdr.Image)
	if !ok {
		return nil, errors.New("not a radiance image")
	}
	b := h.Bounds()
	w, ht := b.Dx(), b.Dy()
	out := &HDRImage{W: w, H: ht, Pix: make([]float32, w*ht*3)}
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			pr, pg, pb, _ := h.HDRAt(b.Min.X+x, b.Min.Y+y).HDRRGBA()
			i := (y*w + x) * 3
			out.Pix[i] = float32(pr)
			out.Pix[i+1] = float32(pg)
			out.Pix[i+2] = float32(pb)
		}
	}
	return out, nil
}

// hdrImageAdapter presents an HDRImage through the hdr.Image interface so
// the rgbe codec can serialize it.
type hdrImageAdapter struct {
	h *HDRImage
}

func (a hdrImageAdapter) ColorModel() color.Model { return hdrcolor.RGBModel }

func (a hdrImageAdapter) Bounds() image.Rectangle { return image.Rect(0, 0, a.h.W, a.h.H) }

func (a hdrImageAdapter) At(x, y int) color.Color { return a.HDRAt(x, y) }

func (a hdrImageAdapter) HDRAt(x, y int) hdrcolor.Color {
	v := a.h.At(x, y)
	return hdrcolor.RGB{R: float64(v.r), G: float64(v.g), B: float64(v.b)}
}

func (a hdrImageAdapter) Size() int { return a.h.W * a.h.H }

// EncodeRadianceHDR writes img as a Radiance RGBE (.hdr) stream.
func EncodeRadianceHDR(w io.Writer, img *HDRImage) error {
	return rgbe.Encode(w, hdrImageAdapter{h: img})
}
