package jpegr

import (
	"encoding/binary"
	"errors"
)

// RawFromHDR converts a linear HDRImage (1.0 meaning diffuse white) into a
// PQ coded RGBA1010102 raw image accepted by Encoder.SetRawImage with
// IntentHDR. Odd trailing rows and columns are dropped so the derived SDR
// rendition can carry 4:2:0 chroma.
func RawFromHDR(h *HDRImage) *RawImage {
	w := h.W &^ 1
	ht := h.H &^ 1
	out := newRawImage(FormatRGBA1010102, GamutBT2100, TransferPQ, RangeFull, w, ht)
	const scale = sdrWhiteNits / pqMaxNits
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			v := h.At(x, y)
			setRGBA1010102(out, x, y, rgb{
				r: pqInvEotf(clampf(v.r*scale, 0, 1)),
				g: pqInvEotf(clampf(v.g*scale, 0, 1)),
				b: pqInvEotf(clampf(v.b*scale, 0, 1)),
			})
		}
	}
	return out
}

// HDRFromRaw converts a linear RGBAF16 raw image, such as a decode result
// produced with the default linear output transfer, into an HDRImage.
func HDRFromRaw(img *RawImage) (*HDRImage, error) {
	if img == nil {
		return nil, errors.New("raw image is nil")
	}
	if img.Format != FormatRGBAF16 {
		return nil, errors.New("expects an rgba half float image")
	}
	out := &HDRImage{W: img.Width, H: img.Height, Pix: make([]float32, img.Width*img.Height*3)}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			off := (y*img.Strides[0] + x) * 8
			i := (y*img.Width + x) * 3
			out.Pix[i] = halfToFloat32(binary.LittleEndian.Uint16(img.Planes[0][off:]))
			out.Pix[i+1] = halfToFloat32(binary.LittleEndian.Uint16(img.Planes[0][off+2:]))
			out.Pix[i+2] = halfToFloat32(binary.LittleEndian.Uint16(img.Planes[0][off+4:]))
		}
	}
	return out, nil
}
