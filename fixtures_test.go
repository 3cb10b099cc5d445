package jpegr

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"
)

// gradientHDR fills a PQ coded RGBA1010102 image with a horizontal ramp
// that exceeds diffuse white past the first quarter of its width.
func gradientHDR(w, h int) *RawImage {
	img := newRawImage(FormatRGBA1010102, GamutBT2100, TransferPQ, RangeFull, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			lin := float32(x) / float32(w-1) * 4.0
			setRGBA1010102(img, x, y, rgb{
				r: pqInvEotf(lin * sdrWhiteNits / pqMaxNits),
				g: pqInvEotf(lin * 0.8 * sdrWhiteNits / pqMaxNits),
				b: pqInvEotf(lin * 0.6 * sdrWhiteNits / pqMaxNits),
			})
		}
	}
	return img
}

// minimalExif is a valid zero-entry TIFF wrapped in the Exif APP1 prefix.
var minimalExif = []byte("Exif\x00\x00MM\x00*\x00\x00\x00\x08\x00\x00\x00\x00\x00\x00")

// encodeTestContainer produces an UltraHDR container through the encoder
// session from a synthetic HDR gradient.
func encodeTestContainer(t *testing.T, w, h int, configure ...func(*Encoder)) []byte {
	t.Helper()
	enc := NewEncoder()
	if err := enc.SetRawImage(gradientHDR(w, h), IntentHDR); err != nil {
		t.Fatalf("set raw hdr: %v", err)
	}
	for _, fn := range configure {
		fn(enc)
	}
	if err := enc.Encode(); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := enc.Output()
	if out == nil || len(out.Data) == 0 {
		t.Fatalf("encode output missing")
	}
	return out.Data
}

// gradientRGBA returns a plain SDR gradient for JPEG synthesis.
func gradientRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / (w - 1)),
				G: uint8(y * 255 / (h - 1)),
				B: uint8((x + y) * 255 / (w + h - 2)),
				A: 0xFF,
			})
		}
	}
	return img
}

// synthPlainJPEG encodes a gradient as a baseline JPEG, optionally carrying
// an EXIF APP1 segment.
func synthPlainJPEG(t *testing.T, w, h int, withExif bool) []byte {
	t.Helper()
	data, err := encodeWithQuality(gradientRGBA(w, h), 90)
	if err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if withExif {
		data, err = insertAppSegments(data, []appSegment{{marker: markerAPP1, payload: minimalExif}})
		if err != nil {
			t.Fatalf("insert exif: %v", err)
		}
	}
	return data
}

// synthEXR builds a single-part scanline OpenEXR stream with uncompressed
// float B, G, R channels. Pixel values are value(x, y, channel) so decoded
// planes can be checked exactly.
func synthEXR(w, h int, value func(x, y, ch int) float32) []byte {
	var buf bytes.Buffer
	u32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	u64 := func(v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
	attr := func(name, typ string, payload []byte) {
		buf.WriteString(name)
		buf.WriteByte(0)
		buf.WriteString(typ)
		buf.WriteByte(0)
		u32(uint32(len(payload)))
		buf.Write(payload)
	}

	u32(exrMagic)
	u32(2)

	var ch bytes.Buffer
	for _, name := range []string{"B", "G", "R"} {
		ch.WriteString(name)
		ch.WriteByte(0)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], exrPixelFloat)
		ch.Write(b[:])
		ch.Write([]byte{0, 0, 0, 0}) // pLinear + reserved
		binary.LittleEndian.PutUint32(b[:], 1)
		ch.Write(b[:]) // xSampling
		ch.Write(b[:]) // ySampling
	}
	ch.WriteByte(0)
	attr("channels", "chlist", ch.Bytes())

	attr("compression", "compression", []byte{exrCompressionNone})

	var dw [16]byte
	binary.LittleEndian.PutUint32(dw[8:12], uint32(w-1))
	binary.LittleEndian.PutUint32(dw[12:16], uint32(h-1))
	attr("dataWindow", "box2i", dw[:])
	attr("displayWindow", "box2i", dw[:])

	buf.WriteByte(0)

	rowBytes := 3 * w * 4
	blockBytes := 8 + rowBytes
	dataStart := buf.Len() + 8*h
	for y := 0; y < h; y++ {
		u64(uint64(dataStart + y*blockBytes))
	}
	for y := 0; y < h; y++ {
		u32(uint32(y))
		u32(uint32(rowBytes))
		for _, chIdx := range []int{2, 1, 0} { // chlist order: B, G, R
			for x := 0; x < w; x++ {
				u32(math.Float32bits(value(x, y, chIdx)))
			}
		}
	}
	return buf.Bytes()
}
