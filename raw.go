package jpegr

// RawImage is an uncompressed image held by a session. Planes are views into
// a single session-owned allocation; Strides are in pixels, not bytes.
//
// Plane layout per format:
//
//	FormatYCbCr420    Y, Cb, Cr
//	FormatP010        Y (uint16), interleaved CbCr (uint16 pairs)
//	FormatRGBA8888    packed, 4 bytes per pixel
//	FormatRGBA1010102 packed, 4 bytes per pixel, little-endian uint32
//	FormatRGBAF16     packed, 8 bytes per pixel
//	FormatGray8       single plane
type RawImage struct {
	Format   ImageFormat
	Gamut    ColorGamut
	Transfer ColorTransfer
	Range    ColorRange
	Width    int
	Height   int
	Planes   [3][]byte
	Strides  [3]int
}

// CompressedImage is an encoded bitstream held by a session. Capacity, when
// non-zero, declares the size of the caller's backing allocation.
type CompressedImage struct {
	Data     []byte
	Capacity int
	Gamut    ColorGamut
	Transfer ColorTransfer
	Range    ColorRange
}

func (c *CompressedImage) clone() *CompressedImage {
	out := *c
	out.Data = append([]byte(nil), c.Data...)
	out.Capacity = len(out.Data)
	return &out
}

// planeCount reports how many planes a format carries.
func planeCount(f ImageFormat) int {
	switch f {
	case FormatYCbCr420:
		return 3
	case FormatP010:
		return 2
	default:
		return 1
	}
}

// bytesPerSample reports the byte width of one sample in a plane.
func bytesPerSample(f ImageFormat) int {
	switch f {
	case FormatP010:
		return 2
	case FormatRGBA8888, FormatRGBA1010102:
		return 4
	case FormatRGBAF16:
		return 8
	default:
		return 1
	}
}

// planeDims reports the sample dimensions of plane i. For P010 the chroma
// plane counts CbCr pairs per row as width samples times two.
func planeDims(f ImageFormat, i, w, h int) (pw, ph int) {
	switch f {
	case FormatYCbCr420:
		if i == 0 {
			return w, h
		}
		return w / 2, h / 2
	case FormatP010:
		if i == 0 {
			return w, h
		}
		return w, h / 2
	default:
		return w, h
	}
}

// newRawImage allocates a zeroed raw image with tightly packed planes.
func newRawImage(f ImageFormat, gamut ColorGamut, transfer ColorTransfer, rng ColorRange, w, h int) *RawImage {
	img := &RawImage{
		Format:   f,
		Gamut:    gamut,
		Transfer: transfer,
		Range:    rng,
		Width:    w,
		Height:   h,
	}
	bps := bytesPerSample(f)
	total := 0
	n := planeCount(f)
	for i := 0; i < n; i++ {
		pw, ph := planeDims(f, i, w, h)
		img.Strides[i] = pw
		total += pw * ph * bps
	}
	buf := make([]byte, total)
	off := 0
	for i := 0; i < n; i++ {
		pw, ph := planeDims(f, i, w, h)
		sz := pw * ph * bps
		img.Planes[i] = buf[off : off+sz : off+sz]
		off += sz
	}
	return img
}

// clone copies src into a freshly allocated image with packed planes,
// dropping any stride padding or shared backing storage.
func (src *RawImage) clone() *RawImage {
	dst := newRawImage(src.Format, src.Gamut, src.Transfer, src.Range, src.Width, src.Height)
	bps := bytesPerSample(src.Format)
	for i := 0; i < planeCount(src.Format); i++ {
		pw, ph := planeDims(src.Format, i, src.Width, src.Height)
		rowBytes := pw * bps
		srcRow := src.Strides[i] * bps
		dstRow := dst.Strides[i] * bps
		for y := 0; y < ph; y++ {
			copy(dst.Planes[i][y*dstRow:y*dstRow+rowBytes], src.Planes[i][y*srcRow:y*srcRow+rowBytes])
		}
	}
	return dst
}

// contiguous reports whether all planes of img live back to back in one
// allocation with packed strides.
func (img *RawImage) contiguous() bool {
	bps := bytesPerSample(img.Format)
	for i := 0; i < planeCount(img.Format); i++ {
		pw, ph := planeDims(img.Format, i, img.Width, img.Height)
		if img.Strides[i] != pw {
			return false
		}
		if len(img.Planes[i]) < pw*ph*bps {
			return false
		}
	}
	return true
}
