package jpegr

import "encoding/binary"

// Pixel access over raw session images, in the image's own gamut. The
// *LinearAt readers return linear-light RGB relative to SDR white (1.0 = SDR
// white); the other readers return normalized nonlinear samples.

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ycbcrToRGB converts full-range BT.601 Y'CbCr to nonlinear RGB, all in
// [0, 1]. This matches the JPEG convention used by the baseline codec.
func ycbcrToRGB(y, cb, cr float32) rgb {
	cb -= 0.5
	cr -= 0.5
	return rgb{
		r: clampf(y+1.402*cr, 0, 1),
		g: clampf(y-0.344136*cb-0.714136*cr, 0, 1),
		b: clampf(y+1.772*cb, 0, 1),
	}
}

// rgbToYCbCr is the inverse of ycbcrToRGB, full-range BT.601.
func rgbToYCbCr(v rgb) (y, cb, cr float32) {
	y = 0.299*v.r + 0.587*v.g + 0.114*v.b
	cb = clampf(-0.168736*v.r-0.331264*v.g+0.5*v.b+0.5, 0, 1)
	cr = clampf(0.5*v.r-0.418688*v.g-0.081312*v.b+0.5, 0, 1)
	return y, cb, cr
}

// bt2020YCbCrToRGB converts normalized BT.2020 Y'CbCr (chroma centered on
// zero) to nonlinear RGB in [0, 1].
func bt2020YCbCrToRGB(y, cb, cr float32) rgb {
	return rgb{
		r: clampf(y+1.4746*cr, 0, 1),
		g: clampf(y-0.16455*cb-0.57135*cr, 0, 1),
		b: clampf(y+1.8814*cb, 0, 1),
	}
}

func bt2020RGBToYCbCr(v rgb) (y, cb, cr float32) {
	y = 0.2627*v.r + 0.678*v.g + 0.0593*v.b
	cb = (v.b - y) / 1.8814
	cr = (v.r - y) / 1.4746
	return y, cb, cr
}

// p010At reads one pixel of a P010 image as normalized nonlinear RGB.
// Samples are MSB aligned and limited range.
func p010At(img *RawImage, x, y int) rgb {
	ly := int(binary.LittleEndian.Uint16(img.Planes[0][(y*img.Strides[0]+x)*2:])) >> 6
	cOff := ((y/2)*img.Strides[1] + (x/2)*2) * 2
	cb := int(binary.LittleEndian.Uint16(img.Planes[1][cOff:])) >> 6
	cr := int(binary.LittleEndian.Uint16(img.Planes[1][cOff+2:])) >> 6

	yn := clampf(float32(ly-64)/876.0, 0, 1)
	cbn := clampf(float32(cb-512)/896.0, -0.5, 0.5)
	crn := clampf(float32(cr-512)/896.0, -0.5, 0.5)
	return bt2020YCbCrToRGB(yn, cbn, crn)
}

// rgba1010102At reads one pixel as normalized nonlinear RGB.
func rgba1010102At(img *RawImage, x, y int) rgb {
	v := binary.LittleEndian.Uint32(img.Planes[0][(y*img.Strides[0]+x)*4:])
	return rgb{
		r: float32(v&0x3FF) / 1023.0,
		g: float32((v>>10)&0x3FF) / 1023.0,
		b: float32((v>>20)&0x3FF) / 1023.0,
	}
}

// hdrLinearAt reads one pixel of a raw HDR image and returns linear RGB
// relative to SDR white, applying the image's transfer function.
func hdrLinearAt(img *RawImage, x, y int) rgb {
	var v rgb
	switch img.Format {
	case FormatP010:
		v = p010At(img, x, y)
	case FormatRGBA1010102:
		v = rgba1010102At(img, x, y)
	default:
		return rgb{}
	}
	switch img.Transfer {
	case TransferHLG:
		const boost = hlgMaxNits / sdrWhiteNits
		return rgb{
			r: hlgInvOetf(v.r) * boost,
			g: hlgInvOetf(v.g) * boost,
			b: hlgInvOetf(v.b) * boost,
		}
	case TransferPQ:
		const boost = pqMaxNits / sdrWhiteNits
		return rgb{
			r: pqEotf(v.r) * boost,
			g: pqEotf(v.g) * boost,
			b: pqEotf(v.b) * boost,
		}
	default:
		const boost = defaultHDRWhiteNits / sdrWhiteNits
		return rgb{r: v.r * boost, g: v.g * boost, b: v.b * boost}
	}
}

// sdrNonlinearAt reads one pixel of a raw SDR image as nonlinear sRGB.
func sdrNonlinearAt(img *RawImage, x, y int) rgb {
	switch img.Format {
	case FormatYCbCr420:
		ly := float32(img.Planes[0][y*img.Strides[0]+x]) / 255.0
		cb := float32(img.Planes[1][(y/2)*img.Strides[1]+x/2]) / 255.0
		cr := float32(img.Planes[2][(y/2)*img.Strides[2]+x/2]) / 255.0
		return ycbcrToRGB(ly, cb, cr)
	case FormatRGBA8888:
		off := (y*img.Strides[0] + x) * 4
		return rgb{
			r: float32(img.Planes[0][off]) / 255.0,
			g: float32(img.Planes[0][off+1]) / 255.0,
			b: float32(img.Planes[0][off+2]) / 255.0,
		}
	default:
		return rgb{}
	}
}

// sdrLinearAt reads one pixel of a raw SDR image as linear RGB in [0, 1].
func sdrLinearAt(img *RawImage, x, y int) rgb {
	v := sdrNonlinearAt(img, x, y)
	return rgb{r: srgbInvOetf(v.r), g: srgbInvOetf(v.g), b: srgbInvOetf(v.b)}
}

// setP010 writes one pixel of nonlinear BT.2020 RGB as limited-range P010.
// Chroma is written only on even positions.
func setP010(img *RawImage, x, y int, v rgb) {
	yn, cb, cr := bt2020RGBToYCbCr(v)
	ly := uint16(clampf(yn*876.0+64.0, 0, 1023)+0.5) << 6
	binary.LittleEndian.PutUint16(img.Planes[0][(y*img.Strides[0]+x)*2:], ly)
	if x%2 == 0 && y%2 == 0 {
		cOff := ((y/2)*img.Strides[1] + x) * 2
		cbv := uint16(clampf(cb*896.0+512.0, 0, 1023)+0.5) << 6
		crv := uint16(clampf(cr*896.0+512.0, 0, 1023)+0.5) << 6
		binary.LittleEndian.PutUint16(img.Planes[1][cOff:], cbv)
		binary.LittleEndian.PutUint16(img.Planes[1][cOff+2:], crv)
	}
}

// setRGBA1010102 writes one pixel of nonlinear RGB with opaque alpha.
func setRGBA1010102(img *RawImage, x, y int, v rgb) {
	r := uint32(clampf(v.r, 0, 1)*1023.0 + 0.5)
	g := uint32(clampf(v.g, 0, 1)*1023.0 + 0.5)
	b := uint32(clampf(v.b, 0, 1)*1023.0 + 0.5)
	binary.LittleEndian.PutUint32(img.Planes[0][(y*img.Strides[0]+x)*4:], r|g<<10|b<<20|0x3<<30)
}

// setRGBA8888 writes one pixel of nonlinear RGB with opaque alpha.
func setRGBA8888(img *RawImage, x, y int, v rgb) {
	off := (y*img.Strides[0] + x) * 4
	img.Planes[0][off] = uint8(clampf(v.r, 0, 1)*255.0 + 0.5)
	img.Planes[0][off+1] = uint8(clampf(v.g, 0, 1)*255.0 + 0.5)
	img.Planes[0][off+2] = uint8(clampf(v.b, 0, 1)*255.0 + 0.5)
	img.Planes[0][off+3] = 0xFF
}

// setRGBAF16 writes one pixel of linear RGB as packed half floats with
// alpha 1.0.
func setRGBAF16(img *RawImage, x, y int, v rgb) {
	off := (y*img.Strides[0] + x) * 8
	binary.LittleEndian.PutUint16(img.Planes[0][off:], float32ToHalf(v.r))
	binary.LittleEndian.PutUint16(img.Planes[0][off+2:], float32ToHalf(v.g))
	binary.LittleEndian.PutUint16(img.Planes[0][off+4:], float32ToHalf(v.b))
	binary.LittleEndian.PutUint16(img.Planes[0][off+6:], float32ToHalf(1.0))
}
