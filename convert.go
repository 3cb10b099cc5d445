package jpegr

// convertRawToYCbCr normalizes an attached raw image into the session-owned
// planar representation: RGBA8888 becomes YCbCr420, RGBA1010102 becomes
// P010, planar inputs are copied into a fresh contiguous allocation. The
// caller's buffer is never retained.
func convertRawToYCbCr(img *RawImage) *RawImage {
	switch img.Format {
	case FormatYCbCr420, FormatP010, FormatGray8:
		return img.clone()
	case FormatRGBA8888:
		return rgba8888ToYCbCr420(img)
	case FormatRGBA1010102:
		return rgba1010102ToP010(img)
	default:
		return nil
	}
}

func rgba8888ToYCbCr420(img *RawImage) *RawImage {
	out := newRawImage(FormatYCbCr420, img.Gamut, img.Transfer, img.Range, img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := sdrNonlinearAt(img, x, y)
			ly, _, _ := rgbToYCbCr(v)
			out.Planes[0][y*out.Strides[0]+x] = uint8(clampf(ly, 0, 1)*255.0 + 0.5)
		}
	}
	// Chroma from the 2x2 block average.
	for y := 0; y < img.Height/2; y++ {
		for x := 0; x < img.Width/2; x++ {
			var cbSum, crSum float32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					_, cb, cr := rgbToYCbCr(sdrNonlinearAt(img, 2*x+dx, 2*y+dy))
					cbSum += cb
					crSum += cr
				}
			}
			out.Planes[1][y*out.Strides[1]+x] = uint8(clampf(cbSum/4, 0, 1)*255.0 + 0.5)
			out.Planes[2][y*out.Strides[2]+x] = uint8(clampf(crSum/4, 0, 1)*255.0 + 0.5)
		}
	}
	return out
}

func rgba1010102ToP010(img *RawImage) *RawImage {
	out := newRawImage(FormatP010, img.Gamut, img.Transfer, img.Range, img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			setP010(out, x, y, rgba1010102At(img, x, y))
		}
	}
	return out
}
