package jpegr

// transferPeak returns the peak linear value of an HDR transfer relative to
// SDR white.
func transferPeak(ct ColorTransfer) float32 {
	switch ct {
	case TransferPQ:
		return pqMaxNits / sdrWhiteNits
	case TransferHLG:
		return hlgMaxNits / sdrWhiteNits
	default:
		return defaultHDRWhiteNits / sdrWhiteNits
	}
}

// toneMapPixel compresses linear HDR RGB into [0, 1] with an extended
// Reinhard curve applied to the max component. Hue is preserved by scaling
// all channels with the same ratio.
func toneMapPixel(v rgb, peak float32) rgb {
	l := max3(v.r, v.g, v.b)
	if l <= 0 {
		return rgb{}
	}
	mapped := l * (1 + l/(peak*peak)) / (1 + l)
	s := mapped / l
	return rgb{
		r: clampf(v.r*s, 0, 1),
		g: clampf(v.g*s, 0, 1),
		b: clampf(v.b*s, 0, 1),
	}
}

// toneMapToSDR synthesizes an sRGB YCbCr420 base rendition from a raw HDR
// image. The result carries the HDR image's gamut.
func toneMapToSDR(hdr *RawImage) *RawImage {
	peak := transferPeak(hdr.Transfer)
	out := newRawImage(FormatYCbCr420, hdr.Gamut, TransferSRGB, RangeFull, hdr.Width, hdr.Height)

	for y := 0; y < hdr.Height; y++ {
		for x := 0; x < hdr.Width; x++ {
			v := toneMapPixel(hdrLinearAt(hdr, x, y), peak)
			nl := rgb{r: srgbOetf(v.r), g: srgbOetf(v.g), b: srgbOetf(v.b)}
			ly, _, _ := rgbToYCbCr(nl)
			out.Planes[0][y*out.Strides[0]+x] = uint8(clampf(ly, 0, 1)*255.0 + 0.5)
		}
	}
	for y := 0; y < hdr.Height/2; y++ {
		for x := 0; x < hdr.Width/2; x++ {
			var cbSum, crSum float32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					v := toneMapPixel(hdrLinearAt(hdr, 2*x+dx, 2*y+dy), peak)
					nl := rgb{r: srgbOetf(v.r), g: srgbOetf(v.g), b: srgbOetf(v.b)}
					_, cb, cr := rgbToYCbCr(nl)
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
