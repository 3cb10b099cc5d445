package jpegr

import "image"

// displayWeight positions the requested display boost between the gain map's
// HDR capacity bounds, clamped to [0, 1]. Weight 0 reproduces the SDR base,
// weight 1 the full HDR rendition.
func displayWeight(meta *GainMapMetadata, maxDisplayBoost float32) float32 {
	boost := meta.HDRCapacityMax
	if maxDisplayBoost < boost {
		boost = maxDisplayBoost
	}
	if boost < 1 {
		boost = 1
	}
	den := log2f(meta.HDRCapacityMax) - log2f(meta.HDRCapacityMin)
	if den <= 0 {
		return 1
	}
	return clampf((log2f(boost)-log2f(meta.HDRCapacityMin))/den, 0, 1)
}

// gainAt samples the decoded gain map at image coordinates, mapping through
// the size ratio between the base image and the map. Values are normalized
// to [0, 1].
func gainAt(gm image.Image, x, y, imgW, imgH int) (rgb, bool) {
	b := gm.Bounds()
	gx := b.Min.X + x*b.Dx()/imgW
	gy := b.Min.Y + y*b.Dy()/imgH
	switch m := gm.(type) {
	case *image.Gray:
		v := float32(m.GrayAt(gx, gy).Y) / 255.0
		return rgb{r: v, g: v, b: v}, false
	case *image.YCbCr:
		v := float32(m.Y[(gy-b.Min.Y)*m.YStride+(gx-b.Min.X)]) / 255.0
		return rgb{r: v, g: v, b: v}, false
	default:
		r, g, bl, _ := gm.At(gx, gy).RGBA()
		return rgb{
			r: float32(r) / 65535.0,
			g: float32(g) / 65535.0,
			b: float32(bl) / 65535.0,
		}, true
	}
}

// applyGainMapRendition combines the decoded base image with the decoded
// gain map into the requested rendition. For the SDR rendition the base is
// converted as-is; the HDR renditions boost linear light per pixel and
// re-encode with the output transfer.
func applyGainMapRendition(base, gm image.Image, meta *GainMapMetadata, outFmt ImageFormat,
	outCT ColorTransfer, maxDisplayBoost float32, gamut ColorGamut) *RawImage {
	b := base.Bounds()
	w, h := b.Dx(), b.Dy()
	out := newRawImage(outFmt, gamut, outCT, RangeFull, w, h)

	if outCT == TransferSRGB {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := sampleSDR(base, b.Min.X+x, b.Min.Y+y)
				setRGBA8888(out, x, y, rgb{r: srgbOetf(v.r), g: srgbOetf(v.g), b: srgbOetf(v.b)})
			}
		}
		return out
	}

	weight := displayWeight(meta, maxDisplayBoost)
	multiChannel := !metaAllChannelsIdentical(meta)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			e := sampleSDR(base, b.Min.X+x, b.Min.Y+y)
			gain, isRGB := gainAt(gm, x, y, w, h)
			var v rgb
			if multiChannel && isRGB {
				v = applyGainRGB(e, gain, meta, weight)
			} else {
				v = applyGainSingle(e, gain.r, meta, weight)
			}
			switch outCT {
			case TransferLinear:
				setRGBAF16(out, x, y, v)
			case TransferHLG:
				const scale = sdrWhiteNits / hlgMaxNits
				setRGBA1010102(out, x, y, rgb{
					r: hlgOetf(v.r * scale),
					g: hlgOetf(v.g * scale),
					b: hlgOetf(v.b * scale),
				})
			case TransferPQ:
				const scale = sdrWhiteNits / pqMaxNits
				setRGBA1010102(out, x, y, rgb{
					r: pqInvEotf(v.r * scale),
					g: pqInvEotf(v.g * scale),
					b: pqInvEotf(v.b * scale),
				})
			}
		}
	}
	return out
}

// grayFromImage copies the decoded gain map into a session-owned Gray8
// buffer.
func grayFromImage(gm image.Image) *RawImage {
	b := gm.Bounds()
	out := newRawImage(FormatGray8, GamutUnspecified, TransferSRGB, RangeFull, b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g, _ := gainAt(gm, x, y, b.Dx(), b.Dy())
			out.Planes[0][y*out.Strides[0]+x] = uint8(clampf(g.r, 0, 1)*255.0 + 0.5)
		}
	}
	return out
}
