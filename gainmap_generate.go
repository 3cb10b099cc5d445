package jpegr

import "math"

const (
	kSdrWhiteNits = 203.0
	kSdrOffset    = 1e-7
	kHdrOffset    = 1e-7
)

// generateGainMap computes the gain map for an HDR/SDR raw pair. Both images
// must have identical dimensions; hdr is P010 or RGBA1010102, sdr is
// YCbCr420 or RGBA8888. The map is downsampled by scale and returned as
// Gray8 for a single-channel map or RGBA8888 for a multi-channel map,
// together with the metadata describing the applied affine mapping.
func generateGainMap(hdr, sdr *RawImage, scale int, multiChannel bool, gamma float32) (*RawImage, *GainMapMetadata) {
	if scale <= 0 {
		scale = 1
	}
	if gamma <= 0 {
		gamma = defaultGamma
	}
	mapW := hdr.Width / scale
	mapH := hdr.Height / scale
	if mapW <= 0 || mapH <= 0 {
		return nil, nil
	}

	channels := 1
	if multiChannel {
		channels = 3
	}
	gains := make([]float32, mapW*mapH*channels)
	gainMin := make([]float32, channels)
	gainMax := make([]float32, channels)
	for i := range gainMin {
		gainMin[i] = float32(math.MaxFloat32)
		gainMax[i] = -float32(math.MaxFloat32)
	}

	for y := 0; y < mapH; y++ {
		for x := 0; x < mapW; x++ {
			sdrRGB := clampRGB(sdrLinearAt(sdr, x*scale, y*scale))
			hdrRGB := hdrLinearAt(hdr, x*scale, y*scale)
			// Gain is a per-pixel ratio, both sides must share a gamut.
			hdrRGB = clampRGB(convertLinearGamut(hdrRGB, hdr.Gamut, sdr.Gamut))
			if multiChannel {
				g0 := computeGain(kSdrWhiteNits*sdrRGB.r, kSdrWhiteNits*hdrRGB.r)
				g1 := computeGain(kSdrWhiteNits*sdrRGB.g, kSdrWhiteNits*hdrRGB.g)
				g2 := computeGain(kSdrWhiteNits*sdrRGB.b, kSdrWhiteNits*hdrRGB.b)
				idx := (y*mapW + x) * 3
				gains[idx] = g0
				gains[idx+1] = g1
				gains[idx+2] = g2
				updateMinMax(gainMin, gainMax, g0, g1, g2)
			} else {
				sdrY := kSdrWhiteNits * max3(sdrRGB.r, sdrRGB.g, sdrRGB.b)
				hdrY := kSdrWhiteNits * max3(hdrRGB.r, hdrRGB.g, hdrRGB.b)
				g := computeGain(sdrY, hdrY)
				gains[y*mapW+x] = g
				if g < gainMin[0] {
					gainMin[0] = g
				}
				if g > gainMax[0] {
					gainMax[0] = g
				}
			}
		}
	}

	for i := 0; i < channels; i++ {
		gainMin[i] = clampGainLog2(gainMin[i])
		gainMax[i] = clampGainLog2(gainMax[i])
		if gainMax[i]-gainMin[i] < 1e-6 {
			gainMax[i] = gainMin[i] + 0.1
		}
	}

	var gm *RawImage
	if multiChannel {
		gm = newRawImage(FormatRGBA8888, sdr.Gamut, TransferSRGB, RangeFull, mapW, mapH)
		for y := 0; y < mapH; y++ {
			for x := 0; x < mapW; x++ {
				idx := (y*mapW + x) * 3
				off := (y*gm.Strides[0] + x) * 4
				gm.Planes[0][off] = affineMapGain(gains[idx], gainMin[0], gainMax[0], gamma)
				gm.Planes[0][off+1] = affineMapGain(gains[idx+1], gainMin[1], gainMax[1], gamma)
				gm.Planes[0][off+2] = affineMapGain(gains[idx+2], gainMin[2], gainMax[2], gamma)
				gm.Planes[0][off+3] = 0xFF
			}
		}
	} else {
		gm = newRawImage(FormatGray8, sdr.Gamut, TransferSRGB, RangeFull, mapW, mapH)
		for y := 0; y < mapH; y++ {
			for x := 0; x < mapW; x++ {
				gm.Planes[0][y*gm.Strides[0]+x] = affineMapGain(gains[y*mapW+x], gainMin[0], gainMax[0], gamma)
			}
		}
	}

	meta := &GainMapMetadata{
		Version:        jpegrVersion,
		UseBaseCG:      true,
		HDRCapacityMin: 1.0,
	}
	for i := 0; i < 3; i++ {
		ch := 0
		if multiChannel {
			ch = i
		}
		meta.MinContentBoost[i] = exp2f(gainMin[ch])
		meta.MaxContentBoost[i] = exp2f(gainMax[ch])
		meta.Gamma[i] = gamma
		meta.OffsetSDR[i] = kSdrOffset
		meta.OffsetHDR[i] = kHdrOffset
	}
	meta.HDRCapacityMax = max3(meta.MaxContentBoost[0], meta.MaxContentBoost[1], meta.MaxContentBoost[2])
	if meta.HDRCapacityMax < 1.0 {
		meta.HDRCapacityMax = 1.0
	}
	return gm, meta
}

func clampRGB(v rgb) rgb {
	if v.r < 0 {
		v.r = 0
	}
	if v.g < 0 {
		v.g = 0
	}
	if v.b < 0 {
		v.b = 0
	}
	return v
}

func computeGain(sdr, hdr float32) float32 {
	gain := log2f((hdr + kHdrOffset) / (sdr + kSdrOffset))
	if sdr < 2.0/255.0 {
		// Dark pixels are noise-dominated, keep their boost bounded.
		if gain > 2.3 {
			gain = 2.3
		}
	}
	return gain
}

func clampGainLog2(v float32) float32 {
	if v < -14.3 {
		return -14.3
	}
	if v > 15.6 {
		return 15.6
	}
	return v
}

func affineMapGain(gainlog2, minlog2, maxlog2, gamma float32) uint8 {
	denom := maxlog2 - minlog2
	if denom == 0 {
		denom = 1
	}
	mapped := clampf((gainlog2-minlog2)/denom, 0, 1)
	if gamma != 1 {
		mapped = float32(math.Pow(float64(mapped), float64(gamma)))
	}
	return uint8(clampf(mapped*255, 0, 255) + 0.5)
}

func updateMinMax(minv, maxv []float32, r, g, b float32) {
	if r < minv[0] {
		minv[0] = r
	}
	if r > maxv[0] {
		maxv[0] = r
	}
	if len(minv) < 3 {
		return
	}
	if g < minv[1] {
		minv[1] = g
	}
	if g > maxv[1] {
		maxv[1] = g
	}
	if b < minv[2] {
		minv[2] = b
	}
	if b > maxv[2] {
		maxv[2] = b
	}
}
