package jpegr

import "math"

// rgb holds one linear-light pixel.
type rgb struct {
	r, g, b float32
}

func log2f(v float32) float32 { return float32(math.Log2(float64(v))) }
func exp2f(v float32) float32 { return float32(math.Exp2(float64(v))) }

// encodeGain maps an hdr/sdr luminance ratio to one 8-bit gain map sample.
// The ratio is clamped to the content boost range, normalized in log2 space
// between log2Min and log2Max, and gamma-encoded.
func encodeGain(sdr, hdr float32, meta *GainMapMetadata, log2Min, log2Max float32, idx int) uint8 {
	gain := float32(1.0)
	if sdr > 0 {
		gain = hdr / sdr
	}
	if gain < meta.MinContentBoost[idx] {
		gain = meta.MinContentBoost[idx]
	}
	if gain > meta.MaxContentBoost[idx] {
		gain = meta.MaxContentBoost[idx]
	}
	norm := (log2f(gain) - log2Min) / (log2Max - log2Min)
	if meta.Gamma[idx] != 1 {
		norm = float32(math.Pow(float64(norm), float64(meta.Gamma[idx])))
	}
	v := norm * 255.0
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v + 0.5)
}

// boostFactor turns a decoded gain sample in [0, 1] into a linear multiplier
// for one channel. weight scales the applied boost in log space so a display
// with limited headroom gets a proportionally reduced rendition.
func boostFactor(gain float32, meta *GainMapMetadata, idx int, weight float32) float32 {
	if meta.Gamma[idx] != 1 {
		gain = float32(math.Pow(float64(gain), float64(1.0/meta.Gamma[idx])))
	}
	logBoost := log2f(meta.MinContentBoost[idx])*(1.0-gain) + log2f(meta.MaxContentBoost[idx])*gain
	return exp2f(logBoost * weight)
}

// applyGainSingle recovers one HDR pixel from an SDR pixel and a
// single-channel gain sample.
func applyGainSingle(e rgb, gain float32, meta *GainMapMetadata, weight float32) rgb {
	f := boostFactor(gain, meta, 0, weight)
	return rgb{
		r: (e.r+meta.OffsetSDR[0])*f - meta.OffsetHDR[0],
		g: (e.g+meta.OffsetSDR[0])*f - meta.OffsetHDR[0],
		b: (e.b+meta.OffsetSDR[0])*f - meta.OffsetHDR[0],
	}
}

// applyGainRGB recovers one HDR pixel from an SDR pixel and a per-channel
// gain sample.
func applyGainRGB(e rgb, gain rgb, meta *GainMapMetadata, weight float32) rgb {
	fr := boostFactor(gain.r, meta, 0, weight)
	fg := boostFactor(gain.g, meta, 1, weight)
	fb := boostFactor(gain.b, meta, 2, weight)
	return rgb{
		r: (e.r+meta.OffsetSDR[0])*fr - meta.OffsetHDR[0],
		g: (e.g+meta.OffsetSDR[1])*fg - meta.OffsetHDR[1],
		b: (e.b+meta.OffsetSDR[2])*fb - meta.OffsetHDR[2],
	}
}
