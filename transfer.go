package jpegr

import "math"

// SMPTE ST 2084 constants.
const (
	pqM1 = 2610.0 / 16384.0
	pqM2 = 2523.0 / 4096.0 * 128.0
	pqC1 = 3424.0 / 4096.0
	pqC2 = 2413.0 / 4096.0 * 32.0
	pqC3 = 2392.0 / 4096.0 * 32.0
)

// pqEotf maps a PQ-encoded sample to display luminance in units of the PQ
// peak (10000 nits = 1.0).
func pqEotf(v float32) float32 {
	if v <= 0 {
		return 0
	}
	p := math.Pow(float64(v), 1.0/pqM2)
	num := p - pqC1
	if num < 0 {
		num = 0
	}
	den := pqC2 - pqC3*p
	if den <= 0 {
		return 1
	}
	return float32(math.Pow(num/den, 1.0/pqM1))
}

// pqInvEotf maps display luminance (10000 nits = 1.0) to a PQ sample.
func pqInvEotf(v float32) float32 {
	if v < 0 {
		v = 0
	}
	p := math.Pow(float64(v), pqM1)
	return float32(math.Pow((pqC1+pqC2*p)/(1.0+pqC3*p), pqM2))
}

// srgbInvOetf maps an sRGB-encoded sample to linear light per IEC 61966-2-1.
func srgbInvOetf(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow(float64(v+0.055)/1.055, 2.4))
}

// srgbOetf maps linear light to an sRGB-encoded sample.
func srgbOetf(v float32) float32 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*float32(math.Pow(float64(v), 1.0/2.4)) - 0.055
}

// ARIB STD-B67 constants.
const (
	hlgA = 0.17883277
	hlgB = 0.28466892
	hlgC = 0.55991073
)

// hlgInvOetf maps an HLG-encoded sample to scene light in [0, 1].
func hlgInvOetf(v float32) float32 {
	if v < 0 {
		v = 0
	}
	if v <= 0.5 {
		return v * v / 3.0
	}
	return float32((math.Exp((float64(v)-hlgC)/hlgA) + hlgB) / 12.0)
}

// hlgOetf maps scene light in [0, 1] to an HLG sample.
func hlgOetf(v float32) float32 {
	if v < 0 {
		v = 0
	}
	if v <= 1.0/12.0 {
		return float32(math.Sqrt(3.0 * float64(v)))
	}
	return float32(hlgA*math.Log(12.0*float64(v)-hlgB) + hlgC)
}
