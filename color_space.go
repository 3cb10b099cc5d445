package jpegr

import (
	"bytes"
	"sort"
)

// gamutFromICC guesses the gamut of a JPEG from its assembled ICC profile.
// The description strings cover common camera and editor output; anything
// unrecognized is treated as BT.709.
func gamutFromICC(profile []byte) ColorGamut {
	if len(profile) == 0 {
		return GamutBT709
	}
	lower := bytes.ToLower(profile)
	switch {
	case bytes.Contains(lower, []byte("display p3")), bytes.Contains(lower, []byte("dci-p3")):
		return GamutDisplayP3
	case bytes.Contains(lower, []byte("rec2020")), bytes.Contains(lower, []byte("rec. 2020")), bytes.Contains(lower, []byte("bt.2020")):
		return GamutBT2100
	}
	return GamutBT709
}

// collectICCProfile reassembles a full ICC profile from APP2 chunks, ordered
// by their sequence byte.
func collectICCProfile(icc [][]byte) []byte {
	type chunk struct {
		seq  int
		data []byte
	}
	chunks := make([]chunk, 0, len(icc))
	for _, p := range icc {
		// APP2 payload layout: "ICC_PROFILE\0", sequence, total, profile bytes.
		if len(p) > len(iccSig)+2 && bytes.HasPrefix(p, iccSig) {
			chunks = append(chunks, chunk{seq: int(p[len(iccSig)]), data: append([]byte(nil), p[len(iccSig)+2:]...)})
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	total := 0
	for _, c := range chunks {
		total += len(c.data)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.data...)
	}
	return out
}

// colorMatrix is a row-major 3x3 linear transform.
type colorMatrix [9]float32

func (m *colorMatrix) apply(v rgb) rgb {
	return rgb{
		r: m[0]*v.r + m[1]*v.g + m[2]*v.b,
		g: m[3]*v.r + m[4]*v.g + m[5]*v.b,
		b: m[6]*v.r + m[7]*v.g + m[8]*v.b,
	}
}

// D65 linear RGB to CIE XYZ and back, per gamut.
var (
	bt709ToXYZ = colorMatrix{
		0.4123908, 0.35758433, 0.1804808,
		0.212639, 0.71516865, 0.07219232,
		0.019330818, 0.11919478, 0.95053214,
	}
	xyzToBT709 = colorMatrix{
		3.24097, -1.5373832, -0.49861076,
		-0.96924365, 1.8759675, 0.041555058,
		0.05563008, -0.20397696, 1.0569715,
	}
	p3ToXYZ = colorMatrix{
		0.48657095, 0.2656677, 0.19821729,
		0.22897457, 0.69173855, 0.07928691,
		0.0, 0.04511338, 1.0439444,
	}
	xyzToP3 = colorMatrix{
		2.493497, -0.9313836, -0.4027108,
		-0.829489, 1.7626641, 0.023624685,
		0.03584583, -0.07617239, 0.9568845,
	}
	bt2100ToXYZ = colorMatrix{
		0.636958, 0.1446169, 0.168881,
		0.2627002, 0.6779981, 0.0593017,
		0.0, 0.0280727, 1.0609851,
	}
	xyzToBT2100 = colorMatrix{
		1.7166512, -0.3556708, -0.2533663,
		-0.6666844, 1.6164812, 0.0157685,
		0.0176399, -0.0427706, 0.9421031,
	}
)

func gamutMatrices(g ColorGamut) (toXYZ, fromXYZ *colorMatrix) {
	switch g {
	case GamutDisplayP3:
		return &p3ToXYZ, &xyzToP3
	case GamutBT2100:
		return &bt2100ToXYZ, &xyzToBT2100
	}
	return &bt709ToXYZ, &xyzToBT709
}

// convertLinearGamut maps a linear-light pixel between gamuts through XYZ.
// Unspecified gamuts pass through unchanged.
func convertLinearGamut(v rgb, from, to ColorGamut) rgb {
	if from == to || from == GamutUnspecified || to == GamutUnspecified {
		return v
	}
	toXYZ, _ := gamutMatrices(from)
	_, fromXYZ := gamutMatrices(to)
	return fromXYZ.apply(toXYZ.apply(v))
}
