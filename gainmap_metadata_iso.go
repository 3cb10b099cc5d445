package jpegr

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	isoFlagMultiChannel = 1 << 7
	isoFlagUseBaseColor = 1 << 6
	isoFlagCommonDenom  = 1 << 3
	isoFlagBackward     = 1 << 2
)

// gainmapMetadataFrac is the rational form of gain map metadata as stored in
// the ISO 21496-1 payload. Boosts and headrooms are log2 values.
type gainmapMetadataFrac struct {
	GainMapMinN       [3]int32
	GainMapMinD       [3]uint32
	GainMapMaxN       [3]int32
	GainMapMaxD       [3]uint32
	GainMapGammaN     [3]uint32
	GainMapGammaD     [3]uint32
	BaseOffsetN       [3]int32
	BaseOffsetD       [3]uint32
	AltOffsetN        [3]int32
	AltOffsetD        [3]uint32
	BaseHdrHeadroomN  uint32
	BaseHdrHeadroomD  uint32
	AltHdrHeadroomN   uint32
	AltHdrHeadroomD   uint32
	BackwardDirection bool
	UseBaseColorSpace bool
}

// isoField addresses one rational field of a channel. Exactly one of sn and
// un is set, matching the signedness of the wire value.
type isoField struct {
	sn *int32
	un *uint32
	d  *uint32
}

// channelFields lists the per-channel fields in wire order.
func (m *gainmapMetadataFrac) channelFields(c int) [5]isoField {
	return [5]isoField{
		{sn: &m.GainMapMinN[c], d: &m.GainMapMinD[c]},
		{sn: &m.GainMapMaxN[c], d: &m.GainMapMaxD[c]},
		{un: &m.GainMapGammaN[c], d: &m.GainMapGammaD[c]},
		{sn: &m.BaseOffsetN[c], d: &m.BaseOffsetD[c]},
		{sn: &m.AltOffsetN[c], d: &m.AltOffsetD[c]},
	}
}

func decodeGainmapMetadataISO(data []byte) (*GainMapMetadata, error) {
	var frac gainmapMetadataFrac
	if err := frac.decode(data); err != nil {
		return nil, err
	}
	meta := GainMapMetadata{Version: jpegrVersion}
	frac.toFloat(&meta)
	return &meta, nil
}

func encodeGainmapMetadataISO(meta *GainMapMetadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.New("gainmap metadata missing")
	}
	var frac gainmapMetadataFrac
	if err := frac.fromFloat(meta); err != nil {
		return nil, err
	}
	return frac.encode()
}

// buildIsoPayload prepends the APP2 namespace to the encoded metadata.
func buildIsoPayload(meta *GainMapMetadata) ([]byte, error) {
	encoded, err := encodeGainmapMetadataISO(meta)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(isoNamespace)+1+len(encoded))
	payload = append(payload, isoNamespace...)
	payload = append(payload, 0)
	return append(payload, encoded...), nil
}

type isoReader struct {
	buf []byte
	pos int
}

func (r *isoReader) u8() (uint8, error) {
	if r.pos >= len(r.buf) {
		return 0, errors.New("iso metadata truncated")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *isoReader) u16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, errors.New("iso metadata truncated")
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *isoReader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, errors.New("iso metadata truncated")
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (m *gainmapMetadataFrac) decode(in []byte) error {
	r := &isoReader{buf: in}

	minVer, err := r.u16()
	if err != nil {
		return err
	}
	if minVer != 0 {
		return errors.New("unsupported iso min_version")
	}
	// Writer version is informational.
	if _, err = r.u16(); err != nil {
		return err
	}

	flags, err := r.u8()
	if err != nil {
		return err
	}
	channels := 1
	if flags&isoFlagMultiChannel != 0 {
		channels = 3
	}
	m.UseBaseColorSpace = flags&isoFlagUseBaseColor != 0
	m.BackwardDirection = flags&isoFlagBackward != 0
	commonDenom := flags&isoFlagCommonDenom != 0

	var common uint32
	if commonDenom {
		if common, err = r.u32(); err != nil {
			return err
		}
		m.BaseHdrHeadroomD, m.AltHdrHeadroomD = common, common
		if m.BaseHdrHeadroomN, err = r.u32(); err != nil {
			return err
		}
		if m.AltHdrHeadroomN, err = r.u32(); err != nil {
			return err
		}
	} else {
		if m.BaseHdrHeadroomN, err = r.u32(); err != nil {
			return err
		}
		if m.BaseHdrHeadroomD, err = r.u32(); err != nil {
			return err
		}
		if m.AltHdrHeadroomN, err = r.u32(); err != nil {
			return err
		}
		if m.AltHdrHeadroomD, err = r.u32(); err != nil {
			return err
		}
	}

	for c := 0; c < channels; c++ {
		for _, f := range m.channelFields(c) {
			v, err := r.u32()
			if err != nil {
				return err
			}
			if f.sn != nil {
				*f.sn = int32(v)
			} else {
				*f.un = v
			}
			if commonDenom {
				*f.d = common
			} else if *f.d, err = r.u32(); err != nil {
				return err
			}
		}
	}
	if channels == 1 {
		m.replicateChannel0()
	}
	return nil
}

// replicateChannel0 spreads a single-channel stream into all three entries so
// downstream math can index any channel.
func (m *gainmapMetadataFrac) replicateChannel0() {
	src := m.channelFields(0)
	for c := 1; c < 3; c++ {
		dst := m.channelFields(c)
		for i := range dst {
			if dst[i].sn != nil {
				*dst[i].sn = *src[i].sn
			} else {
				*dst[i].un = *src[i].un
			}
			*dst[i].d = *src[i].d
		}
	}
}

func (m *gainmapMetadataFrac) encode() ([]byte, error) {
	channels := 3
	if m.allChannelsIdentical() {
		channels = 1
	}

	flags := uint8(0)
	if channels == 3 {
		flags |= isoFlagMultiChannel
	}
	if m.UseBaseColorSpace {
		flags |= isoFlagUseBaseColor
	}
	if m.BackwardDirection {
		flags |= isoFlagBackward
	}

	denom := m.BaseHdrHeadroomD
	commonDenom := m.AltHdrHeadroomD == denom
	for c := 0; c < channels && commonDenom; c++ {
		for _, f := range m.channelFields(c) {
			if *f.d != denom {
				commonDenom = false
				break
			}
		}
	}
	if commonDenom {
		flags |= isoFlagCommonDenom
	}

	be := binary.BigEndian
	out := make([]byte, 0, 128)
	out = be.AppendUint16(out, 0) // min_version
	out = be.AppendUint16(out, 0) // writer_version
	out = append(out, flags)

	if commonDenom {
		out = be.AppendUint32(out, denom)
		out = be.AppendUint32(out, m.BaseHdrHeadroomN)
		out = be.AppendUint32(out, m.AltHdrHeadroomN)
	} else {
		out = be.AppendUint32(out, m.BaseHdrHeadroomN)
		out = be.AppendUint32(out, m.BaseHdrHeadroomD)
		out = be.AppendUint32(out, m.AltHdrHeadroomN)
		out = be.AppendUint32(out, m.AltHdrHeadroomD)
	}

	for c := 0; c < channels; c++ {
		for _, f := range m.channelFields(c) {
			if f.sn != nil {
				out = be.AppendUint32(out, uint32(*f.sn))
			} else {
				out = be.AppendUint32(out, *f.un)
			}
			if !commonDenom {
				out = be.AppendUint32(out, *f.d)
			}
		}
	}
	return out, nil
}

func (m *gainmapMetadataFrac) toFloat(to *GainMapMetadata) {
	to.UseBaseCG = m.UseBaseColorSpace
	for i := 0; i < 3; i++ {
		to.MinContentBoost[i] = exp2f(float32(m.GainMapMinN[i]) / float32(m.GainMapMinD[i]))
		to.MaxContentBoost[i] = exp2f(float32(m.GainMapMaxN[i]) / float32(m.GainMapMaxD[i]))
		to.Gamma[i] = float32(m.GainMapGammaN[i]) / float32(m.GainMapGammaD[i])
		to.OffsetSDR[i] = float32(m.BaseOffsetN[i]) / float32(m.BaseOffsetD[i])
		to.OffsetHDR[i] = float32(m.AltOffsetN[i]) / float32(m.AltOffsetD[i])
	}
	to.HDRCapacityMin = exp2f(float32(m.BaseHdrHeadroomN) / float32(m.BaseHdrHeadroomD))
	to.HDRCapacityMax = exp2f(float32(m.AltHdrHeadroomN) / float32(m.AltHdrHeadroomD))
}

func (m *gainmapMetadataFrac) fromFloat(from *GainMapMetadata) error {
	if from == nil {
		return errors.New("gainmap metadata missing")
	}
	m.BackwardDirection = false
	m.UseBaseColorSpace = from.UseBaseCG

	channels := 3
	if metaAllChannelsIdentical(from) {
		channels = 1
	}

	for i := 0; i < channels; i++ {
		if err := floatToSignedFraction(log2f(from.MaxContentBoost[i]), &m.GainMapMaxN[i], &m.GainMapMaxD[i]); err != nil {
			return err
		}
		if err := floatToSignedFraction(log2f(from.MinContentBoost[i]), &m.GainMapMinN[i], &m.GainMapMinD[i]); err != nil {
			return err
		}
		if err := floatToUnsignedFraction(from.Gamma[i], &m.GainMapGammaN[i], &m.GainMapGammaD[i]); err != nil {
			return err
		}
		if err := floatToSignedFraction(from.OffsetSDR[i], &m.BaseOffsetN[i], &m.BaseOffsetD[i]); err != nil {
			return err
		}
		if err := floatToSignedFraction(from.OffsetHDR[i], &m.AltOffsetN[i], &m.AltOffsetD[i]); err != nil {
			return err
		}
	}
	if channels == 1 {
		m.replicateChannel0()
	}

	if err := floatToUnsignedFraction(log2f(from.HDRCapacityMin), &m.BaseHdrHeadroomN, &m.BaseHdrHeadroomD); err != nil {
		return err
	}
	return floatToUnsignedFraction(log2f(from.HDRCapacityMax), &m.AltHdrHeadroomN, &m.AltHdrHeadroomD)
}

func metaAllChannelsIdentical(m *GainMapMetadata) bool {
	if m == nil {
		return true
	}
	for i := 1; i < 3; i++ {
		if m.MinContentBoost[i] != m.MinContentBoost[0] ||
			m.MaxContentBoost[i] != m.MaxContentBoost[0] ||
			m.Gamma[i] != m.Gamma[0] ||
			m.OffsetSDR[i] != m.OffsetSDR[0] ||
			m.OffsetHDR[i] != m.OffsetHDR[0] {
			return false
		}
	}
	return true
}

func (m *gainmapMetadataFrac) allChannelsIdentical() bool {
	base := m.channelFields(0)
	for c := 1; c < 3; c++ {
		for i, f := range m.channelFields(c) {
			if f.sn != nil {
				if *f.sn != *base[i].sn {
					return false
				}
			} else if *f.un != *base[i].un {
				return false
			}
			if *f.d != *base[i].d {
				return false
			}
		}
	}
	return true
}

func floatToSignedFraction(v float32, numerator *int32, denominator *uint32) error {
	num, den, ok := approximateFraction(math.Abs(float64(v)), uint32(math.MaxInt32))
	if !ok {
		return errors.New("failed to encode signed fraction")
	}
	n := int32(num)
	if v < 0 {
		n = -n
	}
	*numerator = n
	*denominator = den
	return nil
}

func floatToUnsignedFraction(v float32, numerator *uint32, denominator *uint32) error {
	num, den, ok := approximateFraction(float64(v), math.MaxUint32)
	if !ok {
		return errors.New("failed to encode unsigned fraction")
	}
	*numerator = num
	*denominator = den
	return nil
}

// approximateFraction finds num/den close to x by continued fraction
// expansion, keeping the numerator within maxNumerator.
func approximateFraction(x float64, maxNumerator uint32) (uint32, uint32, bool) {
	if math.IsNaN(x) || x < 0 || x > float64(maxNumerator) {
		return 0, 0, false
	}
	maxDenom := float64(math.MaxUint32)
	if x > 1 {
		maxDenom = math.Floor(float64(maxNumerator) / x)
	}

	denom := uint32(1)
	prevDenom := uint32(0)
	frac := x - math.Floor(x)
	for iter := 0; iter < 39; iter++ {
		scaled := float64(denom) * x
		if scaled > float64(maxNumerator) {
			return 0, 0, false
		}
		num := uint32(math.Round(scaled))
		if scaled == float64(num) || frac == 0 {
			return num, denom, true
		}
		frac = 1.0 / frac
		next := float64(prevDenom) + math.Floor(frac)*float64(denom)
		if next > maxDenom {
			return num, denom, true
		}
		if next > float64(math.MaxUint32) {
			return 0, 0, false
		}
		prevDenom = denom
		denom = uint32(next)
		frac -= math.Floor(frac)
	}
	return uint32(math.Round(float64(denom) * x)), denom, true
}
