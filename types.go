package jpegr

// ColorGamut identifies a supported color gamut.
type ColorGamut int

const (
	GamutUnspecified ColorGamut = iota
	GamutBT709
	GamutDisplayP3
	GamutBT2100
)

func (g ColorGamut) String() string {
	switch g {
	case GamutBT709:
		return "bt709"
	case GamutDisplayP3:
		return "display-p3"
	case GamutBT2100:
		return "bt2100"
	default:
		return "unspecified"
	}
}

// ColorTransfer identifies a supported transfer function.
type ColorTransfer int

const (
	TransferUnspecified ColorTransfer = iota
	TransferSRGB
	TransferLinear
	TransferPQ
	TransferHLG
)

func (t ColorTransfer) String() string {
	switch t {
	case TransferSRGB:
		return "srgb"
	case TransferLinear:
		return "linear"
	case TransferPQ:
		return "pq"
	case TransferHLG:
		return "hlg"
	default:
		return "unspecified"
	}
}

// ColorRange identifies the sample value range of an image.
type ColorRange int

const (
	RangeUnspecified ColorRange = iota
	RangeLimited
	RangeFull
)

// ImageFormat identifies the pixel layout of a raw image.
type ImageFormat int

const (
	FormatUnspecified ImageFormat = iota
	// FormatYCbCr420 is 8-bit planar YUV 4:2:0 with three planes.
	FormatYCbCr420
	// FormatP010 is 10-bit-in-16-bit YUV 4:2:0 with a luma plane and an
	// interleaved CbCr plane. Samples are MSB aligned.
	FormatP010
	// FormatRGBA8888 is packed 8-bit RGBA.
	FormatRGBA8888
	// FormatRGBA1010102 is packed 10-10-10-2 RGBA in little-endian uint32.
	FormatRGBA1010102
	// FormatRGBAF16 is packed half-float RGBA, 8 bytes per pixel.
	FormatRGBAF16
	// FormatGray8 is a single 8-bit plane.
	FormatGray8
)

func (f ImageFormat) String() string {
	switch f {
	case FormatYCbCr420:
		return "ycbcr420"
	case FormatP010:
		return "p010"
	case FormatRGBA8888:
		return "rgba8888"
	case FormatRGBA1010102:
		return "rgba1010102"
	case FormatRGBAF16:
		return "rgbaf16"
	case FormatGray8:
		return "gray8"
	default:
		return "unspecified"
	}
}

// ImageIntent identifies the role an attached image plays in a session.
type ImageIntent int

const (
	IntentHDR ImageIntent = iota
	IntentSDR
	IntentBase
	IntentGainMap
)

func (i ImageIntent) String() string {
	switch i {
	case IntentHDR:
		return "hdr"
	case IntentSDR:
		return "sdr"
	case IntentBase:
		return "base"
	case IntentGainMap:
		return "gainmap"
	default:
		return "unknown"
	}
}

// Codec identifies the compressed output container.
type Codec int

const (
	CodecJPEG Codec = iota
	CodecHEIF
	CodecAVIF
)

// EncoderPreset trades encoding speed against quality.
type EncoderPreset int

const (
	PresetRealtime EncoderPreset = iota
	PresetBestQuality
)

// GainMapMetadata describes how a gain map combines with the base rendition.
// Per-channel fields hold three entries for a multi-channel map; a
// single-channel map carries the same value in all three.
type GainMapMetadata struct {
	Version         string
	MaxContentBoost [3]float32
	MinContentBoost [3]float32
	Gamma           [3]float32
	OffsetSDR       [3]float32
	OffsetHDR       [3]float32
	HDRCapacityMin  float32
	HDRCapacityMax  float32
	UseBaseCG       bool
}

// HDRImage is a linear-light float image with interleaved RGB samples.
type HDRImage struct {
	W, H int
	Pix  []float32
}

// At reads one pixel, clamping coordinates to the image bounds.
func (h *HDRImage) At(x, y int) rgb {
	x = clampInt(x, 0, h.W-1)
	y = clampInt(y, 0, h.H-1)
	i := (y*h.W + x) * 3
	return rgb{r: h.Pix[i], g: h.Pix[i+1], b: h.Pix[i+2]}
}

// MetadataSegments holds raw APP payloads for XMP/ISO blocks.
// These payloads include the namespace prefix and null terminator.
type MetadataSegments struct {
	PrimaryXMP   []byte
	PrimaryISO   []byte
	SecondaryXMP []byte
	SecondaryISO []byte
}

// EncodeOptions controls one-shot JPEG/R encoding helpers.
type EncodeOptions struct {
	Quality           int     // base JPEG quality (0-100)
	GainMapQuality    int     // gainmap JPEG quality (0-100)
	GainMapScale      int     // downscale factor for gainmap (>=1)
	UseMultiChannelGM bool    // use RGB gainmap instead of luma
	Gamma             float32 // gainmap gamma
	HDRWhiteNits      float32 // reference HDR white in nits (default 1000)
	TargetDisplayNits float32 // optional, if >0 sets HDRCapacityMax
	UseLuminance      bool    // use luminance instead of max(rgb) for gainmap
}

// DecodeOptions controls one-shot JPEG/R decoding helpers.
type DecodeOptions struct {
	MaxDisplayBoost float32 // maximum display boost, >=1; if 0 uses metadata HDRCapacityMax
}
