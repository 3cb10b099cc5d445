package jpegr

import (
	"bytes"
	"image/jpeg"
)

const minOutputCapacity = 8 * 1024

// Encoder is a single-shot encoding session. Attach inputs and options while
// the session is configurable, then call Encode once. The first Encode call
// seals the session; its status latches and is returned on every retry.
// Reset returns the session to a fresh configurable state.
//
// A session is not safe for concurrent use.
type Encoder struct {
	rawImages  map[ImageIntent]*RawImage
	compressed map[ImageIntent]*CompressedImage
	quality    map[ImageIntent]int
	meta       *GainMapMetadata
	exif       []byte
	effects    []Effect

	outputCodec       Codec
	gainMapScale      int
	multiChannelGM    bool
	gamma             float32
	targetDisplayNits float32
	preset            EncoderPreset

	sealed bool
	status error
	output *CompressedImage
}

// NewEncoder returns a configurable encoding session with default settings.
func NewEncoder() *Encoder {
	e := &Encoder{}
	e.Reset()
	return e
}

// Reset discards all attachments, effects, options and output, and returns
// the session to the configurable state.
func (e *Encoder) Reset() {
	e.rawImages = make(map[ImageIntent]*RawImage)
	e.compressed = make(map[ImageIntent]*CompressedImage)
	e.quality = map[ImageIntent]int{
		IntentHDR:     defaultBaseQuality,
		IntentSDR:     defaultBaseQuality,
		IntentBase:    defaultBaseQuality,
		IntentGainMap: defaultGainMapQuality,
	}
	e.meta = nil
	e.exif = nil
	e.effects = nil
	e.outputCodec = CodecJPEG
	e.gainMapScale = defaultGainMapScale
	e.multiChannelGM = false
	e.gamma = defaultGamma
	e.targetDisplayNits = 0
	e.preset = PresetBestQuality
	e.sealed = false
	e.status = nil
	e.output = nil
}

func (e *Encoder) configurable() error {
	if e.sealed {
		return errInvalidOperation("an earlier call to Encode() has switched the session from configurable state to end state, call Reset() to reconfigure")
	}
	return nil
}

// SetRawImage attaches a raw image for the hdr or sdr intent. The pixels are
// normalized into a session-owned planar copy; the caller's buffer is not
// retained. Re-attaching an intent replaces the previous image.
func (e *Encoder) SetRawImage(img *RawImage, intent ImageIntent) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if intent != IntentHDR && intent != IntentSDR {
		return errInvalidParam("invalid intent %v, expects one of {hdr, sdr}", intent)
	}
	if err := validateRawImage(img, intent); err != nil {
		return err
	}
	other := IntentSDR
	if intent == IntentSDR {
		other = IntentHDR
	}
	if o := e.rawImages[other]; o != nil && (o.Width != img.Width || o.Height != img.Height) {
		hdrW, hdrH, sdrW, sdrH := img.Width, img.Height, o.Width, o.Height
		if intent == IntentSDR {
			hdrW, hdrH, sdrW, sdrH = o.Width, o.Height, img.Width, img.Height
		}
		return errInvalidParam("raw hdr and raw sdr image resolutions do not match, hdr image resolution %dx%d, sdr image resolution %dx%d",
			hdrW, hdrH, sdrW, sdrH)
	}
	owned := convertRawToYCbCr(img)
	if owned == nil {
		return errUnsupported("unsupported pixel format %v", img.Format)
	}
	e.rawImages[intent] = owned
	return nil
}

// SetCompressedImage attaches a compressed image for the sdr or base intent.
// The bytes are copied into session-owned storage.
func (e *Encoder) SetCompressedImage(img *CompressedImage, intent ImageIntent) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if intent != IntentSDR && intent != IntentBase {
		return errInvalidParam("invalid intent %v, expects one of {sdr, base}", intent)
	}
	if err := validateCompressedImage(img); err != nil {
		return err
	}
	e.compressed[intent] = img.clone()
	return nil
}

// SetGainMapImage attaches a compressed gain map together with the metadata
// describing how it combines with the base rendition.
func (e *Encoder) SetGainMapImage(img *CompressedImage, meta *GainMapMetadata) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if err := validateCompressedImage(img); err != nil {
		return err
	}
	if meta == nil {
		return errInvalidParam("received nil gain map metadata descriptor")
	}
	if err := validateGainMapMetadata(meta); err != nil {
		return err
	}
	e.compressed[IntentGainMap] = img.clone()
	m := *meta
	e.meta = &m
	return nil
}

// SetQuality sets the JPEG quality factor used when compressing the image
// attached with the given intent.
func (e *Encoder) SetQuality(quality int, intent ImageIntent) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if err := validateQuality(quality, intent); err != nil {
		return err
	}
	e.quality[intent] = quality
	return nil
}

// SetExif attaches an EXIF payload to be carried in the primary image. The
// payload must include the "Exif\x00\x00" identifier prefix.
func (e *Encoder) SetExif(data []byte) error {
	if err := e.configurable(); err != nil {
		return err
	}
	e.exif = append([]byte(nil), data...)
	return nil
}

// SetOutputFormat selects the compressed output container. Only JPEG output
// is implemented.
func (e *Encoder) SetOutputFormat(c Codec) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if c != CodecJPEG {
		return errUnsupported("unsupported output format, only jpeg output is implemented")
	}
	e.outputCodec = c
	return nil
}

// SetGainMapScaleFactor sets the downscale factor applied when synthesizing
// the gain map from raw inputs.
func (e *Encoder) SetGainMapScaleFactor(scale int) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if scale <= 0 {
		return errInvalidParam("unsupported gain map scale factor %d, expects to be > 0", scale)
	}
	e.gainMapScale = scale
	return nil
}

// SetMultiChannelGainMap selects a three-channel gain map instead of the
// single luma channel default.
func (e *Encoder) SetMultiChannelGainMap(enable bool) error {
	if err := e.configurable(); err != nil {
		return err
	}
	e.multiChannelGM = enable
	return nil
}

// SetGainMapGamma sets the encoding gamma of a synthesized gain map.
func (e *Encoder) SetGainMapGamma(gamma float32) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if gamma <= 0 {
		return errInvalidParam("unsupported gain map gamma %f, expects to be > 0", gamma)
	}
	e.gamma = gamma
	return nil
}

// SetTargetDisplayPeakBrightness sets the hdr capacity max advertised in the
// gain map metadata to the given display peak, in nits, relative to SDR
// white; a value below the hdr capacity min is raised to it.
func (e *Encoder) SetTargetDisplayPeakBrightness(nits float32) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if nits < minTargetPeakNits || nits > maxTargetPeakNits {
		return errInvalidParam("unsupported target display peak brightness %f, expects in range [%f, %f]",
			nits, float32(minTargetPeakNits), float32(maxTargetPeakNits))
	}
	e.targetDisplayNits = nits
	return nil
}

// SetPreset trades encoding speed against quality.
func (e *Encoder) SetPreset(p EncoderPreset) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if p != PresetRealtime && p != PresetBestQuality {
		return errInvalidParam("unsupported preset %d, expects one of {realtime, best quality}", int(p))
	}
	e.preset = p
	return nil
}

// AddEffect appends an effect to the pipeline. Effects run in insertion
// order over the raw inputs when the session commits.
func (e *Encoder) AddEffect(eff Effect) error {
	if err := e.configurable(); err != nil {
		return err
	}
	if err := validateEffect(eff); err != nil {
		return err
	}
	e.effects = append(e.effects, eff)
	return nil
}

// Encode seals the session and produces the combined output. It is
// idempotent: subsequent calls return the status of the first.
func (e *Encoder) Encode() error {
	if e.sealed {
		return e.status
	}
	e.sealed = true
	e.status = e.encode()
	return e.status
}

// Output returns the encoded stream, or nil if the session has not sealed
// successfully. The buffer is borrowed and stays valid until Reset.
func (e *Encoder) Output() *CompressedImage {
	if !e.sealed || e.status != nil {
		return nil
	}
	return e.output
}

func (e *Encoder) encode() error {
	hdr := e.rawImages[IntentHDR]
	sdr := e.rawImages[IntentSDR]
	csdr := e.compressed[IntentSDR]
	cbase := e.compressed[IntentBase]
	cgm := e.compressed[IntentGainMap]

	switch {
	case cbase != nil && cgm != nil:
		return e.encodeRecompose(cbase, cgm)
	case hdr != nil:
		return e.encodeFromHDR(hdr, sdr, csdr)
	default:
		return errInvalidOperation("resources required for encode operation are not present")
	}
}

// encodeRecompose wraps an already compressed base and gain map into an
// UltraHDR container without touching pixels.
func (e *Encoder) encodeRecompose(cbase, cgm *CompressedImage) error {
	if len(e.effects) > 0 {
		return errInvalidOperation("image effects are not enabled for inputs with compressed intent")
	}
	if e.meta == nil {
		return errInvalidOperation("gain map metadata is not configured")
	}
	out, err := assembleContainer(cbase.Data, cgm.Data, e.meta)
	if err != nil {
		return errUnknown("%s", err.Error())
	}
	capacity := 2 * (len(cbase.Data) + len(cgm.Data))
	if capacity < minOutputCapacity {
		capacity = minOutputCapacity
	}
	if len(out) > capacity {
		return errMem("output buffer too small, capacity %d bytes, needs %d bytes", capacity, len(out))
	}
	e.output = &CompressedImage{
		Data:     out,
		Capacity: capacity,
		Gamut:    cbase.Gamut,
		Transfer: TransferSRGB,
		Range:    RangeFull,
	}
	return nil
}

// encodeFromHDR covers the raw hdr paths: synthesize or accept an sdr base,
// compute the gain map, compress and assemble.
func (e *Encoder) encodeFromHDR(hdr, sdr *RawImage, csdr *CompressedImage) error {
	if csdr != nil && sdr == nil {
		// Compressed base with no raw counterpart cannot be transformed.
		if len(e.effects) > 0 {
			return errInvalidOperation("image effects are not enabled for inputs with compressed intent")
		}
	} else {
		var err error
		hdr, sdr, err = applyEffectsEncoder(hdr, sdr, e.effects)
		if err != nil {
			return err
		}
	}

	gainSrc := sdr
	var baseJPEG []byte
	switch {
	case sdr == nil && csdr == nil:
		gainSrc = toneMapToSDR(hdr)
	case sdr == nil:
		dec, err := jpeg.Decode(bytes.NewReader(csdr.Data))
		if err != nil {
			return errUnknown("encountered error while decoding compressed sdr image: %s", err.Error())
		}
		b := dec.Bounds()
		if b.Dx() != hdr.Width || b.Dy() != hdr.Height {
			return errInvalidParam("compressed sdr image resolution %dx%d does not match raw hdr image resolution %dx%d",
				b.Dx(), b.Dy(), hdr.Width, hdr.Height)
		}
		gainSrc = rawSDRFromImage(dec, csdr.Gamut)
		baseJPEG = csdr.Data
	case csdr != nil:
		baseJPEG = csdr.Data
	}

	gm, meta := generateGainMap(hdr, gainSrc, e.gainMapScale, e.multiChannelGM, e.gamma)
	if gm == nil {
		return errUnknown("encountered unknown error while generating gain map")
	}
	if e.targetDisplayNits > 0 {
		peak := e.targetDisplayNits / sdrWhiteNits
		if peak < meta.HDRCapacityMin {
			peak = meta.HDRCapacityMin
		}
		meta.HDRCapacityMax = peak
	}

	if baseJPEG == nil {
		var err error
		baseJPEG, err = encodeWithQuality(ycbcrImageFromRaw(gainSrc), e.quality[IntentBase])
		if err != nil {
			return errUnknown("encountered error while encoding base image: %s", err.Error())
		}
	}

	var gmJPEG []byte
	var err error
	if gm.Format == FormatGray8 {
		gmJPEG, err = encodeWithQuality(grayImageFromRaw(gm), e.quality[IntentGainMap])
	} else {
		gmJPEG, err = encodeWithQuality(rgbaImageFromRaw(gm), e.quality[IntentGainMap])
	}
	if err != nil {
		return errUnknown("encountered error while encoding gain map image: %s", err.Error())
	}

	iso, err := buildIsoPayload(meta)
	if err != nil {
		return errUnknown("encountered error while serializing gain map metadata: %s", err.Error())
	}
	out, err := assembleContainerVipsLikeWithPrimaryXMP(baseJPEG, gmJPEG, e.exif, nil,
		generatePrimaryXMP(len(gmJPEG)), generateGainmapXMP(meta), iso)
	if err != nil {
		return errUnknown("%s", err.Error())
	}

	capacity := hdr.Width * hdr.Height * 6
	if capacity < minOutputCapacity {
		capacity = minOutputCapacity
	}
	if len(out) > capacity {
		return errMem("output buffer too small, capacity %d bytes, needs %d bytes", capacity, len(out))
	}
	e.output = &CompressedImage{
		Data:     out,
		Capacity: capacity,
		Gamut:    gainSrc.Gamut,
		Transfer: TransferSRGB,
		Range:    RangeFull,
	}
	return nil
}
