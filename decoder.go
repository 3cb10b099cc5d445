package jpegr

import (
	"bytes"
	"image/jpeg"
	"math"
)

// Decoder is a single-shot decoding session. Attach an UltraHDR stream,
// optionally probe it for dimensions and metadata, then call Decode once.
// Probe and Decode latch their statuses; Reset returns the session to a
// fresh state.
//
// A session is not safe for concurrent use.
type Decoder struct {
	input           *CompressedImage
	outFormat       ImageFormat
	outTransfer     ColorTransfer
	maxDisplayBoost float32
	effects         []Effect

	probed      bool
	probeStatus error
	sealed      bool
	status      error

	imgW, imgH int
	gmW, gmH   int
	meta       *GainMapMetadata
	exif       []byte
	icc        []byte
	baseXMP    []byte
	gainmapXMP []byte

	primaryJPEG []byte
	gainmapJPEG []byte

	decoded   *RawImage
	decodedGM *RawImage
}

// NewDecoder returns a fresh decoding session with default settings.
func NewDecoder() *Decoder {
	d := &Decoder{}
	d.Reset()
	return d
}

// Reset clears the attachment, probe extracts, decoded surfaces and phase
// flags, and restores the default output preferences.
func (d *Decoder) Reset() {
	d.input = nil
	d.outFormat = FormatRGBAF16
	d.outTransfer = TransferLinear
	d.maxDisplayBoost = float32(math.MaxFloat32)
	d.effects = nil
	d.probed = false
	d.probeStatus = nil
	d.sealed = false
	d.status = nil
	d.imgW, d.imgH = -1, -1
	d.gmW, d.gmH = -1, -1
	d.meta = nil
	d.exif = nil
	d.icc = nil
	d.baseXMP = nil
	d.gainmapXMP = nil
	d.primaryJPEG = nil
	d.gainmapJPEG = nil
	d.decoded = nil
	d.decodedGM = nil
}

func (d *Decoder) configurable() error {
	if d.sealed {
		return errInvalidOperation("an earlier call to Decode() has switched the session from configurable state to end state, call Reset() to reconfigure")
	}
	return nil
}

// SetImage attaches the compressed UltraHDR stream. The bytes are copied
// into session-owned storage.
func (d *Decoder) SetImage(img *CompressedImage) error {
	if err := d.configurable(); err != nil {
		return err
	}
	if d.probed {
		return errInvalidOperation("an earlier call to Probe() has bound the session to its input, call Reset() to attach a new image")
	}
	if err := validateCompressedImage(img); err != nil {
		return err
	}
	d.input = img.clone()
	return nil
}

// SetOutputFormat selects the pixel format of the decoded image.
func (d *Decoder) SetOutputFormat(f ImageFormat) error {
	if err := d.configurable(); err != nil {
		return err
	}
	switch f {
	case FormatRGBA8888, FormatRGBA1010102, FormatRGBAF16:
		d.outFormat = f
		return nil
	}
	return errInvalidParam("unsupported output pixel format %v, expects one of {rgba8888, rgba1010102, rgbaf16}", f)
}

// SetOutputTransfer selects the transfer function of the decoded image.
func (d *Decoder) SetOutputTransfer(ct ColorTransfer) error {
	if err := d.configurable(); err != nil {
		return err
	}
	switch ct {
	case TransferSRGB, TransferLinear, TransferPQ, TransferHLG:
		d.outTransfer = ct
		return nil
	}
	return errInvalidParam("unsupported output color transfer %v, expects one of {srgb, linear, pq, hlg}", ct)
}

// SetMaxDisplayBoost caps the applied gain at the display's boost capacity
// relative to SDR white. Values below 1 are rejected.
func (d *Decoder) SetMaxDisplayBoost(boost float32) error {
	if err := d.configurable(); err != nil {
		return err
	}
	if boost < 1 {
		return errInvalidParam("unsupported max display boost %f, expects to be >= 1.0", boost)
	}
	d.maxDisplayBoost = boost
	return nil
}

// AddEffect appends an effect applied to the decoded image and gain map
// pair after decoding.
func (d *Decoder) AddEffect(eff Effect) error {
	if err := d.configurable(); err != nil {
		return err
	}
	if err := validateEffect(eff); err != nil {
		return err
	}
	d.effects = append(d.effects, eff)
	return nil
}

// Probe parses the container headers and caches dimensions, metadata and
// the EXIF/ICC/XMP extracts. It is idempotent: the first status latches.
func (d *Decoder) Probe() error {
	if d.probed {
		return d.probeStatus
	}
	d.probed = true
	d.probeStatus = d.probe()
	return d.probeStatus
}

func (d *Decoder) probe() error {
	if d.input == nil {
		return errInvalidOperation("resources required for probe operation are not present")
	}
	ranges, err := scanJPEGs(d.input.Data)
	if err != nil || len(ranges) < 2 {
		return errUnknown("encountered error while parsing metadata")
	}
	d.primaryJPEG = append([]byte(nil), d.input.Data[ranges[0][0]:ranges[0][1]]...)
	d.gainmapJPEG = append([]byte(nil), d.input.Data[ranges[1][0]:ranges[1][1]]...)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(d.primaryJPEG))
	if err != nil {
		return errUnknown("encountered error while parsing metadata")
	}
	gmCfg, err := jpeg.DecodeConfig(bytes.NewReader(d.gainmapJPEG))
	if err != nil {
		return errUnknown("encountered error while parsing metadata")
	}

	exif, iccSegs, err := extractExifAndIcc(d.primaryJPEG)
	if err == nil {
		d.exif = exif
		d.icc = collectICCProfile(iccSegs)
	}
	if hApp1, _, err := extractContainerHeaderSegments(d.input.Data); err == nil {
		d.baseXMP = findXMP(hApp1)
	}

	gApp1, gApp2, err := extractAppSegments(d.gainmapJPEG)
	if err != nil {
		return errUnknown("encountered error while parsing metadata")
	}
	d.gainmapXMP = findXMP(gApp1)
	if iso := findISO(gApp2); iso != nil {
		d.meta, err = decodeGainmapMetadataISO(iso[len(isoNamespace)+1:])
	} else if d.gainmapXMP != nil {
		d.meta, err = parseXMP(d.gainmapXMP)
	} else {
		return errUnknown("encountered error while parsing metadata")
	}
	if err != nil || d.meta == nil {
		return errUnknown("encountered error while parsing metadata")
	}

	d.imgW, d.imgH = cfg.Width, cfg.Height
	d.gmW, d.gmH = gmCfg.Width, gmCfg.Height
	return nil
}

// Decode seals the session and produces the requested rendition plus the
// decoded gain map. It runs Probe first and surfaces its error verbatim.
func (d *Decoder) Decode() error {
	if d.sealed {
		return d.status
	}
	d.sealed = true
	d.status = d.decode()
	return d.status
}

func (d *Decoder) decode() error {
	if err := d.Probe(); err != nil {
		return err
	}
	switch {
	case d.outTransfer == TransferHLG && d.outFormat == FormatRGBA1010102:
	case d.outTransfer == TransferPQ && d.outFormat == FormatRGBA1010102:
	case d.outTransfer == TransferLinear && d.outFormat == FormatRGBAF16:
	case d.outTransfer == TransferSRGB && d.outFormat == FormatRGBA8888:
	default:
		return errInvalidParam("unsupported output pixel format and output color transfer pair")
	}

	base, err := jpeg.Decode(bytes.NewReader(d.primaryJPEG))
	if err != nil {
		return errUnknown("encountered error while decoding base image: %s", err.Error())
	}
	gm, err := jpeg.Decode(bytes.NewReader(d.gainmapJPEG))
	if err != nil {
		return errUnknown("encountered error while decoding gain map image: %s", err.Error())
	}

	gamut := gamutFromICC(d.icc)

	img := applyGainMapRendition(base, gm, d.meta, d.outFormat, d.outTransfer, d.maxDisplayBoost, gamut)
	gmRaw := grayFromImage(gm)
	if img == nil || gmRaw == nil {
		return errUnknown("encountered unknown error while applying gain map")
	}

	img, gmRaw, err = applyEffectsDecoder(img, gmRaw, d.effects)
	if err != nil {
		return err
	}
	d.decoded = img
	d.decodedGM = gmRaw
	return nil
}

// ImageWidth returns the probed base image width, or -1 before a
// successful probe.
func (d *Decoder) ImageWidth() int { return d.imgW }

// ImageHeight returns the probed base image height, or -1 before a
// successful probe.
func (d *Decoder) ImageHeight() int { return d.imgH }

// GainMapWidth returns the probed gain map width, or -1 before a
// successful probe.
func (d *Decoder) GainMapWidth() int { return d.gmW }

// GainMapHeight returns the probed gain map height, or -1 before a
// successful probe.
func (d *Decoder) GainMapHeight() int { return d.gmH }

// Metadata returns the parsed gain map metadata, or nil before a
// successful probe. The record is borrowed.
func (d *Decoder) Metadata() *GainMapMetadata { return d.meta }

// Exif returns the primary image EXIF payload, or nil when absent.
func (d *Decoder) Exif() []byte { return d.exif }

// ICC returns the assembled primary image ICC profile, or nil when absent.
func (d *Decoder) ICC() []byte { return d.icc }

// BaseXMP returns the primary image XMP payload, or nil when absent.
func (d *Decoder) BaseXMP() []byte { return d.baseXMP }

// GainMapXMP returns the gain map image XMP payload, or nil when absent.
func (d *Decoder) GainMapXMP() []byte { return d.gainmapXMP }

// DecodedImage returns the decoded rendition, or nil if the session has not
// sealed successfully. The buffer is borrowed and stays valid until Reset.
func (d *Decoder) DecodedImage() *RawImage {
	if !d.sealed || d.status != nil {
		return nil
	}
	return d.decoded
}

// DecodedGainMap returns the decoded gain map as a Gray8 image, or nil if
// the session has not sealed successfully.
func (d *Decoder) DecodedGainMap() *RawImage {
	if !d.sealed || d.status != nil {
		return nil
	}
	return d.decodedGM
}

// IsUHDRImage reports whether data parses as an UltraHDR image. It runs a
// throwaway decoder session through Probe.
func IsUHDRImage(data []byte) bool {
	d := NewDecoder()
	if err := d.SetImage(&CompressedImage{Data: data, Capacity: len(data)}); err != nil {
		return false
	}
	return d.Probe() == nil
}
