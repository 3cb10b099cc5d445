package jpegr

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncoderSealLatchesStatus(t *testing.T) {
	enc := NewEncoder()

	err := enc.Encode()
	if CodeOf(err) != CodeInvalidOperation {
		t.Fatalf("empty encode: %v", err)
	}
	if !strings.Contains(err.Error(), "resources required for encode operation are not present") {
		t.Fatalf("unexpected detail: %v", err)
	}
	if again := enc.Encode(); again != err {
		t.Fatalf("status did not latch: %v vs %v", err, again)
	}
	if enc.Output() != nil {
		t.Fatal("output available after failed encode")
	}

	if err := enc.SetQuality(90, IntentBase); CodeOf(err) != CodeInvalidOperation {
		t.Fatalf("setter after seal: %v", err)
	}
	if err := enc.SetRawImage(gradientHDR(16, 16), IntentHDR); CodeOf(err) != CodeInvalidOperation {
		t.Fatalf("attach after seal: %v", err)
	}

	enc.Reset()
	if err := enc.SetRawImage(gradientHDR(16, 16), IntentHDR); err != nil {
		t.Fatalf("attach after reset: %v", err)
	}
	if err := enc.Encode(); err != nil {
		t.Fatalf("encode after reset: %v", err)
	}
	if enc.Output() == nil {
		t.Fatal("output missing after successful encode")
	}
}

func TestEncoderSetterValidation(t *testing.T) {
	enc := NewEncoder()

	if err := enc.SetRawImage(nil, IntentHDR); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("nil raw image: %v", err)
	}
	if err := enc.SetRawImage(gradientHDR(16, 16), IntentBase); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("raw image with base intent: %v", err)
	}
	odd := newRawImage(FormatRGBA1010102, GamutBT2100, TransferPQ, RangeFull, 15, 16)
	if err := enc.SetRawImage(odd, IntentHDR); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("odd width: %v", err)
	}
	tiny := newRawImage(FormatRGBA1010102, GamutBT2100, TransferPQ, RangeFull, 4, 4)
	if err := enc.SetRawImage(tiny, IntentHDR); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("undersized image: %v", err)
	}

	if err := enc.SetQuality(-1, IntentBase); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("negative quality: %v", err)
	}
	if err := enc.SetQuality(101, IntentBase); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("quality above range: %v", err)
	}
	if err := enc.SetGainMapScaleFactor(0); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("scale zero: %v", err)
	}
	if err := enc.SetGainMapGamma(0); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("gamma zero: %v", err)
	}
	if err := enc.SetTargetDisplayPeakBrightness(50); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("peak below sdr white: %v", err)
	}
	if err := enc.SetTargetDisplayPeakBrightness(20000); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("peak above pq max: %v", err)
	}
	if err := enc.SetOutputFormat(Codec(99)); CodeOf(err) != CodeUnsupportedFeature {
		t.Fatalf("bogus codec: %v", err)
	}
	if err := enc.SetPreset(EncoderPreset(99)); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("bogus preset: %v", err)
	}
	if err := enc.SetCompressedImage(&CompressedImage{Data: []byte{1}}, IntentGainMap); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("compressed with gainmap intent: %v", err)
	}
}

func TestEncoderRawResolutionMismatch(t *testing.T) {
	enc := NewEncoder()
	if err := enc.SetRawImage(gradientHDR(32, 32), IntentHDR); err != nil {
		t.Fatalf("attach hdr: %v", err)
	}
	sdr := rawSDRFromImage(gradientRGBA(16, 16), GamutBT709)
	err := enc.SetRawImage(sdr, IntentSDR)
	if CodeOf(err) != CodeInvalidParam {
		t.Fatalf("mismatched sdr accepted: %v", err)
	}
	if !strings.Contains(err.Error(), "resolutions do not match") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestEncodeFromHDROnly(t *testing.T) {
	enc := NewEncoder()
	if err := enc.SetRawImage(gradientHDR(64, 48), IntentHDR); err != nil {
		t.Fatalf("attach hdr: %v", err)
	}
	if err := enc.Encode(); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := enc.Output()
	if out == nil || len(out.Data) == 0 {
		t.Fatal("output missing")
	}
	if out.Transfer != TransferSRGB {
		t.Fatalf("output transfer %v", out.Transfer)
	}
	if out.Capacity < len(out.Data) {
		t.Fatalf("capacity %d below payload %d", out.Capacity, len(out.Data))
	}
	if !IsUHDRImage(out.Data) {
		t.Fatal("output does not probe as UltraHDR")
	}
}

func TestEncodeWithRawSDRBase(t *testing.T) {
	enc := NewEncoder()
	if err := enc.SetRawImage(gradientHDR(64, 48), IntentHDR); err != nil {
		t.Fatalf("attach hdr: %v", err)
	}
	if err := enc.SetRawImage(rawSDRFromImage(gradientRGBA(64, 48), GamutBT709), IntentSDR); err != nil {
		t.Fatalf("attach sdr: %v", err)
	}
	if err := enc.Encode(); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !IsUHDRImage(enc.Output().Data) {
		t.Fatal("output does not probe as UltraHDR")
	}
}

func TestEncodeWithCompressedSDRBase(t *testing.T) {
	base := synthPlainJPEG(t, 64, 48, false)

	enc := NewEncoder()
	if err := enc.SetRawImage(gradientHDR(64, 48), IntentHDR); err != nil {
		t.Fatalf("attach hdr: %v", err)
	}
	if err := enc.SetCompressedImage(&CompressedImage{Data: base}, IntentSDR); err != nil {
		t.Fatalf("attach compressed sdr: %v", err)
	}
	if err := enc.AddEffect(MirrorEffect{Direction: MirrorHorizontal}); err != nil {
		t.Fatalf("add effect: %v", err)
	}
	err := enc.Encode()
	if CodeOf(err) != CodeInvalidOperation {
		t.Fatalf("effects with compressed intent: %v", err)
	}
	if !strings.Contains(err.Error(), "image effects are not enabled for inputs with compressed intent") {
		t.Fatalf("unexpected detail: %v", err)
	}

	enc.Reset()
	if err := enc.SetRawImage(gradientHDR(64, 48), IntentHDR); err != nil {
		t.Fatalf("attach hdr: %v", err)
	}
	if err := enc.SetCompressedImage(&CompressedImage{Data: base}, IntentSDR); err != nil {
		t.Fatalf("attach compressed sdr: %v", err)
	}
	if err := enc.Encode(); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := enc.Output().Data
	sr, err := Split(out)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	// The compressed base stream passes through untouched apart from the
	// container segments, so its entropy-coded tail must survive.
	if !containsScanData(sr.PrimaryJPEG, base) {
		t.Fatal("compressed base was re-encoded")
	}
}

// containsScanData reports whether the entropy-coded segment of src appears
// in out.
func containsScanData(out, src []byte) bool {
	i := bytes.Index(src, []byte{0xFF, 0xDA})
	if i < 0 || i+64 > len(src) {
		return false
	}
	return bytes.Contains(out, src[i:i+64])
}

func TestEncodeCompressedSDRDimensionMismatch(t *testing.T) {
	enc := NewEncoder()
	if err := enc.SetRawImage(gradientHDR(64, 48), IntentHDR); err != nil {
		t.Fatalf("attach hdr: %v", err)
	}
	if err := enc.SetCompressedImage(&CompressedImage{Data: synthPlainJPEG(t, 32, 24, false)}, IntentSDR); err != nil {
		t.Fatalf("attach compressed sdr: %v", err)
	}
	err := enc.Encode()
	if CodeOf(err) != CodeInvalidParam {
		t.Fatalf("dimension mismatch accepted: %v", err)
	}
}

func TestEncodeRecompose(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)
	sr, err := Split(container)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	enc := NewEncoder()
	if err := enc.SetCompressedImage(&CompressedImage{Data: sr.PrimaryJPEG}, IntentBase); err != nil {
		t.Fatalf("attach base: %v", err)
	}
	if err := enc.SetGainMapImage(&CompressedImage{Data: sr.GainmapJPEG}, sr.Meta); err != nil {
		t.Fatalf("attach gainmap: %v", err)
	}
	if err := enc.Encode(); err != nil {
		t.Fatalf("recompose: %v", err)
	}
	out := enc.Output().Data
	if !IsUHDRImage(out) {
		t.Fatal("recomposed container does not probe")
	}
	sr2, err := Split(out)
	if err != nil {
		t.Fatalf("split recomposed: %v", err)
	}
	if len(sr2.GainmapJPEG) == 0 {
		t.Fatal("gainmap missing from recomposed container")
	}
}

func TestEncodeRecomposeRequiresMetadata(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)
	sr, err := Split(container)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	enc := NewEncoder()
	if err := enc.SetCompressedImage(&CompressedImage{Data: sr.PrimaryJPEG}, IntentBase); err != nil {
		t.Fatalf("attach base: %v", err)
	}
	if err := enc.SetGainMapImage(&CompressedImage{Data: sr.GainmapJPEG}, nil); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("nil metadata accepted: %v", err)
	}
}

func TestEncodeTargetDisplayPeakCapsCapacity(t *testing.T) {
	const peakNits = 406 // twice diffuse white

	container := encodeTestContainer(t, 64, 48, func(enc *Encoder) {
		if err := enc.SetTargetDisplayPeakBrightness(peakNits); err != nil {
			t.Fatalf("set peak: %v", err)
		}
	})
	sr, err := Split(container)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := float32(peakNits) / sdrWhiteNits
	got := sr.Meta.HDRCapacityMax
	if diff := got - want; diff < -0.05 || diff > 0.05 {
		t.Fatalf("hdr capacity max %g, want about %g", got, want)
	}
}

func TestEncodeWithEffects(t *testing.T) {
	enc := NewEncoder()
	if err := enc.SetRawImage(gradientHDR(64, 48), IntentHDR); err != nil {
		t.Fatalf("attach hdr: %v", err)
	}
	if err := enc.AddEffect(MirrorEffect{Direction: MirrorVertical}); err != nil {
		t.Fatalf("add mirror: %v", err)
	}
	if err := enc.AddEffect(RotateEffect{Degrees: 90}); err != nil {
		t.Fatalf("add rotate: %v", err)
	}
	if err := enc.Encode(); err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewDecoder()
	if err := dec.SetImage(enc.Output()); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := dec.Probe(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	// The rotate swaps the base dimensions.
	if dec.ImageWidth() != 48 || dec.ImageHeight() != 64 {
		t.Fatalf("rotated dimensions %dx%d", dec.ImageWidth(), dec.ImageHeight())
	}
}

func TestEncodeMultiChannelGainMap(t *testing.T) {
	container := encodeTestContainer(t, 64, 48, func(enc *Encoder) {
		if err := enc.SetMultiChannelGainMap(true); err != nil {
			t.Fatalf("set multi channel: %v", err)
		}
		if err := enc.SetGainMapScaleFactor(2); err != nil {
			t.Fatalf("set scale: %v", err)
		}
	})
	dec := NewDecoder()
	if err := dec.SetImage(&CompressedImage{Data: container}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := dec.Probe(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if dec.GainMapWidth() != 32 || dec.GainMapHeight() != 24 {
		t.Fatalf("gainmap dimensions %dx%d", dec.GainMapWidth(), dec.GainMapHeight())
	}
}
