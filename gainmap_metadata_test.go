package jpegr

import (
	"bytes"
	"strings"
	"testing"
)

func approxEq(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func sampleMetadata() *GainMapMetadata {
	return &GainMapMetadata{
		Version:         jpegrVersion,
		MaxContentBoost: [3]float32{6, 6, 6},
		MinContentBoost: [3]float32{1, 1, 1},
		Gamma:           [3]float32{1, 1, 1},
		OffsetSDR:       [3]float32{1.0 / 64, 1.0 / 64, 1.0 / 64},
		OffsetHDR:       [3]float32{1.0 / 64, 1.0 / 64, 1.0 / 64},
		HDRCapacityMin:  1,
		HDRCapacityMax:  6,
		UseBaseCG:       true,
	}
}

func TestXMPRoundTrip(t *testing.T) {
	meta := sampleMetadata()
	parsed, err := parseXMP(generateGainmapXMP(meta))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Version != meta.Version {
		t.Fatalf("version %q", parsed.Version)
	}
	const tol = 1e-3
	if !approxEq(parsed.MaxContentBoost[0], meta.MaxContentBoost[0], tol) {
		t.Fatalf("max content boost %g", parsed.MaxContentBoost[0])
	}
	if !approxEq(parsed.MinContentBoost[0], meta.MinContentBoost[0], tol) {
		t.Fatalf("min content boost %g", parsed.MinContentBoost[0])
	}
	if !approxEq(parsed.Gamma[0], meta.Gamma[0], tol) {
		t.Fatalf("gamma %g", parsed.Gamma[0])
	}
	if !approxEq(parsed.OffsetSDR[0], meta.OffsetSDR[0], tol) {
		t.Fatalf("offset sdr %g", parsed.OffsetSDR[0])
	}
	if !approxEq(parsed.HDRCapacityMax, meta.HDRCapacityMax, tol) {
		t.Fatalf("hdr capacity max %g", parsed.HDRCapacityMax)
	}
	// Single-channel values replicate into all three entries.
	for i := 1; i < 3; i++ {
		if parsed.MaxContentBoost[i] != parsed.MaxContentBoost[0] {
			t.Fatalf("channel %d not replicated", i)
		}
	}
}

func TestParseXMPErrors(t *testing.T) {
	if _, err := parseXMP([]byte("short")); err == nil {
		t.Fatal("expected error for undersized payload")
	}
	if _, err := parseXMP([]byte("http://wrong.namespace/\x00<x:xmpmeta></x:xmpmeta>")); err == nil {
		t.Fatal("expected error for namespace mismatch")
	}

	noMax := bytes.ReplaceAll(generateGainmapXMP(sampleMetadata()), []byte("hdrgm:GainMapMax"), []byte("hdrgm:Ignored"))
	if _, err := parseXMP(noMax); err == nil || !strings.Contains(err.Error(), "GainMapMax") {
		t.Fatalf("missing GainMapMax: %v", err)
	}

	hdrBase := bytes.ReplaceAll(generateGainmapXMP(sampleMetadata()),
		[]byte(`hdrgm:BaseRenditionIsHDR="False"`), []byte(`hdrgm:BaseRenditionIsHDR="True"`))
	if _, err := parseXMP(hdrBase); err == nil {
		t.Fatal("expected error for HDR base rendition")
	}
}

func TestPrimaryXMPCarriesGainmapLength(t *testing.T) {
	payload := generatePrimaryXMP(12345)
	if !bytes.HasPrefix(payload, append([]byte(xmpNamespace), 0)) {
		t.Fatal("namespace prefix missing")
	}
	if !bytes.Contains(payload, []byte(`Item:Length="12345"`)) {
		t.Fatal("gainmap length missing")
	}
	if !bytes.Contains(payload, []byte(`Item:Semantic="GainMap"`)) {
		t.Fatal("gainmap item missing")
	}
}

func TestISORoundTripSingleChannel(t *testing.T) {
	meta := sampleMetadata()
	encoded, err := encodeGainmapMetadataISO(meta)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parsed, err := decodeGainmapMetadataISO(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	const tol = 1e-4
	for i := 0; i < 3; i++ {
		if !approxEq(parsed.MaxContentBoost[i], meta.MaxContentBoost[i], tol) {
			t.Fatalf("max content boost[%d] %g", i, parsed.MaxContentBoost[i])
		}
		if !approxEq(parsed.MinContentBoost[i], meta.MinContentBoost[i], tol) {
			t.Fatalf("min content boost[%d] %g", i, parsed.MinContentBoost[i])
		}
		if !approxEq(parsed.Gamma[i], meta.Gamma[i], tol) {
			t.Fatalf("gamma[%d] %g", i, parsed.Gamma[i])
		}
		if !approxEq(parsed.OffsetSDR[i], meta.OffsetSDR[i], tol) {
			t.Fatalf("offset sdr[%d] %g", i, parsed.OffsetSDR[i])
		}
		if !approxEq(parsed.OffsetHDR[i], meta.OffsetHDR[i], tol) {
			t.Fatalf("offset hdr[%d] %g", i, parsed.OffsetHDR[i])
		}
	}
	if !approxEq(parsed.HDRCapacityMin, meta.HDRCapacityMin, tol) {
		t.Fatalf("hdr capacity min %g", parsed.HDRCapacityMin)
	}
	if !approxEq(parsed.HDRCapacityMax, meta.HDRCapacityMax, tol) {
		t.Fatalf("hdr capacity max %g", parsed.HDRCapacityMax)
	}
	if !parsed.UseBaseCG {
		t.Fatal("base color space flag lost")
	}
}

func TestISORoundTripMultiChannel(t *testing.T) {
	meta := sampleMetadata()
	meta.MaxContentBoost = [3]float32{4, 5, 6}
	meta.MinContentBoost = [3]float32{1, 1.5, 2}
	meta.Gamma = [3]float32{1, 1.2, 0.8}

	encoded, err := encodeGainmapMetadataISO(meta)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parsed, err := decodeGainmapMetadataISO(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	const tol = 1e-4
	for i := 0; i < 3; i++ {
		if !approxEq(parsed.MaxContentBoost[i], meta.MaxContentBoost[i], tol) {
			t.Fatalf("max content boost[%d] %g", i, parsed.MaxContentBoost[i])
		}
		if !approxEq(parsed.MinContentBoost[i], meta.MinContentBoost[i], tol) {
			t.Fatalf("min content boost[%d] %g", i, parsed.MinContentBoost[i])
		}
		if !approxEq(parsed.Gamma[i], meta.Gamma[i], tol) {
			t.Fatalf("gamma[%d] %g", i, parsed.Gamma[i])
		}
	}
}

func TestISODecodeErrors(t *testing.T) {
	if _, err := decodeGainmapMetadataISO(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := decodeGainmapMetadataISO([]byte{0, 1, 0, 0, 0}); err == nil {
		t.Fatal("expected error for unsupported min_version")
	}
	valid, err := encodeGainmapMetadataISO(sampleMetadata())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := decodeGainmapMetadataISO(valid[:len(valid)-3]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestBuildIsoPayloadPrefix(t *testing.T) {
	payload, err := buildIsoPayload(sampleMetadata())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !bytes.HasPrefix(payload, append([]byte(isoNamespace), 0)) {
		t.Fatal("iso namespace prefix missing")
	}
	if _, err := decodeGainmapMetadataISO(payload[len(isoNamespace)+1:]); err != nil {
		t.Fatalf("decode payload body: %v", err)
	}
}

func TestFloatToFractionExact(t *testing.T) {
	var n, d uint32
	if err := floatToUnsignedFraction(0.5, &n, &d); err != nil {
		t.Fatalf("encode 0.5: %v", err)
	}
	if float64(n)/float64(d) != 0.5 {
		t.Fatalf("0.5 encoded as %d/%d", n, d)
	}
	if err := floatToUnsignedFraction(1, &n, &d); err != nil {
		t.Fatalf("encode 1: %v", err)
	}
	if n != d {
		t.Fatalf("1 encoded as %d/%d", n, d)
	}

	var sn int32
	if err := floatToSignedFraction(-2.25, &sn, &d); err != nil {
		t.Fatalf("encode -2.25: %v", err)
	}
	if float64(sn)/float64(d) != -2.25 {
		t.Fatalf("-2.25 encoded as %d/%d", sn, d)
	}
}
