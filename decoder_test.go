package jpegr

import (
	"strings"
	"testing"
)

func TestDecoderFreshAccessors(t *testing.T) {
	dec := NewDecoder()
	if dec.ImageWidth() != -1 || dec.ImageHeight() != -1 {
		t.Fatalf("fresh image dimensions %dx%d", dec.ImageWidth(), dec.ImageHeight())
	}
	if dec.GainMapWidth() != -1 || dec.GainMapHeight() != -1 {
		t.Fatalf("fresh gainmap dimensions %dx%d", dec.GainMapWidth(), dec.GainMapHeight())
	}
	if dec.Metadata() != nil || dec.Exif() != nil || dec.ICC() != nil {
		t.Fatal("fresh session leaks probe extracts")
	}
	if dec.DecodedImage() != nil || dec.DecodedGainMap() != nil {
		t.Fatal("fresh session leaks decoded surfaces")
	}
}

func TestDecoderProbeLatchesStatus(t *testing.T) {
	dec := NewDecoder()

	err := dec.Probe()
	if CodeOf(err) != CodeInvalidOperation {
		t.Fatalf("probe without image: %v", err)
	}
	if again := dec.Probe(); again != err {
		t.Fatalf("probe status did not latch: %v vs %v", err, again)
	}

	container := encodeTestContainer(t, 64, 48)
	if err := dec.SetImage(&CompressedImage{Data: container}); CodeOf(err) != CodeInvalidOperation {
		t.Fatalf("attach after probe: %v", err)
	}

	dec.Reset()
	if err := dec.SetImage(&CompressedImage{Data: container}); err != nil {
		t.Fatalf("attach after reset: %v", err)
	}
	if err := dec.Probe(); err != nil {
		t.Fatalf("probe after reset: %v", err)
	}
}

func TestDecoderProbeExtracts(t *testing.T) {
	container := encodeTestContainer(t, 64, 48, func(enc *Encoder) {
		if err := enc.SetExif(minimalExif); err != nil {
			t.Fatalf("set exif: %v", err)
		}
	})

	dec := NewDecoder()
	if err := dec.SetImage(&CompressedImage{Data: container}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := dec.Probe(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if dec.ImageWidth() != 64 || dec.ImageHeight() != 48 {
		t.Fatalf("image dimensions %dx%d", dec.ImageWidth(), dec.ImageHeight())
	}
	// Default gain map downscale is 4.
	if dec.GainMapWidth() != 16 || dec.GainMapHeight() != 12 {
		t.Fatalf("gainmap dimensions %dx%d", dec.GainMapWidth(), dec.GainMapHeight())
	}
	meta := dec.Metadata()
	if meta == nil || meta.MaxContentBoost[0] <= meta.MinContentBoost[0] {
		t.Fatalf("metadata missing or degenerate: %+v", meta)
	}
	if dec.Exif() == nil {
		t.Fatal("exif missing from probe")
	}
	if dec.GainMapXMP() == nil {
		t.Fatal("gainmap xmp missing from probe")
	}
}

func TestDecoderDecodeDefaultRendition(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)

	dec := NewDecoder()
	if err := dec.SetImage(&CompressedImage{Data: container}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := dec.Decode(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	img := dec.DecodedImage()
	if img == nil {
		t.Fatal("decoded image missing")
	}
	if img.Format != FormatRGBAF16 {
		t.Fatalf("decoded format %v", img.Format)
	}
	if img.Width != 64 || img.Height != 48 {
		t.Fatalf("decoded dimensions %dx%d", img.Width, img.Height)
	}
	gm := dec.DecodedGainMap()
	if gm == nil || gm.Format != FormatGray8 {
		t.Fatalf("decoded gainmap missing or wrong format")
	}

	// Linear float output of HDR content must exceed diffuse white somewhere.
	hdr, err := HDRFromRaw(img)
	if err != nil {
		t.Fatalf("hdr bridge: %v", err)
	}
	var peak float32
	for _, v := range hdr.Pix {
		if v > peak {
			peak = v
		}
	}
	if peak <= 1.0 {
		t.Fatalf("reconstruction peak %g does not exceed diffuse white", peak)
	}
}

func TestDecoderOutputPairs(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)

	cases := []struct {
		format   ImageFormat
		transfer ColorTransfer
		ok       bool
	}{
		{FormatRGBAF16, TransferLinear, true},
		{FormatRGBA8888, TransferSRGB, true},
		{FormatRGBA1010102, TransferPQ, true},
		{FormatRGBA1010102, TransferHLG, true},
		{FormatRGBA8888, TransferPQ, false},
		{FormatRGBAF16, TransferSRGB, false},
		{FormatRGBA1010102, TransferLinear, false},
	}
	for _, c := range cases {
		dec := NewDecoder()
		if err := dec.SetImage(&CompressedImage{Data: container}); err != nil {
			t.Fatalf("attach: %v", err)
		}
		if err := dec.SetOutputFormat(c.format); err != nil {
			t.Fatalf("set format %v: %v", c.format, err)
		}
		if err := dec.SetOutputTransfer(c.transfer); err != nil {
			t.Fatalf("set transfer %v: %v", c.transfer, err)
		}
		err := dec.Decode()
		if c.ok {
			if err != nil {
				t.Fatalf("decode %v/%v: %v", c.format, c.transfer, err)
			}
			img := dec.DecodedImage()
			if img == nil || img.Format != c.format || img.Transfer != c.transfer {
				t.Fatalf("decoded surface mismatch for %v/%v", c.format, c.transfer)
			}
			continue
		}
		if CodeOf(err) != CodeInvalidParam {
			t.Fatalf("pair %v/%v accepted: %v", c.format, c.transfer, err)
		}
		if !strings.Contains(err.Error(), "unsupported output pixel format and output color transfer pair") {
			t.Fatalf("unexpected detail: %v", err)
		}
	}
}

func TestDecoderMaxDisplayBoostCapsGain(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)

	decode := func(boost float32) *HDRImage {
		dec := NewDecoder()
		if err := dec.SetImage(&CompressedImage{Data: container}); err != nil {
			t.Fatalf("attach: %v", err)
		}
		if boost > 0 {
			if err := dec.SetMaxDisplayBoost(boost); err != nil {
				t.Fatalf("set boost: %v", err)
			}
		}
		if err := dec.Decode(); err != nil {
			t.Fatalf("decode: %v", err)
		}
		hdr, err := HDRFromRaw(dec.DecodedImage())
		if err != nil {
			t.Fatalf("hdr bridge: %v", err)
		}
		return hdr
	}

	peak := func(h *HDRImage) float32 {
		var p float32
		for _, v := range h.Pix {
			if v > p {
				p = v
			}
		}
		return p
	}

	full := peak(decode(0))
	capped := peak(decode(1))
	if capped > 1.01 {
		t.Fatalf("boost 1 rendition peaks at %g", capped)
	}
	if full <= capped {
		t.Fatalf("uncapped rendition (%g) not brighter than capped (%g)", full, capped)
	}

	dec := NewDecoder()
	if err := dec.SetMaxDisplayBoost(0.5); CodeOf(err) != CodeInvalidParam {
		t.Fatalf("boost below one accepted: %v", err)
	}
}

func TestDecoderEffects(t *testing.T) {
	container := encodeTestContainer(t, 64, 48)

	dec := NewDecoder()
	if err := dec.SetImage(&CompressedImage{Data: container}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := dec.AddEffect(RotateEffect{Degrees: 90}); err != nil {
		t.Fatalf("add rotate: %v", err)
	}
	if err := dec.Decode(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	img := dec.DecodedImage()
	if img.Width != 48 || img.Height != 64 {
		t.Fatalf("rotated dimensions %dx%d", img.Width, img.Height)
	}
	gm := dec.DecodedGainMap()
	if gm.Width != 12 || gm.Height != 16 {
		t.Fatalf("rotated gainmap dimensions %dx%d", gm.Width, gm.Height)
	}
}

func TestDecoderDecodeLatches(t *testing.T) {
	dec := NewDecoder()
	err := dec.Decode()
	if CodeOf(err) != CodeInvalidOperation {
		t.Fatalf("decode without image: %v", err)
	}
	if again := dec.Decode(); again != err {
		t.Fatalf("decode status did not latch")
	}
	if err := dec.SetOutputFormat(FormatRGBA8888); CodeOf(err) != CodeInvalidOperation {
		t.Fatalf("setter after seal: %v", err)
	}
}

func TestIsUHDRImage(t *testing.T) {
	if !IsUHDRImage(encodeTestContainer(t, 64, 48)) {
		t.Fatal("container not recognized")
	}
	if IsUHDRImage(synthPlainJPEG(t, 64, 48, false)) {
		t.Fatal("plain jpeg recognized as UltraHDR")
	}
	if IsUHDRImage([]byte("not an image")) {
		t.Fatal("garbage recognized as UltraHDR")
	}
}
