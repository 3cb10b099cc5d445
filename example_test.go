package jpegr_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vearutop/jpegr"
)

func ExampleIsUltraHDR() {
	f, err := os.Open(filepath.FromSlash("testdata/photo.jpg"))
	if err != nil {
		return
	}
	defer f.Close()

	ok, err := jpegr.IsUltraHDR(f)
	if err != nil {
		return
	}
	fmt.Println("carries a gain map:", ok)
}

// Splitting a container yields the component JPEGs plus a metadata bundle
// that can ride along as a JSON sidecar.
func ExampleSplit() {
	data, err := os.ReadFile(filepath.FromSlash("testdata/photo.jpg"))
	if err != nil {
		return
	}
	sr, err := jpegr.Split(data)
	if err != nil {
		return
	}
	bundle, err := jpegr.BuildMetadataBundle(sr.PrimaryJPEG, sr.Segs)
	if err != nil {
		return
	}
	sidecar, err := json.Marshal(bundle)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.FromSlash("testdata/photo.base.jpg"), sr.PrimaryJPEG, 0o644)
	_ = os.WriteFile(filepath.FromSlash("testdata/photo.gainmap.jpg"), sr.GainmapJPEG, 0o644)
	_ = os.WriteFile(filepath.FromSlash("testdata/photo.meta.json"), sidecar, 0o644)
}

// The sidecar from ExampleSplit is enough to put the container back together
// after the components have been edited or recompressed elsewhere.
func ExampleAssembleFromBundle() {
	primary, err := os.ReadFile(filepath.FromSlash("testdata/photo.base.jpg"))
	if err != nil {
		return
	}
	gainmap, err := os.ReadFile(filepath.FromSlash("testdata/photo.gainmap.jpg"))
	if err != nil {
		return
	}
	sidecar, err := os.ReadFile(filepath.FromSlash("testdata/photo.meta.json"))
	if err != nil {
		return
	}
	var bundle jpegr.MetadataBundle
	if err := json.Unmarshal(sidecar, &bundle); err != nil {
		return
	}
	container, err := jpegr.AssembleFromBundle(primary, gainmap, &bundle)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.FromSlash("testdata/photo.rebuilt.jpg"), container, 0o644)
}

func ExampleResizeUltraHDR() {
	data, err := os.ReadFile(filepath.FromSlash("testdata/photo.jpg"))
	if err != nil {
		return
	}
	res, err := jpegr.ResizeUltraHDR(data, 1024, 768, func(o *jpegr.ResizeOptions) {
		o.Interpolation = jpegr.InterpolationBicubic
		o.PrimaryQuality = 90
	})
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.FromSlash("testdata/photo.thumb.jpg"), res.Container, 0o644)
}

// ResizeJPEG scales one JPEG stream on its own. With keepMeta false the
// thumbnail drops the APP segments of the source.
func ExampleResizeJPEG() {
	data, err := os.ReadFile(filepath.FromSlash("testdata/photo.base.jpg"))
	if err != nil {
		return
	}
	thumb, err := jpegr.ResizeJPEG(data, 640, 480, 80, jpegr.InterpolationBilinear, false)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.FromSlash("testdata/photo.base.thumb.jpg"), thumb, 0o644)
}

func ExampleNewEncoder() {
	exrData, err := os.ReadFile(filepath.FromSlash("testdata/scene.exr"))
	if err != nil {
		return
	}
	hdr, err := jpegr.DecodeEXR(exrData)
	if err != nil {
		return
	}

	enc := jpegr.NewEncoder()
	if err := enc.SetRawImage(jpegr.RawFromHDR(hdr), jpegr.IntentHDR); err != nil {
		return
	}
	if err := enc.SetQuality(90, jpegr.IntentBase); err != nil {
		return
	}
	if err := enc.Encode(); err != nil {
		return
	}
	_ = os.WriteFile(filepath.FromSlash("testdata/scene.uhdr.jpg"), enc.Output().Data, 0o644)
}

func ExampleNewDecoder() {
	data, err := os.ReadFile(filepath.FromSlash("testdata/photo.jpg"))
	if err != nil {
		return
	}

	dec := jpegr.NewDecoder()
	if err := dec.SetImage(&jpegr.CompressedImage{Data: data}); err != nil {
		return
	}
	if err := dec.Probe(); err != nil {
		return
	}
	if err := dec.Decode(); err != nil {
		return
	}
	_ = dec.DecodedImage()
}
