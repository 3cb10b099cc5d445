package jpegr

import (
	"bytes"
	"image"
	"testing"
)

func TestResizeJPEGBatchMatchesSingle(t *testing.T) {
	data := synthPlainJPEG(t, 120, 80, true)

	specs := []ResizeJPEGSpec{
		{Width: 90, Height: 60, Quality: 85, Interpolation: InterpolationLanczos2, KeepMeta: true},
		{Width: 60, Height: 40, Quality: 82, Interpolation: InterpolationLanczos2, KeepMeta: false},
		{Width: 30, Height: 20, Quality: 78, Interpolation: InterpolationBilinear, KeepMeta: false},
		{Width: 30, Height: 20, Quality: 92, Interpolation: InterpolationBilinear, KeepMeta: true},
	}

	batch, err := ResizeJPEGBatch(data, specs)
	if err != nil {
		t.Fatalf("batch resize: %v", err)
	}
	if len(batch) != len(specs) {
		t.Fatalf("unexpected outputs: got %d want %d", len(batch), len(specs))
	}

	for i, s := range specs {
		if batch[i].Spec != s {
			t.Fatalf("spec mismatch at index %d", i)
		}
		single, err := ResizeJPEG(data, s.Width, s.Height, s.Quality, s.Interpolation, s.KeepMeta)
		if err != nil {
			t.Fatalf("single resize %d: %v", i, err)
		}
		if !bytes.Equal(batch[i].Data, single) {
			t.Fatalf("output mismatch at index %d", i)
		}

		cfg, _, err := image.DecodeConfig(bytes.NewReader(batch[i].Data))
		if err != nil {
			t.Fatalf("decode config %d: %v", i, err)
		}
		if cfg.Width != int(s.Width) || cfg.Height != int(s.Height) {
			t.Fatalf("dims mismatch at index %d: got %dx%d want %dx%d", i, cfg.Width, cfg.Height, s.Width, s.Height)
		}

		exif, _, err := extractExifAndIcc(batch[i].Data)
		if err != nil {
			t.Fatalf("extract meta %d: %v", i, err)
		}
		if s.KeepMeta && exif == nil {
			t.Fatalf("exif missing at index %d", i)
		}
		if !s.KeepMeta && exif != nil {
			t.Fatalf("exif survived a strip resize at index %d", i)
		}
	}
}

func TestResizeJPEGBatchInvalid(t *testing.T) {
	data := synthPlainJPEG(t, 40, 30, false)

	if _, err := ResizeJPEGBatch(data, nil); err == nil {
		t.Fatal("expected error for empty specs")
	}

	if _, err := ResizeJPEGBatch(data, []ResizeJPEGSpec{{Width: 0, Height: 100, Quality: 80}}); err == nil {
		t.Fatal("expected error for zero width")
	}

	if _, err := ResizeJPEGBatch([]byte("not a jpeg"), []ResizeJPEGSpec{{Width: 10, Height: 10, Quality: 80}}); err == nil {
		t.Fatal("expected error for invalid source")
	}
}
