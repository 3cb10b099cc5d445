package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"gopkg.in/yaml.v2"

	"github.com/vearutop/jpegr"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmds := map[string]func([]string) error{
		"encode": runEncode,
		"decode": runDecode,
		"info":   runInfo,
		"resize": runResize,
		"rebase": runRebase,
		"detect": runDetect,
		"split":  runSplit,
		"join":   runJoin,
	}
	cmd, ok := cmds[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}
	if err := cmd(os.Args[2:]); err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: uhdrtool <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  encode -in input.{exr,tif,hdr} -out output.jpg [-config enc.yaml]")
	fmt.Fprintln(os.Stderr, "  decode -in uhdr.jpg -out output.hdr [-boost 4.0]")
	fmt.Fprintln(os.Stderr, "  info   -in input.jpg")
	fmt.Fprintln(os.Stderr, "  resize -in input.jpg -out output.jpg -w 2400 -h 1600 [-q 85] [-gq 75] [-primary-out p.jpg] [-gainmap-out g.jpg]")
	fmt.Fprintln(os.Stderr, "  rebase -in uhdr.jpg -primary better_sdr.jpg -out output.jpg [-q 95] [-gq 85] [-primary-out p.jpg] [-gainmap-out g.jpg]")
	fmt.Fprintln(os.Stderr, "  detect -in input.jpg")
	fmt.Fprintln(os.Stderr, "  split  -in input.jpg -primary-out primary.jpg -gainmap-out gainmap.jpg [-meta-out meta.json]")
	fmt.Fprintln(os.Stderr, "  join   -meta meta.json -primary primary.jpg -gainmap gainmap.jpg -out output.jpg")
	fmt.Fprintln(os.Stderr, "        (or) join -template input.jpg -primary primary.jpg -gainmap gainmap.jpg -out output.jpg")
}

// encodeConfig is the yaml shape of the encoder settings file.
type encodeConfig struct {
	Quality           int     `yaml:"quality"`
	GainmapQuality    int     `yaml:"gainmap_quality"`
	GainmapScale      int     `yaml:"gainmap_scale"`
	MultiChannel      bool    `yaml:"multi_channel_gainmap"`
	Gamma             float32 `yaml:"gainmap_gamma"`
	TargetDisplayNits float32 `yaml:"target_display_nits"`
}

func loadEncodeConfig(path string) (encodeConfig, error) {
	var c encodeConfig
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(contents, &c)
	return c, err
}

// loadHDRInput reads an HDR image file, dispatching on the extension.
func loadHDRInput(path string) (*jpegr.HDRImage, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exr":
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		return jpegr.DecodeEXR(data)
	case ".tif", ".tiff":
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		return jpegr.DecodeTIFFHDR(data)
	case ".hdr", ".pic":
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return jpegr.DecodeRadianceHDR(f)
	default:
		return nil, fmt.Errorf("unsupported HDR input %q, expects .exr, .tif or .hdr", filepath.Ext(path))
	}
}

func runEncode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	inPath := fs.String("in", "", "input HDR image (.exr, .tif, .hdr)")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	configPath := fs.String("config", "", "encoder settings yaml")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}

	hdrImg, err := loadHDRInput(*inPath)
	if err != nil {
		return err
	}

	var cfg encodeConfig
	if *configPath != "" {
		cfg, err = loadEncodeConfig(*configPath)
		if err != nil {
			return err
		}
	}

	enc := jpegr.NewEncoder()
	if err := enc.SetRawImage(jpegr.RawFromHDR(hdrImg), jpegr.IntentHDR); err != nil {
		return err
	}
	if cfg.Quality > 0 {
		if err := enc.SetQuality(cfg.Quality, jpegr.IntentBase); err != nil {
			return err
		}
	}
	if cfg.GainmapQuality > 0 {
		if err := enc.SetQuality(cfg.GainmapQuality, jpegr.IntentGainMap); err != nil {
			return err
		}
	}
	if cfg.GainmapScale > 0 {
		if err := enc.SetGainMapScaleFactor(cfg.GainmapScale); err != nil {
			return err
		}
	}
	if cfg.MultiChannel {
		if err := enc.SetMultiChannelGainMap(true); err != nil {
			return err
		}
	}
	if cfg.Gamma > 0 {
		if err := enc.SetGainMapGamma(cfg.Gamma); err != nil {
			return err
		}
	}
	if cfg.TargetDisplayNits > 0 {
		if err := enc.SetTargetDisplayPeakBrightness(cfg.TargetDisplayNits); err != nil {
			return err
		}
	}
	if err := enc.Encode(); err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), enc.Output().Data, 0o644)
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	outPath := fs.String("out", "", "output Radiance HDR file")
	boost := fs.Float64("boost", 0, "max display boost (>= 1.0)")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}

	dec := jpegr.NewDecoder()
	if err := dec.SetImage(&jpegr.CompressedImage{Data: data}); err != nil {
		return err
	}
	if *boost > 0 {
		if err := dec.SetMaxDisplayBoost(float32(*boost)); err != nil {
			return err
		}
	}
	if err := dec.Decode(); err != nil {
		return err
	}
	hdrImg, err := jpegr.HDRFromRaw(dec.DecodedImage())
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Clean(*outPath))
	if err != nil {
		return err
	}
	defer f.Close()
	return jpegr.EncodeRadianceHDR(f, hdrImg)
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	inPath := fs.String("in", "", "input JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}

	dec := jpegr.NewDecoder()
	if err := dec.SetImage(&jpegr.CompressedImage{Data: data}); err != nil {
		return err
	}
	if err := dec.Probe(); err != nil {
		return err
	}
	fmt.Printf("image: %dx%d\n", dec.ImageWidth(), dec.ImageHeight())
	fmt.Printf("gainmap: %dx%d\n", dec.GainMapWidth(), dec.GainMapHeight())
	if m := dec.Metadata(); m != nil {
		fmt.Printf("max content boost: %v\n", m.MaxContentBoost)
		fmt.Printf("min content boost: %v\n", m.MinContentBoost)
		fmt.Printf("gamma: %v\n", m.Gamma)
		fmt.Printf("offset sdr: %v\n", m.OffsetSDR)
		fmt.Printf("offset hdr: %v\n", m.OffsetHDR)
		fmt.Printf("hdr capacity: [%g, %g]\n", m.HDRCapacityMin, m.HDRCapacityMax)
	}
	if icc := dec.ICC(); len(icc) > 0 {
		fmt.Printf("icc profile: %d bytes\n", len(icc))
	}

	ex, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	for _, name := range []exif.FieldName{
		exif.Make, exif.Model, exif.DateTime,
		exif.ISOSpeedRatings, exif.ExposureTime, exif.FNumber,
	} {
		tag, err := ex.Get(name)
		if err != nil {
			continue
		}
		fmt.Printf("exif %s: %s\n", name, tag.String())
	}
	return nil
}

func runResize(args []string) error {
	fs := flag.NewFlagSet("resize", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	width := fs.Int("w", 0, "target width")
	height := fs.Int("h", 0, "target height")
	q := fs.Int("q", 85, "base quality")
	gq := fs.Int("gq", 75, "gainmap quality")
	primaryOut := fs.String("primary-out", "", "write primary JPEG")
	gainmapOut := fs.String("gainmap-out", "", "write gainmap JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" || *width <= 0 || *height <= 0 {
		return errors.New("missing required arguments")
	}
	return jpegr.ResizeUltraHDRFile(*inPath, *outPath, uint(*width), uint(*height), func(opt *jpegr.ResizeOptions) {
		opt.PrimaryQuality = *q
		opt.GainmapQuality = *gq
		opt.PrimaryOut = *primaryOut
		opt.GainmapOut = *gainmapOut
	})
}

func runRebase(args []string) error {
	fs := flag.NewFlagSet("rebase", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryPath := fs.String("primary", "", "new SDR JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	q := fs.Int("q", 0, "base quality, 0 reuses the source tables")
	gq := fs.Int("gq", 85, "gainmap quality")
	primaryOut := fs.String("primary-out", "", "write primary JPEG")
	gainmapOut := fs.String("gainmap-out", "", "write gainmap JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *primaryPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}
	opts := &jpegr.RebaseOptions{
		BaseQuality:    *q,
		GainmapQuality: *gq,
	}
	return jpegr.RebaseUltraHDRFile(*inPath, *primaryPath, *outPath, opts, *primaryOut, *gainmapOut)
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	inPath := fs.String("in", "", "input JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("missing required arguments")
	}
	f, err := os.Open(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	defer f.Close()
	ok, err := jpegr.IsUltraHDR(f)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(os.Stdout, "ultrahdr")
		return nil
	}
	fmt.Fprintln(os.Stdout, "not ultrahdr")
	return nil
}

func runSplit(args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryOut := fs.String("primary-out", "", "primary output JPEG")
	gainmapOut := fs.String("gainmap-out", "", "gainmap output JPEG")
	metaOut := fs.String("meta-out", "", "metadata json output")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *primaryOut == "" || *gainmapOut == "" {
		return fmt.Errorf("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	split, err := jpegr.Split(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*primaryOut), split.PrimaryJPEG, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*gainmapOut), split.GainmapJPEG, 0o644); err != nil {
		return err
	}
	if *metaOut != "" {
		bundle, err := jpegr.BuildMetadataBundle(split.PrimaryJPEG, split.Segs)
		if err != nil {
			return err
		}
		payload, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Clean(*metaOut), payload, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func runJoin(args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	templatePath := fs.String("template", "", "template UltraHDR JPEG for metadata")
	metaPath := fs.String("meta", "", "metadata json")
	primaryPath := fs.String("primary", "", "primary JPEG")
	gainmapPath := fs.String("gainmap", "", "gainmap JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *primaryPath == "" || *gainmapPath == "" || *outPath == "" {
		return fmt.Errorf("missing required arguments")
	}
	primary, err := os.ReadFile(filepath.Clean(*primaryPath))
	if err != nil {
		return err
	}
	gainmap, err := os.ReadFile(filepath.Clean(*gainmapPath))
	if err != nil {
		return err
	}
	if *metaPath != "" {
		metaData, err := os.ReadFile(filepath.Clean(*metaPath))
		if err != nil {
			return err
		}
		var bundle jpegr.MetadataBundle
		if err := json.Unmarshal(metaData, &bundle); err != nil {
			return err
		}
		container, err := jpegr.AssembleFromBundle(primary, gainmap, &bundle)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Clean(*outPath), container, 0o644)
	}
	if *templatePath == "" {
		return fmt.Errorf("missing -meta or -template")
	}
	template, err := os.ReadFile(filepath.Clean(*templatePath))
	if err != nil {
		return err
	}
	split, err := jpegr.Split(template)
	if err != nil {
		return err
	}
	exifSeg, icc, err := jpegr.ExtractExifAndIcc(primary)
	if err != nil {
		return err
	}
	if len(exifSeg) == 0 && len(icc) == 0 {
		exifSeg, icc, err = jpegr.ExtractExifAndIcc(template)
		if err != nil {
			return err
		}
	}
	container, err := jpegr.AssembleContainerVipsLike(primary, gainmap, exifSeg, icc, split.Segs.SecondaryXMP, split.Segs.SecondaryISO)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), container, 0o644)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
