package jpegr

import "errors"

const metadataBundleFormat = "ultrahdr-meta-1"

// MetadataBundle carries everything besides the two JPEG streams that is
// needed to put an UltraHDR container back together. Byte fields marshal as
// base64 in JSON, so a bundle can ride along a sidecar file.
type MetadataBundle struct {
	Format       string   `json:"format"`
	PrimaryXMP   []byte   `json:"primary_xmp,omitempty"`
	PrimaryISO   []byte   `json:"primary_iso,omitempty"`
	SecondaryXMP []byte   `json:"secondary_xmp,omitempty"`
	SecondaryISO []byte   `json:"secondary_iso,omitempty"`
	Exif         []byte   `json:"exif,omitempty"`
	ICC          [][]byte `json:"icc,omitempty"`
}

// BuildMetadataBundle collects the split container segments and the EXIF and
// ICC payloads of the primary JPEG into one bundle.
func BuildMetadataBundle(primaryJPEG []byte, segs *MetadataSegments) (*MetadataBundle, error) {
	if segs == nil {
		return nil, errors.New("metadata segments missing")
	}
	exif, icc, err := extractExifAndIcc(primaryJPEG)
	if err != nil {
		return nil, err
	}
	return &MetadataBundle{
		Format:       metadataBundleFormat,
		PrimaryXMP:   segs.PrimaryXMP,
		PrimaryISO:   segs.PrimaryISO,
		SecondaryXMP: segs.SecondaryXMP,
		SecondaryISO: segs.SecondaryISO,
		Exif:         exif,
		ICC:          icc,
	}, nil
}

// Validate reports whether the bundle can drive a container assembly. At
// least one form of gain map metadata must be present.
func (b *MetadataBundle) Validate() error {
	switch {
	case b == nil:
		return errors.New("metadata bundle is nil")
	case b.Format == "":
		return errors.New("metadata bundle missing format")
	case b.Format != metadataBundleFormat:
		return errors.New("unsupported metadata bundle format")
	case len(b.SecondaryXMP) == 0 && len(b.SecondaryISO) == 0:
		return errors.New("metadata bundle missing gainmap metadata")
	}
	return nil
}

// AssembleFromBundle rebuilds a container from two JPEG streams and the
// bundled metadata.
func AssembleFromBundle(primaryJPEG, gainmapJPEG []byte, b *MetadataBundle) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return assembleContainerVipsLike(primaryJPEG, gainmapJPEG, b.Exif, b.ICC, b.SecondaryXMP, b.SecondaryISO)
}
