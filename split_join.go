package jpegr

import "errors"

// SplitResult holds the components extracted from a JPEG/R container.
type SplitResult struct {
	PrimaryJPEG []byte
	GainmapJPEG []byte
	Meta        *GainMapMetadata
	Segs        *MetadataSegments
}

// Split extracts the primary and gainmap JPEG images, decoded metadata, and
// the raw XMP/ISO segments from a JPEG/R container.
func Split(data []byte) (*SplitResult, error) {
	ranges, err := scanJPEGs(data)
	if err != nil {
		return nil, err
	}
	if len(ranges) < 2 {
		return nil, errors.New("gainmap image not found")
	}
	sr := &SplitResult{
		PrimaryJPEG: append([]byte(nil), data[ranges[0][0]:ranges[0][1]]...),
		GainmapJPEG: append([]byte(nil), data[ranges[1][0]:ranges[1][1]]...),
		Segs:        &MetadataSegments{},
	}

	hApp1, hApp2, err := extractContainerHeaderSegments(data)
	if err != nil {
		return nil, err
	}
	sr.Segs.PrimaryXMP = findXMP(hApp1)
	sr.Segs.PrimaryISO = findISO(hApp2)

	gApp1, gApp2, err := extractAppSegments(sr.GainmapJPEG)
	if err != nil {
		return nil, err
	}
	sr.Segs.SecondaryXMP = findXMP(gApp1)
	sr.Segs.SecondaryISO = findISO(gApp2)

	// ISO 21496-1 wins over XMP when both are present.
	if iso := sr.Segs.SecondaryISO; iso != nil {
		payload := iso[len(isoNamespace)+1:]
		sr.Meta, err = decodeGainmapMetadataISO(payload)
		if err != nil {
			return nil, err
		}
		return sr, nil
	}
	if xmp := sr.Segs.SecondaryXMP; xmp != nil {
		sr.Meta, err = parseXMP(xmp)
		if err != nil {
			return nil, err
		}
		return sr, nil
	}
	return nil, errors.New("no gainmap metadata found")
}

// Join reassembles the container from the split components without
// re-encoding either JPEG.
func (sr *SplitResult) Join() ([]byte, error) {
	return JoinWithSegments(sr.PrimaryJPEG, sr.GainmapJPEG, sr.Segs)
}

// Join assembles a JPEG/R container from primary and gainmap JPEG images and metadata.
func Join(primaryJPEG, gainmapJPEG []byte, meta *GainMapMetadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.New("metadata required")
	}
	return assembleContainer(primaryJPEG, gainmapJPEG, meta)
}

// JoinWithSegments assembles a JPEG/R container using raw metadata segments.
// PrimaryXMP is updated to reflect the new gainmap length.
func JoinWithSegments(primaryJPEG, gainmapJPEG []byte, segs *MetadataSegments) ([]byte, error) {
	if segs == nil {
		return nil, errors.New("segments required")
	}
	return assembleContainerWithSegments(primaryJPEG, gainmapJPEG, segs)
}
