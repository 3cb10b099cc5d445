package jpegr

// AssembleContainerVipsLike assembles an UltraHDR container from a primary
// and a gain map JPEG, placing EXIF, ICC, XMP and ISO segments in the order
// libvips emits them. Callers that split a container earlier can hand the
// extracted segments straight back in.
func AssembleContainerVipsLike(primaryJPEG, gainmapJPEG []byte, exif []byte, icc [][]byte, secondaryXMP []byte, secondaryISO []byte) ([]byte, error) {
	return assembleContainerVipsLike(primaryJPEG, gainmapJPEG, exif, icc, secondaryXMP, secondaryISO)
}

// ExtractExifAndIcc returns the EXIF payload and any ICC chunks found in the
// APP segments of a JPEG stream.
func ExtractExifAndIcc(jpegData []byte) ([]byte, [][]byte, error) {
	return extractExifAndIcc(jpegData)
}

// MetadataBundleFormat returns the format identifier written into metadata
// bundles produced by this package.
func MetadataBundleFormat() string {
	return metadataBundleFormat
}
