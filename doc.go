// Package jpegr implements the UltraHDR JPEG/R format in pure Go.
//
// An UltraHDR file is a baseline JPEG of the SDR rendition with a secondary
// gain map JPEG embedded through the MPF marker; XMP and ISO 21496-1
// segments carry the parameters that reconstruct the HDR rendition. The
// package offers session-based encoding and decoding (Encoder, Decoder),
// container level helpers (Split, Join, RebaseUltraHDR, ResizeUltraHDR) and
// a streaming classifier (IsUltraHDR).
package jpegr
