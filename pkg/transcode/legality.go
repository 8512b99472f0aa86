package transcode

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittodicom/pkg/dicom"
)

var (
	ErrUnsupportedTarget      = errors.New("unsupported target encoding")
	ErrUnsupportedPhotometric = errors.New("unsupported photometric interpretation")
	ErrIllegalPixelFormat     = errors.New("unsupported pixel parameters")
	ErrCompressedSource       = errors.New("source encoding is already compressed")
)

// pixelFormat is an admissible (allocated, stored, samples) combination.
// Stored bits may span a range.
type pixelFormat struct {
	allocated int
	storedMin int
	storedMax int
	samples   int
}

func exact(allocated, stored, samples int) pixelFormat {
	return pixelFormat{allocated: allocated, storedMin: stored, storedMax: stored, samples: samples}
}

func (f pixelFormat) admits(pf dicom.PixelFormat) bool {
	return pf.BitsAllocated == f.allocated &&
		pf.BitsStored >= f.storedMin && pf.BitsStored <= f.storedMax &&
		pf.SamplesPerPixel == f.samples
}

func (f pixelFormat) String() string {
	if f.storedMin == f.storedMax {
		return fmt.Sprintf("%d/%d/%d", f.allocated, f.storedMin, f.samples)
	}
	return fmt.Sprintf("%d/%d-%d/%d", f.allocated, f.storedMin, f.storedMax, f.samples)
}

type tableKey struct {
	family      string
	photometric string
}

var (
	mono8          = []pixelFormat{exact(8, 8, 1)}
	monoExtended   = []pixelFormat{exact(8, 8, 1), exact(16, 10, 1), exact(16, 12, 1)}
	monoJPEG2000   = []pixelFormat{exact(8, 8, 1), exact(16, 10, 1), exact(16, 12, 1), exact(16, 16, 1)}
	monoPrediction = []pixelFormat{{allocated: 8, storedMin: 2, storedMax: 8, samples: 1}, {allocated: 16, storedMin: 2, storedMax: 16, samples: 1}}
	color8         = []pixelFormat{exact(8, 8, 3)}
)

// legality lists, per target family and photometric interpretation, the
// pixel formats the encoding can represent (allocated/stored/samples).
var legality = map[tableKey][]pixelFormat{
	{dicom.JPEGBaseline.UID, "MONOCHROME1"}:  mono8,
	{dicom.JPEGBaseline.UID, "MONOCHROME2"}:  mono8,
	{dicom.JPEGBaseline.UID, "RGB"}:          color8,
	{dicom.JPEGBaseline.UID, "YBR_FULL"}:     color8,
	{dicom.JPEGBaseline.UID, "YBR_FULL_422"}: color8,

	{dicom.JPEGExtended.UID, "MONOCHROME1"}:  monoExtended,
	{dicom.JPEGExtended.UID, "MONOCHROME2"}:  monoExtended,
	{dicom.JPEGExtended.UID, "RGB"}:          color8,
	{dicom.JPEGExtended.UID, "YBR_FULL"}:     color8,
	{dicom.JPEGExtended.UID, "YBR_FULL_422"}: color8,

	{dicom.JPEGLosslessSV1.UID, "MONOCHROME1"}: monoPrediction,
	{dicom.JPEGLosslessSV1.UID, "MONOCHROME2"}: monoPrediction,
	{dicom.JPEGLosslessSV1.UID, "RGB"}:         color8,

	{dicom.JPEG2000.UID, "MONOCHROME1"}: monoJPEG2000,
	{dicom.JPEG2000.UID, "MONOCHROME2"}: monoJPEG2000,
	{dicom.JPEG2000.UID, "RGB"}:         color8,
	{dicom.JPEG2000.UID, "YBR_ICT"}:     color8,

	{dicom.JPEG2000Lossless.UID, "MONOCHROME1"}: monoJPEG2000,
	{dicom.JPEG2000Lossless.UID, "MONOCHROME2"}: monoJPEG2000,
	{dicom.JPEG2000Lossless.UID, "RGB"}:         color8,
	{dicom.JPEG2000Lossless.UID, "YBR_RCT"}:     color8,
}

// CompressionTargets are the encodings a compress rule may name.
var CompressionTargets = []dicom.TransferSyntax{
	dicom.JPEGBaseline,
	dicom.JPEGExtended,
	dicom.JPEGLosslessSV1,
	dicom.JPEG2000,
	dicom.JPEG2000Lossless,
}

// IsCompressionTarget reports whether ts has a legality table.
func IsCompressionTarget(ts dicom.TransferSyntax) bool {
	for _, t := range CompressionTargets {
		if t == ts {
			return true
		}
	}
	return false
}

// ValidatePixelFormat checks that target can represent pixel data with pf.
func ValidatePixelFormat(target dicom.TransferSyntax, pf dicom.PixelFormat) error {
	if !IsCompressionTarget(target) {
		return fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}

	formats, ok := legality[tableKey{target.UID, pf.Photometric}]
	if !ok {
		return fmt.Errorf("%w: %q for %s", ErrUnsupportedPhotometric, pf.Photometric, target.Name)
	}

	for _, f := range formats {
		if f.admits(pf) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s %s requires one of %v, got %d/%d/%d",
		ErrIllegalPixelFormat, target.Name, pf.Photometric, formats,
		pf.BitsAllocated, pf.BitsStored, pf.SamplesPerPixel)
}
