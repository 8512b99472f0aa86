package dicom

import (
	"errors"
	"io"
	"strings"
)

// ErrNoCodec is returned when no codec can convert between two encodings.
var ErrNoCodec = errors.New("no codec for transfer syntax change")

// Object is a received dataset as seen by the storage pipeline.
type Object interface {
	// String returns the trimmed value of tag and whether it is present
	// and non-empty.
	String(tag Tag) (string, bool)
	// StringOr returns the value of tag or def when absent or empty.
	StringOr(tag Tag, def string) string
	// Int returns the integer value of tag.
	Int(tag Tag) (int, bool)

	TransferSyntax() TransferSyntax
	ChangeTransferSyntax(ts TransferSyntax) error

	// PixelDataLength is the size of the pixel data element in bytes.
	PixelDataLength() int64

	Meta() FileMeta
	SetMeta(meta FileMeta)

	WriteTo(w io.Writer) (int64, error)
}

// FileMeta is the file meta information written ahead of a dataset.
type FileMeta struct {
	TransferSyntaxUID          string `cbor:"1,keyasint,omitempty" json:"transfer_syntax_uid,omitempty"`
	MediaStorageSOPClassUID    string `cbor:"2,keyasint,omitempty" json:"media_storage_sop_class_uid,omitempty"`
	MediaStorageSOPInstanceUID string `cbor:"3,keyasint,omitempty" json:"media_storage_sop_instance_uid,omitempty"`
	ImplementationClassUID     string `cbor:"4,keyasint,omitempty" json:"implementation_class_uid,omitempty"`
	ImplementationVersionName  string `cbor:"5,keyasint,omitempty" json:"implementation_version_name,omitempty"`
	SourceAETitle              string `cbor:"6,keyasint,omitempty" json:"source_ae_title,omitempty"`
}

// PixelFormat is the subset of image pixel attributes that decides which
// encodings can represent the pixel data.
type PixelFormat struct {
	BitsAllocated   int
	BitsStored      int
	SamplesPerPixel int
	Photometric     string
}

// PixelAttributes is the read access ReadPixelFormat needs.
type PixelAttributes interface {
	Int(tag Tag) (int, bool)
	StringOr(tag Tag, def string) string
}

// ReadPixelFormat extracts the pixel format of obj. Missing numeric values
// read as zero.
func ReadPixelFormat(obj PixelAttributes) PixelFormat {
	pf := PixelFormat{}
	pf.BitsAllocated, _ = obj.Int(TagBitsAllocated)
	pf.BitsStored, _ = obj.Int(TagBitsStored)
	pf.SamplesPerPixel, _ = obj.Int(TagSamplesPerPixel)
	pf.Photometric = strings.ToUpper(obj.StringOr(TagPhotometricInterpretation, ""))
	return pf
}
