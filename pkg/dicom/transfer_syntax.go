package dicom

import "strings"

// TransferSyntax describes how a dataset and its pixel data are encoded.
// Values are comparable; two syntaxes are equal when their UIDs are.
type TransferSyntax struct {
	UID        string
	Name       string
	Encoded    bool // pixel data is compressed
	Lossy      bool
	BigEndian  bool
	ImplicitVR bool
}

var (
	ImplicitVRLittleEndian = TransferSyntax{UID: "1.2.840.10008.1.2", Name: "ImplicitVRLittleEndian", ImplicitVR: true}
	ExplicitVRLittleEndian = TransferSyntax{UID: "1.2.840.10008.1.2.1", Name: "ExplicitVRLittleEndian"}
	ExplicitVRBigEndian    = TransferSyntax{UID: "1.2.840.10008.1.2.2", Name: "ExplicitVRBigEndian", BigEndian: true}
	JPEGBaseline           = TransferSyntax{UID: "1.2.840.10008.1.2.4.50", Name: "JPEGBaseline", Encoded: true, Lossy: true}
	JPEGExtended           = TransferSyntax{UID: "1.2.840.10008.1.2.4.51", Name: "JPEGExtended", Encoded: true, Lossy: true}
	JPEGLosslessSV1        = TransferSyntax{UID: "1.2.840.10008.1.2.4.70", Name: "JPEGLosslessSV1", Encoded: true}
	JPEG2000Lossless       = TransferSyntax{UID: "1.2.840.10008.1.2.4.90", Name: "JPEG2000Lossless", Encoded: true}
	JPEG2000               = TransferSyntax{UID: "1.2.840.10008.1.2.4.91", Name: "JPEG2000", Encoded: true, Lossy: true}
	RLELossless            = TransferSyntax{UID: "1.2.840.10008.1.2.5", Name: "RLELossless", Encoded: true}
)

var knownSyntaxes = []TransferSyntax{
	ImplicitVRLittleEndian,
	ExplicitVRLittleEndian,
	ExplicitVRBigEndian,
	JPEGBaseline,
	JPEGExtended,
	JPEGLosslessSV1,
	JPEG2000Lossless,
	JPEG2000,
	RLELossless,
}

// ImageTransferSyntaxes is the preference-ordered list offered for image
// storage classes.
var ImageTransferSyntaxes = []TransferSyntax{
	JPEGLosslessSV1,
	RLELossless,
	JPEG2000,
	JPEG2000Lossless,
	JPEGBaseline,
	JPEGExtended,
	ExplicitVRLittleEndian,
	ImplicitVRLittleEndian,
}

// VerificationTransferSyntaxes is offered for the verification class.
var VerificationTransferSyntaxes = []TransferSyntax{
	ExplicitVRLittleEndian,
	ImplicitVRLittleEndian,
}

// LookupTransferSyntax resolves a UID or a case-insensitive name.
func LookupTransferSyntax(nameOrUID string) (TransferSyntax, bool) {
	key := strings.TrimSpace(nameOrUID)
	for _, ts := range knownSyntaxes {
		if ts.UID == key || strings.EqualFold(ts.Name, key) {
			return ts, true
		}
	}
	return TransferSyntax{}, false
}

// IsZero reports whether ts is the zero value.
func (ts TransferSyntax) IsZero() bool { return ts.UID == "" }

// IsUncompressed reports whether ts is one of the three native encodings.
func (ts TransferSyntax) IsUncompressed() bool {
	return ts == ImplicitVRLittleEndian || ts == ExplicitVRLittleEndian || ts == ExplicitVRBigEndian
}

func (ts TransferSyntax) String() string {
	if ts.Name == "" {
		return ts.UID
	}
	return ts.Name + " (" + ts.UID + ")"
}
