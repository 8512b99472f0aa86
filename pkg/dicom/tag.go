// Package dicom holds the object model consumed by the storage pipeline:
// attribute tags, transfer syntaxes, SOP classes and the Object interface
// through which received datasets are inspected, transcoded and saved.
package dicom

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag identifies a data element as (group << 16) | element.
type Tag uint32

// Frequently used attribute tags.
const (
	TagSOPClassUID               Tag = 0x00080016
	TagSOPInstanceUID            Tag = 0x00080018
	TagStudyDate                 Tag = 0x00080020
	TagAccessionNumber           Tag = 0x00080050
	TagModality                  Tag = 0x00080060
	TagPatientName               Tag = 0x00100010
	TagPatientID                 Tag = 0x00100020
	TagStudyInstanceUID          Tag = 0x0020000D
	TagSeriesInstanceUID         Tag = 0x0020000E
	TagSeriesNumber              Tag = 0x00200011
	TagInstanceNumber            Tag = 0x00200013
	TagSamplesPerPixel           Tag = 0x00280002
	TagPhotometricInterpretation Tag = 0x00280004
	TagBitsAllocated             Tag = 0x00280100
	TagBitsStored                Tag = 0x00280101
	TagPixelData                 Tag = 0x7FE00010
)

// Group returns the group number.
func (t Tag) Group() uint16 { return uint16(t >> 16) }

// Element returns the element number.
func (t Tag) Element() uint16 { return uint16(t) }

// IsZero reports whether the tag is unset.
func (t Tag) IsZero() bool { return t == 0 }

// String renders the tag as "(gggg,eeee)".
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group(), t.Element())
}

// ParseTag parses "0x0020000D", "(0020,000D)", "0020,000D" or a decimal
// number into a Tag.
func ParseTag(s string) (Tag, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty tag")
	}

	if strings.HasPrefix(raw, "(") || strings.Contains(raw, ",") {
		inner := strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
		parts := strings.Split(inner, ",")
		if len(parts) != 2 {
			return 0, fmt.Errorf("malformed tag %q", s)
		}
		group, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 16, 16)
		if err != nil {
			return 0, fmt.Errorf("malformed tag group in %q: %w", s, err)
		}
		element, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 16, 16)
		if err != nil {
			return 0, fmt.Errorf("malformed tag element in %q: %w", s, err)
		}
		return Tag(group<<16 | element), nil
	}

	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		v, err := strconv.ParseUint(raw[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("malformed hexadecimal tag %q: %w", s, err)
		}
		return Tag(v), nil
	}

	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed tag %q: %w", s, err)
	}
	return Tag(v), nil
}

// MustParseTag is ParseTag for constants; it panics on error.
func MustParseTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}
