// Package layout derives destination paths for received objects from a
// named storage strategy and the object's attribute values.
package layout

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodicom/pkg/dicom"
)

// DateFormat is the layout of the optional date subdirectory (YYYYMMDD).
const DateFormat = "20060102"

// Directory is one templated path segment.
type Directory struct {
	// Name labels the level for humans (e.g. "study"); it is not used in the path.
	Name    string
	Tag     dicom.Tag
	Default string
}

// FileSpec controls the final path component.
type FileSpec struct {
	// Tag names the attribute used as file name. Zero means a random UUID.
	Tag       dicom.Tag
	Overwrite bool
	Extension string
}

// Strategy is a named template for destination paths. Directories are
// applied in order, one segment each.
type Strategy struct {
	Name                string
	UseDateSubdirectory bool
	Directories         []Directory
	File                FileSpec
}

// AttributeResolver yields the string value of an attribute, or false when
// it is absent. dicom.Object satisfies it.
type AttributeResolver interface {
	String(tag dicom.Tag) (string, bool)
}

// newID generates the fallback file name.
var newID = uuid.NewString

const separator = string(filepath.Separator)

// BuildPath computes the destination of an object under root.
//
// Parameters:
//   - root: Storage root; trailing separators are dropped
//   - s: The listener's strategy
//   - attrs: Attribute source for directory and file name values
//   - now: Reception time, used for the YYYYMMDD subdirectory
//
// Example:
//
//	// root=/data, date on, directories patient/study/series, file SOPInstanceUID
//	/data/20240307/PAT01/1.2.3/1.2.3.4/1.2.3.4.5.dcm
//
// Returns an error only when s is nil or root is blank.
//
// The result has exactly len(s.Directories)+1 segments below root, plus one
// when the date subdirectory is enabled. A directory whose attribute is
// missing and has no default yields an empty segment; segments are joined
// with the separator directly so that such a segment is kept.
func BuildPath(root string, s *Strategy, attrs AttributeResolver, now time.Time) (string, error) {
	if s == nil {
		return "", errors.New("storage strategy is nil")
	}
	if strings.TrimSpace(root) == "" {
		return "", errors.New("storage root is empty")
	}

	segments := make([]string, 0, len(s.Directories)+2)
	segments = append(segments, NormalizeRoot(root))

	if s.UseDateSubdirectory {
		segments = append(segments, now.Format(DateFormat))
	}

	for _, dir := range s.Directories {
		segments = append(segments, SanitizeSegment(resolve(attrs, dir.Tag, dir.Default)))
	}

	segments = append(segments, FileName(s.File, attrs))

	return strings.Join(segments, separator), nil
}

// FileName resolves the file name for spec, falling back to a fresh UUID
// when the attribute is unset or empty.
func FileName(spec FileSpec, attrs AttributeResolver) string {
	name := ""
	if !spec.Tag.IsZero() {
		name = SanitizeSegment(resolve(attrs, spec.Tag, ""))
	}
	if name == "" {
		name = newID()
	}
	return name + spec.Extension
}

func resolve(attrs AttributeResolver, tag dicom.Tag, def string) string {
	if attrs != nil && !tag.IsZero() {
		if v, ok := attrs.String(tag); ok && v != "" {
			return v
		}
	}
	return def
}

// NormalizeRoot strips trailing separators. A filesystem root ("/") becomes
// empty so that joining it with the separator yields an absolute path.
func NormalizeRoot(root string) string {
	return strings.TrimRight(root, `/\`)
}

// SanitizeSegment makes v safe to use as a single path segment: separators
// and NUL become underscores and dot-only names are replaced.
func SanitizeSegment(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, v)
	if v == "." || v == ".." {
		return strings.Repeat("_", len(v))
	}
	return v
}

// Segments splits path into its components below root.
func Segments(path, root string) []string {
	rel := strings.TrimPrefix(path, NormalizeRoot(root))
	rel = strings.TrimPrefix(rel, separator)
	if rel == "" {
		return nil
	}
	return strings.Split(rel, separator)
}
