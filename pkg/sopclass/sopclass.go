// Package sopclass resolves wildcard class patterns into the set of SOP
// classes a listener accepts.
package sopclass

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/marmos91/dittodicom/pkg/dicom"
)

// Wildcard matches every class in the catalog.
const Wildcard = "*"

// Set is a named collection of UID patterns.
type Set struct {
	Name     string
	Patterns []string
}

// UnknownClassError reports an exact UID missing from the catalog.
type UnknownClassError struct {
	UID string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("SOP class %s is not defined", e.UID)
}

// Resolve expands patterns against catalog.
//
// "*" selects the whole catalog, "<prefix>*" selects every class whose UID
// starts with prefix and anything else must be an exact registered UID.
// Unknown UIDs are skipped and collected into the returned error; the set
// is valid even when err is non-nil.
func Resolve(patterns []string, catalog dicom.Catalog) (mapset.Set[dicom.SOPClass], error) {
	result := mapset.NewSet[dicom.SOPClass]()
	var errs *multierror.Error

	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		switch {
		case pattern == "":
			continue

		case pattern == Wildcard:
			for _, sc := range catalog.All() {
				result.Add(sc)
			}

		case strings.Contains(pattern, Wildcard):
			prefix := strings.TrimRight(pattern, Wildcard)
			for _, sc := range catalog.All() {
				if strings.HasPrefix(sc.UID, prefix) {
					result.Add(sc)
				}
			}

		default:
			sc, ok := catalog.Lookup(pattern)
			if !ok {
				errs = multierror.Append(errs, &UnknownClassError{UID: pattern})
				continue
			}
			result.Add(sc)
		}
	}

	return result, errs.ErrorOrNil()
}

// Sorted returns the members of s ordered by UID, for stable display.
func Sorted(s mapset.Set[dicom.SOPClass]) []dicom.SOPClass {
	out := s.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}
