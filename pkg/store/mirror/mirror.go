// Package mirror copies stored files to a secondary location after the local
// write succeeded. Mirroring is best effort and never changes the outcome of
// a store request.
package mirror

import (
	"context"
	"path/filepath"
	"strings"
)

// Mirror uploads a local file under key.
type Mirror interface {
	Name() string
	Upload(ctx context.Context, key, localPath string) error
}

// Noop discards every upload.
type Noop struct{}

func (Noop) Name() string { return "none" }

func (Noop) Upload(context.Context, string, string) error { return nil }

// Key derives the object key of path relative to root, using forward
// slashes and the given prefix.
func Key(prefix, root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)

	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}
