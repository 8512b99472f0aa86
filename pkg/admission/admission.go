// Package admission decides whether a storage root has enough headroom left
// to accept an incoming object.
package admission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// ErrNoCapacity marks an object refused because the projected disk usage
// would reach the configured maximum.
var ErrNoCapacity = errors.New("insufficient storage capacity")

// Usage is the capacity of the filesystem holding a path.
type Usage struct {
	Total uint64
	Free  uint64
}

// UsageFunc reports the capacity of the filesystem holding path.
type UsageFunc func(ctx context.Context, path string) (Usage, error)

// DiskUsage queries the operating system.
func DiskUsage(ctx context.Context, path string) (Usage, error) {
	stat, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Usage{}, fmt.Errorf("disk usage of %s: %w", path, err)
	}
	return Usage{Total: stat.Total, Free: stat.Free}, nil
}

// ProjectedUsage is the usage percentage of a filesystem after counting
// incoming bytes as free: 100 - ((free+incoming)/total)*100.
// Incoming bytes are added to free space, not subtracted from it.
func ProjectedUsage(total, free, incoming uint64) float64 {
	return 100 - (float64(free+incoming)/float64(total))*100
}

// Controller answers capacity questions for storage roots.
//
// Thread safety:
// A Controller holds no mutable state and is safe for concurrent use,
// provided its UsageFunc is.
type Controller struct {
	usage UsageFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithUsageFunc replaces the capacity source, typically in tests.
func WithUsageFunc(f UsageFunc) Option {
	return func(c *Controller) { c.usage = f }
}

// NewController returns a Controller backed by DiskUsage unless overridden.
func NewController(opts ...Option) *Controller {
	c := &Controller{usage: DiskUsage}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasCapacity creates root if needed and reports whether storing incoming
// more bytes keeps the projected usage strictly below maxPercent.
//
// Parameters:
//   - ctx: Passed to the UsageFunc
//   - root: Storage root; created with mode 0755 when missing
//   - incoming: Size of the object's pixel data. Negative values count as 0.
//   - maxPercent: Exclusive upper bound on the projected usage
//
// Returns:
//   - true, nil when the object fits
//   - false, nil when it does not (callers report ErrNoCapacity)
//   - false, error when root cannot be created or its capacity is unknown
//
// The check is not atomic with the write that follows: concurrent callers
// may all be admitted before any of them writes. Use a Gate to serialize
// admission and write per root when that matters.
func (c *Controller) HasCapacity(ctx context.Context, root string, incoming int64, maxPercent float64) (bool, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return false, fmt.Errorf("create storage root %s: %w", root, err)
	}

	u, err := c.usage(ctx, root)
	if err != nil {
		return false, err
	}
	if u.Total == 0 {
		return false, fmt.Errorf("filesystem holding %s reports zero capacity", root)
	}
	if incoming < 0 {
		incoming = 0
	}

	return ProjectedUsage(u.Total, u.Free, uint64(incoming)) < maxPercent, nil
}

// ParsePercent parses "90%", "90" or "92.5 %" into a percentage in (0, 100].
func ParsePercent(s string) (float64, error) {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if raw == "" {
		return 0, fmt.Errorf("malformed percentage %q", s)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed percentage %q: %w", s, err)
	}
	if v <= 0 || v > 100 {
		return 0, fmt.Errorf("percentage %q out of range (0, 100]", s)
	}
	return v, nil
}
