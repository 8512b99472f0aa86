package admission

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedUsage(total, free uint64) UsageFunc {
	return func(context.Context, string) (Usage, error) {
		return Usage{Total: total, Free: free}, nil
	}
}

func TestProjectedUsage(t *testing.T) {
	assert.InDelta(t, 85.0, ProjectedUsage(1000, 100, 50), 1e-9)
	assert.InDelta(t, 0.0, ProjectedUsage(1000, 1000, 0), 1e-9)
	assert.InDelta(t, 100.0, ProjectedUsage(1000, 0, 0), 1e-9)
}

func TestHasCapacity(t *testing.T) {
	tests := []struct {
		name       string
		total      uint64
		free       uint64
		incoming   int64
		maxPercent float64
		want       bool
	}{
		{"below threshold", 1000, 100, 50, 95, true},
		{"above threshold", 1000, 100, 50, 80, false},
		{"equal is rejected", 1000, 150, 0, 85, false},
		{"negative incoming treated as zero", 1000, 500, -10, 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(WithUsageFunc(fixedUsage(tt.total, tt.free)))
			got, err := c.HasCapacity(context.Background(), t.TempDir(), tt.incoming, tt.maxPercent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasCapacityCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b", "archive")
	c := NewController(WithUsageFunc(fixedUsage(1000, 900)))

	ok, err := c.HasCapacity(context.Background(), root, 0, 90)
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestHasCapacityErrors(t *testing.T) {
	c := NewController(WithUsageFunc(fixedUsage(0, 0)))
	_, err := c.HasCapacity(context.Background(), t.TempDir(), 1, 90)
	assert.Error(t, err)

	boom := errors.New("statfs failed")
	c = NewController(WithUsageFunc(func(context.Context, string) (Usage, error) { return Usage{}, boom }))
	_, err = c.HasCapacity(context.Background(), t.TempDir(), 1, 90)
	assert.ErrorIs(t, err, boom)
}

func TestDiskUsageRealFilesystem(t *testing.T) {
	u, err := DiskUsage(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, u.Total, uint64(0))
	assert.LessOrEqual(t, u.Free, u.Total)

	c := NewController()
	ok, err := c.HasCapacity(context.Background(), t.TempDir(), 0, 100.0001)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "90%", want: 90},
		{in: "90", want: 90},
		{in: " 92.5 % ", want: 92.5},
		{in: "100%", want: 100},
		{in: "0%", wantErr: true},
		{in: "101%", wantErr: true},
		{in: "ninety%", wantErr: true},
		{in: "%", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePercent(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateSerializesPerRoot(t *testing.T) {
	var g Gate
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := g.Lock("/data/archive/")
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestGateIndependentRoots(t *testing.T) {
	var g Gate
	unlockA := g.Lock("/a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := g.Lock("/b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("distinct roots must not block each other")
	}
}

func TestNilGate(t *testing.T) {
	var g *Gate
	unlock := g.Lock("/a")
	unlock()
}
