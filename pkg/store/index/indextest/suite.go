// Package indextest is a contract test suite shared by index implementations.
package indextest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittodicom/pkg/store/index"
)

// Suite runs the index contract against fresh instances from NewIndex.
//
//	func TestMyIndex(t *testing.T) {
//	    suite := &indextest.Suite{NewIndex: func(t *testing.T) index.Index { return myindex.New() }}
//	    suite.Run(t)
//	}
type Suite struct {
	NewIndex func(t *testing.T) index.Index
}

// Run executes all tests in the suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("PutGet", s.testPutGet)
	t.Run("GetMissing", s.testGetMissing)
	t.Run("Replace", s.testReplace)
	t.Run("Study", s.testStudy)
	t.Run("RejectsEmptyUID", s.testRejectsEmptyUID)
	t.Run("CancelledContext", s.testCancelledContext)
}

func (s *Suite) fresh(t *testing.T) index.Index {
	t.Helper()
	idx := s.NewIndex(t)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func record(uid, study string) index.Record {
	return index.Record{
		SOPInstanceUID:    uid,
		SOPClassUID:       "1.2.840.10008.5.1.4.1.1.2",
		StudyInstanceUID:  study,
		SeriesInstanceUID: study + ".1",
		Modality:          "CT",
		Path:              "/archive/" + uid + ".dcm",
		TransferSyntaxUID: "1.2.840.10008.1.2",
		CallingAETitle:    "CT01",
		Listener:          "STORESCP",
		Bytes:             1024,
		StoredAt:          time.Date(2024, 3, 7, 13, 45, 1, 500, time.UTC),
	}
}

func (s *Suite) testPutGet(t *testing.T) {
	idx := s.fresh(t)
	ctx := context.Background()
	want := record("1.2.3.1", "1.2.3")

	if err := idx.Put(ctx, want); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := idx.Get(ctx, want.SOPInstanceUID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !got.StoredAt.Equal(want.StoredAt) {
		t.Errorf("StoredAt = %v, want %v", got.StoredAt, want.StoredAt)
	}
	got.StoredAt = want.StoredAt
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	n, err := idx.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1, nil", n, err)
	}
}

func (s *Suite) testGetMissing(t *testing.T) {
	idx := s.fresh(t)

	_, err := idx.Get(context.Background(), "9.9.9")
	if !errors.Is(err, index.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func (s *Suite) testReplace(t *testing.T) {
	idx := s.fresh(t)
	ctx := context.Background()

	first := record("1.2.3.1", "1.2.3")
	moved := record("1.2.3.1", "4.5.6")
	moved.Path = "/archive/moved.dcm"

	if err := idx.Put(ctx, first); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := idx.Put(ctx, moved); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, err := idx.Get(ctx, "1.2.3.1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Path != moved.Path {
		t.Errorf("Path = %q, want %q", got.Path, moved.Path)
	}

	old, err := idx.Study(ctx, "1.2.3")
	if err != nil {
		t.Fatalf("Study() failed: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("old study still lists %d records", len(old))
	}

	n, _ := idx.Count(ctx)
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func (s *Suite) testStudy(t *testing.T) {
	idx := s.fresh(t)
	ctx := context.Background()

	for _, rec := range []index.Record{
		record("1.2.3.3", "1.2.3"),
		record("1.2.3.1", "1.2.3"),
		record("1.2.30.1", "1.2.30"),
		record("7.7", ""),
	} {
		if err := idx.Put(ctx, rec); err != nil {
			t.Fatalf("Put(%s) failed: %v", rec.SOPInstanceUID, err)
		}
	}

	got, err := idx.Study(ctx, "1.2.3")
	if err != nil {
		t.Fatalf("Study() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Study() returned %d records, want 2", len(got))
	}
	if got[0].SOPInstanceUID != "1.2.3.1" || got[1].SOPInstanceUID != "1.2.3.3" {
		t.Errorf("Study() order = [%s %s], want [1.2.3.1 1.2.3.3]", got[0].SOPInstanceUID, got[1].SOPInstanceUID)
	}

	none, err := idx.Study(ctx, "0.0")
	if err != nil || len(none) != 0 {
		t.Errorf("Study(unknown) = %d records, %v", len(none), err)
	}
}

func (s *Suite) testRejectsEmptyUID(t *testing.T) {
	idx := s.fresh(t)
	if err := idx.Put(context.Background(), index.Record{Path: "/x"}); err == nil {
		t.Fatal("Put() without SOP instance UID should fail")
	}
}

func (s *Suite) testCancelledContext(t *testing.T) {
	idx := s.fresh(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := idx.Put(ctx, record("1", "2")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put() error = %v, want context.Canceled", err)
	}
	if _, err := idx.Get(ctx, "1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
}
