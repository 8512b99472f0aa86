// Package badger is a persistent index backed by BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/fxamacker/cbor/v2"
	"github.com/marmos91/dittodicom/pkg/store/index"
)

// Config configures the BadgerDB index.
type Config struct {
	// Path is the database directory.
	Path string `mapstructure:"path" validate:"required_without=InMemory"`
	// InMemory keeps the database in RAM; Path is ignored. Used by tests.
	InMemory bool `mapstructure:"in_memory"`
	// BlockCacheSizeMB defaults to 64.
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`
}

// encMode keeps sub-second precision of StoredAt.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic("index: CBOR encoder initialization failed: " + err.Error())
	}
	return em
}()

// Index implements index.Index. Badger transactions provide the needed
// isolation, so no extra locking is done here.
type Index struct {
	db *badger.DB
}

// Open opens (creating if needed) the database described by cfg.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}
	return &Index{db: db}, nil
}

func (b *Index) Put(ctx context.Context, rec index.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.SOPInstanceUID == "" {
		return fmt.Errorf("record has no SOP instance UID")
	}

	value, err := encMode.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.SOPInstanceUID, err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		prev, err := getRecord(txn, rec.SOPInstanceUID)
		switch {
		case err == nil && prev.StudyInstanceUID != rec.StudyInstanceUID && prev.StudyInstanceUID != "":
			if err := txn.Delete(studyKey(prev.StudyInstanceUID, rec.SOPInstanceUID)); err != nil {
				return err
			}
		case err != nil && !errors.Is(err, index.ErrNotFound):
			return err
		}

		if err := txn.Set(instanceKey(rec.SOPInstanceUID), value); err != nil {
			return err
		}
		if rec.StudyInstanceUID != "" {
			return txn.Set(studyKey(rec.StudyInstanceUID, rec.SOPInstanceUID), nil)
		}
		return nil
	})
}

func (b *Index) Get(ctx context.Context, uid string) (index.Record, error) {
	if err := ctx.Err(); err != nil {
		return index.Record{}, err
	}

	var rec index.Record
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, uid)
		return err
	})
	return rec, err
}

func (b *Index) Study(ctx context.Context, studyUID string) ([]index.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []index.Record
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := studyPrefix(studyUID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			uid := string(it.Item().Key()[len(prefix):])
			rec, err := getRecord(txn, uid)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (b *Index) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixInstance)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (b *Index) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func getRecord(txn *badger.Txn, uid string) (index.Record, error) {
	var rec index.Record

	item, err := txn.Get(instanceKey(uid))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return rec, fmt.Errorf("%s: %w", uid, index.ErrNotFound)
		}
		return rec, err
	}

	err = item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &rec)
	})
	if err != nil {
		return rec, fmt.Errorf("decode record %s: %w", uid, err)
	}
	return rec, nil
}
