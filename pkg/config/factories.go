package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittodicom/internal/logger"
	"github.com/marmos91/dittodicom/pkg/store/index"
	badgerindex "github.com/marmos91/dittodicom/pkg/store/index/badger"
	"github.com/marmos91/dittodicom/pkg/store/index/memory"
	"github.com/marmos91/dittodicom/pkg/store/mirror"
	s3mirror "github.com/marmos91/dittodicom/pkg/store/mirror/s3"
	"github.com/mitchellh/mapstructure"
)

// CreateIndex creates the instance index selected by cfg.Type, decoding the
// matching type-specific section.
//
// Supported types:
//   - "" or "memory": in-process index, lost on restart
//   - "badger": persistent index under cfg.Badger["path"]
//
// The caller owns the returned index and must Close it.
func CreateIndex(ctx context.Context, cfg *IndexConfig) (index.Index, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil

	case "badger":
		badgerCfg, err := decodeBadgerIndex(cfg.Badger)
		if err != nil {
			return nil, err
		}
		idx, err := badgerindex.Open(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger index: %w", err)
		}
		logger.Info("Instance index: badger at %s", badgerCfg.Path)
		return idx, nil

	default:
		return nil, fmt.Errorf("unknown index type: %q", cfg.Type)
	}
}

// CreateMirror creates the mirror selected by cfg.Type ("", "none" or "s3").
//
// Returns mirror.Noop for an unset type, and an error for an unknown type or
// an S3 section that cannot be decoded or whose client cannot be built.
func CreateMirror(ctx context.Context, cfg *MirrorConfig) (mirror.Mirror, error) {
	switch cfg.Type {
	case "", "none":
		return mirror.Noop{}, nil

	case "s3":
		s3Cfg, err := decodeS3Mirror(cfg.S3)
		if err != nil {
			return nil, err
		}
		m, err := s3mirror.New(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 mirror: %w", err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown mirror type: %q", cfg.Type)
	}
}

func decodeBadgerIndex(options map[string]any) (badgerindex.Config, error) {
	var c badgerindex.Config
	if err := mapstructure.Decode(options, &c); err != nil {
		return c, fmt.Errorf("failed to decode badger index config: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return c, fmt.Errorf("badger index: %w", formatValidationError(err))
	}
	return c, nil
}

func decodeS3Mirror(options map[string]any) (s3mirror.Config, error) {
	var c s3mirror.Config
	if err := mapstructure.Decode(options, &c); err != nil {
		return c, fmt.Errorf("failed to decode S3 mirror config: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return c, fmt.Errorf("S3 mirror: %w", formatValidationError(err))
	}
	return c, nil
}
