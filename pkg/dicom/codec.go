package dicom

import (
	"fmt"
	"sync"
)

// Codec converts pixel data between two transfer syntaxes.
type Codec interface {
	Name() string
	Transcode(pixels []byte, pf PixelFormat, from, to TransferSyntax) ([]byte, error)
}

type codecKey struct {
	from, to string
}

// CodecRegistry maps (from, to) transfer syntax pairs onto codecs.
//
// Only the native codec for the uncompressed family is built in. Codecs for
// compressed families are registered by the embedding program.
type CodecRegistry struct {
	mu     sync.RWMutex
	codecs map[codecKey]Codec
}

// DefaultCodecs is used by datasets that were not given a registry.
var DefaultCodecs = NewCodecRegistry()

// NewCodecRegistry returns a registry holding the native codec.
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[codecKey]Codec)}
	native := nativeCodec{}
	for _, from := range VerificationTransferSyntaxes {
		for _, to := range []TransferSyntax{ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRBigEndian} {
			r.Register(from, to, native)
		}
	}
	r.Register(ExplicitVRBigEndian, ImplicitVRLittleEndian, native)
	r.Register(ExplicitVRBigEndian, ExplicitVRLittleEndian, native)
	return r
}

// Register installs c for the from→to conversion, replacing any previous codec.
func (r *CodecRegistry) Register(from, to TransferSyntax, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[codecKey{from.UID, to.UID}] = c
}

// Lookup finds the codec for from→to.
func (r *CodecRegistry) Lookup(from, to TransferSyntax) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[codecKey{from.UID, to.UID}]
	return c, ok
}

// nativeCodec converts between the uncompressed encodings. Only the byte
// order of multi-byte samples differs between them.
type nativeCodec struct{}

func (nativeCodec) Name() string { return "native" }

func (nativeCodec) Transcode(pixels []byte, pf PixelFormat, from, to TransferSyntax) ([]byte, error) {
	if !from.IsUncompressed() || !to.IsUncompressed() {
		return nil, fmt.Errorf("native codec cannot convert %s to %s: %w", from.Name, to.Name, ErrNoCodec)
	}
	if from.BigEndian == to.BigEndian {
		return pixels, nil
	}

	width := pf.BitsAllocated / 8
	if width <= 1 {
		return pixels, nil
	}
	if len(pixels)%width != 0 {
		return nil, fmt.Errorf("pixel data length %d is not a multiple of %d-byte samples", len(pixels), width)
	}

	out := make([]byte, len(pixels))
	for i := 0; i < len(pixels); i += width {
		for j := 0; j < width; j++ {
			out[i+j] = pixels[i+width-1-j]
		}
	}
	return out, nil
}
