package dicom

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const preambleSize = 128

var magic = []byte("DICM")

// Dataset is an in-memory Object. Element values are held in their string
// form; pixel data is kept as raw bytes in the current transfer syntax.
//
// On disk a Dataset is a 128-byte preamble, the "DICM" marker and a CBOR
// document carrying the file meta, the elements and the pixel data.
type Dataset struct {
	elements map[Tag]string
	pixels   []byte
	syntax   TransferSyntax
	meta     FileMeta
	codecs   *CodecRegistry
}

type datasetWire struct {
	TransferSyntax string            `cbor:"1,keyasint"`
	Elements       map[uint32]string `cbor:"2,keyasint,omitempty"`
	PixelData      []byte            `cbor:"3,keyasint,omitempty"`
	Meta           *FileMeta         `cbor:"4,keyasint,omitempty"`
}

// NewDataset returns an empty dataset encoded with ts.
func NewDataset(ts TransferSyntax) *Dataset {
	return &Dataset{
		elements: make(map[Tag]string),
		syntax:   ts,
	}
}

// WithCodecs sets the registry used by ChangeTransferSyntax.
func (d *Dataset) WithCodecs(r *CodecRegistry) *Dataset {
	d.codecs = r
	return d
}

// Set stores a string value for tag.
func (d *Dataset) Set(tag Tag, value string) *Dataset {
	if tag == TagPixelData {
		d.pixels = []byte(value)
		return d
	}
	d.elements[tag] = value
	return d
}

// SetInt stores an integer value for tag.
func (d *Dataset) SetInt(tag Tag, value int) *Dataset {
	return d.Set(tag, strconv.Itoa(value))
}

// SetPixelData replaces the pixel data.
func (d *Dataset) SetPixelData(pixels []byte) *Dataset {
	d.pixels = pixels
	return d
}

// PixelData returns the pixel data in the current transfer syntax.
func (d *Dataset) PixelData() []byte { return d.pixels }

// Tags returns the number of non-pixel elements.
func (d *Dataset) Tags() int { return len(d.elements) }

func (d *Dataset) String(tag Tag) (string, bool) {
	v, ok := d.elements[tag]
	if !ok {
		return "", false
	}
	v = strings.TrimRight(strings.TrimSpace(v), "\x00")
	return v, v != ""
}

func (d *Dataset) StringOr(tag Tag, def string) string {
	if v, ok := d.String(tag); ok {
		return v
	}
	return def
}

func (d *Dataset) Int(tag Tag) (int, bool) {
	v, ok := d.String(tag)
	if !ok {
		return 0, false
	}
	// Multi-valued elements use the first value.
	if i := strings.IndexByte(v, '\\'); i >= 0 {
		v = v[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (d *Dataset) TransferSyntax() TransferSyntax { return d.syntax }

// ChangeTransferSyntax re-encodes the pixel data to ts using the dataset's
// codec registry. On error the dataset is left untouched.
func (d *Dataset) ChangeTransferSyntax(ts TransferSyntax) error {
	if ts == d.syntax {
		return nil
	}

	registry := d.codecs
	if registry == nil {
		registry = DefaultCodecs
	}

	codec, ok := registry.Lookup(d.syntax, ts)
	if !ok {
		return fmt.Errorf("%s to %s: %w", d.syntax.Name, ts.Name, ErrNoCodec)
	}

	pixels := d.pixels
	if len(pixels) > 0 {
		out, err := codec.Transcode(pixels, ReadPixelFormat(d), d.syntax, ts)
		if err != nil {
			return fmt.Errorf("%s codec: %w", codec.Name(), err)
		}
		pixels = out
	}

	d.pixels = pixels
	d.syntax = ts
	if d.meta.TransferSyntaxUID != "" {
		d.meta.TransferSyntaxUID = ts.UID
	}
	return nil
}

func (d *Dataset) PixelDataLength() int64 { return int64(len(d.pixels)) }

func (d *Dataset) Meta() FileMeta { return d.meta }

func (d *Dataset) SetMeta(meta FileMeta) { d.meta = meta }

// MarshalCBOR encodes the dataset body without the file preamble.
func (d *Dataset) MarshalCBOR() ([]byte, error) {
	w := datasetWire{
		TransferSyntax: d.syntax.UID,
		PixelData:      d.pixels,
	}
	if len(d.elements) > 0 {
		w.Elements = make(map[uint32]string, len(d.elements))
		for tag, v := range d.elements {
			w.Elements[uint32(tag)] = v
		}
	}
	if d.meta != (FileMeta{}) {
		meta := d.meta
		w.Meta = &meta
	}
	return encMode.Marshal(w)
}

// UnmarshalCBOR decodes a dataset body produced by MarshalCBOR.
func (d *Dataset) UnmarshalCBOR(data []byte) error {
	var w datasetWire
	if err := decMode.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode dataset: %w", err)
	}
	if w.TransferSyntax == "" {
		return errors.New("decode dataset: missing transfer syntax")
	}

	ts, ok := LookupTransferSyntax(w.TransferSyntax)
	if !ok {
		ts = TransferSyntax{UID: w.TransferSyntax, Encoded: true}
	}

	d.syntax = ts
	d.pixels = w.PixelData
	d.elements = make(map[Tag]string, len(w.Elements))
	for tag, v := range w.Elements {
		d.elements[Tag(tag)] = v
	}
	d.meta = FileMeta{}
	if w.Meta != nil {
		d.meta = *w.Meta
	}
	return nil
}

// WriteTo writes the dataset in file form.
func (d *Dataset) WriteTo(w io.Writer) (int64, error) {
	body, err := d.MarshalCBOR()
	if err != nil {
		return 0, err
	}

	var written int64
	for _, chunk := range [][]byte{make([]byte, preambleSize), magic, body} {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// DecodeDataset reads a dataset either in file form or as a bare CBOR body.
func DecodeDataset(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(preambleSize + len(magic))
	if err == nil && bytes.Equal(head[preambleSize:], magic) {
		if _, err := br.Discard(preambleSize + len(magic)); err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	d := &Dataset{}
	if err := d.UnmarshalCBOR(data); err != nil {
		return nil, err
	}
	return d, nil
}

// ReadFile loads a dataset written by WriteTo.
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeDataset(f)
}
