package transcode

import (
	"errors"
	"testing"

	"github.com/marmos91/dittodicom/pkg/dicom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mono(allocated, stored int) dicom.PixelFormat {
	return dicom.PixelFormat{BitsAllocated: allocated, BitsStored: stored, SamplesPerPixel: 1, Photometric: "MONOCHROME2"}
}

func TestValidatePixelFormat(t *testing.T) {
	tests := []struct {
		name    string
		target  dicom.TransferSyntax
		pf      dicom.PixelFormat
		wantErr error
	}{
		{"baseline mono 8/8/1", dicom.JPEGBaseline, mono(8, 8), nil},
		{"baseline mono stored 12", dicom.JPEGBaseline, mono(8, 12), ErrIllegalPixelFormat},
		{"baseline mono 16/12", dicom.JPEGBaseline, mono(16, 12), ErrIllegalPixelFormat},
		{"baseline monochrome1", dicom.JPEGBaseline, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1, Photometric: "MONOCHROME1"}, nil},
		{"baseline rgb", dicom.JPEGBaseline, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 3, Photometric: "RGB"}, nil},
		{"baseline rgb one sample", dicom.JPEGBaseline, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1, Photometric: "RGB"}, ErrIllegalPixelFormat},
		{"baseline ybr_full_422", dicom.JPEGBaseline, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 3, Photometric: "YBR_FULL_422"}, nil},
		{"baseline palette", dicom.JPEGBaseline, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 1, Photometric: "PALETTE COLOR"}, ErrUnsupportedPhotometric},
		{"extended mono 16/12", dicom.JPEGExtended, mono(16, 12), nil},
		{"extended mono 16/10", dicom.JPEGExtended, mono(16, 10), nil},
		{"extended mono 16/16", dicom.JPEGExtended, mono(16, 16), ErrIllegalPixelFormat},
		{"extended ybr_full", dicom.JPEGExtended, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 3, Photometric: "YBR_FULL"}, nil},
		{"lossless sv1 mono 16/14", dicom.JPEGLosslessSV1, mono(16, 14), nil},
		{"lossless sv1 mono 8/2", dicom.JPEGLosslessSV1, mono(8, 2), nil},
		{"lossless sv1 mono 8/12", dicom.JPEGLosslessSV1, mono(8, 12), ErrIllegalPixelFormat},
		{"lossless sv1 mono 16/1", dicom.JPEGLosslessSV1, mono(16, 1), ErrIllegalPixelFormat},
		{"lossless sv1 ybr", dicom.JPEGLosslessSV1, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 3, Photometric: "YBR_FULL"}, ErrUnsupportedPhotometric},
		{"j2k lossless mono 16/16", dicom.JPEG2000Lossless, mono(16, 16), nil},
		{"j2k lossless mono 16/10", dicom.JPEG2000Lossless, mono(16, 10), nil},
		{"j2k lossless mono 16/14", dicom.JPEG2000Lossless, mono(16, 14), ErrIllegalPixelFormat},
		{"j2k lossless ybr_rct", dicom.JPEG2000Lossless, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 3, Photometric: "YBR_RCT"}, nil},
		{"j2k lossless ybr_ict", dicom.JPEG2000Lossless, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 3, Photometric: "YBR_ICT"}, ErrUnsupportedPhotometric},
		{"j2k lossy ybr_ict", dicom.JPEG2000, dicom.PixelFormat{BitsAllocated: 8, BitsStored: 8, SamplesPerPixel: 3, Photometric: "YBR_ICT"}, nil},
		{"j2k lossy mono 8/8", dicom.JPEG2000, mono(8, 8), nil},
		{"rle is not a compression target", dicom.RLELossless, mono(8, 8), ErrUnsupportedTarget},
		{"uncompressed is not a compression target", dicom.ExplicitVRLittleEndian, mono(8, 8), ErrUnsupportedTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePixelFormat(tt.target, tt.pf)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestPlanNoOp(t *testing.T) {
	o := Plan(NoOp(), mono(16, 12), dicom.JPEG2000, Options{})
	assert.Equal(t, StateNoOp, o.State)
	assert.Equal(t, dicom.JPEG2000, o.Final)
	assert.NoError(t, o.Err)
}

func TestPlanCompress(t *testing.T) {
	o := Plan(Compress("", dicom.JPEGBaseline.UID), mono(8, 8), dicom.ExplicitVRLittleEndian, Options{})
	assert.Equal(t, StateValidatedCompress, o.State)
	assert.Equal(t, dicom.JPEGBaseline, o.Final)
	assert.Empty(t, o.Warnings)

	o = Plan(Compress("", "JPEGBaseline"), mono(8, 12), dicom.ExplicitVRLittleEndian, Options{})
	assert.Equal(t, StateRejectedIllegal, o.State)
	assert.Equal(t, dicom.ExplicitVRLittleEndian, o.Final, "illegal compression leaves encoding unchanged")
	assert.ErrorIs(t, o.Err, ErrIllegalPixelFormat)
	assert.Contains(t, o.Reason(), "unsupported pixel parameters")
}

func TestPlanCompressUnknownTarget(t *testing.T) {
	o := Plan(Compress("5", "1.2.3.4"), mono(8, 8), dicom.ImplicitVRLittleEndian, Options{})
	assert.True(t, o.Rejected())
	assert.ErrorIs(t, o.Err, ErrUnsupportedTarget)
	assert.Equal(t, dicom.ImplicitVRLittleEndian, o.Final)
}

func TestPlanCompressFromCompressed(t *testing.T) {
	o := Plan(Compress("", dicom.JPEG2000Lossless.UID), mono(16, 12), dicom.JPEGLosslessSV1, Options{})
	assert.Equal(t, StateValidatedCompress, o.State)
	assert.Equal(t, dicom.JPEG2000Lossless, o.Final)
	require.Len(t, o.Warnings, 1)
	assert.Contains(t, o.Warnings[0], "switching directly from compressed")

	o = Plan(Compress("", dicom.JPEG2000Lossless.UID), mono(16, 12), dicom.JPEGLosslessSV1, Options{RejectCompressedSource: true})
	assert.True(t, o.Rejected())
	assert.ErrorIs(t, o.Err, ErrCompressedSource)
	assert.Equal(t, dicom.JPEGLosslessSV1, o.Final)

	o = Plan(Compress("", dicom.JPEG2000Lossless.UID), mono(16, 12), dicom.JPEG2000Lossless, Options{RejectCompressedSource: true})
	assert.Equal(t, StateValidatedCompress, o.State, "already in target encoding")
	assert.Empty(t, o.Warnings)
}

func TestPlanDecompress(t *testing.T) {
	tests := []struct {
		target   string
		want     dicom.TransferSyntax
		warnings int
	}{
		{"ExplicitVRBigEndian", dicom.ExplicitVRBigEndian, 0},
		{dicom.ExplicitVRLittleEndian.UID, dicom.ExplicitVRLittleEndian, 0},
		{"ImplicitVRLittleEndian", dicom.ImplicitVRLittleEndian, 0},
		{dicom.JPEG2000.UID, dicom.ImplicitVRLittleEndian, 1},
		{"nonsense", dicom.ImplicitVRLittleEndian, 1},
		{"", dicom.ImplicitVRLittleEndian, 1},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			o := Plan(Decompress(tt.target), dicom.PixelFormat{}, dicom.JPEGLosslessSV1, Options{})
			assert.Equal(t, StateValidatedDecompress, o.State)
			assert.Equal(t, tt.want, o.Final)
			assert.Len(t, o.Warnings, tt.warnings)
		})
	}
}

type fakeObject struct {
	*dicom.Dataset
	changes []dicom.TransferSyntax
	failErr error
}

func (f *fakeObject) ChangeTransferSyntax(ts dicom.TransferSyntax) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.changes = append(f.changes, ts)
	return f.Dataset.ChangeTransferSyntax(ts)
}

func newObject(ts dicom.TransferSyntax, allocated, stored int) *fakeObject {
	ds := dicom.NewDataset(ts).
		SetInt(dicom.TagBitsAllocated, allocated).
		SetInt(dicom.TagBitsStored, stored).
		SetInt(dicom.TagSamplesPerPixel, 1).
		Set(dicom.TagPhotometricInterpretation, "MONOCHROME2").
		SetPixelData(make([]byte, 16))
	return &fakeObject{Dataset: ds}
}

func TestApplySwitchesOnlyWhenDifferent(t *testing.T) {
	obj := newObject(dicom.ExplicitVRLittleEndian, 16, 12)

	o := Apply(Decompress("ExplicitVRLittleEndian"), obj, Options{})
	assert.Equal(t, StateValidatedDecompress, o.State)
	assert.False(t, o.Switched)
	assert.Empty(t, obj.changes)

	o = Apply(Decompress("ExplicitVRBigEndian"), obj, Options{})
	assert.True(t, o.Switched)
	assert.Equal(t, []dicom.TransferSyntax{dicom.ExplicitVRBigEndian}, obj.changes)
	assert.Equal(t, dicom.ExplicitVRBigEndian, obj.TransferSyntax())
}

func TestApplyIllegalLeavesObjectUntouched(t *testing.T) {
	obj := newObject(dicom.ExplicitVRLittleEndian, 16, 12)

	o := Apply(Compress("", "JPEGBaseline"), obj, Options{})
	assert.True(t, o.Rejected())
	assert.Empty(t, obj.changes)
	assert.Equal(t, dicom.ExplicitVRLittleEndian, obj.TransferSyntax())
}

func TestApplyCodecFailure(t *testing.T) {
	obj := newObject(dicom.ExplicitVRLittleEndian, 8, 8)

	o := Apply(Compress("", "JPEGBaseline"), obj, Options{})
	assert.True(t, o.Rejected(), "no codec registered for JPEG baseline")
	assert.Equal(t, StateRejectedNoCodec, o.State)
	assert.Equal(t, "rejected_no_codec", o.State.String())
	assert.ErrorIs(t, o.Err, dicom.ErrNoCodec)
	assert.Equal(t, dicom.ExplicitVRLittleEndian, o.Final)
	assert.Equal(t, dicom.ExplicitVRLittleEndian, obj.TransferSyntax())

	obj = newObject(dicom.ExplicitVRLittleEndian, 16, 12)
	obj.failErr = errors.New("boom")
	o = Apply(Decompress("ExplicitVRBigEndian"), obj, Options{})
	assert.True(t, o.Rejected())
	assert.Equal(t, StateRejectedCodecFailure, o.State)
	assert.Contains(t, o.Reason(), "boom")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "noop", StateNoOp.String())
	assert.Equal(t, "validated_compress", StateValidatedCompress.String())
	assert.Equal(t, "validated_decompress", StateValidatedDecompress.String())
	assert.Equal(t, "rejected_illegal", StateRejectedIllegal.String())
	assert.Equal(t, "rejected_no_codec", StateRejectedNoCodec.String())
	assert.Equal(t, "rejected_codec_failure", StateRejectedCodecFailure.String())
}
