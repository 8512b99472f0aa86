package dicom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in      string
		want    Tag
		wantErr bool
	}{
		{in: "0x0020000D", want: TagStudyInstanceUID},
		{in: "0X00100010", want: TagPatientName},
		{in: "(0008,0060)", want: TagModality},
		{in: "0008,0018", want: TagSOPInstanceUID},
		{in: "2097165", want: TagStudyInstanceUID},
		{in: "  0x7FE00010 ", want: TagPixelData},
		{in: "", wantErr: true},
		{in: "0xZZ", wantErr: true},
		{in: "(0008)", wantErr: true},
		{in: "(GGGG,0010)", wantErr: true},
		{in: "patient", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTag(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "(0020,000D)", TagStudyInstanceUID.String())
	assert.Equal(t, uint16(0x7FE0), TagPixelData.Group())
	assert.Equal(t, uint16(0x0010), TagPixelData.Element())
	assert.True(t, Tag(0).IsZero())
}

func TestMustParseTagPanics(t *testing.T) {
	assert.Panics(t, func() { MustParseTag("bogus") })
	assert.Equal(t, TagModality, MustParseTag("0x00080060"))
}
