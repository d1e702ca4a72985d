package grp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_MinimalNormalGRP(t *testing.T) {
	// §8.3 scenario 5: 1-frame, 1x1 Normal GRP.
	data := []byte{
		0x01, 0x00, 0x01, 0x00, 0x01, 0x00, // header: frame_count=1, max_width=1, max_height=1
		0x00, 0x00, 0x01, 0x01, 0x0E, 0x00, 0x00, 0x00, // frame header: x=0 y=0 w=1 h=1 offset=14
		0x02, 0x00, // row-offset table: row 0 at relative offset 2
		0x01, 0x71, // literal length 1, pixel 0x71
	}
	require.Len(t, data, 18)

	archive, err := Decode(data, nil)
	require.NoError(t, err)
	assert.Equal(t, Normal, archive.Variant)
	require.Len(t, archive.Frames, 1)

	f := archive.Frames[0]
	assert.Equal(t, uint8(0), f.XOffset)
	assert.Equal(t, uint8(0), f.YOffset)
	assert.Equal(t, uint8(1), f.StoredWidth)
	assert.Equal(t, uint8(1), f.Height)
	assert.Equal(t, []byte{0x71}, f.Data.Pixels)
}

func TestDetectVariant_UncompressedVsNormal(t *testing.T) {
	// One 2x1 frame of uncompressed pixels, file length exactly matches
	// header + table + payload => Uncompressed.
	header := []byte{0x01, 0x00, 0x02, 0x00, 0x01, 0x00} // frame_count=1, max_width=2 max_height=1
	frameHeader := []byte{0x00, 0x00, 0x02, 0x01, 0x0E, 0x00, 0x00, 0x00} // offset=14 (after 6-byte header + 8-byte table)
	payload := []byte{0x05, 0x06}
	data := append(append(append([]byte{}, header...), frameHeader...), payload...)

	variant, err := DetectVariant(data)
	require.NoError(t, err)
	assert.Equal(t, Uncompressed, variant)

	archive, err := Decode(data, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x06}, archive.Frames[0].Data.Pixels)

	// Same bytes plus one trailing byte => no longer an exact match, tagged Normal.
	withTrailing := append(append([]byte{}, data...), 0x00)
	variant, err = DetectVariant(withTrailing)
	require.NoError(t, err)
	assert.Equal(t, Normal, variant)
}

func TestDetectVariant_War1(t *testing.T) {
	header := []byte{0x01, 0x00, 0x02, 0x01} // frame_count=1, max_width=2, max_height=1 (8-bit)
	frameHeader := []byte{0x00, 0x00, 0x02, 0x01, 0x0C, 0x00, 0x00, 0x00} // offset=12 (after 4-byte header + 8-byte table)
	payload := []byte{0x09, 0x09}
	data := append(append(append([]byte{}, header...), frameHeader...), payload...)

	variant, err := DetectVariant(data)
	require.NoError(t, err)
	assert.Equal(t, War1, variant)

	archive, err := Decode(data, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09, 0x09}, archive.Frames[0].Data.Pixels)
}

func TestDecode_ExtendedWidthSentinel(t *testing.T) {
	// storedWidth=0, offset has bit 31 set => effective width 256.
	header := []byte{0x01, 0x00, 0x00, 0x01, 0x01, 0x00}
	frameHeader := []byte{0x00, 0x00, 0x00, 0x01, 0x0E, 0x00, 0x00, 0x80} // offset=14|extended bit
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	data := append(append(append([]byte{}, header...), frameHeader...), payload...)

	archive, err := Decode(data, nil)
	require.NoError(t, err)
	f := archive.Frames[0]
	assert.Equal(t, UncompressedExtended, f.Data.Variant)
	assert.Equal(t, 256, f.EffectiveWidth())
	assert.Equal(t, payload, f.Data.Pixels)
}

func TestDecode_RowOffsetBeyondWindow(t *testing.T) {
	header := []byte{0x01, 0x00, 0x01, 0x00, 0x01, 0x00}
	frameHeader := []byte{0x00, 0x00, 0x01, 0x01, 0x0E, 0x00, 0x00, 0x00}
	table := []byte{0xFF, 0xFF} // offset far beyond the 0-byte window that follows
	data := append(append(append([]byte{}, header...), frameHeader...), table...)

	_, err := Decode(data, nil)
	require.Error(t, err)
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindParseError, gerr.Kind)
}
