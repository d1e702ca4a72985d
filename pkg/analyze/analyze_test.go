package analyze

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjoblomj/irongrp-go/pkg/grp"
)

func buildArchive(t *testing.T) (*grp.Archive, []byte) {
	t.Helper()
	b := grp.NewFrameBuilder(grp.Normal, grp.ModeNormal, 3)
	f0, err := b.Add(grp.BuildInput{EffectiveWidth: 2, Height: 2, Pixels: []byte{1, 2, 3, 4}})
	require.NoError(t, err)
	f1, err := b.Add(grp.BuildInput{XOffset: 3, EffectiveWidth: 2, Height: 2, Pixels: []byte{5, 6, 7, 8}})
	require.NoError(t, err)
	f2, err := b.Add(grp.BuildInput{XOffset: 3, EffectiveWidth: 2, Height: 2, Pixels: []byte{1, 2, 3, 4}})
	require.NoError(t, err)

	archive := &grp.Archive{
		Header:  grp.GrpHeader{FrameCount: 3, MaxWidth: 99, MaxHeight: 99},
		Variant: grp.Normal,
		Frames:  []*grp.GrpFrame{f0, f1, f2},
	}

	var buf bytes.Buffer
	_, err = grp.Write(&buf, archive)
	require.NoError(t, err)

	decoded, err := grp.Decode(buf.Bytes(), nil)
	require.NoError(t, err)
	return decoded, buf.Bytes()
}

func TestAnalyze_HeaderMismatchAndDuplicates(t *testing.T) {
	archive, data := buildArchive(t)
	report := New(archive, data).Analyze()

	assert.False(t, report.HeaderMatches, "header declared 99x99 but frames only reach a few pixels")
	assert.Equal(t, int64(5), report.ActualMaxRight) // x=3 + width=2
	assert.Equal(t, int64(2), report.ActualMaxBottom)

	require.Len(t, report.Duplicates, 1)
	assert.ElementsMatch(t, []int{0, 2}, report.Duplicates[0].Indices)
}

func TestAnalyze_NoGapsOrOverlapsForTightlyPackedArchive(t *testing.T) {
	archive, data := buildArchive(t)
	report := New(archive, data).Analyze()

	assert.Empty(t, report.Overlaps)
	assert.Empty(t, report.Gaps)
}

func TestAnalyze_DetectsTrailingGap(t *testing.T) {
	archive, data := buildArchive(t)
	data = append(data, 0xAA, 0xBB, 0xCC)
	report := New(archive, data).Analyze()

	require.Len(t, report.Gaps, 1)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, report.Gaps[0].Data)
}

// TestAnalyze_ReportsOptimisedRowOverlap exercises the Optimised encoder's
// inter-row overlap trick (§4.1.3) together with the overlap detector
// (§4.8, §8.1): row 1's encoded bytes alias the tail of row 0's, so the
// two rows' byte ranges genuinely intersect on disk.
func TestAnalyze_ReportsOptimisedRowOverlap(t *testing.T) {
	b := grp.NewFrameBuilder(grp.Normal, grp.ModeOptimised, 1)
	// Row 0 = [5,3,6] encodes to [0x03,5,3,6]; row 1 = [6,2,8] encodes to
	// [0x03,6,2,8], whose first two bytes equal row 0's last two bytes
	// ([3,6]), so the Optimised encoder backs row 1's offset up into row
	// 0's payload instead of repeating those bytes.
	f, err := b.Add(grp.BuildInput{EffectiveWidth: 3, Height: 2, Pixels: []byte{5, 3, 6, 6, 2, 8}})
	require.NoError(t, err)

	archive := &grp.Archive{
		Header:  grp.GrpHeader{FrameCount: 1, MaxWidth: 3, MaxHeight: 2},
		Variant: grp.Normal,
		Frames:  []*grp.GrpFrame{f},
	}

	var buf bytes.Buffer
	_, err = grp.Write(&buf, archive)
	require.NoError(t, err)

	decoded, err := grp.Decode(buf.Bytes(), nil)
	require.NoError(t, err)
	require.Len(t, decoded.Frames, 1)
	assert.Equal(t, []byte{5, 3, 6, 6, 2, 8}, decoded.Frames[0].Data.Pixels)

	report := New(decoded, buf.Bytes()).Analyze()

	require.Len(t, report.Overlaps, 1)
	overlap := report.Overlaps[0]
	offset := int64(decoded.Frames[0].ImageDataOffset)
	assert.Equal(t, offset+4, overlap.Prev.Start)
	assert.Equal(t, offset+8, overlap.Prev.End)
	assert.Equal(t, offset+6, overlap.Curr.Start)
	assert.Equal(t, offset+10, overlap.Curr.End)
}

func TestAnalyzer_DumpRow(t *testing.T) {
	archive, data := buildArchive(t)
	a := New(archive, data)

	dump, err := a.DumpRow(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, dump.Pixels)

	_, err = a.DumpRow(0, 99)
	require.Error(t, err)

	_, err = a.DumpRow(99, 0)
	require.Error(t, err)
}
