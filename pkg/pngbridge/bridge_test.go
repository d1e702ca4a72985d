package pngbridge

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjoblomj/irongrp-go/pkg/grp"
)

func testPalette() *grp.Palette {
	p := &grp.Palette{}
	p.Colours[0] = grp.RGB{R: 0, G: 0, B: 0}
	p.Colours[1] = grp.RGB{R: 255, G: 0, B: 0}
	p.Colours[2] = grp.RGB{R: 0, G: 255, B: 0}
	p.Colours[3] = grp.RGB{R: 0, G: 0, B: 255}
	return p
}

func encodeTestPNG(t *testing.T, w, h int, set func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, set(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIngest_TrimsTransparentBorder(t *testing.T) {
	// 4x4 canvas, a single red pixel sits at (1,1); everything else
	// transparent.
	data := encodeTestPNG(t, 4, 4, func(x, y int) color.Color {
		if x == 1 && y == 1 {
			return color.NRGBA{R: 255, A: 255}
		}
		return color.NRGBA{}
	})

	result, err := Ingest(bytes.NewReader(data), testPalette(), NewColorCache(), grp.Normal, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.XOffset)
	assert.Equal(t, 1, result.YOffset)
	assert.Equal(t, 1, result.StoredWidth)
	assert.Equal(t, 1, result.Height)
	assert.Equal(t, []byte{1}, result.Pixels)
	assert.Equal(t, 4, result.OriginalWidth)
}

func TestIngest_ZeroAlphaMapsToTransparentIndex(t *testing.T) {
	data := encodeTestPNG(t, 2, 1, func(x, y int) color.Color {
		if x == 0 {
			return color.NRGBA{} // alpha 0
		}
		return color.NRGBA{G: 255, A: 255}
	})

	result, err := Ingest(bytes.NewReader(data), testPalette(), NewColorCache(), grp.Normal, nil)
	require.NoError(t, err)
	// Only the green pixel survives border trimming; its row/col is kept.
	assert.Equal(t, []byte{2}, result.Pixels)
}

func TestIngest_WidthLimitPerVariant(t *testing.T) {
	data := encodeTestPNG(t, 600, 1, func(x, y int) color.Color {
		return color.NRGBA{R: 255, A: 255}
	})

	_, err := Ingest(bytes.NewReader(data), testPalette(), NewColorCache(), grp.Normal, nil)
	require.Error(t, err)

	_, err = Ingest(bytes.NewReader(data), testPalette(), NewColorCache(), grp.Uncompressed, nil)
	require.Error(t, err) // 600 still exceeds the 511 uncompressed ceiling
}

func TestColorCache_MemoizesLookups(t *testing.T) {
	cache := NewColorCache()
	pal := testPalette()
	k := cacheKey{r: 250, g: 5, b: 5, a: 255}

	idx1, _, cached1 := cache.lookup(k, pal)
	idx2, _, cached2 := cache.lookup(k, pal)

	assert.False(t, cached1)
	assert.True(t, cached2)
	assert.Equal(t, idx1, idx2)
}

func TestCompositeNonTiled_BlitsAtOffset(t *testing.T) {
	frames := []EgressFrame{
		{XOffset: 1, YOffset: 1, Width: 2, Height: 2, Pixels: []byte{1, 1, 1, 1}},
	}
	rendered, report := CompositeNonTiled(frames, 4, 4, testPalette(), false, -1)
	require.Len(t, rendered, 1)
	img := rendered[0]
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xFFFF), r)
	assert.Equal(t, uint32(0), g)
	assert.Equal(t, uint32(0), b)
	assert.Empty(t, report.ByOffset)
}

func TestCompositeNonTiled_ReportsOffsetAndHashDuplicates(t *testing.T) {
	frames := []EgressFrame{
		{Width: 1, Height: 1, Pixels: []byte{1}, ImageDataOffset: 10},
		{Width: 1, Height: 1, Pixels: []byte{1}, ImageDataOffset: 10},
		{Width: 1, Height: 1, Pixels: []byte{1}, ImageDataOffset: 20},
	}
	_, report := CompositeNonTiled(frames, 1, 1, testPalette(), false, -1)

	require.Len(t, report.ByOffset, 1)
	assert.ElementsMatch(t, []int{0, 1}, report.ByOffset[0].Indices)
	require.Len(t, report.ByHash, 1)
	assert.ElementsMatch(t, []int{0, 1, 2}, report.ByHash[0].Indices)
}

func TestTileColumns(t *testing.T) {
	assert.Equal(t, 2, tileColumns(4, 10, 0))
	assert.Equal(t, 1, tileColumns(4, 10, 15))
	assert.Equal(t, 3, tileColumns(9, 10, 0))
}

func TestCompositeTiled_CanvasDimensions(t *testing.T) {
	frames := make([]EgressFrame, 4)
	for i := range frames {
		frames[i] = EgressFrame{Width: 2, Height: 2, Pixels: []byte{1, 1, 1, 1}}
	}
	canvas := CompositeTiled(frames, 2, 2, 0, testPalette(), false)
	bounds := canvas.Bounds()
	assert.Equal(t, 4, bounds.Dx())
	assert.Equal(t, 4, bounds.Dy())
}
