// Package pngbridge converts between indexed GRP pixel grids and PNG
// images: ingestion (quantize + trim) on the way into a GRP archive, and
// compositing (non-tiled or tiled) on the way out.
package pngbridge

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/sjoblomj/irongrp-go/pkg/grp"
	"github.com/sjoblomj/irongrp-go/pkg/util"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discardLogger
	}
	return l
}

// cacheKey is the colour-index cache's lookup key: an RGB triple plus the
// alpha value that was in effect when it was resolved (§5: "keyed by
// (rgb, alpha)").
type cacheKey struct {
	r, g, b, a uint8
}

// ColorCache memoizes nearest-palette-index lookups across an entire
// ingestion run. It is passed in explicitly rather than held as a package
// singleton, so callers that parallelize ingestion can choose their own
// sharing granularity (spec §5) while a single-threaded caller just creates
// one and reuses it.
type ColorCache struct {
	mu      sync.Mutex
	entries map[cacheKey]uint8
}

// NewColorCache creates an empty cache. Entries are never evicted during a
// run.
func NewColorCache() *ColorCache {
	return &ColorCache{entries: make(map[cacheKey]uint8)}
}

func (c *ColorCache) lookup(k cacheKey, pal *grp.Palette) (index uint8, dist int, cached bool) {
	c.mu.Lock()
	if idx, ok := c.entries[k]; ok {
		c.mu.Unlock()
		return idx, 0, true
	}
	c.mu.Unlock()

	idx, sqDist := pal.NearestIndex(grp.RGB{R: k.r, G: k.g, B: k.b})

	c.mu.Lock()
	c.entries[k] = idx
	c.mu.Unlock()

	return idx, sqDist, false
}

// IngestResult is one PNG's ingested, trimmed pixel grid, ready for
// FrameBuilder.
type IngestResult struct {
	XOffset, YOffset               int
	StoredWidth, Height            int
	OriginalWidth, OriginalHeight  int
	Pixels                         []byte // StoredWidth*Height palette indices
}

// maxStoredWidthNormal and maxStoredWidthUncompressed implement the width
// limits of spec §4.6 step 4.
const (
	maxStoredWidthNormal       = 255
	maxStoredWidthUncompressed = 511
)

// Ingest loads one PNG from r, quantizes it against pal using cache, and
// trims fully-transparent borders (spec §4.6 ingress). variant determines
// which width ceiling applies.
func Ingest(r io.Reader, pal *grp.Palette, cache *ColorCache, variant grp.Variant, log *slog.Logger) (*IngestResult, error) {
	log = logger(log)
	img, err := png.Decode(r)
	if err != nil {
		return nil, grp.WrapError(grp.KindInvalidInput, err, "decoding png")
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	indices := make([]byte, w*h)
	hasAlpha := imageHasAlphaChannel(img)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			_, _, _, a32 := px.RGBA()
			a8 := uint8(a32 >> 8)

			if hasAlpha && a32 == 0 {
				indices[y*w+x] = 0
				continue
			}
			if hasAlpha && a8 != 255 {
				log.Warn("pixel has partial alpha, dropping alpha channel", "x", x, "y", y, "alpha", a8)
			}

			// RGBA() is alpha-premultiplied; quantize the straight colour.
			straight := color.NRGBAModel.Convert(px).(color.NRGBA)
			key := cacheKey{r: straight.R, g: straight.G, b: straight.B, a: a8}
			idx, sqDist, cached := cache.lookup(key, pal)
			if !cached && sqDist != 0 {
				log.Warn("no exact palette match for pixel colour", "x", x, "y", y,
					"r", key.r, "g", key.g, "b", key.b, "squared_distance", sqDist)
			}
			indices[y*w+x] = idx
		}
	}

	left, top, right, bottom := transparentBorders(indices, w, h)
	storedWidth := right - left
	storedHeight := bottom - top

	maxStoredWidth := maxStoredWidthNormal
	if variant.IsUncompressedFamily() {
		maxStoredWidth = maxStoredWidthUncompressed
	}
	if storedWidth > maxStoredWidth {
		return nil, grp.NewError(grp.KindInvalidInput, "stored width %d exceeds limit %d for variant %s", storedWidth, maxStoredWidth, variant)
	}

	trimmed := make([]byte, storedWidth*storedHeight)
	for y := 0; y < storedHeight; y++ {
		copy(trimmed[y*storedWidth:(y+1)*storedWidth], indices[(top+y)*w+left:(top+y)*w+right])
	}

	return &IngestResult{
		XOffset: left, YOffset: top,
		StoredWidth: storedWidth, Height: storedHeight,
		OriginalWidth: w, OriginalHeight: h,
		Pixels: trimmed,
	}, nil
}

// imageHasAlphaChannel reports whether the decoded PNG's colour type
// carries an alpha channel at all. image/png's decoder maps PNG colour
// types onto a small set of concrete image.Image implementations; only
// NRGBA/NRGBA64/Paletted can express anything but fully opaque.
func imageHasAlphaChannel(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.Paletted:
		return true
	default:
		return false
	}
}

// transparentBorders returns the trimmed bounding box [left,right) x
// [top,bottom) of indices, an h-row, w-column grid of palette indices,
// excluding fully-transparent (index 0) outer rows/columns. If the whole
// grid is transparent the returned box degenerates to a single pixel at
// the origin.
func transparentBorders(indices []byte, w, h int) (left, top, right, bottom int) {
	top, bottom = h, 0
	left, right = w, 0

	for y := 0; y < h; y++ {
		rowHasContent := false
		for x := 0; x < w; x++ {
			if indices[y*w+x] != 0 {
				rowHasContent = true
				if x < left {
					left = x
				}
				if x+1 > right {
					right = x + 1
				}
			}
		}
		if rowHasContent {
			if y < top {
				top = y
			}
			if y+1 > bottom {
				bottom = y + 1
			}
		}
	}

	if bottom == 0 { // entirely transparent
		return 0, 0, 1, 1
	}
	return left, top, right, bottom
}

// EgressFrame is one decoded GRP frame as presented to the compositor.
type EgressFrame struct {
	XOffset, YOffset int
	Width, Height    int
	Pixels           []byte
	ImageDataOffset  uint32
}

// DedupReport mirrors Analyzer's duplicate reporting, but over the
// rendered/egress side (spec §4.6.1): groups of frames sharing a source
// image_data_offset, and groups sharing a rendered-pixel hash without
// sharing an offset.
type DedupReport struct {
	ByOffset []DedupGroup
	ByHash   []DedupGroup
}

// DedupGroup is one group of frame indices found identical by one of the
// two criteria in DedupReport.
type DedupGroup struct {
	Label   string
	Indices []int
}

// CompositeNonTiled renders frames into individual images (spec §4.6
// egress, non-tiled): each gets its own max_width x max_height canvas
// with the frame blitted at its recorded offset. If frameNumber >= 0, only
// that single frame is rendered; render[i] is nil for frames skipped this
// way.
func CompositeNonTiled(frames []EgressFrame, maxWidth, maxHeight int, pal *grp.Palette, useTransparency bool, frameNumber int) ([]image.Image, *DedupReport) {
	rendered := make([]image.Image, len(frames))
	hashes := make([]string, len(frames))

	for i, f := range frames {
		if frameNumber >= 0 && i != frameNumber {
			continue
		}
		img := blit(f, maxWidth, maxHeight, pal, useTransparency)
		rendered[i] = img
		hashes[i] = hashImage(img)
	}

	return rendered, buildDedupReport(frames, hashes)
}

func buildDedupReport(frames []EgressFrame, hashes []string) *DedupReport {
	byOffset := make(map[uint32][]int)
	var offsetOrder []uint32
	byHash := make(map[string][]int)
	var hashOrder []string

	for i, f := range frames {
		if _, seen := byOffset[f.ImageDataOffset]; !seen {
			offsetOrder = append(offsetOrder, f.ImageDataOffset)
		}
		byOffset[f.ImageDataOffset] = append(byOffset[f.ImageDataOffset], i)

		if hashes[i] == "" {
			continue
		}
		if _, seen := byHash[hashes[i]]; !seen {
			hashOrder = append(hashOrder, hashes[i])
		}
		byHash[hashes[i]] = append(byHash[hashes[i]], i)
	}

	report := &DedupReport{}
	offsetGroupIndices := make(map[int]bool)
	for _, off := range offsetOrder {
		indices := byOffset[off]
		if len(indices) > 1 {
			report.ByOffset = append(report.ByOffset, DedupGroup{Label: fmt.Sprintf("offset-0x%X", off), Indices: indices})
			for _, idx := range indices {
				offsetGroupIndices[idx] = true
			}
		}
	}
	for _, h := range hashOrder {
		indices := byHash[h]
		if len(indices) <= 1 {
			continue
		}
		allAlreadyGrouped := true
		for _, idx := range indices {
			if !offsetGroupIndices[idx] {
				allAlreadyGrouped = false
				break
			}
		}
		if allAlreadyGrouped {
			continue
		}
		report.ByHash = append(report.ByHash, DedupGroup{Label: util.GroupLabel(h), Indices: indices})
	}
	return report
}

// Log writes the dedup report the way Analyzer.Report.Log does.
func (d *DedupReport) Log(log *slog.Logger) {
	for _, g := range d.ByOffset {
		log.Info("frames share source image data", "group", g.Label, "frames", g.Indices)
	}
	for _, g := range d.ByHash {
		log.Info("frames render identically despite independent storage", "group", g.Label, "frames", g.Indices)
	}
}

// tileColumns implements the cols selection of spec §4.6 egress, tiled.
func tileColumns(frameCount, maxFrameWidth, maxWidthRequest int) int {
	cols := int(math.Sqrt(float64(frameCount)))
	if cols < 1 {
		cols = 1
	}
	if maxWidthRequest > 0 && cols*maxFrameWidth > maxWidthRequest {
		cols = maxWidthRequest / maxFrameWidth
		if cols < 1 {
			cols = 1
		}
	}
	return cols
}

// CompositeTiled lays every frame into one canvas, row-major, per spec
// §4.6 egress, tiled.
func CompositeTiled(frames []EgressFrame, maxFrameWidth, maxFrameHeight, maxWidthRequest int, pal *grp.Palette, useTransparency bool) image.Image {
	cols := tileColumns(len(frames), maxFrameWidth, maxWidthRequest)
	rows := (len(frames) + cols - 1) / cols

	canvasW := cols * maxFrameWidth
	canvasH := rows * maxFrameHeight

	var canvas draw.Image
	if useTransparency {
		canvas = image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))
	} else {
		canvas = image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	}

	for i, f := range frames {
		col := i % cols
		row := i / cols
		originX := col * maxFrameWidth
		originY := row * maxFrameHeight
		blitInto(canvas, f, originX, originY, pal, useTransparency)
	}

	return canvas
}

func blit(f EgressFrame, canvasW, canvasH int, pal *grp.Palette, useTransparency bool) image.Image {
	var canvas draw.Image
	if useTransparency {
		canvas = image.NewNRGBA(image.Rect(0, 0, canvasW, canvasH))
	} else {
		canvas = image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	}
	blitInto(canvas, f, 0, 0, pal, useTransparency)
	return canvas
}

func blitInto(canvas draw.Image, f EgressFrame, originX, originY int, pal *grp.Palette, useTransparency bool) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			idx := f.Pixels[y*f.Width+x]
			if idx == 0 && useTransparency {
				continue // leave canvas pixel transparent
			}
			c := pal.Colours[idx]
			px := originX + f.XOffset + x
			py := originY + f.YOffset + y
			if useTransparency {
				canvas.Set(px, py, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
			} else {
				canvas.Set(px, py, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
			}
		}
	}
}

func hashImage(img image.Image) string {
	bounds := img.Bounds()
	buf := make([]byte, 0, bounds.Dx()*bounds.Dy()*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			buf = append(buf, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
		}
	}
	return util.Hash(buf)
}

// Save encodes img as a PNG to w.
func Save(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
