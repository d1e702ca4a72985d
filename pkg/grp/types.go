// Package grp implements the bidirectional codec for the legacy GRP
// sprite container format: header and frame-table parsing/serialization
// (ContainerCodec), per-frame row layout (FrameReader/FrameWriter), the
// run-length row codec (RleCodec), variant autodetection
// (VariantDetector), and dedup-aware frame assembly for writing
// (FrameBuilder).
package grp

import "fmt"

// Variant is the closed set of on-disk GRP encodings. Every component
// that behaves differently per variant does so via an exhaustive switch
// on this tag rather than through polymorphism (see SPEC_FULL.md §4).
type Variant int

const (
	Normal Variant = iota
	Uncompressed
	UncompressedExtended
	War1
)

func (v Variant) String() string {
	switch v {
	case Normal:
		return "normal"
	case Uncompressed:
		return "uncompressed"
	case UncompressedExtended:
		return "uncompressed-extended"
	case War1:
		return "war1"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// HeaderSize returns the on-disk size of the GrpHeader for this variant:
// 4 bytes for War1, 6 bytes otherwise.
func (v Variant) HeaderSize() int {
	if v == War1 {
		return 4
	}
	return 6
}

// IsUncompressedFamily reports whether frames of this variant store raw
// contiguous pixel rows rather than an RLE row-offset table.
func (v Variant) IsUncompressedFamily() bool {
	return v == Uncompressed || v == UncompressedExtended || v == War1
}

// RGB is one 24-bit palette entry.
type RGB struct {
	R, G, B uint8
}

// Palette is the fixed 256-entry colour table. Index 0 is the
// transparency sentinel for all decoding/compositing logic. Palette is
// immutable once constructed.
type Palette struct {
	Colours [256]RGB
}

// PaletteSize is the fixed on-disk size of a raw palette file (§6.3):
// 256 entries of 3 bytes each.
const PaletteSize = 256 * 3

// NearestIndex returns the palette index whose colour is closest to rgb
// by squared-Euclidean distance, and that squared distance. Index 0 is a
// candidate like any other; callers that need to special-case
// transparency do so before calling this (see pngbridge).
func (p *Palette) NearestIndex(rgb RGB) (index uint8, sqDist int) {
	best := -1
	bestDist := 0
	for i, c := range p.Colours {
		dr := int(c.R) - int(rgb.R)
		dg := int(c.G) - int(rgb.G)
		db := int(c.B) - int(rgb.B)
		d := dr*dr + dg*dg + db*db
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
			if d == 0 {
				break
			}
		}
	}
	return uint8(best), bestDist
}

// GrpHeader is the parsed file header: frame count and the maximum
// frame extents recorded in the container (not necessarily the tight
// bounding box of the actual frames — see Analyzer for that check).
type GrpHeader struct {
	FrameCount uint16
	MaxWidth   uint16
	MaxHeight  uint16
}

// ImageData is one frame's pixel payload in both its on-disk and decoded
// forms.
type ImageData struct {
	Variant Variant

	// RowOffsets is non-empty only for Normal: one little-endian offset
	// per row, relative to the frame's image_data_offset.
	RowOffsets []uint16

	// RawRows holds each row's on-disk bytes: RLE-encoded instructions
	// for Normal, exactly EffectiveWidth raw pixel bytes per row for the
	// uncompressed family.
	RawRows [][]byte

	// Pixels is the fully decoded grid, EffectiveWidth*Height palette
	// indices in row-major order.
	Pixels []byte
}

// GrpFrame is one sprite frame's metadata plus its owned ImageData.
type GrpFrame struct {
	XOffset         uint8
	YOffset         uint8
	StoredWidth     uint8
	Height          uint8
	ImageDataOffset uint32
	Data            ImageData
}

// EffectiveWidth is StoredWidth, or StoredWidth+256 when the frame's
// ImageData is UncompressedExtended (§3 "Extended-width sentinel").
func (f *GrpFrame) EffectiveWidth() int {
	if f.Data.Variant == UncompressedExtended {
		return int(f.StoredWidth) + 256
	}
	return int(f.StoredWidth)
}

// Archive is a fully decoded GRP file: header, variant, and frames.
type Archive struct {
	Header  GrpHeader
	Variant Variant
	Frames  []*GrpFrame
}
