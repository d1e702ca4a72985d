package grp

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/sjoblomj/irongrp-go/pkg/util"
)

// maxArchiveSize is the 0x80000000 ceiling spec §4.7 imposes on
// image_data_offset: it must remain a plain 32-bit value distinguishable
// from the extended-width sentinel's high bit.
const maxArchiveSize = 0x80000000

// BuildInput is one frame as presented to FrameBuilder, after PngBridge
// ingestion has already trimmed and quantized it.
type BuildInput struct {
	XOffset, YOffset uint8
	// EffectiveWidth is the frame's true pixel width; FrameBuilder derives
	// StoredWidth and the extended-width sentinel from it when the target
	// variant is in the uncompressed family.
	EffectiveWidth int
	Height         uint8
	// Pixels is EffectiveWidth*Height palette indices, row-major.
	Pixels []byte
}

type builtPayload struct {
	offset      uint32
	storedWidth uint8
	height      uint8
	data        ImageData
}

// FrameBuilder assembles GrpFrame values for writing, implementing the
// per-frame dedup of §4.7: identical frames (by the variant-appropriate
// key) share a single on-disk image-data payload.
type FrameBuilder struct {
	variant    Variant
	mode       EncodeMode
	nextOffset uint32
	byKey      map[string]*builtPayload
}

// NewFrameBuilder creates a builder targeting variant, using mode for the
// Normal variant's RLE encoder strategy (ignored otherwise). image_data_offset
// is an absolute file offset (§4.2), so the builder needs frameCount, the
// total number of frames that will be Add()ed, up front to seed its offset
// counter past the header and frame-header table.
func NewFrameBuilder(variant Variant, mode EncodeMode, frameCount int) *FrameBuilder {
	return &FrameBuilder{
		variant:    variant,
		mode:       mode,
		nextOffset: uint32(variant.HeaderSize() + frameCount*8),
		byKey:      make(map[string]*builtPayload),
	}
}

// Add builds (or reuses, on a dedup hit) the ImageData for in and returns
// the resulting GrpFrame, ready for FrameWriter/ContainerCodec.
func (b *FrameBuilder) Add(in BuildInput) (*GrpFrame, error) {
	key := b.dedupKey(in)
	if existing, ok := b.byKey[key]; ok {
		return &GrpFrame{
			XOffset:         in.XOffset,
			YOffset:         in.YOffset,
			StoredWidth:     existing.storedWidth,
			Height:          existing.height,
			ImageDataOffset: existing.offset,
			Data:            existing.data,
		}, nil
	}

	frameVariant := b.variant
	storedWidth := in.EffectiveWidth
	if b.variant.IsUncompressedFamily() {
		if in.EffectiveWidth >= 256 {
			frameVariant = UncompressedExtended
			storedWidth = in.EffectiveWidth - 256
		} else if b.variant != War1 {
			frameVariant = Uncompressed
		}
	}

	if b.variant == War1 {
		if int(in.XOffset)+in.EffectiveWidth > 255 || int(in.YOffset)+int(in.Height) > 255 {
			return nil, NewError(KindInvalidInput, "war1 frame bounds exceeded: x=%d y=%d w=%d h=%d",
				in.XOffset, in.YOffset, in.EffectiveWidth, in.Height)
		}
	}

	imgData, byteLen := buildImageData(frameVariant, b.mode, in.Pixels, in.EffectiveWidth, int(in.Height))

	offset := b.nextOffset
	if uint64(offset) >= maxArchiveSize {
		return nil, NewError(KindInvalidInput, "archive too large: image_data_offset %#x exceeds 0x80000000", offset)
	}
	b.nextOffset += uint32(byteLen)

	payload := &builtPayload{offset: offset, storedWidth: uint8(storedWidth), height: in.Height, data: imgData}
	b.byKey[key] = payload

	return &GrpFrame{
		XOffset:         in.XOffset,
		YOffset:         in.YOffset,
		StoredWidth:     uint8(storedWidth),
		Height:          in.Height,
		ImageDataOffset: offset,
		Data:            imgData,
	}, nil
}

// dedupKey implements §4.7's variant-dependent identity rule: Normal
// frames dedup on pixels alone; uncompressed-family frames also fold in
// position and geometry, since untyped raw rows carry no redundant
// width/height information to cross-check against.
func (b *FrameBuilder) dedupKey(in BuildInput) string {
	if b.variant.IsUncompressedFamily() {
		return util.HashDims(in.Pixels, int(in.XOffset), int(in.YOffset), in.EffectiveWidth, int(in.Height))
	}
	return util.Hash(in.Pixels)
}

// buildImageData implements FrameWriter's per-frame serialization (§4.3)
// for one frame's pixel grid, returning the ImageData ready to write and
// its physical on-disk byte length.
func buildImageData(variant Variant, mode EncodeMode, pixels []byte, effectiveWidth, height int) (ImageData, int) {
	if variant.IsUncompressedFamily() {
		rows := make([][]byte, height)
		for i := 0; i < height; i++ {
			rows[i] = pixels[i*effectiveWidth : (i+1)*effectiveWidth]
		}
		return ImageData{Variant: variant, RawRows: rows, Pixels: pixels}, effectiveWidth * height
	}

	rowOffsets := make([]uint16, height)
	rawRows := make([][]byte, height)
	tableSize := height * 2
	pos := 0
	var prevFull []byte
	for i := 0; i < height; i++ {
		row := pixels[i*effectiveWidth : (i+1)*effectiveWidth]
		full := EncodeRow(row, mode)

		written := full
		backup := 0
		if mode == ModeOptimised && i > 0 {
			if k := Overlap(prevFull, full); k > 1 {
				backup = k
				written = full[k:]
			}
		}

		rowOffsets[i] = uint16(tableSize + pos - backup)
		rawRows[i] = written
		pos += len(written)
		prevFull = full
	}

	return ImageData{Variant: Normal, RowOffsets: rowOffsets, RawRows: rawRows, Pixels: pixels}, tableSize + pos
}

// ContainerCodec write path.

// Write serializes archive's header, frame-header table, and payloads
// (§4.5 write side, §6.1). Frames sharing an image_data_offset (dedup
// hits from FrameBuilder) have their payload written only once, in the
// order it was first assigned.
func Write(w io.Writer, archive *Archive) (int64, error) {
	cw := &countingWriter{w: w}

	if err := writeHeader(cw, archive); err != nil {
		return cw.n, err
	}
	for _, f := range archive.Frames {
		if err := writeFrameHeaderEntry(cw, f); err != nil {
			return cw.n, err
		}
	}

	written := make(map[uint32]bool, len(archive.Frames))
	for _, f := range archive.Frames {
		if written[f.ImageDataOffset] {
			continue
		}
		written[f.ImageDataOffset] = true
		if err := writeImageData(cw, f); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

// WriteFile serializes archive to a new file at path.
func WriteFile(path string, archive *Archive) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, WrapError(KindIO, err, "creating %s", path)
	}
	defer f.Close()
	return Write(f, archive)
}

func writeHeader(w io.Writer, archive *Archive) error {
	var buf []byte
	buf = binary.LittleEndian.AppendUint16(buf, archive.Header.FrameCount)
	if archive.Variant == War1 {
		buf = append(buf, byte(archive.Header.MaxWidth), byte(archive.Header.MaxHeight))
	} else {
		buf = binary.LittleEndian.AppendUint16(buf, archive.Header.MaxWidth)
		buf = binary.LittleEndian.AppendUint16(buf, archive.Header.MaxHeight)
	}
	_, err := w.Write(buf)
	return err
}

func writeFrameHeaderEntry(w io.Writer, f *GrpFrame) error {
	offset := f.ImageDataOffset
	if f.Data.Variant == UncompressedExtended {
		offset |= 0x80000000
	}
	buf := []byte{f.XOffset, f.YOffset, f.StoredWidth, f.Height}
	buf = binary.LittleEndian.AppendUint32(buf, offset)
	_, err := w.Write(buf)
	return err
}

func writeImageData(w io.Writer, f *GrpFrame) error {
	if f.Data.Variant == Normal {
		var table []byte
		for _, ro := range f.Data.RowOffsets {
			table = binary.LittleEndian.AppendUint16(table, ro)
		}
		if _, err := w.Write(table); err != nil {
			return err
		}
	}
	for _, row := range f.Data.RawRows {
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// countingWriter tracks total bytes written, used to compute on-disk
// offsets while writing.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// SavePalette writes a raw 768-byte palette file (§6.3).
func SavePalette(w io.Writer, p *Palette) error {
	buf := make([]byte, PaletteSize)
	for i, c := range p.Colours {
		buf[i*3] = c.R
		buf[i*3+1] = c.G
		buf[i*3+2] = c.B
	}
	_, err := w.Write(buf)
	return err
}
