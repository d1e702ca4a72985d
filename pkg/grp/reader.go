package grp

import (
	"encoding/binary"
	"io"
	"log/slog"
	"os"
)

// ReadFile reads and fully decodes a GRP archive from path.
func ReadFile(path string, log *slog.Logger) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(KindIO, err, "reading %s", path)
	}
	return Decode(data, log)
}

// Decode parses a complete GRP file already held in memory. The whole
// file is read once by the caller (ContainerCodec's own contract, §4.2:
// "read the entire byte window ... into memory once, then slice") so
// FrameReader never performs its own I/O.
func Decode(data []byte, log *slog.Logger) (*Archive, error) {
	log = logger(log)
	if len(data) < 4 {
		return nil, NewError(KindParseError, "file too short to contain a GRP header (%d bytes)", len(data))
	}

	variant, err := DetectVariant(data)
	if err != nil {
		return nil, err
	}

	headerSize := variant.HeaderSize()
	if len(data) < headerSize {
		return nil, NewError(KindParseError, "file too short for %s header", variant)
	}

	frameCount := binary.LittleEndian.Uint16(data[0:2])
	var maxWidth, maxHeight uint16
	if variant == War1 {
		maxWidth = uint16(data[2])
		maxHeight = uint16(data[3])
	} else {
		maxWidth = binary.LittleEndian.Uint16(data[2:4])
		maxHeight = binary.LittleEndian.Uint16(data[4:6])
	}

	tableEnd := headerSize + int(frameCount)*8
	if len(data) < tableEnd {
		return nil, NewError(KindParseError, "frame header table (%d entries) does not fit in file", frameCount)
	}

	archive := &Archive{
		Header:  GrpHeader{FrameCount: frameCount, MaxWidth: maxWidth, MaxHeight: maxHeight},
		Variant: variant,
		Frames:  make([]*GrpFrame, 0, frameCount),
	}

	extendedSeen := false
	for i := 0; i < int(frameCount); i++ {
		entry := data[headerSize+i*8 : headerSize+i*8+8]
		x, y, storedWidth, height, rawOffset := parseFrameHeaderEntry(entry)
		extended := rawOffset&0x80000000 != 0 && variant != War1
		offset := rawOffset &^ 0x80000000

		dataVariant := variant
		switch {
		case extended:
			dataVariant = UncompressedExtended
			extendedSeen = true
		case variant == UncompressedExtended:
			dataVariant = Uncompressed
		}

		imgData, err := readImageData(data, offset, storedWidth, height, dataVariant, log)
		if err != nil {
			return nil, err
		}

		archive.Frames = append(archive.Frames, &GrpFrame{
			XOffset:         x,
			YOffset:         y,
			StoredWidth:     storedWidth,
			Height:          height,
			ImageDataOffset: offset,
			Data:            imgData,
		})
	}
	if extendedSeen {
		archive.Variant = UncompressedExtended
	}

	return archive, nil
}

func parseFrameHeaderEntry(entry []byte) (x, y, storedWidth, height uint8, rawOffset uint32) {
	x = entry[0]
	y = entry[1]
	storedWidth = entry[2]
	height = entry[3]
	rawOffset = binary.LittleEndian.Uint32(entry[4:8])
	return
}

// readImageData implements FrameReader (§4.2).
func readImageData(data []byte, offset uint32, storedWidth, height uint8, variant Variant, log *slog.Logger) (ImageData, error) {
	effectiveWidth := int(storedWidth)
	if variant == UncompressedExtended {
		effectiveWidth = int(storedWidth) + 256
	}

	if variant.IsUncompressedFamily() {
		needed := effectiveWidth * int(height)
		if int(offset) > len(data) || len(data)-int(offset) < needed {
			return ImageData{}, NewError(KindUnexpectedEOF, "unexpected end: frame needs %d bytes at offset %d, file has %d", needed, offset, len(data))
		}
		payload := data[offset : int(offset)+needed]
		rows := make([][]byte, height)
		pixels := make([]byte, needed)
		copy(pixels, payload)
		for i := 0; i < int(height); i++ {
			rows[i] = payload[i*effectiveWidth : (i+1)*effectiveWidth]
		}
		return ImageData{Variant: variant, RawRows: rows, Pixels: pixels}, nil
	}

	// Normal: row-offset table followed by RLE rows, all relative to offset.
	if int(offset) > len(data) {
		return ImageData{}, NewError(KindParseError, "frame offset %d beyond file length %d", offset, len(data))
	}
	window := data[offset:]

	if int(height) == 0 {
		return ImageData{Variant: Normal}, nil
	}

	tableLen := int(height) * 2
	if len(window) < tableLen {
		return ImageData{}, NewError(KindParseError, "row-offset table (%d bytes) does not fit in frame window", tableLen)
	}

	rowOffsets := make([]uint16, height)
	for i := range rowOffsets {
		rowOffsets[i] = binary.LittleEndian.Uint16(window[i*2 : i*2+2])
	}

	rows := make([][]byte, height)
	pixels := make([]byte, 0, effectiveWidth*int(height))
	for i, ro := range rowOffsets {
		if int(ro) >= len(window) {
			return ImageData{}, NewError(KindParseError, "row %d offset %d beyond frame window (%d bytes)", i, ro, len(window))
		}
		rowPixels, consumed := DecodeRow(window[ro:], effectiveWidth, log)
		end := int(ro) + consumed
		if end > len(window) {
			end = len(window)
		}
		rows[i] = window[ro:end]
		pixels = append(pixels, rowPixels...)
	}

	return ImageData{Variant: Normal, RowOffsets: rowOffsets, RawRows: rows, Pixels: pixels}, nil
}

// DetectVariant implements VariantDetector (§4.4): a pure, deterministic
// function of the file's bytes.
func DetectVariant(data []byte) (Variant, error) {
	if len(data) < 4 {
		return 0, NewError(KindParseError, "file too short to detect variant")
	}
	frameCount := binary.LittleEndian.Uint16(data[0:2])
	war1MW, war1MH := data[2], data[3]

	if war1MW != 0 && war1MH != 0 {
		if ok, _, _ := tryParseFrameTable(data, 4, frameCount, int64(len(data))); ok {
			return War1, nil
		}
	}

	ok, minOffset, sum := tryParseFrameTable(data, 6, frameCount, int64(len(data)))
	if !ok {
		return 0, NewError(KindParseError, "not a GRP file: frame header table does not validate")
	}

	extended := false
	for i := 0; i < int(frameCount); i++ {
		entry := data[6+i*8 : 6+i*8+8]
		_, _, _, _, rawOffset := parseFrameHeaderEntry(entry)
		if rawOffset&0x80000000 != 0 {
			extended = true
		}
	}

	if int64(minOffset)+sum == int64(len(data)) {
		if extended {
			return UncompressedExtended, nil
		}
		return Uncompressed, nil
	}
	return Normal, nil
}

// tryParseFrameTable attempts to parse frameCount 8-byte frame-header
// entries starting at tableStart, validating each against fileLen. It
// returns whether the whole table validated, the minimum image_data_offset
// seen, and the sum of effective_width*height across frames whose (masked)
// offsets are pairwise distinct (first occurrence of each offset only) —
// the quantity spec.md §4.4 step 4 calls "Σ unique_frames(...)".
func tryParseFrameTable(data []byte, tableStart int, frameCount uint16, fileLen int64) (ok bool, minOffset uint32, sum int64) {
	tableEnd := tableStart + int(frameCount)*8
	if tableEnd > len(data) {
		return false, 0, 0
	}
	if frameCount == 0 {
		return true, 0, 0
	}

	seen := make(map[uint32]bool, frameCount)
	minOffset = ^uint32(0)
	for i := 0; i < int(frameCount); i++ {
		entry := data[tableStart+i*8 : tableStart+i*8+8]
		storedWidth, height, rawOffset := entry[2], entry[3], binary.LittleEndian.Uint32(entry[4:8])
		extended := rawOffset&0x80000000 != 0
		offset := rawOffset &^ 0x80000000
		effectiveWidth := int(storedWidth)
		if extended {
			effectiveWidth += 256
		}

		if !(storedWidth > 0 || effectiveWidth > 0) || height == 0 || int64(offset) > fileLen {
			return false, 0, 0
		}
		if offset < minOffset {
			minOffset = offset
		}
		if !seen[offset] {
			seen[offset] = true
			sum += int64(effectiveWidth) * int64(height)
		}
	}
	return true, minOffset, sum
}

// LoadPalette reads a raw 768-byte palette file (§6.3).
func LoadPalette(r io.Reader) (*Palette, error) {
	buf := make([]byte, PaletteSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, WrapError(KindUnexpectedEOF, err, "reading palette (expected %d bytes)", PaletteSize)
	}
	p := &Palette{}
	for i := range p.Colours {
		p.Colours[i] = RGB{R: buf[i*3], G: buf[i*3+1], B: buf[i*3+2]}
	}
	return p, nil
}
