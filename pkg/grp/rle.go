package grp

import (
	"io"
	"log/slog"
)

// Encoding mode tags for the two encoder strategies (§4.1.2).
type EncodeMode int

const (
	// ModeNormal is byte-for-byte compatible with the original game
	// tool: same_colour_threshold = 3, literal-length cap checked before
	// the colour-run-exceeded condition.
	ModeNormal EncodeMode = iota
	// ModeOptimised minimizes output bytes: same_colour_threshold = 2,
	// colour-run-exceeded checked before the literal-length cap so that
	// saving a byte wins ties.
	ModeOptimised
)

func (m EncodeMode) threshold() int {
	if m == ModeOptimised {
		return 2
	}
	return 3
}

// maxEncodeIterations bounds the encoder's outer loop per row, far above
// any row width a GRP frame can carry, guarding against an encoder bug
// that would otherwise spin forever on pathological input.
const maxEncodeIterations = 1 << 20

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discardLogger
	}
	return l
}

// DecodeRow implements the RLE decoder contract (§4.1.1): it decodes at
// most width pixels from data, stopping when the decoded cursor reaches
// width or the byte window is exhausted, whichever comes first. It
// returns the decoded row (always exactly width bytes, zero-filled where
// nothing was written) and the number of input bytes consumed. Soft
// decode errors (§7 SoftDecodeWarning) are reported through log and never
// returned as Go errors.
func DecodeRow(data []byte, width int, log *slog.Logger) (pixels []byte, consumed int) {
	log = logger(log)
	pixels = make([]byte, width)
	cursor := 0
	written := 0

	for written < width && cursor < len(data) {
		c := data[cursor]
		cursor++

		switch {
		case c&0x80 != 0: // transparent skip
			skip := int(c & 0x7F)
			n := min(skip, width-written)
			written += n

		case c&0x40 != 0: // run
			run := int(c & 0x3F)
			if cursor >= len(data) {
				log.Warn("rle: run instruction missing value byte, terminating row decode",
					"cursor", cursor, "run", run)
				// Terminate decoding without writing remaining pixels (§4.1.1 rule 2).
				return pixels, cursor
			}
			v := data[cursor]
			cursor++
			n := min(run, width-written)
			for k := 0; k < n; k++ {
				pixels[written+k] = v
			}
			written += n

		default: // literal
			length := int(c)
			if length == 0 {
				log.Warn("rle: literal of length 0, stepping over one byte defensively", "cursor", cursor)
				cursor++
				continue
			}
			avail := len(data) - cursor
			n := min(length, avail, width-written)
			if length > avail {
				log.Warn("rle: literal requests more bytes than remain in window",
					"requested", length, "available", avail)
			}
			copy(pixels[written:written+n], data[cursor:cursor+n])
			cursor += n
			written += n
		}
	}
	return pixels, cursor
}

// EncodeRow implements the RLE encoder contract (§4.1.2) for one row of
// pixel indices under the given mode. The result, when decoded with
// DecodeRow at the same width, reproduces row exactly.
func EncodeRow(row []byte, mode EncodeMode) []byte {
	threshold := mode.threshold()
	lengthFirst := mode == ModeNormal

	var out []byte
	n := len(row)
	i := 0
	iterations := 0

	for i < n {
		iterations++
		if iterations > maxEncodeIterations {
			break
		}

		if row[i] == 0 {
			run := 1
			for run < 127 && i+run < n && row[i+run] == 0 {
				run++
			}
			out = append(out, 0x80|byte(run))
			i += run
			continue
		}

		colourRun := 1
		for colourRun < 63 && i+colourRun < n && row[i+colourRun] == row[i] {
			colourRun++
		}
		if colourRun > threshold {
			out = append(out, 0x40|byte(colourRun), row[i])
			i += colourRun
			continue
		}

		litStart := i
		j := i
		trailRun := 1
		brokeOnRun := false
		for j+1 < n && row[j+1] != 0 {
			if row[j+1] == row[j] {
				trailRun++
			} else {
				trailRun = 1
			}
			j++

			litLen := j - litStart + 1
			lengthHit := litLen >= 63
			runHit := trailRun > threshold

			if lengthFirst {
				if lengthHit {
					break
				}
				if runHit {
					brokeOnRun = true
					break
				}
			} else {
				if runHit {
					brokeOnRun = true
					break
				}
				if lengthHit {
					break
				}
			}
		}

		litLen := j - litStart + 1
		if brokeOnRun {
			litLen -= threshold
			if litLen < 1 {
				litLen = 1
			}
		}
		out = append(out, byte(litLen))
		out = append(out, row[litStart:litStart+litLen]...)
		i = litStart + litLen
	}
	return out
}

// Overlap returns the length of the longest suffix of prev that equals a
// prefix of curr (§4.1.3). It is only consulted by the Optimised encoder
// path in writer.go; the RLE decoder never needs to know that two rows'
// encoded bytes overlap on disk; it simply decodes width bytes starting
// wherever its row offset points, and row offsets alias rather than
// duplicate truncated data, so decoding never runs past a frame boundary
// by more than the shared tail already accounts for.
func Overlap(prev, curr []byte) int {
	max := len(prev)
	if len(curr) < max {
		max = len(curr)
	}
	for k := max; k > 0; k-- {
		if string(prev[len(prev)-k:]) == string(curr[:k]) {
			return k
		}
	}
	return 0
}
