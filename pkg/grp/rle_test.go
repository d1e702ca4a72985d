package grp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRow_BoundaryScenarios(t *testing.T) {
	tests := []struct {
		name string
		row  []byte
		mode EncodeMode
		want []byte
	}{
		{"127 zeros", zeros(127), ModeNormal, []byte{0xFF}},
		{"63 identical non-zero", repeat(7, 63), ModeNormal, []byte{0x7F, 0x07}},
		{"62 distinct non-zero", distinct(62), ModeNormal, append([]byte{0x3E}, distinct(62)...)},
		{"solid transparency width 5", []byte{0, 0, 0, 0, 0}, ModeNormal, []byte{0x85}},
		{"solid run of colour 7", []byte{7, 7, 7, 7}, ModeNormal, []byte{0x44, 0x07}},
		{"literal only", []byte{5, 6, 7}, ModeNormal, []byte{0x03, 5, 6, 7}},
		{"mixed row normal", []byte{0, 9, 9, 9, 8, 7}, ModeNormal, []byte{0x81, 0x05, 9, 9, 9, 8, 7}},
		{"mixed row optimised", []byte{0, 9, 9, 9, 8, 7}, ModeOptimised, []byte{0x81, 0x43, 9, 0x02, 8, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeRow(tt.row, tt.mode))
		})
	}
}

func TestDecodeRow_BoundaryScenarios(t *testing.T) {
	t.Run("truncated run terminates without writing", func(t *testing.T) {
		pixels, consumed := DecodeRow([]byte{0x41}, 1, nil)
		assert.Equal(t, []byte{0}, pixels)
		assert.Equal(t, 1, consumed)
	})

	t.Run("run overruns remaining width", func(t *testing.T) {
		pixels, _ := DecodeRow([]byte{0x45, 9}, 3, nil)
		assert.Equal(t, []byte{9, 9, 9}, pixels)
	})

	t.Run("literal overrun leaves trailing zero", func(t *testing.T) {
		pixels, consumed := DecodeRow([]byte{0x03, 0xAA, 0xBB}, 3, nil)
		assert.Equal(t, []byte{0xAA, 0xBB, 0}, pixels)
		assert.Equal(t, 3, consumed)
	})

	t.Run("literal length 0 steps over defensively", func(t *testing.T) {
		pixels, consumed := DecodeRow([]byte{0x00, 0xFF, 0x02, 1, 2}, 2, nil)
		assert.Equal(t, []byte{1, 2}, pixels)
		assert.Equal(t, 5, consumed)
	})

	t.Run("example 1 solid transparency", func(t *testing.T) {
		pixels, consumed := DecodeRow([]byte{0x85}, 5, nil)
		assert.Equal(t, []byte{0, 0, 0, 0, 0}, pixels)
		assert.Equal(t, 1, consumed)
	})

	t.Run("example 2 solid run", func(t *testing.T) {
		pixels, consumed := DecodeRow([]byte{0x44, 0x07}, 4, nil)
		assert.Equal(t, []byte{7, 7, 7, 7}, pixels)
		assert.Equal(t, 2, consumed)
	})
}

func TestRLE_RoundTrip(t *testing.T) {
	rows := [][]byte{
		zeros(10),
		repeat(3, 40),
		distinct(20),
		{0, 1, 1, 1, 1, 2, 2, 0, 0, 0, 9, 9, 9, 9, 9, 9, 9},
		append(zeros(5), append(repeat(200, 70), distinct(10)...)...),
	}
	for _, mode := range []EncodeMode{ModeNormal, ModeOptimised} {
		for _, row := range rows {
			encoded := EncodeRow(row, mode)
			decoded, consumed := DecodeRow(encoded, len(row), nil)
			require.Equal(t, row, decoded)
			assert.Equal(t, len(encoded), consumed)
		}
	}
}

func TestEncodeRow_OptimisedNeverLargerThanNormal(t *testing.T) {
	rows := [][]byte{
		zeros(200),
		repeat(5, 100),
		distinct(100),
		{0, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 3, 0, 5, 5, 5, 5, 5, 5},
	}
	for _, row := range rows {
		n := EncodeRow(row, ModeNormal)
		o := EncodeRow(row, ModeOptimised)
		assert.LessOrEqual(t, len(o), len(n))
	}
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 3, Overlap([]byte{1, 2, 3, 4, 5}, []byte{3, 4, 5, 6}))
	assert.Equal(t, 0, Overlap([]byte{1, 2, 3}, []byte{9, 9, 9}))
	assert.Equal(t, 2, Overlap([]byte{1, 2}, []byte{1, 2, 3}))
}

func zeros(n int) []byte {
	return make([]byte, n)
}

func repeat(v byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func distinct(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(1 + i%254)
	}
	return b
}
