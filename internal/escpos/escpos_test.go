package escpos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_KnownSequences(t *testing.T) {
	tests := []struct {
		directive Directive
		want      []byte
	}{
		{Init, []byte{0x1B, 0x40}},
		{AlignLeft, []byte{0x1B, 0x61, 0x00}},
		{AlignCenter, []byte{0x1B, 0x61, 0x01}},
		{AlignRight, []byte{0x1B, 0x61, 0x02}},
		{BoldOn, []byte{0x1B, 0x45, 0x01}},
		{BoldOff, []byte{0x1B, 0x45, 0x00}},
		{FontDouble, []byte{0x1D, 0x21, 0x11}},
		{FontNormal, []byte{0x1D, 0x21, 0x00}},
		{LineFeed, []byte{0x0A}},
		{CutPaper, []byte{0x1D, 0x56, 0x00}},
		{OpenDrawer, []byte{0x1B, 0x70, 0x00, 0x19, 0x19}},
	}
	for _, tt := range tests {
		t.Run(tt.directive.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.directive))
		})
	}
}

func TestEncode_EveryDirectiveHasBytes(t *testing.T) {
	for d := Init; d <= Beep; d++ {
		require.NotEmpty(t, Encode(d), "directive %s has no byte sequence", d)
	}
}

func TestEncode_ReturnsCopy(t *testing.T) {
	a := Encode(CutPaper)
	a[0] = 0xFF
	assert.Equal(t, []byte{0x1D, 0x56, 0x00}, Encode(CutPaper))
}
