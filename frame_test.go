package ws

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMaskRoundTrip is Testable Property 1: masking is its own inverse
// for any payload and key.
func TestMaskRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, size := range []int{0, 1, 2, 3, 4, 5, 127, 1000, 65537} {
		payload := make([]byte, size)
		r.Read(payload)
		var key [4]byte
		r.Read(key[:])

		original := append([]byte{}, payload...)
		MaskXOR(key, payload)
		MaskXOR(key, payload)
		assert.Equal(t, original, payload, "round trip at size %d", size)
	}
}

// TestHeaderRoundTrip is Testable Property 4: decoding a just-encoded
// header yields bit-identical fields and consumes exactly its bytes.
func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Fin: true, Opcode: OpText, PayloadLen: 5},
		{Fin: false, Opcode: OpBinary, PayloadLen: 2, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}},
		{Fin: true, Opcode: OpClose, PayloadLen: 125},
		{Fin: true, Opcode: OpPing, PayloadLen: 126, Masked: true, MaskKey: [4]byte{0xAA, 0xBB, 0xCC, 0xDD}},
		{Fin: true, Opcode: OpBinary, PayloadLen: 65535},
		{Fin: true, Opcode: OpBinary, PayloadLen: 65536},
		{Fin: true, Opcode: OpBinary, PayloadLen: 10 << 20, Masked: true, MaskKey: [4]byte{9, 9, 9, 9}},
	}

	for _, h := range cases {
		buf, err := EncodeHeader(nil, h)
		require.NoError(t, err)

		trailing := []byte{0xDE, 0xAD, 0xBE, 0xEF}
		probe := append(append([]byte{}, buf...), trailing...)

		got, n, ok, err := DecodeHeader(probe)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, h, got)
		assert.Equal(t, trailing, probe[n:])
	}
}

func TestDecodeHeaderNeedsMore(t *testing.T) {
	h := Header{Fin: true, Opcode: OpBinary, PayloadLen: 70000}
	buf, err := EncodeHeader(nil, h)
	require.NoError(t, err)

	for n := 0; n < len(buf); n++ {
		_, _, ok, err := DecodeHeader(buf[:n])
		assert.NoError(t, err)
		assert.False(t, ok, "should need more at %d of %d bytes", n, len(buf))
	}

	_, _, ok, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecodeHeaderRejectsReservedHighBit(t *testing.T) {
	// fin=1 opcode=binary, masked=0, len field = 127 (64-bit extended),
	// extended length with the reserved high bit set.
	buf := []byte{0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 0}
	_, _, _, err := DecodeHeader(buf)
	assert.Error(t, err)
}

func TestOpcodeClassification(t *testing.T) {
	assert.True(t, OpClose.IsControl())
	assert.True(t, OpPing.IsControl())
	assert.True(t, OpPong.IsControl())
	assert.False(t, OpText.IsControl())
	assert.False(t, OpBinary.IsControl())
	assert.False(t, OpContinuation.IsControl())

	for op := Opcode(0x3); op <= 0x7; op++ {
		assert.True(t, op.IsReserved(), "0x%x should be reserved", op)
	}
	for op := Opcode(0xB); op <= 0xF; op++ {
		assert.True(t, op.IsReserved(), "0x%x should be reserved", op)
	}
	assert.False(t, OpText.IsReserved())
}
