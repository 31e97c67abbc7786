package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestHandshakeRoundTrip(t *testing.T) {
	var infoHash, peerID [20]byte
	copy(infoHash[:], bytes.Repeat([]byte{0x11}, 20))
	copy(peerID[:], "Daniel Rivas12345678")

	h := NewHandshake(infoHash, peerID)
	encoded := h.Encode()
	if len(encoded) != 68 {
		t.Fatalf("expected 68 bytes, got %d", len(encoded))
	}

	decoded, n, err := DecodeHandshake(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 68 {
		t.Fatalf("expected to consume 68 bytes, consumed %d", n)
	}
	if decoded.InfoHash != h.InfoHash || decoded.PeerID != h.PeerID {
		t.Fatal("round-tripped handshake does not match original")
	}
}

func TestHandshakeExactBytes(t *testing.T) {
	var infoHash, peerID [20]byte
	for i := range infoHash {
		infoHash[i] = 0x11
	}
	copy(peerID[:], "Daniel Rivas12345678")

	got := NewHandshake(infoHash, peerID).Encode()

	want := []byte{
		0x13, 0x42, 0x69, 0x74, 0x54, 0x6f, 0x72, 0x72, 0x65, 0x6e,
		0x74, 0x20, 0x70, 0x72, 0x6f, 0x74, 0x6f, 0x63, 0x6f, 0x6c,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11,
		0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11,
		0x44, 0x61, 0x6e, 0x69, 0x65, 0x6c, 0x20, 0x52, 0x69, 0x76,
		0x61, 0x73, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38,
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("got  %x\nwant %x", got, want)
	}
}

func TestDecodeHandshakeNeedsMore(t *testing.T) {
	_, _, err := DecodeHandshake(nil)
	if err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore for empty buffer, got %v", err)
	}

	partial := make([]byte, 30)
	partial[0] = 19
	_, _, err = DecodeHandshake(partial)
	if err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore for partial buffer, got %v", err)
	}
}

func TestDecodeHandshakeAcceptsExactlyFullBuffer(t *testing.T) {
	var infoHash, peerID [20]byte
	full := NewHandshake(infoHash, peerID).Encode()
	if len(full) != HandshakeLen {
		t.Fatalf("fixture is %d bytes, want %d", len(full), HandshakeLen)
	}

	_, n, err := DecodeHandshake(full)
	if err != nil {
		t.Fatalf("expected exactly-full buffer to decode, got err %v", err)
	}
	if n != HandshakeLen {
		t.Fatalf("expected to consume %d bytes, consumed %d", HandshakeLen, n)
	}
}

func TestDecodeHandshakeInvalidProtocol(t *testing.T) {
	buf := make([]byte, HandshakeLen)
	buf[0] = 7
	_, _, err := DecodeHandshake(buf)
	if err != ErrInvalidHandshake {
		t.Fatalf("expected ErrInvalidHandshake, got %v", err)
	}
}

func TestReadHandshakeFromReader(t *testing.T) {
	var infoHash, peerID [20]byte
	copy(infoHash[:], bytes.Repeat([]byte{0xAB}, 20))
	copy(peerID[:], bytes.Repeat([]byte{0xCD}, 20))

	encoded := NewHandshake(infoHash, peerID).Encode()
	r := bufio.NewReader(bytes.NewReader(append(encoded, 0x01, 0x02)))

	h, err := ReadHandshake(r)
	if err != nil {
		t.Fatalf("ReadHandshake: %v", err)
	}
	if h.InfoHash != infoHash || h.PeerID != peerID {
		t.Fatal("handshake fields mismatch")
	}

	rest, err := r.Peek(2)
	if err != nil {
		t.Fatalf("peek remainder: %v", err)
	}
	if !bytes.Equal(rest, []byte{0x01, 0x02}) {
		t.Fatalf("expected residual bytes preserved, got %x", rest)
	}
}
