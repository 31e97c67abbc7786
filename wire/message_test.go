package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestRequestEncodingExactBytes(t *testing.T) {
	m := NewRequest(12, 333, 4)
	got := m.Encode()
	want := []byte{
		0x00, 0x00, 0x00, 0x0d,
		0x06,
		0x00, 0x00, 0x00, 0x0c,
		0x00, 0x00, 0x01, 0x4d,
		0x00, 0x00, 0x00, 0x04,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got  %x\nwant %x", got, want)
	}
	if len(got) != 17 {
		t.Fatalf("expected 17 bytes, got %d", len(got))
	}
}

func TestMessageRoundTripAllVariants(t *testing.T) {
	variants := []*Message{
		NewChoke(),
		NewUnchoke(),
		NewInterested(),
		NewNotInterested(),
		NewHave(7),
		NewBitfieldMessage([]byte{0xff, 0x00}),
		NewRequest(1, 2, 3),
		NewPiece(1, 2, []byte("blockdata")),
		NewCancel(1, 2, 3),
		nil, // KeepAlive
	}

	for _, m := range variants {
		encoded := m.Encode()
		decoded, n, err := DecodeMessage(encoded)
		if err != nil {
			t.Fatalf("decode %v: %v", m, err)
		}
		if n != len(encoded) {
			t.Fatalf("decode %v: consumed %d, want %d", m, n, len(encoded))
		}
		if m == nil {
			if decoded != nil {
				t.Fatalf("expected KeepAlive to decode to nil, got %v", decoded)
			}
			continue
		}
		if decoded.ID != m.ID || !bytes.Equal(decoded.Payload, m.Payload) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, m)
		}
	}
}

func TestDecodeMessageNeedsMore(t *testing.T) {
	_, _, err := DecodeMessage([]byte{0, 0, 0})
	if err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore for short length prefix, got %v", err)
	}

	m := NewRequest(1, 2, 3)
	encoded := m.Encode()
	_, _, err = DecodeMessage(encoded[:len(encoded)-1])
	if err != ErrNeedMore {
		t.Fatalf("expected ErrNeedMore for truncated payload, got %v", err)
	}
}

func TestDecodeMessageUnknownID(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x00, 0x01, 0x63}
	_, _, err := DecodeMessage(buf)
	if err != ErrInvalidMessage {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestReadMessageFromReaderPreservesResidue(t *testing.T) {
	m := NewHave(9)
	encoded := m.Encode()
	r := bufio.NewReader(bytes.NewReader(append(encoded, 0xAA, 0xBB)))

	got, err := ReadMessage(r)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.ID != Have {
		t.Fatalf("expected Have, got %v", got.ID)
	}

	rest, err := r.Peek(2)
	if err != nil {
		t.Fatalf("peek residue: %v", err)
	}
	if !bytes.Equal(rest, []byte{0xAA, 0xBB}) {
		t.Fatalf("residual bytes not preserved: %x", rest)
	}
}

func TestParseHaveRequestPiece(t *testing.T) {
	have := NewHave(42)
	idx, ok := have.ParseHave()
	if !ok || idx != 42 {
		t.Fatalf("ParseHave: got (%d, %v)", idx, ok)
	}

	req := NewRequest(1, 2, 3)
	i, b, l, ok := req.ParseRequest()
	if !ok || i != 1 || b != 2 || l != 3 {
		t.Fatalf("ParseRequest: got (%d, %d, %d, %v)", i, b, l, ok)
	}

	p := NewPiece(5, 6, []byte("hi"))
	i, b, data, ok := p.ParsePiece()
	if !ok || i != 5 || b != 6 || string(data) != "hi" {
		t.Fatalf("ParsePiece: got (%d, %d, %q, %v)", i, b, data, ok)
	}
}
